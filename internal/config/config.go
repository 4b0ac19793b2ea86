package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingToken is returned by Validate when no GitHub token is configured.
var ErrMissingToken = errors.New("GitHub token is not configured")

// Defaults applied before the config file and the environment.
const (
	DefaultPort                  = 8080
	DefaultGitHubURL             = "https://api.github.com"
	DefaultStoreDriver           = "memory"
	DefaultCacheDriver           = "memory"
	DefaultMaxConcurrentRequests = 5
	DefaultRequestsPerSecond     = 10.0
	DefaultPollIntervalSeconds   = 60
	DefaultStatePath             = ".triage/state.json"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"
	DefaultServerURL             = "http://localhost:8080"
)

// Config holds application configuration.
// Follows Single Responsibility - only holds configuration data.
type Config struct {
	Port int `yaml:"port"`

	// GitHub configuration
	GitHubURL   string `yaml:"github_url"`
	GitHubToken string `yaml:"github_token"`
	Org         string `yaml:"org"`

	// Triage store: memory, sqlite, postgres or redis
	StoreDriver string `yaml:"store_driver"`
	StoreDSN    string `yaml:"store_dsn"`

	// Upstream response cache: memory or memcached. Zero duration disables caching.
	CacheDriver          string `yaml:"cache_driver"`
	CacheAddr            string `yaml:"cache_addr"`
	CacheDurationSeconds int    `yaml:"cache_duration_seconds"`

	MaxConcurrentRequests int     `yaml:"max_concurrent_requests"`
	RequestsPerSecond     float64 `yaml:"requests_per_second"`

	// Triage client
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	StatePath           string `yaml:"state_path"`
	ServerURL           string `yaml:"server_url"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:                  DefaultPort,
		GitHubURL:             DefaultGitHubURL,
		StoreDriver:           DefaultStoreDriver,
		CacheDriver:           DefaultCacheDriver,
		MaxConcurrentRequests: DefaultMaxConcurrentRequests,
		RequestsPerSecond:     DefaultRequestsPerSecond,
		PollIntervalSeconds:   DefaultPollIntervalSeconds,
		StatePath:             DefaultStatePath,
		LogLevel:              DefaultLogLevel,
		LogFormat:             DefaultLogFormat,
		ServerURL:             DefaultServerURL,
	}
}

// Load builds configuration from defaults, then the YAML file at path (if
// path is non-empty), then environment variables. Unparseable numeric
// environment values leave the previous value in place.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setInt(&c.Port, "PORT")
	setString(&c.GitHubURL, "GITHUB_URL")
	setString(&c.GitHubToken, "GITHUB_TOKEN")
	setString(&c.Org, "ORG")
	setString(&c.StoreDriver, "STORE_DRIVER")
	setString(&c.StoreDSN, "STORE_DSN")
	setString(&c.CacheDriver, "CACHE_DRIVER")
	setString(&c.CacheAddr, "CACHE_ADDR")
	setInt(&c.CacheDurationSeconds, "CACHE_DURATION_SECONDS")
	setInt(&c.MaxConcurrentRequests, "MAX_CONCURRENT_REQUESTS")
	setFloat(&c.RequestsPerSecond, "REQUESTS_PER_SECOND")
	setInt(&c.PollIntervalSeconds, "POLL_INTERVAL_SECONDS")
	setString(&c.StatePath, "STATE_PATH")
	setString(&c.ServerURL, "SERVER_URL")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
}

// normalize replaces out-of-range values with defaults.
func (c *Config) normalize() {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.MaxConcurrentRequests <= 0 {
		c.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if c.RequestsPerSecond < 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if c.CacheDurationSeconds < 0 {
		c.CacheDurationSeconds = 0
	}
	c.GitHubURL = strings.TrimRight(c.GitHubURL, "/")
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
}

// HasGitHubConfig returns true if GitHub is configured.
func (c *Config) HasGitHubConfig() bool {
	return c.GitHubToken != ""
}

// Validate reports configuration the server cannot run without.
// A missing token is not fatal at startup; it surfaces per request.
func (c *Config) Validate() error {
	if !c.HasGitHubConfig() {
		return ErrMissingToken
	}
	if c.Org == "" {
		return errors.New("organization is not configured")
	}
	return nil
}

// PollInterval returns the client poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// CacheDuration returns the upstream cache TTL.
func (c *Config) CacheDuration() time.Duration {
	return time.Duration(c.CacheDurationSeconds) * time.Second
}

// Redacted returns a copy safe for display.
func (c *Config) Redacted() Config {
	out := *c
	if out.GitHubToken != "" {
		out.GitHubToken = "********"
	}
	return out
}

// YAML renders the redacted configuration.
func (c *Config) YAML() (string, error) {
	redacted := c.Redacted()
	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			*dst = f
		}
	}
}
