package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vilaca/triage-dashboard/internal/api"
	"github.com/vilaca/triage-dashboard/internal/api/github"
	"github.com/vilaca/triage-dashboard/internal/config"
	"github.com/vilaca/triage-dashboard/internal/dashboard"
	"github.com/vilaca/triage-dashboard/internal/remote"
	"github.com/vilaca/triage-dashboard/internal/service"
	"github.com/vilaca/triage-dashboard/internal/store"
	"github.com/vilaca/triage-dashboard/internal/triage"
)

// upstreamTimeout bounds a single GitHub API request.
const upstreamTimeout = 30 * time.Second

// server is the wired dashboard. This is the composition root where all
// dependencies are created and injected.
type server struct {
	handler http.Handler
	triage  *service.TriageService
	store   store.Store
}

// buildServer wires up all dependencies and returns the configured HTTP handler.
// Follows SOLID principles and IoC (Inversion of Control).
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server, error) {
	st, err := store.Open(ctx, cfg.StoreDriver, cfg.StoreDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client, err := newOrgClient(cfg, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	fetcher := service.NewIssueFetcher(client, cfg.MaxConcurrentRequests, logger)
	triageService := service.NewTriageService(fetcher, st, cfg.Org, logger)

	handler := dashboard.NewHandler(dashboard.HandlerConfig{
		Renderer:        dashboard.NewHTMLRenderer(),
		Logger:          logger,
		Fetcher:         fetcher,
		Triage:          triageService,
		Org:             cfg.Org,
		TokenConfigured: cfg.HasGitHubConfig(),
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	return &server{
		handler: dashboard.WithRequestLogging(logger, mux),
		triage:  triageService,
		store:   st,
	}, nil
}

// newOrgClient builds the GitHub client, wrapped with a cache when a TTL is configured.
func newOrgClient(cfg *config.Config, logger *slog.Logger) (api.OrgClient, error) {
	httpClient := &http.Client{
		Timeout: upstreamTimeout,
	}

	var client api.OrgClient = github.NewClient(api.ClientConfig{
		BaseURL:               cfg.GitHubURL,
		Token:                 cfg.GitHubToken,
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		RequestsPerSecond:     cfg.RequestsPerSecond,
	}, httpClient)

	if cfg.CacheDuration() <= 0 {
		return client, nil
	}

	var cache api.Cache
	switch strings.ToLower(cfg.CacheDriver) {
	case "", "memory":
		cache = api.NewMemoryCache()
	case "memcached":
		if cfg.CacheAddr == "" {
			return nil, fmt.Errorf("cache driver memcached needs CACHE_ADDR")
		}
		mc := api.NewMemcachedCache("triage:", logger, strings.Split(cfg.CacheAddr, ",")...)
		if err := mc.Ping(); err != nil {
			logger.Warn("memcached unreachable, continuing with cache misses", "addr", cfg.CacheAddr, "error", err)
		}
		cache = mc
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.CacheDriver)
	}

	logger.Info("upstream cache enabled", "driver", cfg.CacheDriver, "ttl", cfg.CacheDuration())
	return api.NewCachingClient(client, cache, cfg.CacheDuration(), logger), nil
}

// newSession opens the local triage session backed by the state file.
func newSession(cfg *config.Config, logger *slog.Logger) (*triage.Session, *triage.FileStateStore) {
	stateStore := triage.NewFileStateStore(cfg.StatePath, logger)
	return triage.NewSession(stateStore, logger), stateStore
}

// newRemote builds a client for the dashboard at cfg.ServerURL.
func newRemote(cfg *config.Config, logger *slog.Logger) *remote.Client {
	return remote.NewClient(cfg.ServerURL, &http.Client{Timeout: remote.DefaultTimeout}, logger)
}
