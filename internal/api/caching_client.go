package api

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// CachingClient wraps an OrgClient with caching capabilities.
// Follows Decorator pattern to add caching without modifying the underlying client.
type CachingClient struct {
	client OrgClient
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachingClient creates a new caching client wrapper.
// Values are stored JSON-encoded so any Cache backend can hold them.
func NewCachingClient(client OrgClient, cache Cache, ttl time.Duration, logger *slog.Logger) *CachingClient {
	return &CachingClient{
		client: client,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// ListTeams retrieves teams with caching.
func (c *CachingClient) ListTeams(ctx context.Context, org string) ([]domain.Team, error) {
	return cached(c, generateCacheKey("ListTeams", org), func() ([]domain.Team, error) {
		return c.client.ListTeams(ctx, org)
	})
}

// ListTeamMembers retrieves team members with caching.
func (c *CachingClient) ListTeamMembers(ctx context.Context, org, teamSlug string) ([]domain.Member, error) {
	return cached(c, generateCacheKey("ListTeamMembers", org, teamSlug), func() ([]domain.Member, error) {
		return c.client.ListTeamMembers(ctx, org, teamSlug)
	})
}

// ListRepositories retrieves repositories with caching.
func (c *CachingClient) ListRepositories(ctx context.Context, org string) ([]domain.Repository, error) {
	return cached(c, generateCacheKey("ListRepositories", org), func() ([]domain.Repository, error) {
		return c.client.ListRepositories(ctx, org)
	})
}

// ListOpenIssues retrieves open issues with caching.
func (c *CachingClient) ListOpenIssues(ctx context.Context, org, repo string) ([]domain.Issue, error) {
	return cached(c, generateCacheKey("ListOpenIssues", org, repo), func() ([]domain.Issue, error) {
		return c.client.ListOpenIssues(ctx, org, repo)
	})
}

// cached serves key from the cache or populates it from fetch.
// Errors are never cached. Undecodable entries count as misses.
func cached[T any](c *CachingClient, key string, fetch func() ([]T, error)) ([]T, error) {
	if data, found := c.cache.Get(key); found {
		var values []T
		if err := json.Unmarshal(data, &values); err == nil {
			c.logger.Debug("cache hit", "key", key, "items", len(values))
			return values, nil
		}
		c.logger.Warn("cache entry undecodable, refetching", "key", key)
	}

	values, err := fetch()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	c.cache.Set(key, data, c.ttl)
	c.logger.Debug("cached", "key", key, "items", len(values))

	return values, nil
}

// generateCacheKey generates a cache key from parameters.
// The hash keeps keys short and free of spaces, as memcached requires.
func generateCacheKey(parts ...interface{}) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}
