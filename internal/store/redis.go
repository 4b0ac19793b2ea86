package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

const (
	redisKeyPrefix = "triage:issue:"
	redisIndexKey  = "triage:issues"
)

// Document creation and its index entry happen in one script so a crash
// can never leave an unindexed document.
var upsertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'document', ARGV[1], 'status', ARGV[2])
redis.call('RPUSH', KEYS[2], ARGV[3])
return 1
`)

var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1])
return 1
`)

// RedisStore keeps one hash per document plus an insertion-ordered index list.
type RedisStore struct {
	connection *redis.Client
	logger     *slog.Logger
}

// OpenRedis connects to addr, which is either host:port or a redis:// URL.
func OpenRedis(ctx context.Context, addr string, logger *slog.Logger) (*RedisStore, error) {
	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{connection: c, logger: logger}, nil
}

func documentKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) UpsertIfAbsent(ctx context.Context, issue domain.Issue) (bool, error) {
	doc, err := encodeDocument(issue)
	if err != nil {
		return false, err
	}
	id := issue.Key()
	n, err := upsertScript.Run(ctx, s.connection,
		[]string{documentKey(id), redisIndexKey},
		doc, string(domain.StatusUnmarked), id,
	).Int()
	if err != nil {
		return false, fmt.Errorf("insert issue %s: %w", id, err)
	}
	return n == 1, nil
}

func (s *RedisStore) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Issue, error) {
	n, err := updateScript.Run(ctx, s.connection, []string{documentKey(id)}, string(status)).Int()
	if err != nil {
		return nil, fmt.Errorf("update issue %s: %w", id, err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Issue, error) {
	fields, err := s.connection.HGetAll(ctx, documentKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeDocument([]byte(fields["document"]), fields["status"])
}

func (s *RedisStore) ListAll(ctx context.Context) ([]domain.Issue, error) {
	ids, err := s.connection.LRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	pipe := s.connection.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, documentKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}
	}

	all := make([]domain.Issue, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			s.logger.Warn("index references missing document", "id", ids[i])
			continue
		}
		issue, err := decodeDocument([]byte(fields["document"]), fields["status"])
		if err != nil {
			return nil, err
		}
		all = append(all, *issue)
	}
	return all, nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	ids, err := s.connection.LRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("reset issues: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, documentKey(id))
	}
	keys = append(keys, redisIndexKey)
	if err := s.connection.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("reset issues: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.connection.Close()
}
