// This file implements the Redis-backed conversation memory log.
// Redis suits the memory log well: the retention window maps directly
// onto key TTL, so expiry is native rather than a pruning pass.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/katavoz/KataRoute/internal/models"
	"github.com/redis/go-redis/v9"
)

// maxRedisLogDepth bounds each user's list; older entries fall off.
const maxRedisLogDepth = 50

// RedisMemoryStore implements MemoryStore on a Redis list per user.
type RedisMemoryStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisMemoryStore connects to Redis at the configured address and
// verifies the connection. Retention controls key TTL.
func NewRedisMemoryStore(ctx context.Context, opts ...Option) (*RedisMemoryStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.RedisAddr == "" {
		slog.Error("RedisMemoryStore address not set")
		return nil, fmt.Errorf("redis address not set")
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 10 * time.Minute
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err, "addr", cfg.RedisAddr)
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	slog.Debug("RedisMemoryStore ready", "addr", cfg.RedisAddr, "retention", cfg.Retention)
	return &RedisMemoryStore{client: client, retention: cfg.Retention}, nil
}

// Close releases the Redis client.
func (s *RedisMemoryStore) Close() error {
	return s.client.Close()
}

func memoryKey(userID string) string {
	return "kataroute:memory:" + userID
}

// AppendEntry pushes the entry onto the user's list, trims the list,
// and refreshes the TTL.
func (s *RedisMemoryStore) AppendEntry(ctx context.Context, userID string, e models.MemoryEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal memory entry: %w", err)
	}
	key := memoryKey(userID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, maxRedisLogDepth-1)
	pipe.Expire(ctx, key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("RedisMemoryStore AppendEntry failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to append memory entry for %s: %w", userID, err)
	}
	return nil
}

// LatestEntry reads the list head. The TTL bounds the whole key, so the
// timestamp filter still applies per entry.
func (s *RedisMemoryStore) LatestEntry(ctx context.Context, userID string, since time.Time) (*models.MemoryEntry, error) {
	vals, err := s.client.LRange(ctx, memoryKey(userID), 0, 0).Result()
	if err != nil {
		slog.Error("RedisMemoryStore LatestEntry failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to read memory entry for %s: %w", userID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	var e models.MemoryEntry
	if err := json.Unmarshal([]byte(vals[0]), &e); err != nil {
		slog.Warn("RedisMemoryStore LatestEntry unmarshal failed, treating as absent", "error", err, "userID", userID)
		return nil, fmt.Errorf("%w: %v", models.ErrCorruptEntry, err)
	}
	if !e.Timestamp.After(since) {
		return nil, nil
	}
	return &e, nil
}

// CountEntries reports the user's current list depth.
func (s *RedisMemoryStore) CountEntries(ctx context.Context, userID string) (int, error) {
	n, err := s.client.LLen(ctx, memoryKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count memory entries for %s: %w", userID, err)
	}
	return int(n), nil
}

// PruneEntries is a no-op for Redis; the key TTL handles expiry.
func (s *RedisMemoryStore) PruneEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
