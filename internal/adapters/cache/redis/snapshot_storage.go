// Package redis keeps the last rates payload under a Redis key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	portsrepo "github.com/SscSPs/money_oxr/internal/core/ports/repositories"
	goredis "github.com/redis/go-redis/v9"
)

// KeyPrefix prefixes every snapshot key.
const KeyPrefix = "oxr:latest:"

// Client is the subset of *goredis.Client the storage needs.
type Client interface {
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// SnapshotStorage stores the payload for one source currency.
type SnapshotStorage struct {
	client Client
	key    string
	logger *slog.Logger
}

// NewSnapshotStorage creates a SnapshotStorage keyed by source currency.
func NewSnapshotStorage(client Client, sourceCurrency string, logger *slog.Logger) *SnapshotStorage {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStorage{
		client: client,
		key:    KeyPrefix + strings.ToUpper(sourceCurrency),
		logger: logger,
	}
}

// NewClient creates a go-redis client.
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ensure SnapshotStorage implements the SnapshotStorage port
var _ portsrepo.SnapshotStorage = (*SnapshotStorage)(nil)

// Key returns the Redis key in use.
func (s *SnapshotStorage) Key() string {
	return s.key
}

// Exists reports whether the key is set.
func (s *SnapshotStorage) Exists(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, s.key).Result()
	if err != nil {
		s.logger.Error("Redis snapshot exists error", "key", s.key, "error", err)
		return false, fmt.Errorf("failed to check redis key %s: %w", s.key, err)
	}
	return n > 0, nil
}

// Read returns the stored payload.
func (s *SnapshotStorage) Read(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", fmt.Errorf("redis key %s not found", s.key)
	}
	if err != nil {
		s.logger.Error("Redis snapshot get error", "key", s.key, "error", err)
		return "", fmt.Errorf("failed to read redis key %s: %w", s.key, err)
	}
	s.logger.Debug("Redis snapshot hit", "key", s.key, "bytes", len(val))
	return val, nil
}

// Write replaces the stored payload. The key never expires; staleness is
// decided by the store.
func (s *SnapshotStorage) Write(ctx context.Context, text string) error {
	if err := s.client.Set(ctx, s.key, text, 0).Err(); err != nil {
		s.logger.Error("Redis snapshot set error", "key", s.key, "error", err)
		return fmt.Errorf("failed to write redis key %s: %w", s.key, err)
	}
	s.logger.Debug("Redis snapshot set", "key", s.key, "bytes", len(text))
	return nil
}
