package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines the cache operations used by the window stores.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	AppendScored(ctx context.Context, key string, score float64, value interface{}, keep int64, expiration time.Duration) error
	RangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]string, error)
	Publish(ctx context.Context, channel string, value interface{}) error
	Ping(ctx context.Context) error
	Close() error
}

// Key joins parts with ':' the way every key in the store is built.
func Key(parts ...string) string {
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	b := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			b = append(b, ':')
		}
		b = append(b, p...)
	}
	return string(b)
}
