// Package cache memoizes read responses for a short TTL.
//
// Any write that could change order or membership calls InvalidateAll.
// Entries are tagged with the generation current when the read began, so a
// response computed before an invalidation is never stored after it.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/boardsync/internal/config"
)

// Cache is a generation-aware byte cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	InvalidateAll(ctx context.Context) error

	// Generation returns the current invalidation epoch.
	Generation(ctx context.Context) (uint64, error)
	// SetAt stores value only if gen is still the current epoch.
	SetAt(ctx context.Context, gen uint64, key string, value []byte, ttl time.Duration) error
}

// New builds the backend named by cfg.Backend.
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemory(), nil
	case "redis":
		rc, err := NewRedis(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		return rc, nil
	case "none":
		return None{}, nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

// None caches nothing.
type None struct{}

func (None) Get(context.Context, string) ([]byte, bool, error)                  { return nil, false, nil }
func (None) Set(context.Context, string, []byte, time.Duration) error           { return nil }
func (None) InvalidateAll(context.Context) error                                { return nil }
func (None) Generation(context.Context) (uint64, error)                         { return 0, nil }
func (None) SetAt(context.Context, uint64, string, []byte, time.Duration) error { return nil }
