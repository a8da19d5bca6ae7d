package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache shared by every process pointing at the same server.
// Keys live under prefix:g<generation>:; invalidation bumps the generation
// and abandons the old keyspace to TTL expiry.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects to url and verifies the server answers.
func NewRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisFromClient(rdb, prefix), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) genKey() string {
	return r.prefix + ":gen"
}

func (r *Redis) dataKey(gen uint64, key string) string {
	return r.prefix + ":g" + strconv.FormatUint(gen, 10) + ":" + key
}

func (r *Redis) Generation(ctx context.Context) (uint64, error) {
	gen, err := r.rdb.Get(ctx, r.genKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: redis generation: %w", err)
	}
	return gen, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	gen, err := r.Generation(ctx)
	if err != nil {
		return nil, false, err
	}
	val, err := r.rdb.Get(ctx, r.dataKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	gen, err := r.Generation(ctx)
	if err != nil {
		return err
	}
	return r.SetAt(ctx, gen, key, value, ttl)
}

func (r *Redis) SetAt(ctx context.Context, gen uint64, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.rdb.Set(ctx, r.dataKey(gen, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) InvalidateAll(ctx context.Context) error {
	if err := r.rdb.Incr(ctx, r.genKey()).Err(); err != nil {
		return fmt.Errorf("cache: redis invalidate: %w", err)
	}
	return nil
}
