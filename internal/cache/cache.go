package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var (
	ErrCacheMiss    = errors.New("cache_miss")
	ErrInvalidValue = errors.New("cache_invalid_value")
)

// Cache is a typed key-value cache with per-entry TTL.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// New returns a Redis backed cache when client is non-nil and an in-process
// cache otherwise.
func New[T any](client *redis.Client, prefix string) Cache[T] {
	if client != nil {
		return NewRedisCache[T](client, prefix)
	}
	return NewMemoryCache[T]()
}

// Loader wraps a Cache with cache-aside reads. Concurrent misses for the same
// key share one fetch.
type Loader[T any] struct {
	cache Cache[T]
	ttl   time.Duration
	group singleflight.Group
}

func NewLoader[T any](c Cache[T], ttl time.Duration) *Loader[T] {
	return &Loader[T]{cache: c, ttl: ttl}
}

func (l *Loader[T]) Get(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if l.ttl <= 0 {
		return fetch(ctx)
	}
	if value, err := l.cache.Get(ctx, key); err == nil {
		return value, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		_ = l.cache.Set(ctx, key, value, l.ttl)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (l *Loader[T]) Invalidate(ctx context.Context, key string) error {
	return l.cache.Delete(ctx, key)
}
