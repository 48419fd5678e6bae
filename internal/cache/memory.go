package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var _ Cache[struct{}] = (*MemoryCache[struct{}])(nil)

// MemoryCache keeps entries in process memory. Suitable for a single
// instance.
type MemoryCache[T any] struct {
	store *gocache.Cache
}

func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		store: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

func (m *MemoryCache[T]) Get(_ context.Context, key string) (T, error) {
	var zero T
	x, found := m.store.Get(key)
	if !found {
		return zero, ErrCacheMiss
	}
	value, ok := x.(T)
	if !ok {
		return zero, ErrInvalidValue
	}
	return value, nil
}

func (m *MemoryCache[T]) Set(_ context.Context, key string, value T, ttl time.Duration) error {
	m.store.Set(key, value, ttl)
	return nil
}

func (m *MemoryCache[T]) Delete(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}
