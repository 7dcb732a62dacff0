// Package cache provides a small key/value cache used to avoid refetching pages.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound   = errors.New("key not found in cache")
	ErrInvalidKey = errors.New("invalid cache key")
)

// Cache stores string values with a TTL.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options configures cache implementations.
type Options struct {
	DefaultTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DefaultOptions returns the default cache options.
func DefaultOptions() Options {
	return Options{
		DefaultTTL: 6 * time.Hour,
		RedisAddr:  "localhost:6379",
	}
}

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process Cache. Expired entries are dropped lazily on read.
type Memory struct {
	mu         sync.Mutex
	items      map[string]entry
	defaultTTL time.Duration
	now        func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory(defaultTTL time.Duration) *Memory {
	if defaultTTL <= 0 {
		defaultTTL = DefaultOptions().DefaultTTL
	}
	return &Memory{
		items:      make(map[string]entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return "", ErrNotFound
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.items, key)
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
