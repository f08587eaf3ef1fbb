// Package storage defines the string key-value capability the session layer
// persists into, and picks a backend for it from configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"wellnest/core/internal/cache"
	"wellnest/core/internal/config"
	"wellnest/core/internal/database"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// KeyValue is a persistent string map. Get reports absence with ok=false
// rather than an error; Delete of a missing key succeeds.
type KeyValue interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the backend named by cfg.Storage.Driver. The returned closer
// releases the backend's connections.
func Open(ctx context.Context, cfg *config.AppConfig) (KeyValue, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "memory":
		return NewMemory(), nopCloser{}, nil

	case "sqlite", "":
		store, err := database.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store, nil

	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store := database.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, store, nil

	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewRedisStore(client, cfg.Storage.KeyPrefix), client, nil

	case "s3":
		store, err := NewObjectStore(cfg.ObjectStore, cfg.Storage.KeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		return store, nopCloser{}, nil
	}

	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Storage.Driver)
}
