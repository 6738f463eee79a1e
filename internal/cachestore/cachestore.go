// Package cachestore provides key-value stores for the day-scoped insight
// cache: a bounded in-memory LRU, Redis, and SQLite.
package cachestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

// Provider names.
const (
	ProviderMemory = "memory"
	ProviderRedis  = "redis"
	ProviderSQLite = "sqlite"
	ProviderNone   = "none"
)

// ErrUnknownProvider is returned for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown cache provider")

// Store is an insight.CacheStore that holds resources.
type Store interface {
	insight.CacheStore
	Close() error
}

// Config selects and configures a store.
type Config struct {
	Provider string

	// Memory
	MaxEntries int

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration // zero keeps entries until evicted by Redis

	// SQLite
	SQLitePath string
}

// New builds the store named by cfg.Provider wrapped with metrics.
// The "none" provider returns a nil store, which disables caching.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store Store
		err   error
	)
	switch cfg.Provider {
	case "", ProviderMemory:
		store, err = NewMemory(cfg.MaxEntries)
	case ProviderRedis:
		store, err = NewRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		})
	case ProviderSQLite:
		store, err = NewSQLite(ctx, cfg.SQLitePath)
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("cache store ready", zap.String("provider", withDefault(cfg.Provider, ProviderMemory)))
	return NewInstrumented(store, withDefault(cfg.Provider, ProviderMemory)), nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
