package insight

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// DefaultCachePrefix prefixes every cache key.
const DefaultCachePrefix = "insight:"

// CacheStore is the key-value store behind the day-scoped cache.
// Get reports a missing key with found == false and a nil error.
type CacheStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Cache stores one category's results per conversation and calendar day.
// Store failures are logged and never returned: a failed read is a miss
// and a failed write is dropped.
type Cache[T any] struct {
	store    CacheStore
	prefix   string
	category Category
	now      func() time.Time
	location *time.Location
	logger   *zap.Logger
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	Prefix   string
	Location *time.Location   // calendar day boundary; defaults to time.Local
	Now      func() time.Time // defaults to time.Now
	Logger   *zap.Logger
}

// NewCache creates a day-scoped cache for one category. A nil store yields
// a cache that always misses.
func NewCache[T any](store CacheStore, category Category, opts CacheOptions) *Cache[T] {
	if opts.Prefix == "" {
		opts.Prefix = DefaultCachePrefix
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache[T]{
		store:    store,
		prefix:   opts.Prefix,
		category: category,
		now:      opts.Now,
		location: opts.Location,
		logger:   opts.Logger.Named("cache"),
	}
}

// Key returns today's key for a conversation.
func (c *Cache[T]) Key(conversationID string) string {
	day := c.now().In(c.location).Format(time.DateOnly)
	return c.prefix + string(c.category) + ":" + conversationID + ":" + day
}

// Get returns today's cached items for a conversation.
func (c *Cache[T]) Get(ctx context.Context, conversationID string) ([]T, bool) {
	if c.store == nil {
		return nil, false
	}
	key := c.Key(conversationID)

	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.logger.Warn("cache entry corrupt, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, false
	}
	if items == nil {
		items = []T{}
	}
	return items, true
}

// Put overwrites today's entry for a conversation.
func (c *Cache[T]) Put(ctx context.Context, conversationID string, items []T) {
	if c.store == nil {
		return
	}
	key := c.Key(conversationID)

	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, string(raw)); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes today's entry for a conversation.
func (c *Cache[T]) Invalidate(ctx context.Context, conversationID string) {
	if c.store == nil {
		return
	}
	key := c.Key(conversationID)
	if err := c.store.Remove(ctx, key); err != nil {
		c.logger.Warn("cache remove failed", zap.String("key", key), zap.Error(err))
	}
}
