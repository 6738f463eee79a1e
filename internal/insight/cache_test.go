package insight

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testDay = time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)

func TestCache_Key(t *testing.T) {
	c := NewCache[ExtractedAction](newMapStore(), CategoryActions, CacheOptions{
		Now:      fixedClock(testDay),
		Location: time.UTC,
	})
	assert.Equal(t, "insight:actions:conv-1:2026-10-16", c.Key("conv-1"))

	tokyo := time.FixedZone("JST", 9*60*60)
	c = NewCache[ExtractedAction](newMapStore(), CategoryDecisions, CacheOptions{
		Prefix:   "x/",
		Now:      fixedClock(testDay),
		Location: tokyo,
	})
	assert.Equal(t, "x/decisions:conv-1:2026-10-17", c.Key("conv-1"), "day follows the configured location")
}

func TestCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	c := NewCache[ExtractedDecision](store, CategoryDecisions, CacheOptions{Now: fixedClock(testDay), Location: time.UTC})

	_, ok := c.Get(ctx, "conv-1")
	assert.False(t, ok)

	want := []ExtractedDecision{{Content: "We agreed: Launch on Monday.", SourceMessageID: "m1", Timestamp: 5, Confidence: 0.9}}
	c.Put(ctx, "conv-1", want)

	got, ok := c.Get(ctx, "conv-1")
	require.True(t, ok)
	assert.Equal(t, want, got)

	c.Invalidate(ctx, "conv-1")
	_, ok = c.Get(ctx, "conv-1")
	assert.False(t, ok)
}

func TestCache_EmptyResultIsAHit(t *testing.T) {
	ctx := context.Background()
	c := NewCache[ExtractedAction](newMapStore(), CategoryActions, CacheOptions{Now: fixedClock(testDay)})

	c.Put(ctx, "conv-1", nil)
	got, ok := c.Get(ctx, "conv-1")
	require.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCache_DayRollover(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	now := testDay
	c := NewCache[ExtractedAction](store, CategoryActions, CacheOptions{
		Now:      func() time.Time { return now },
		Location: time.UTC,
	})

	c.Put(ctx, "conv-1", []ExtractedAction{{Title: "Ship it", Confidence: 0.9}})
	now = now.Add(24 * time.Hour)

	_, ok := c.Get(ctx, "conv-1")
	assert.False(t, ok)
	assert.Len(t, store.data, 1, "old entries are orphaned, not evicted")
}

func TestCache_StoreFailuresAreAbsorbed(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	store := newMapStore()
	store.getErr = errBoom
	store.setErr = errBoom
	store.removeErr = errBoom

	c := NewCache[ExtractedAction](store, CategoryActions, CacheOptions{Logger: zap.New(core)})

	_, ok := c.Get(ctx, "conv-1")
	assert.False(t, ok)
	c.Put(ctx, "conv-1", []ExtractedAction{{Title: "x"}})
	c.Invalidate(ctx, "conv-1")

	assert.Equal(t, 3, logs.Len())
}

func TestCache_CorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	c := NewCache[ExtractedAction](store, CategoryActions, CacheOptions{Now: fixedClock(testDay)})
	store.data[c.Key("conv-1")] = "{not json"

	_, ok := c.Get(ctx, "conv-1")
	assert.False(t, ok)
}

func TestCache_NilStore(t *testing.T) {
	ctx := context.Background()
	c := NewCache[ExtractedAction](nil, CategoryActions, CacheOptions{})

	c.Put(ctx, "conv-1", []ExtractedAction{{Title: "x"}})
	_, ok := c.Get(ctx, "conv-1")
	assert.False(t, ok)
	c.Invalidate(ctx, "conv-1")
}
