package cachestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

// exerciseStore runs the CacheStore contract against s.
func exerciseStore(t *testing.T, s insight.CacheStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", `[{"title":"Ship it"}]`))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"title":"Ship it"}]`, v)

	require.NoError(t, s.Set(ctx, "k", `[]`))
	v, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[]`, v, "set overwrites")

	require.NoError(t, s.Remove(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remove(ctx, "never-set"))
}

func TestMemory(t *testing.T) {
	m, err := NewMemory(0)
	require.NoError(t, err)
	exerciseStore(t, m)
	require.NoError(t, m.Close())
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2)
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "a", "1"))
	require.NoError(t, m.Set(ctx, "b", "2"))
	_, _, _ = m.Get(ctx, "a")
	require.NoError(t, m.Set(ctx, "c", "3"))

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "a")
	assert.True(t, ok)
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.sqlite")

	s, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	exerciseStore(t, s)

	require.NoError(t, s.Set(ctx, "durable", "yes"))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	v, ok, err := reopened.Get(ctx, "durable")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "yes", v)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("INSIGHTD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("INSIGHTD_TEST_REDIS_ADDR not set")
	}
	r, err := NewRedis(context.Background(), RedisOptions{Addr: addr})
	require.NoError(t, err)
	defer r.Close()
	exerciseStore(t, r)
}

func TestNewRedis_RequiresAddr(t *testing.T) {
	_, err := NewRedis(context.Background(), RedisOptions{})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Instrumented{}, s)

	s, err = New(ctx, Config{Provider: ProviderSQLite, SQLitePath: filepath.Join(t.TempDir(), "c.sqlite")}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(ctx, Config{Provider: ProviderNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = New(ctx, Config{Provider: "etcd"}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

type failingStore struct{ Memory }

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, fmt.Errorf("get failed")
}

func TestInstrumented_CountsOutcomes(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(8)
	require.NoError(t, err)
	provider := "test-" + t.Name()
	s := NewInstrumented(m, provider)
	metrics := NewMetrics()

	_, _, _ = s.Get(ctx, "k")
	require.NoError(t, s.Set(ctx, "k", "v"))
	_, _, _ = s.Get(ctx, "k")
	_, _, _ = s.Get(ctx, "k")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HitsTotal.WithLabelValues(provider)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MissesTotal.WithLabelValues(provider)))

	failing := NewInstrumented(&failingStore{Memory: *m}, provider)
	_, _, err = failing.Get(ctx, "k")
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues(provider, "get")))

	// Exercise the full contract through the wrapper.
	exerciseStore(t, NewInstrumented(m, provider))
}
