package cachestore

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for cache stores.
type Metrics struct {
	HitsTotal   *prometheus.CounterVec
	MissesTotal *prometheus.CounterVec
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the cache store metrics once per process.
//
// Metrics:
//   - insightd_cache_hits_total{provider}
//   - insightd_cache_misses_total{provider}
//   - insightd_cache_errors_total{provider,op}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			HitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "insightd_cache_hits_total",
					Help: "Total number of cache store hits",
				},
				[]string{"provider"},
			),
			MissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "insightd_cache_misses_total",
					Help: "Total number of cache store misses",
				},
				[]string{"provider"},
			),
			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "insightd_cache_errors_total",
					Help: "Total number of cache store errors",
				},
				[]string{"provider", "op"}, // "get", "set", "remove"
			),
		}
	})
	return globalMetrics
}

// Instrumented counts hits, misses, and errors of a wrapped store.
type Instrumented struct {
	store    Store
	provider string
	metrics  *Metrics
}

// NewInstrumented wraps store.
func NewInstrumented(store Store, provider string) *Instrumented {
	return &Instrumented{store: store, provider: provider, metrics: NewMetrics()}
}

// Get delegates and counts the outcome.
func (i *Instrumented) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := i.store.Get(ctx, key)
	switch {
	case err != nil:
		i.metrics.ErrorsTotal.WithLabelValues(i.provider, "get").Inc()
	case ok:
		i.metrics.HitsTotal.WithLabelValues(i.provider).Inc()
	default:
		i.metrics.MissesTotal.WithLabelValues(i.provider).Inc()
	}
	return v, ok, err
}

// Set delegates and counts errors.
func (i *Instrumented) Set(ctx context.Context, key, value string) error {
	err := i.store.Set(ctx, key, value)
	if err != nil {
		i.metrics.ErrorsTotal.WithLabelValues(i.provider, "set").Inc()
	}
	return err
}

// Remove delegates and counts errors.
func (i *Instrumented) Remove(ctx context.Context, key string) error {
	err := i.store.Remove(ctx, key)
	if err != nil {
		i.metrics.ErrorsTotal.WithLabelValues(i.provider, "remove").Inc()
	}
	return err
}

// Close closes the wrapped store.
func (i *Instrumented) Close() error {
	return i.store.Close()
}

var _ Store = (*Instrumented)(nil)
