package insight

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// InstrumentationName is the name used for OTEL instrumentation.
	InstrumentationName = "github.com/fyrsmithlabs/insightd/internal/insight"
)

// Cache outcome attribute values.
const (
	cacheHit     = "hit"
	cacheMiss    = "miss"
	cacheRefresh = "refresh"
)

// Metrics provides OpenTelemetry metrics for extraction runs.
type Metrics struct {
	runs       metric.Int64Counter
	items      metric.Int64Histogram
	duration   metric.Float64Histogram
	fallbacks  metric.Int64Counter
	priorities metric.Int64Counter

	initialized bool
}

// NewMetrics creates metrics on meter. A nil meter uses the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	m.runs, err = meter.Int64Counter(
		"insight.extraction.runs",
		metric.WithDescription("Extraction runs by category and cache outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	m.items, err = meter.Int64Histogram(
		"insight.extraction.items",
		metric.WithDescription("Items returned per extraction run"),
		metric.WithUnit("{item}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 20, 50, 100),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"insight.extraction.duration.seconds",
		metric.WithDescription("Duration of extraction runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, err
	}

	m.fallbacks, err = meter.Int64Counter(
		"insight.refinement.fallbacks",
		metric.WithDescription("Refinement calls that fell back to unrefined items"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	m.priorities, err = meter.Int64Counter(
		"insight.priority.scored",
		metric.WithDescription("Messages scored by priority level"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// RecordRun records one extraction run.
func (m *Metrics) RecordRun(ctx context.Context, category Category, cache string, items int, duration time.Duration) {
	if m == nil || !m.initialized {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("category", string(category)),
		attribute.String("cache", cache),
	)
	m.runs.Add(ctx, 1, attrs)
	m.items.Record(ctx, int64(items), attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRefinementFallback records a refinement failure.
func (m *Metrics) RecordRefinementFallback(ctx context.Context, category Category) {
	if m == nil || !m.initialized {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(category))))
}

// RecordPriority records one scored message.
func (m *Metrics) RecordPriority(ctx context.Context, level PriorityLevel) {
	if m == nil || !m.initialized {
		return
	}
	m.priorities.Add(ctx, 1, metric.WithAttributes(attribute.String("level", string(level))))
}
