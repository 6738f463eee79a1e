package insight

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/logging"
	"github.com/fyrsmithlabs/insightd/internal/refine"
)

// DefaultWindowSize is the number of recent messages scanned per run.
const DefaultWindowSize = 200

// Options configures an Engine.
type Options struct {
	Source    MessageSource   // required
	Directory SenderDirectory // optional; senders show as UnknownSender without it
	Store     CacheStore      // optional; every run misses without it
	Refiner   refine.Client   // optional; nil disables refinement
	Rules     *CompiledRules  // nil uses DefaultRules
	Metrics   *Metrics
	Tracer    trace.Tracer // nil uses the global provider
	Logger    *zap.Logger

	WindowSize  int
	CachePrefix string
	Location    *time.Location   // calendar day of cache keys
	Now         func() time.Time // clock of cache keys
}

// Engine runs extraction over conversation windows.
type Engine struct {
	source     MessageSource
	directory  SenderDirectory
	actions    *Cache[ExtractedAction]
	decisions  *Cache[ExtractedDecision]
	bridge     *Bridge
	rules      atomic.Pointer[CompiledRules]
	windowSize int
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *zap.Logger
}

// NewEngine creates an extraction engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, ErrNoMessageSource
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("insight")

	rules := opts.Rules
	if rules == nil {
		var err error
		rules, err = DefaultRules().Compile()
		if err != nil {
			return nil, fmt.Errorf("compiling default rules: %w", err)
		}
	}

	windowSize := opts.WindowSize
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	cacheOpts := CacheOptions{
		Prefix:   opts.CachePrefix,
		Location: opts.Location,
		Now:      opts.Now,
		Logger:   logger,
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}

	e := &Engine{
		source:     opts.Source,
		directory:  opts.Directory,
		actions:    NewCache[ExtractedAction](opts.Store, CategoryActions, cacheOpts),
		decisions:  NewCache[ExtractedDecision](opts.Store, CategoryDecisions, cacheOpts),
		bridge:     NewBridge(opts.Refiner, opts.Metrics, logger),
		windowSize: windowSize,
		metrics:    opts.Metrics,
		tracer:     tracer,
		logger:     logger,
	}
	e.rules.Store(rules)
	return e, nil
}

// SetRules swaps the active rule tables. Runs in flight keep the tables
// they started with.
func (e *Engine) SetRules(rules *CompiledRules) {
	if rules == nil {
		return
	}
	e.rules.Store(rules)
	e.logger.Info("rules updated")
}

// Rules returns the active rule tables.
func (e *Engine) Rules() *CompiledRules {
	return e.rules.Load()
}

// ExtractActions returns today's action items for a conversation. With
// forceRefresh the cache read is skipped but the result is still written.
func (e *Engine) ExtractActions(ctx context.Context, conversationID string, forceRefresh bool) ([]ExtractedAction, error) {
	return runExtraction(ctx, e, CategoryActions, conversationID, forceRefresh, e.actions,
		func(rules *CompiledRules, text string, meta messageMeta) []ExtractedAction {
			return NewActionExtractor(rules.Actions).Extract(text, meta)
		},
		AggregateActions,
		e.bridge.RefineActions,
	)
}

// ExtractDecisions returns today's decisions for a conversation.
func (e *Engine) ExtractDecisions(ctx context.Context, conversationID string, forceRefresh bool) ([]ExtractedDecision, error) {
	return runExtraction(ctx, e, CategoryDecisions, conversationID, forceRefresh, e.decisions,
		func(rules *CompiledRules, text string, meta messageMeta) []ExtractedDecision {
			return NewDecisionExtractor(rules.Decisions).Extract(text, meta)
		},
		AggregateDecisions,
		e.bridge.RefineDecisions,
	)
}

func runExtraction[T any](
	ctx context.Context,
	e *Engine,
	category Category,
	conversationID string,
	forceRefresh bool,
	cache *Cache[T],
	extract func(*CompiledRules, string, messageMeta) []T,
	aggregate func([]T) []T,
	refineItems func(context.Context, []T) []T,
) ([]T, error) {
	ctx, span := e.tracer.Start(ctx, "insight.Extract"+titleCategory(category),
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Bool("force_refresh", forceRefresh),
		),
	)
	defer span.End()

	if conversationID == "" {
		span.SetStatus(codes.Error, ErrEmptyConversationID.Error())
		return nil, ErrEmptyConversationID
	}
	ctx = logging.WithConversationID(ctx, conversationID)
	start := time.Now()

	if !forceRefresh {
		if cached, ok := cache.Get(ctx, conversationID); ok {
			span.SetAttributes(attribute.String("cache", cacheHit))
			e.metrics.RecordRun(ctx, category, cacheHit, len(cached), time.Since(start))
			return refineItems(ctx, cached), nil
		}
	}

	messages, senders, err := e.window(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "message window unavailable")
		return nil, err
	}

	rules := e.rules.Load()
	var candidates []T
	for _, m := range messages {
		meta := messageMeta{
			ID:         m.ID,
			SenderID:   m.SenderID,
			SenderName: senders[m.SenderID],
			Timestamp:  m.Timestamp,
		}
		candidates = append(candidates, extract(rules, m.Text, meta)...)
	}

	result := aggregate(candidates)
	cache.Put(ctx, conversationID, result)

	outcome := cacheMiss
	if forceRefresh {
		outcome = cacheRefresh
	}
	span.SetAttributes(
		attribute.String("cache", outcome),
		attribute.Int("messages", len(messages)),
		attribute.Int("candidates", len(candidates)),
		attribute.Int("items", len(result)),
	)
	e.metrics.RecordRun(ctx, category, outcome, len(result), time.Since(start))
	logging.With(ctx, e.logger).Debug("extraction run complete",
		zap.String("category", string(category)),
		zap.Int("messages", len(messages)),
		zap.Int("candidates", len(candidates)),
		zap.Int("items", len(result)),
	)

	return refineItems(ctx, result), nil
}

// window fetches the text messages of a conversation oldest first and
// resolves their senders.
func (e *Engine) window(ctx context.Context, conversationID string) ([]Message, map[string]string, error) {
	raw, err := e.source.Window(ctx, conversationID, e.windowSize)
	if err != nil {
		logging.With(ctx, e.logger).Error("message window fetch failed", zap.Error(err))
		return nil, nil, fmt.Errorf("%w: %w", ErrMessagesUnavailable, err)
	}

	messages := make([]Message, 0, len(raw))
	for _, m := range raw {
		if m.IsText() {
			messages = append(messages, m)
		}
	}
	slices.SortStableFunc(messages, func(a, b Message) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})

	return messages, resolveSenders(ctx, e.directory, messages, e.logger), nil
}

// PriorityMessages scores every text message in the window and returns
// the urgent and high ones, highest score first, newest first on ties.
// Results are not cached.
func (e *Engine) PriorityMessages(ctx context.Context, conversationID string) ([]PriorityMessage, error) {
	ctx, span := e.tracer.Start(ctx, "insight.PriorityMessages",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	if conversationID == "" {
		return nil, ErrEmptyConversationID
	}
	ctx = logging.WithConversationID(ctx, conversationID)

	messages, senders, err := e.window(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "message window unavailable")
		return nil, err
	}

	scorer := e.rules.Load().Priority
	out := make([]PriorityMessage, 0)
	for _, m := range messages {
		result := scorer.Score(m.Text)
		e.metrics.RecordPriority(ctx, result.Level)
		if result.Level == PriorityNormal {
			continue
		}
		out = append(out, PriorityMessage{
			MessageID:  m.ID,
			SenderID:   m.SenderID,
			SenderName: senders[m.SenderID],
			Text:       m.Text,
			Timestamp:  m.Timestamp,
			Priority:   result,
		})
	}

	slices.SortStableFunc(out, func(a, b PriorityMessage) int {
		if a.Priority.Score != b.Priority.Score {
			return b.Priority.Score - a.Priority.Score
		}
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return 0
		}
	})

	span.SetAttributes(attribute.Int("items", len(out)))
	return out, nil
}

// ScorePriority scores a single text with the active priority rules.
func (e *Engine) ScorePriority(text string) PriorityResult {
	return e.rules.Load().Priority.Score(text)
}

// Invalidate drops today's cached result of one category.
func (e *Engine) Invalidate(ctx context.Context, conversationID string, category Category) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	switch category {
	case CategoryActions:
		e.actions.Invalidate(ctx, conversationID)
	case CategoryDecisions:
		e.decisions.Invalidate(ctx, conversationID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	e.logger.Info("cache invalidated",
		zap.String("conversation_id", conversationID),
		zap.String("category", string(category)),
	)
	return nil
}

func titleCategory(c Category) string {
	switch c {
	case CategoryActions:
		return "Actions"
	case CategoryDecisions:
		return "Decisions"
	default:
		return capitalizeFirst(string(c))
	}
}
