package insight

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/refine"
)

// Bridge applies an optional refinement pass to extraction results.
// It never fails: on any error the input is returned unchanged.
type Bridge struct {
	client  refine.Client
	metrics *Metrics
	logger  *zap.Logger
}

// NewBridge wraps client. A nil or unavailable client disables refinement.
func NewBridge(client refine.Client, metrics *Metrics, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		client:  client,
		metrics: metrics,
		logger:  logger.Named("refine"),
	}
}

// Enabled reports whether refinement calls are made.
func (b *Bridge) Enabled() bool {
	return b != nil && b.client != nil && b.client.Available()
}

// RefineActions rewrites action titles, assignees, and due hints.
func (b *Bridge) RefineActions(ctx context.Context, actions []ExtractedAction) []ExtractedAction {
	if !b.Enabled() || len(actions) == 0 {
		return actions
	}

	items := make([]refine.Item, len(actions))
	for i, a := range actions {
		items[i] = refine.Item{Title: a.Title, Assignee: a.Assignee, Due: a.DueHint}
	}

	results, ok := b.call(ctx, CategoryActions, items)
	if !ok {
		return actions
	}

	out := make([]ExtractedAction, len(actions))
	for i, a := range actions {
		r := results[i]
		if r.Refined != "" {
			a.Title = r.Refined
		}
		if r.Assignee != "" {
			a.Assignee = r.Assignee
		}
		if r.Due != "" {
			a.DueHint = r.Due
		}
		out[i] = a
	}
	return out
}

// RefineDecisions rewrites decision content.
func (b *Bridge) RefineDecisions(ctx context.Context, decisions []ExtractedDecision) []ExtractedDecision {
	if !b.Enabled() || len(decisions) == 0 {
		return decisions
	}

	items := make([]refine.Item, len(decisions))
	for i, d := range decisions {
		items[i] = refine.Item{Content: d.Content}
	}

	results, ok := b.call(ctx, CategoryDecisions, items)
	if !ok {
		return decisions
	}

	out := make([]ExtractedDecision, len(decisions))
	for i, d := range decisions {
		if results[i].Refined != "" {
			d.Content = results[i].Refined
		}
		out[i] = d
	}
	return out
}

// call invokes the client and checks the positional contract.
func (b *Bridge) call(ctx context.Context, category Category, items []refine.Item) (results []refine.Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("refinement panicked, using unrefined items",
				zap.String("category", string(category)),
				zap.Any("panic", r),
			)
			b.metrics.RecordRefinementFallback(ctx, category)
			results, ok = nil, false
		}
	}()

	results, err := b.client.Refine(ctx, items)
	if err == nil && len(results) != len(items) {
		err = refine.ErrLengthMismatch
	}
	if err != nil {
		b.logger.Warn("refinement failed, using unrefined items",
			zap.String("category", string(category)),
			zap.Int("items", len(items)),
			zap.Error(err),
		)
		b.metrics.RecordRefinementFallback(ctx, category)
		return nil, false
	}
	return results, true
}
