package insight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightd/internal/logging"
	"github.com/fyrsmithlabs/insightd/internal/telemetry"
)

func newTestEngine(t *testing.T, source *fakeSource, opts Options) *Engine {
	t.Helper()
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	opts.Source = source
	opts.Metrics = metrics
	if opts.Now == nil {
		opts.Now = fixedClock(testDay)
	}
	e, err := NewEngine(opts)
	require.NoError(t, err)
	return e
}

func seedConversation(src *fakeSource) {
	src.add("conv-1",
		textMessage("m1", "u1", "We agreed to launch on Monday.", 1000),
		textMessage("m2", "u2", "I'll prepare the slides by tomorrow", 2000),
		Message{ID: "m3", SenderID: "u1", Text: "I will upload the logo", Timestamp: 2500, Kind: "image"},
		textMessage("m4", "u3", "URGENT: Server is down!!! Need this fixed ASAP!!!", 3000),
		textMessage("m5", "u2", "we agreed to launch on monday", 4000),
		textMessage("m6", "u1", "", 5000),
	)
}

func TestNewEngine_RequiresSource(t *testing.T) {
	_, err := NewEngine(Options{})
	assert.ErrorIs(t, err, ErrNoMessageSource)
}

func TestEngine_ExtractActions(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	seedConversation(src)
	dir := &fakeDirectory{names: map[string]string{"u2": "Grace"}}
	e := newTestEngine(t, src, Options{Store: newMapStore(), Directory: dir})

	actions, err := e.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)

	require.Len(t, actions, 1, "image messages are skipped")
	a := actions[0]
	assert.Equal(t, "Prepare the slides by tomorrow", a.Title)
	assert.Equal(t, "m2", a.SourceMessageID)
	assert.Equal(t, "u2", a.SenderID)
	assert.Equal(t, "Grace", a.SenderName)
	assert.Equal(t, "by tomorrow", a.DueHint)
	assert.Equal(t, 0.9, a.Confidence)

	require.Len(t, dir.asked, 1, "senders are resolved in one batch")
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, dir.asked[0])
	assert.Equal(t, DefaultWindowSize, src.lastSize)
}

func TestEngine_ExtractDecisions(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	seedConversation(src)
	e := newTestEngine(t, src, Options{Store: newMapStore()})

	decisions, err := e.ExtractDecisions(ctx, "conv-1", false)
	require.NoError(t, err)

	require.Len(t, decisions, 1, "restated decisions collapse")
	d := decisions[0]
	assert.Equal(t, "We agreed: Launch on monday.", d.Content, "the newest restatement is kept")
	assert.Equal(t, "m5", d.SourceMessageID)
	assert.Equal(t, UnknownSender, d.SenderName)
	assert.Equal(t, 0.9, d.Confidence)
}

func TestEngine_CachedWithinDay(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	seedConversation(src)
	e := newTestEngine(t, src, Options{Store: newMapStore()})

	first, err := e.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)

	// New messages are invisible until the cache is bypassed.
	src.add("conv-1", textMessage("m7", "u3", "I will book the venue", 6000))

	second, err := e.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.callCount())

	refreshed, err := e.ExtractActions(ctx, "conv-1", true)
	require.NoError(t, err)
	assert.Len(t, refreshed, 2)
	assert.Equal(t, 2, src.callCount())

	again, err := e.ExtractActions(ctx, "conv-1", true)
	require.NoError(t, err)
	assert.Equal(t, refreshed, again, "refresh is deterministic for an unchanged window")

	cached, err := e.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)
	assert.Equal(t, refreshed, cached, "refresh overwrites the cache entry")
	assert.Equal(t, 3, src.callCount())
}

func TestEngine_CacheIsPerCategory(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	seedConversation(src)
	store := newMapStore()
	e := newTestEngine(t, src, Options{Store: store})

	_, err := e.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)
	_, err = e.ExtractDecisions(ctx, "conv-1", false)
	require.NoError(t, err)

	assert.Len(t, store.data, 2)
	assert.Contains(t, store.data, "insight:actions:conv-1:2026-10-16")
	assert.Contains(t, store.data, "insight:decisions:conv-1:2026-10-16")
}

func TestEngine_Invalidate(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	seedConversation(src)
	e := newTestEngine(t, src, Options{Store: newMapStore()})

	_, err := e.ExtractDecisions(ctx, "conv-1", false)
	require.NoError(t, err)
	require.NoError(t, e.Invalidate(ctx, "conv-1", CategoryDecisions))

	_, err = e.ExtractDecisions(ctx, "conv-1", false)
	require.NoError(t, err)
	assert.Equal(t, 2, src.callCount())

	assert.ErrorIs(t, e.Invalidate(ctx, "conv-1", CategoryPriority), ErrUnknownCategory)
	assert.ErrorIs(t, e.Invalidate(ctx, "", CategoryActions), ErrEmptyConversationID)
}

func TestEngine_MessageWindowFailure(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.err = errBoom
	e := newTestEngine(t, src, Options{Store: newMapStore()})

	_, err := e.ExtractActions(ctx, "conv-1", false)
	assert.ErrorIs(t, err, ErrMessagesUnavailable)
	assert.ErrorIs(t, err, errBoom)

	_, err = e.ExtractDecisions(ctx, "conv-1", true)
	assert.ErrorIs(t, err, ErrMessagesUnavailable)

	_, err = e.PriorityMessages(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrMessagesUnavailable)
}

func TestEngine_CacheFailureStillExtracts(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	seedConversation(src)
	store := newMapStore()
	store.getErr = errBoom
	store.setErr = errBoom
	e := newTestEngine(t, src, Options{Store: store})

	actions, err := e.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)
	assert.Len(t, actions, 1)
}

func TestEngine_DirectoryFailureUsesPlaceholder(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	seedConversation(src)
	dir := &fakeDirectory{names: map[string]string{"u2": "Grace"}, err: errBoom}
	e := newTestEngine(t, src, Options{Directory: dir})

	actions, err := e.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, UnknownSender, actions[0].SenderName)
}

func TestEngine_EmptyConversationID(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newFakeSource(), Options{})

	_, err := e.ExtractActions(ctx, "", false)
	assert.ErrorIs(t, err, ErrEmptyConversationID)
	_, err = e.ExtractDecisions(ctx, "", false)
	assert.ErrorIs(t, err, ErrEmptyConversationID)
	_, err = e.PriorityMessages(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyConversationID)
}

func TestEngine_EmptyConversation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newFakeSource(), Options{Store: newMapStore()})

	actions, err := e.ExtractActions(ctx, "nobody-here", false)
	require.NoError(t, err)
	assert.NotNil(t, actions)
	assert.Empty(t, actions)
}

func TestEngine_Refinement(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	seedConversation(src)
	store := newMapStore()
	refiner := &fakeRefiner{available: true}
	e := newTestEngine(t, src, Options{Store: store, Refiner: refiner})

	actions, err := e.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "refined Prepare the slides by tomorrow", actions[0].Title)

	// The cache keeps unrefined results; refinement runs on every read.
	assert.Contains(t, store.data["insight:actions:conv-1:2026-10-16"], `"title":"Prepare the slides by tomorrow"`)

	cached, err := e.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)
	assert.Equal(t, actions, cached)
	assert.Equal(t, 2, refiner.calls)
}

func TestEngine_RefinementFailureReturnsOriginals(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	seedConversation(src)
	refiner := &fakeRefiner{available: true, err: errBoom}
	e := newTestEngine(t, src, Options{Refiner: refiner})

	decisions, err := e.ExtractDecisions(ctx, "conv-1", false)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "We agreed: Launch on monday.", decisions[0].Content)
}

func TestEngine_PriorityMessages(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.add("conv-1",
		textMessage("m1", "u1", "lunch?", 1000),
		textMessage("m2", "u1", "This is important", 2000),
		textMessage("m3", "u2", "URGENT: Server is down!!! Need this fixed ASAP!!!", 3000),
		textMessage("m4", "u2", "Also important", 4000),
	)
	e := newTestEngine(t, src, Options{Directory: &fakeDirectory{names: map[string]string{"u2": "Linus"}}})

	got, err := e.PriorityMessages(ctx, "conv-1")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "m3", got[0].MessageID)
	assert.Equal(t, PriorityUrgent, got[0].Priority.Level)
	assert.Equal(t, "Linus", got[0].SenderName)
	assert.Equal(t, "m4", got[1].MessageID, "equal scores are newest first")
	assert.Equal(t, "m2", got[2].MessageID)
	assert.Equal(t, UnknownSender, got[2].SenderName)
}

func TestEngine_ScorePriorityUsesActiveRules(t *testing.T) {
	e := newTestEngine(t, newFakeSource(), Options{})
	assert.Equal(t, ScorePriority("asap"), e.ScorePriority("asap"))

	rules := DefaultRules()
	rules.Priority.Urgent = []string{"sev1"}
	compiled, err := rules.Compile()
	require.NoError(t, err)
	e.SetRules(compiled)

	assert.Equal(t, 0, e.ScorePriority("asap").Score)
	assert.Equal(t, 10, e.ScorePriority("sev1").Score)

	e.SetRules(nil)
	assert.Same(t, compiled, e.Rules())
}

func TestEngine_WindowIsSortedOldestFirst(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	// Same text in one message twice over; out-of-order window.
	src.add("conv-1",
		textMessage("late", "u1", "We decided to use Go", 9000),
		textMessage("early", "u1", "We decided to use Go", 1000),
	)
	e := newTestEngine(t, src, Options{WindowSize: 50})

	decisions, err := e.ExtractDecisions(ctx, "conv-1", false)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "late", decisions[0].SourceMessageID)
	assert.Equal(t, 50, src.lastSize)
}

func TestEngine_Telemetry(t *testing.T) {
	ctx := context.Background()
	tel := telemetry.NewTestTelemetry()
	metrics, err := NewMetrics(tel.Meter(InstrumentationName))
	require.NoError(t, err)

	src := newFakeSource()
	seedConversation(src)
	e, err := NewEngine(Options{
		Source:  src,
		Store:   newMapStore(),
		Metrics: metrics,
		Tracer:  tel.Tracer(InstrumentationName),
		Now:     fixedClock(testDay),
	})
	require.NoError(t, err)

	_, err = e.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)
	_, err = e.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)

	tel.AssertSpanExists(t, "insight.ExtractActions")
	tel.AssertSpanAttribute(t, "insight.ExtractActions", "conversation.id", "conv-1")

	runs, ok := tel.Sum(ctx, "insight.extraction.runs", attribute.String("category", "actions"))
	require.True(t, ok)
	assert.EqualValues(t, 2, runs)

	hits, _ := tel.Sum(ctx, "insight.extraction.runs", attribute.String("cache", "hit"))
	assert.EqualValues(t, 1, hits)
}

func TestEngine_LogsWithConversationID(t *testing.T) {
	ctx := context.Background()
	tl := logging.NewTestLogger()
	src := newFakeSource()
	src.err = errBoom
	e := newTestEngine(t, src, Options{Logger: tl.Logger})

	_, err := e.ExtractDecisions(ctx, "conv-9", false)
	require.ErrorIs(t, err, ErrMessagesUnavailable)

	tl.AssertLogged(t, zapcore.ErrorLevel, "message window fetch failed")
	tl.AssertField(t, "message window fetch failed", "conversation.id", "conv-9")
}
