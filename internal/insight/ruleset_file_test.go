package insight

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customRulesYAML = `
actions:
  rules:
    - name: ticket
      pattern: '(?i)\b(ticket)\s*:\s*([^.!?\n]+)'
  tiers:
    - markers: [ticket]
      confidence: 0.95
  default_confidence: 0.5
  min_length: 5
  max_clause_length: 80
priority:
  urgent: [sev1]
`

func TestParseRules_PartialOverride(t *testing.T) {
	rules, err := ParseRules([]byte(customRulesYAML))
	require.NoError(t, err)

	assert.Len(t, rules.Actions.Rules, 1)
	assert.Equal(t, DefaultDecisionRules(), rules.Decisions, "omitted sections keep defaults")
	assert.Equal(t, []string{"sev1"}, rules.Priority.Urgent)

	compiled, err := rules.Compile()
	require.NoError(t, err)

	actions := NewActionExtractor(compiled.Actions).Extract("Ticket: rotate the keys", testMeta)
	require.Len(t, actions, 1)
	assert.Equal(t, "Rotate the keys", actions[0].Title)
	assert.Equal(t, 0.95, actions[0].Confidence)
}

func TestParseRules_Invalid(t *testing.T) {
	_, err := ParseRules([]byte("actions: [not, a, map"))
	assert.ErrorIs(t, err, ErrInvalidRulesFile)
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(good, []byte(customRulesYAML), 0o600))
	rules, err := LoadRules(good)
	require.NoError(t, err)
	assert.Equal(t, 10, rules.Priority.Score("sev1").Score)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("decisions:\n  rules:\n    - name: x\n      pattern: '('\n"), 0o600))
	_, err = LoadRules(bad)
	assert.ErrorIs(t, err, ErrInvalidRulesFile)
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = LoadRules(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRulesWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("priority:\n  urgent: [first]\n"), 0o600))

	var current atomic.Pointer[CompiledRules]
	w, err := NewRulesWatcher(path, func(r *CompiledRules) { current.Store(r) }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("priority:\n  urgent: [second]\n"), 0o600))

	assert.Eventually(t, func() bool {
		r := current.Load()
		return r != nil && r.Priority.Score("second").Score == 10
	}, 5*time.Second, 20*time.Millisecond)

	// A broken file keeps the last good rules.
	applied := current.Load()
	require.NoError(t, os.WriteFile(path, []byte("priority: [unclosed"), 0o600))
	time.Sleep(3 * reloadDebounce)
	assert.Same(t, applied, current.Load())
}

func TestRulesWatcher_StopWithoutStart(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRulesWatcher(filepath.Join(dir, "rules.yaml"), func(*CompiledRules) {}, nil)
	require.NoError(t, err)
	w.Stop()
	w.Stop()
}
