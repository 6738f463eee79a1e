package insight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// maxRulesFileSize bounds a rules file.
const maxRulesFileSize = 1 << 20

// rulesFile mirrors Rules with optional sections.
type rulesFile struct {
	Actions   *RuleSet       `yaml:"actions"`
	Decisions *RuleSet       `yaml:"decisions"`
	Priority  *PriorityRules `yaml:"priority"`
}

// ParseRules decodes YAML rule tables. Omitted sections use the defaults.
func ParseRules(data []byte) (Rules, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Rules{}, fmt.Errorf("%w: %v", ErrInvalidRulesFile, err)
	}

	rules := DefaultRules()
	if f.Actions != nil {
		rules.Actions = *f.Actions
	}
	if f.Decisions != nil {
		rules.Decisions = *f.Decisions
	}
	if f.Priority != nil {
		rules.Priority = *f.Priority
	}
	return rules, nil
}

// LoadRules reads and compiles a YAML rules file.
func LoadRules(path string) (*CompiledRules, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat rules file: %w", err)
	}
	if info.Size() > maxRulesFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidRulesFile, path, maxRulesFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, err
	}
	compiled, err := rules.Compile()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRulesFile, err)
	}
	return compiled, nil
}

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 200 * time.Millisecond

// RulesWatcher reloads a rules file on change and hands the compiled
// tables to apply. A file that fails to load is logged and ignored.
type RulesWatcher struct {
	path    string
	apply   func(*CompiledRules)
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewRulesWatcher watches the directory holding path, so that editors
// that replace the file by rename are seen.
func NewRulesWatcher(path string, apply func(*CompiledRules), logger *zap.Logger) (*RulesWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving rules path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	return &RulesWatcher{
		path:    abs,
		apply:   apply,
		watcher: watcher,
		logger:  logger.Named("rules"),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start processes events in a background goroutine until ctx is done or
// Stop is called.
func (w *RulesWatcher) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

// Stop ends the watcher and waits for the event loop to exit.
func (w *RulesWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
	if w.started.Load() {
		<-w.done
	}
}

func (w *RulesWatcher) run(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rules watcher error", zap.Error(err))
		}
	}
}

func (w *RulesWatcher) reload() {
	rules, err := LoadRules(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.logger.Debug("rules file missing, keeping current rules", zap.String("path", w.path))
			return
		}
		w.logger.Error("rules reload failed, keeping current rules",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}
	w.apply(rules)
	w.logger.Info("rules reloaded", zap.String("path", w.path))
}
