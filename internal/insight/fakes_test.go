package insight

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fyrsmithlabs/insightd/internal/refine"
)

var errBoom = errors.New("boom")

// fakeSource serves fixed windows and counts calls.
type fakeSource struct {
	mu       sync.Mutex
	messages map[string][]Message
	err      error
	calls    int
	lastSize int
}

func newFakeSource() *fakeSource {
	return &fakeSource{messages: make(map[string][]Message)}
}

func (f *fakeSource) add(conversationID string, msgs ...Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[conversationID] = append(f.messages[conversationID], msgs...)
}

func (f *fakeSource) Window(_ context.Context, conversationID string, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSize = limit
	if f.err != nil {
		return nil, f.err
	}
	msgs := f.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]Message(nil), msgs...), nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeDirectory resolves from a fixed map.
type fakeDirectory struct {
	names map[string]string
	err   error
	calls int
	asked [][]string
}

func (f *fakeDirectory) DisplayNames(_ context.Context, ids []string) (map[string]string, error) {
	f.calls++
	f.asked = append(f.asked, append([]string(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string)
	for _, id := range ids {
		if n, ok := f.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

// mapStore is an in-memory CacheStore with injectable failures.
type mapStore struct {
	mu        sync.Mutex
	data      map[string]string
	getErr    error
	setErr    error
	removeErr error
	sets      int
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string]string)}
}

func (s *mapStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *mapStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.data, key)
	return nil
}

// fakeRefiner returns canned results or an error.
type fakeRefiner struct {
	results   []refine.Result
	err       error
	panicWith any
	calls     int
	lastItems []refine.Item
	available bool
}

func (f *fakeRefiner) Refine(_ context.Context, items []refine.Item) ([]refine.Result, error) {
	f.calls++
	f.lastItems = items
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}
	out := make([]refine.Result, len(items))
	for i, it := range items {
		text := it.Title
		if text == "" {
			text = it.Content
		}
		out[i] = refine.Result{Refined: "refined " + text}
	}
	return out, nil
}

func (f *fakeRefiner) Available() bool { return f.available }

// fixedClock returns a clock stuck at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func textMessage(id, sender, text string, ts int64) Message {
	return Message{ID: id, SenderID: sender, Text: text, Timestamp: ts, Kind: MessageKindText}
}

func mustDefaultRules() *CompiledRules {
	rules, err := DefaultRules().Compile()
	if err != nil {
		panic(err)
	}
	return rules
}
