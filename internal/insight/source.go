package insight

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"
)

// MessageSource supplies the message window of a conversation.
type MessageSource interface {
	// Window returns up to limit of the most recent messages, oldest first.
	Window(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

// SenderDirectory resolves sender ids to display names in one batch.
// Ids missing from the returned map are unresolved.
type SenderDirectory interface {
	DisplayNames(ctx context.Context, senderIDs []string) (map[string]string, error)
}

// LookupFunc resolves a single sender id.
type LookupFunc func(ctx context.Context, senderID string) (string, error)

// DefaultFanOutLimit caps concurrent single-id lookups.
const DefaultFanOutLimit = 8

// FanOutDirectory adapts a single-id lookup into a SenderDirectory with
// bounded concurrency. A failed lookup leaves that id unresolved.
type FanOutDirectory struct {
	lookup LookupFunc
	limit  int
	logger *zap.Logger
}

// NewFanOutDirectory creates a FanOutDirectory. A limit below one uses
// DefaultFanOutLimit.
func NewFanOutDirectory(lookup LookupFunc, limit int, logger *zap.Logger) *FanOutDirectory {
	if limit < 1 {
		limit = DefaultFanOutLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanOutDirectory{lookup: lookup, limit: limit, logger: logger.Named("directory")}
}

// DisplayNames looks up every id concurrently.
func (d *FanOutDirectory) DisplayNames(ctx context.Context, senderIDs []string) (map[string]string, error) {
	var mu sync.Mutex
	names := make(map[string]string, len(senderIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.limit)
	for _, id := range senderIDs {
		g.Go(func() error {
			name, err := d.lookup(gctx, id)
			if err != nil {
				d.logger.Debug("sender lookup failed", zap.String("sender_id", id), zap.Error(err))
				return nil
			}
			if name == "" {
				return nil
			}
			mu.Lock()
			names[id] = name
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return names, err
	}
	return names, ctx.Err()
}

var _ SenderDirectory = (*FanOutDirectory)(nil)

// resolveSenders collects the distinct sender ids of messages and resolves
// them in one call. Unresolved ids map to UnknownSender; a directory
// failure degrades every id to UnknownSender.
func resolveSenders(ctx context.Context, dir SenderDirectory, messages []Message, logger *zap.Logger) map[string]string {
	seen := make(map[string]struct{}, len(messages))
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		if _, ok := seen[m.SenderID]; ok || m.SenderID == "" {
			continue
		}
		seen[m.SenderID] = struct{}{}
		ids = append(ids, m.SenderID)
	}

	resolved := make(map[string]string, len(ids))
	if dir != nil && len(ids) > 0 {
		names, err := dir.DisplayNames(ctx, ids)
		if err != nil {
			logger.Warn("sender lookup failed, using placeholder names",
				zap.Int("senders", len(ids)),
				zap.Error(err),
			)
		}
		for id, name := range names {
			if err == nil && name != "" {
				resolved[id] = name
			}
		}
	}

	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			resolved[id] = UnknownSender
		}
	}
	return resolved
}
