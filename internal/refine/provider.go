package refine

import (
	"context"
	"fmt"
)

// New creates a client for cfg.Provider. An empty or "disabled" provider
// yields a NoOpClient.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "", ProviderDisabled:
		return &NoOpClient{}, nil
	case ProviderService:
		return NewServiceClient(cfg)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// NoOpClient is a disabled refinement client.
type NoOpClient struct{}

// Refine echoes the items back as results.
func (n *NoOpClient) Refine(_ context.Context, items []Item) ([]Result, error) {
	out := make([]Result, len(items))
	for i, it := range items {
		text := it.Title
		if text == "" {
			text = it.Content
		}
		out[i] = Result{Refined: text, Assignee: it.Assignee, Due: it.Due}
	}
	return out, nil
}

// Available returns false for NoOpClient.
func (n *NoOpClient) Available() bool {
	return false
}

var _ Client = (*NoOpClient)(nil)
