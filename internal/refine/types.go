// Package refine rewrites extracted insights through an external service.
//
// A Client takes a batch of items and returns one result per item, in the
// same order. Three providers exist: a plain HTTP refinement service and
// chat completion backends for Anthropic and OpenAI that are prompted to
// answer with the same response shape.
package refine

import (
	"context"
	"errors"
	"time"
)

// Item is the minimal projection of an insight sent for refinement.
// Actions set Title and optionally Assignee and Due; decisions set Content.
type Item struct {
	Title    string `json:"title,omitempty"`
	Content  string `json:"content,omitempty"`
	Assignee string `json:"assignee,omitempty"`
	Due      string `json:"due,omitempty"`
}

// Result is the refined form of one Item.
type Result struct {
	Refined  string `json:"refined"`
	Assignee string `json:"assignee,omitempty"`
	Due      string `json:"due,omitempty"`
}

// Request is the wire request of the refinement service.
type Request struct {
	Items []Item `json:"items"`
}

// Response is the wire response of the refinement service.
type Response struct {
	Success bool     `json:"success"`
	Refined []Result `json:"refined"`
	Error   string   `json:"error,omitempty"`
}

// Client refines a batch of items.
type Client interface {
	// Refine returns exactly one result per item, in order.
	Refine(ctx context.Context, items []Item) ([]Result, error)

	// Available returns true if the client is configured and ready.
	Available() bool
}

// Provider names.
const (
	ProviderDisabled  = "disabled"
	ProviderService   = "service"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config configures a refinement client.
type Config struct {
	Provider   string
	ServiceURL string        // service provider endpoint
	APIKey     string        // anthropic/openai, or bearer token for service
	Model      string        // anthropic/openai
	BaseURL    string        // anthropic/openai API base
	Timeout    time.Duration // per request
	RateLimit  float64       // requests per second
	Burst      int
	MaxRetries int           // 0 uses the default, negative disables retries
	Backoff    time.Duration // base of the exponential backoff
}

// Errors.
var (
	ErrServiceFailure  = errors.New("refinement service reported failure")
	ErrLengthMismatch  = errors.New("refinement result count does not match request")
	ErrMissingAPIKey   = errors.New("api key required")
	ErrMissingURL      = errors.New("service url required")
	ErrUnknownProvider = errors.New("unknown refinement provider")
)

// checkResponse validates a decoded response against the request size.
func checkResponse(resp Response, want int) ([]Result, error) {
	if !resp.Success {
		if resp.Error != "" {
			return nil, errors.Join(ErrServiceFailure, errors.New(resp.Error))
		}
		return nil, ErrServiceFailure
	}
	if len(resp.Refined) != want {
		return nil, ErrLengthMismatch
	}
	return resp.Refined, nil
}
