package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Default model endpoints.
const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-haiku-20241022"
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultMaxTokens        = 2048
)

// refinePrompt is the system prompt for chat model providers.
const refinePrompt = `You rewrite items extracted from a team chat so they read as short, clean task or decision statements.

You receive a JSON object {"items": [...]}. Each item has either "title" (an action item, optionally with "assignee" and "due") or "content" (a decision).

Rules:
1. Keep the meaning. Do not add facts.
2. Keep each rewrite under 100 characters.
3. Return exactly one result per item, in the same order.
4. Keep "assignee" and "due" unless they are clearly wrong; omit them if absent.

Respond ONLY with a JSON object: {"success": true, "refined": [{"refined": "...", "assignee": "...", "due": "..."}]}`

// completer sends one system/user prompt pair to a chat model.
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
}

// LLMClient refines items by prompting a chat model.
type LLMClient struct {
	provider  string
	completer completer
	transport *transport
}

// Refine prompts the model with the scrubbed items and parses its reply.
func (c *LLMClient) Refine(ctx context.Context, items []Item) ([]Result, error) {
	if len(items) == 0 {
		return []Result{}, nil
	}

	payload, err := json.Marshal(Request{Items: scrubItems(items)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal items: %w", err)
	}

	var reply string
	err = c.transport.retry(ctx, func(ctx context.Context) error {
		r, err := c.completer.complete(ctx, refinePrompt, string(payload))
		if err != nil {
			return err
		}
		reply = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.provider, err)
	}

	resp, err := parseResponseJSON(reply)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.provider, err)
	}
	return checkResponse(resp, len(items))
}

// Available returns true if the client has a backend.
func (c *LLMClient) Available() bool {
	return c.completer != nil
}

// parseResponseJSON decodes a model reply, tolerating markdown fences.
func parseResponseJSON(content string) (Response, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var resp Response
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return Response{}, fmt.Errorf("failed to parse model reply: %w", err)
	}
	return resp, nil
}

// anthropicCompleter calls the Anthropic messages API.
type anthropicCompleter struct {
	model      string
	apiKey     string `json:"-"` // Never serialize API keys
	baseURL    string
	httpClient *http.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicClient creates a client backed by Anthropic's API.
func NewAnthropicClient(cfg Config) (*LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	t := newTransport(cfg)
	return &LLMClient{
		provider: ProviderAnthropic,
		completer: &anthropicCompleter{
			model:      withDefault(cfg.Model, defaultAnthropicModel),
			apiKey:     cfg.APIKey,
			baseURL:    withDefault(cfg.BaseURL, defaultAnthropicBaseURL),
			httpClient: t.httpClient,
		},
		transport: t,
	}, nil
}

func (a *anthropicCompleter) complete(ctx context.Context, system, user string) (string, error) {
	req := anthropicRequest{
		Model:       a.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.2,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
	}

	headers := map[string]string{
		"X-API-Key":         a.apiKey,
		"Anthropic-Version": "2023-06-01",
	}
	body, err := postJSON(ctx, a.httpClient, a.baseURL+"/v1/messages", headers, req)
	if err != nil {
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return resp.Content[0].Text, nil
}

// openAICompleter calls the OpenAI chat completions API.
type openAICompleter struct {
	model      string
	apiKey     string `json:"-"` // Never serialize API keys
	baseURL    string
	httpClient *http.Client
}

type openAIRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient creates a client backed by OpenAI's API.
func NewOpenAIClient(cfg Config) (*LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	t := newTransport(cfg)
	return &LLMClient{
		provider: ProviderOpenAI,
		completer: &openAICompleter{
			model:      withDefault(cfg.Model, defaultOpenAIModel),
			apiKey:     cfg.APIKey,
			baseURL:    withDefault(cfg.BaseURL, defaultOpenAIBaseURL),
			httpClient: t.httpClient,
		},
		transport: t,
	}, nil
}

func (o *openAICompleter) complete(ctx context.Context, system, user string) (string, error) {
	req := openAIRequest{
		Model:       o.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.2,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	body, err := postJSON(ctx, o.httpClient, o.baseURL+"/v1/chat/completions", headers, req)
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return resp.Choices[0].Message.Content, nil
}

// postJSON sends a JSON request and returns the body of a 200 response.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests &&
			json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

var _ Client = (*LLMClient)(nil)
