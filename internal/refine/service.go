package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// maxResponseBytes bounds the refinement service response body.
const maxResponseBytes = 4 << 20

// ServiceClient calls a refinement service over HTTP.
type ServiceClient struct {
	url       string
	token     string `json:"-"` // Never serialize tokens
	transport *transport
}

// NewServiceClient creates a client for the service at cfg.ServiceURL.
func NewServiceClient(cfg Config) (*ServiceClient, error) {
	if cfg.ServiceURL == "" {
		return nil, ErrMissingURL
	}
	return &ServiceClient{
		url:       cfg.ServiceURL,
		token:     cfg.APIKey,
		transport: newTransport(cfg),
	}, nil
}

// Refine posts items in one batch and returns the refined results.
func (c *ServiceClient) Refine(ctx context.Context, items []Item) ([]Result, error) {
	if len(items) == 0 {
		return []Result{}, nil
	}

	body, err := json.Marshal(Request{Items: scrubItems(items)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	requestID := uuid.NewString()

	var resp Response
	err = c.transport.retry(ctx, func(ctx context.Context) error {
		r, err := c.doRequest(ctx, body, requestID)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return checkResponse(resp, len(items))
}

func (c *ServiceClient) doRequest(ctx context.Context, body []byte, requestID string) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.transport.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, &retryableError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return Response{}, statusError(httpResp.StatusCode, respBody)
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp, nil
}

// Available returns true when a service URL is configured.
func (c *ServiceClient) Available() bool {
	return c.url != ""
}

var _ Client = (*ServiceClient)(nil)
