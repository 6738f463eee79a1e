package http

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ListResponse wraps the items extracted for a conversation.
type ListResponse[T any] struct {
	ConversationID string `json:"conversation_id"`
	Items          []T    `json:"items"`
	Count          int    `json:"count"`
}

func newListResponse[T any](conversationID string, items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{ConversationID: conversationID, Items: items, Count: len(items)}
}

// ScoreRequest is the request body for POST /api/v1/priority.
type ScoreRequest struct {
	Text string `json:"text"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}
