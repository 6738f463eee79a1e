package insight

import "fmt"

// Category identifies an insight category.
type Category string

const (
	CategoryActions   Category = "actions"
	CategoryDecisions Category = "decisions"
	CategoryPriority  Category = "priority"
)

// ParseCategory validates a cacheable category name.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryActions, CategoryDecisions:
		return Category(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// MessageKindText is the only message kind the extractors read.
const MessageKindText = "text"

// UnknownSender is the display name used when a sender cannot be resolved.
const UnknownSender = "Unknown"

// Message is one record of a conversation window.
type Message struct {
	ID        string `json:"id"`
	SenderID  string `json:"sender_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	Kind      string `json:"kind"`
}

// IsText reports whether the message carries extractable text.
// An empty kind is treated as text.
func (m Message) IsText() bool {
	return (m.Kind == "" || m.Kind == MessageKindText) && m.Text != ""
}

// ExtractedAction is an action item found in a message.
type ExtractedAction struct {
	Title           string  `json:"title"`
	SourceMessageID string  `json:"source_message_id"`
	Timestamp       int64   `json:"timestamp"`
	SenderID        string  `json:"sender_id"`
	SenderName      string  `json:"sender_name,omitempty"`
	Assignee        string  `json:"assignee,omitempty"`
	DueHint         string  `json:"due_hint,omitempty"`
	Confidence      float64 `json:"confidence"`
}

// ExtractedDecision is a decision statement found in a message.
// Content has the form "<marker>: <Clause>.".
type ExtractedDecision struct {
	Content         string  `json:"content"`
	SourceMessageID string  `json:"source_message_id"`
	Timestamp       int64   `json:"timestamp"`
	SenderID        string  `json:"sender_id"`
	SenderName      string  `json:"sender_name,omitempty"`
	Confidence      float64 `json:"confidence"`
}

// PriorityLevel is the coarse level derived from a priority score.
type PriorityLevel string

const (
	PriorityUrgent PriorityLevel = "urgent"
	PriorityHigh   PriorityLevel = "high"
	PriorityNormal PriorityLevel = "normal"
)

// PriorityResult is the outcome of scoring one message text.
type PriorityResult struct {
	Level   PriorityLevel `json:"level"`
	Score   int           `json:"score"`
	Reasons []string      `json:"reasons"`
}

// PriorityMessage pairs a message with its priority result.
type PriorityMessage struct {
	MessageID  string         `json:"message_id"`
	SenderID   string         `json:"sender_id"`
	SenderName string         `json:"sender_name,omitempty"`
	Text       string         `json:"text"`
	Timestamp  int64          `json:"timestamp"`
	Priority   PriorityResult `json:"priority"`
}

// messageMeta is the per-message context attached to every candidate.
type messageMeta struct {
	ID         string
	SenderID   string
	SenderName string
	Timestamp  int64
}
