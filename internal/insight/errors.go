package insight

import "errors"

// Validation errors.
var (
	ErrEmptyConversationID = errors.New("conversation_id is required")
	ErrUnknownCategory     = errors.New("unknown insight category")
	ErrNoMessageSource     = errors.New("message source is required")
)

// Upstream errors.
var (
	// ErrMessagesUnavailable wraps failures of the message window fetch.
	// It is the only extraction failure surfaced to callers.
	ErrMessagesUnavailable = errors.New("could not load messages")
)

// Rule errors.
var (
	ErrInvalidRule      = errors.New("invalid rule")
	ErrInvalidRulesFile = errors.New("invalid rules file")
)
