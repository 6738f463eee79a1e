package messages

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

// maxRecordBytes bounds a single JSONL line.
const maxRecordBytes = 1 << 20

// Record is one line of a message import file.
type Record struct {
	ID             string `json:"id,omitempty"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name,omitempty"`
	Text           string `json:"text"`
	Kind           string `json:"kind,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

// Writer is the write side of a message store.
type Writer interface {
	AddMessage(ctx context.Context, conversationID string, m insight.Message) error
	UpsertProfile(ctx context.Context, senderID, displayName string) error
}

// ImportJSONL reads one Record per line from r into w. Records without an
// id get a generated UUID. Blank lines are skipped. It returns the number of
// messages written.
func ImportJSONL(ctx context.Context, w Writer, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)

	n, line := 0, 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}

		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.ConversationID == "" {
			return n, fmt.Errorf("line %d: %w", line, ErrEmptyConversationID)
		}
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}

		msg := insight.Message{
			ID:        rec.ID,
			SenderID:  rec.SenderID,
			Text:      rec.Text,
			Timestamp: rec.Timestamp,
			Kind:      rec.Kind,
		}
		if err := w.AddMessage(ctx, rec.ConversationID, msg); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.SenderName != "" && rec.SenderID != "" {
			if err := w.UpsertProfile(ctx, rec.SenderID, rec.SenderName); err != nil {
				return n, fmt.Errorf("line %d: %w", line, err)
			}
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("read import: %w", err)
	}
	return n, nil
}
