package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

// maxLookupBatch bounds the ids in one IN (...) query.
const maxLookupBatch = 500

// ErrEmptyConversationID is returned when a message has no conversation.
var ErrEmptyConversationID = errors.New("conversation_id is required")

// SQLiteStore persists messages and profiles in an embedded database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and migrates it.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.AutoMigrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// AutoMigrate creates the tables if they do not exist.
func (s *SQLiteStore) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT 'text',
			timestamp_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_ts
			ON messages (conversation_id, timestamp_ms);`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// AddMessage inserts or replaces a message.
func (s *SQLiteStore) AddMessage(ctx context.Context, conversationID string, m insight.Message) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	kind := m.Kind
	if kind == "" {
		kind = insight.MessageKindText
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO messages (id, conversation_id, sender_id, text, kind, timestamp_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			sender_id = excluded.sender_id,
			text = excluded.text,
			kind = excluded.kind,
			timestamp_ms = excluded.timestamp_ms`,
		m.ID, conversationID, m.SenderID, m.Text, kind, m.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", m.ID, err)
	}
	return nil
}

// UpsertProfile sets the display name of a sender.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, senderID, displayName string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO profiles (id, display_name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name`, senderID, displayName)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", senderID, err)
	}
	return nil
}

// Window returns the most recent limit messages, oldest first.
func (s *SQLiteStore) Window(ctx context.Context, conversationID string, limit int) ([]insight.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, sender_id, text, kind, timestamp_ms
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp_ms DESC, id DESC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	defer rows.Close()

	out := make([]insight.Message, 0, limit)
	for rows.Next() {
		var m insight.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Text, &m.Kind, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// DisplayNames resolves sender ids in batches of IN queries.
func (s *SQLiteStore) DisplayNames(ctx context.Context, senderIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(senderIDs))
	for batch := range slices.Chunk(senderIDs, maxLookupBatch) {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT id, display_name FROM profiles WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("query profiles: %w", err)
		}
		for rows.Next() {
			var id, name string
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan profile: %w", err)
			}
			names[id] = name
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return names, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var (
	_ insight.MessageSource   = (*SQLiteStore)(nil)
	_ insight.SenderDirectory = (*SQLiteStore)(nil)
)
