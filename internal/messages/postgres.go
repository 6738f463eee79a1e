package messages

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

// PostgresSource reads messages and profiles from PostgreSQL.
type PostgresSource struct {
	db *pgxpool.Pool
}

// NewPostgresSource connects to dsn and verifies the connection.
func NewPostgresSource(ctx context.Context, dsn string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresSource{db: pool}, nil
}

// NewPostgresSourceFromPool wraps an existing pool.
func NewPostgresSourceFromPool(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{db: pool}
}

// AutoMigrate creates the tables if they do not exist.
func (p *PostgresSource) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT 'text',
			timestamp_ms BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_ts
			ON messages (conversation_id, timestamp_ms)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL
		)`,
	}
	for _, q := range queries {
		if _, err := p.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// AddMessage inserts or replaces a message.
func (p *PostgresSource) AddMessage(ctx context.Context, conversationID string, m insight.Message) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	kind := m.Kind
	if kind == "" {
		kind = insight.MessageKindText
	}
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, text, kind, timestamp_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			conversation_id = EXCLUDED.conversation_id,
			sender_id = EXCLUDED.sender_id,
			text = EXCLUDED.text,
			kind = EXCLUDED.kind,
			timestamp_ms = EXCLUDED.timestamp_ms
	`
	if _, err := p.db.Exec(ctx, query, m.ID, conversationID, m.SenderID, m.Text, kind, m.Timestamp); err != nil {
		return fmt.Errorf("insert message %s: %w", m.ID, err)
	}
	return nil
}

// UpsertProfile sets the display name of a sender.
func (p *PostgresSource) UpsertProfile(ctx context.Context, senderID, displayName string) error {
	query := `
		INSERT INTO profiles (id, display_name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
	`
	if _, err := p.db.Exec(ctx, query, senderID, displayName); err != nil {
		return fmt.Errorf("upsert profile %s: %w", senderID, err)
	}
	return nil
}

// Window returns the most recent limit messages, oldest first.
func (p *PostgresSource) Window(ctx context.Context, conversationID string, limit int) ([]insight.Message, error) {
	query := `
		SELECT id, sender_id, text, kind, timestamp_ms
		FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp_ms DESC, id DESC
		LIMIT $2
	`
	rows, err := p.db.Query(ctx, query, conversationID, limit)
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

// DisplayNames resolves all sender ids in one query.
func (p *PostgresSource) DisplayNames(ctx context.Context, senderIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(senderIDs))
	if len(senderIDs) == 0 {
		return names, nil
	}

	rows, err := p.db.Query(ctx, `SELECT id, display_name FROM profiles WHERE id = ANY($1)`, senderIDs)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// Close closes the pool.
func (p *PostgresSource) Close() error {
	p.db.Close()
	return nil
}

var (
	_ insight.MessageSource   = (*PostgresSource)(nil)
	_ insight.SenderDirectory = (*PostgresSource)(nil)
)
