package messages

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "messages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type store interface {
	Writer
	insight.MessageSource
	insight.SenderDirectory
}

func exerciseStore(t *testing.T, s store) {
	t.Helper()
	ctx := context.Background()

	for i, text := range []string{"first", "second", "third", "fourth"} {
		require.NoError(t, s.AddMessage(ctx, "conv-1", insight.Message{
			ID:        "m" + string(rune('1'+i)),
			SenderID:  "u1",
			Text:      text,
			Timestamp: int64(1000 + i),
		}))
	}
	require.NoError(t, s.AddMessage(ctx, "conv-2", insight.Message{ID: "x1", SenderID: "u2", Text: "other", Timestamp: 5000}))
	require.NoError(t, s.UpsertProfile(ctx, "u1", "Alice"))
	require.NoError(t, s.UpsertProfile(ctx, "u1", "Alice B"))

	t.Run("window returns newest messages oldest first", func(t *testing.T) {
		got, err := s.Window(ctx, "conv-1", 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "second", got[0].Text)
		assert.Equal(t, "fourth", got[2].Text)
		assert.Equal(t, insight.MessageKindText, got[0].Kind)
	})

	t.Run("window of unknown conversation is empty", func(t *testing.T) {
		got, err := s.Window(ctx, "missing", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("display names omit unknown ids", func(t *testing.T) {
		names, err := s.DisplayNames(ctx, []string{"u1", "nobody"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"u1": "Alice B"}, names)
	})

	t.Run("add message requires conversation", func(t *testing.T) {
		err := s.AddMessage(ctx, "", insight.Message{ID: "z"})
		assert.ErrorIs(t, err, ErrEmptyConversationID)
	})
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newTestSQLite(t))
}

func TestSQLiteStore_DisplayNamesBatches(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	ids := make([]string, 0, maxLookupBatch+10)
	for i := range maxLookupBatch + 10 {
		ids = append(ids, "u-"+strconv.Itoa(i))
	}
	require.NoError(t, s.UpsertProfile(ctx, ids[0], "First"))
	require.NoError(t, s.UpsertProfile(ctx, ids[len(ids)-1], "Last"))

	names, err := s.DisplayNames(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, names, 2)
	assert.Equal(t, "Last", names[ids[len(ids)-1]])
}

func TestSQLiteStore_EngineIntegration(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.AddMessage(ctx, "conv-1", insight.Message{ID: "m1", SenderID: "u1", Text: "I'll prepare the slides by tomorrow", Timestamp: 1000}))
	require.NoError(t, s.AddMessage(ctx, "conv-1", insight.Message{ID: "m2", SenderID: "u1", Kind: "image", Timestamp: 1001}))
	require.NoError(t, s.UpsertProfile(ctx, "u1", "Alice"))

	engine, err := insight.NewEngine(insight.Options{Source: s, Directory: s})
	require.NoError(t, err)

	actions, err := engine.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "Alice", actions[0].SenderName)
	assert.Equal(t, "m1", actions[0].SourceMessageID)
}

func TestPostgresSource(t *testing.T) {
	dsn := os.Getenv("INSIGHTD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INSIGHTD_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	p, err := NewPostgresSource(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	require.NoError(t, p.AutoMigrate(ctx))

	_, err = p.db.Exec(ctx, `DELETE FROM messages WHERE conversation_id IN ('conv-1', 'conv-2')`)
	require.NoError(t, err)

	exerciseStore(t, p)
}

func TestImportJSONL(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	input := strings.Join([]string{
		`{"id":"m1","conversation_id":"conv-1","sender_id":"u1","sender_name":"Alice","text":"hello there","timestamp":1000}`,
		``,
		`{"conversation_id":"conv-1","sender_id":"u2","text":"no id here","timestamp":2000}`,
	}, "\n")

	n, err := ImportJSONL(ctx, s, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Window(ctx, "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Len(t, got[1].ID, 36)

	names, err := s.DisplayNames(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "Alice"}, names)
}

func TestImportJSONL_Errors(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	t.Run("malformed line", func(t *testing.T) {
		n, err := ImportJSONL(ctx, s, strings.NewReader("{not json}\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 1")
		assert.Zero(t, n)
	})

	t.Run("missing conversation", func(t *testing.T) {
		_, err := ImportJSONL(ctx, s, strings.NewReader(`{"id":"a","text":"x"}`))
		assert.ErrorIs(t, err, ErrEmptyConversationID)
	})
}
