package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "github.com/fyrsmithlabs/insightd/internal/http"
	"github.com/fyrsmithlabs/insightd/internal/insight"
	"github.com/fyrsmithlabs/insightd/internal/messages"
)

// execute runs the CLI against srv and returns stdout.
func execute(t *testing.T, srv *httptest.Server, stdin string, args ...string) (string, error) {
	t.Helper()
	jsonOutput = false
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	if srv != nil {
		args = append([]string{"--server", srv.URL}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestActionsCommand(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(httpapi.ListResponse[insight.ExtractedAction]{
			ConversationID: "conv-1",
			Items:          []insight.ExtractedAction{{Title: "Send the report", SenderName: "Ada", DueHint: "by Friday", Confidence: 0.9}},
			Count:          1,
		})
	}))
	defer srv.Close()

	out, err := execute(t, srv, "", "actions", "--refresh", "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/conversations/conv-1/actions", gotPath)
	assert.Equal(t, "refresh=true", gotQuery)
	assert.Contains(t, out, "Send the report")
	assert.Contains(t, out, "by Friday")
	assert.Contains(t, out, "0.90")
}

func TestDecisionsCommand_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(httpapi.ListResponse[insight.ExtractedDecision]{
			ConversationID: "conv-1",
			Items:          []insight.ExtractedDecision{{Content: "Launch on Monday"}},
			Count:          1,
		})
	}))
	defer srv.Close()

	out, err := execute(t, srv, "", "decisions", "--json", "conv-1")
	require.NoError(t, err)

	var resp httpapi.ListResponse[insight.ExtractedDecision]
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "Launch on Monday", resp.Items[0].Content)
}

func TestPriorityCommand_Stdin(t *testing.T) {
	var got httpapi.ScoreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(insight.ScorePriority(got.Text))
	}))
	defer srv.Close()

	out, err := execute(t, srv, "URGENT: Server is down!!! Need this fixed ASAP!!!\n", "priority", "-")
	require.NoError(t, err)
	assert.Equal(t, "URGENT: Server is down!!! Need this fixed ASAP!!!", got.Text)
	assert.Contains(t, out, "urgent")
}

func TestPriorityCommand_EmptyStdin(t *testing.T) {
	_, err := execute(t, nil, "  \n", "priority")
	assert.ErrorContains(t, err, "no text to score")
}

func TestServerErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(httpapi.ErrorResponse{Error: "could not load messages", Retryable: true})
	}))
	defer srv.Close()

	_, err := execute(t, srv, "", "priorities", "conv-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502: could not load messages (retryable)")
}

func TestInvalidateCommand(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	out, err := execute(t, srv, "", "invalidate", "conv-1", "decisions")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/v1/conversations/conv-1/cache/decisions", gotPath)
	assert.Contains(t, out, "Invalidated decisions of conv-1")
}

func TestHealthCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(httpapi.HealthResponse{Status: "ok"})
	}))
	defer srv.Close()

	out, err := execute(t, srv, "", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: ok")
}

func TestImportCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "data", "messages.db")
	input := `{"id":"m1","conversation_id":"conv-1","sender_id":"u1","sender_name":"Ada","text":"I'll send the report","timestamp":1000}
{"id":"m2","conversation_id":"conv-1","sender_id":"u2","text":"thanks","timestamp":2000}
`
	out, err := execute(t, nil, input, "import", "--db", db, "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 messages")

	ctx := context.Background()
	store, err := messages.NewSQLiteStore(ctx, db)
	require.NoError(t, err)
	defer store.Close()

	window, err := store.Window(ctx, "conv-1", 10)
	require.NoError(t, err)
	assert.Len(t, window, 2)

	names, err := store.DisplayNames(ctx, []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", names["u1"])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b", truncate("a\n  b", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
