package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightd/internal/config"
	"github.com/fyrsmithlabs/insightd/internal/insight"
	"github.com/fyrsmithlabs/insightd/internal/messages"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Messages.SQLite.Path = filepath.Join(dir, "messages.db")
	cfg.Cache.Provider = config.ProviderSQLite
	cfg.Cache.SQLite.Path = filepath.Join(dir, "cache.db")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Version:    dev")
}

func TestNewApp(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	seed, err := messages.NewSQLiteStore(ctx, cfg.Messages.SQLite.Path)
	require.NoError(t, err)
	require.NoError(t, seed.AddMessage(ctx, "conv-1", insight.Message{
		ID: "m1", SenderID: "u1", Text: "I'll send the report by Friday", Timestamp: 1000,
	}))
	require.NoError(t, seed.UpsertProfile(ctx, "u1", "Ada"))
	require.NoError(t, seed.Close())

	a, err := newApp(ctx, cfg, zapcore.AddSync(io.Discard))
	require.NoError(t, err)
	defer a.close(ctx)

	actions, err := a.engine.ExtractActions(ctx, "conv-1", false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "Ada", actions[0].SenderName)
}

func TestNewApp_MissingRulesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Extraction.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := newApp(context.Background(), cfg, zapcore.AddSync(io.Discard))
	assert.Error(t, err)
}

func TestServe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := testConfig(t)
	cfg.Server.Port = freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, cfg)
	}()

	url := fmt.Sprintf("http://%s/health", cfg.Server.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(cfg.Server.ShutdownTimeout + time.Second):
		t.Fatal("server did not shutdown in time")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
