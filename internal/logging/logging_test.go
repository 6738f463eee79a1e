package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightd/internal/config"
)

func newBufferLogger(t *testing.T, cfg *Config) (*zap.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := build(cfg, zapcore.AddSync(&buf), nil)
	require.NoError(t, err)
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"trace", TraceLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.False(t, cfg.Sampling.Enabled)

	_, err = FromSettings(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = FromSettings(config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestNew_WritesServiceField(t *testing.T) {
	logger, buf := newBufferLogger(t, NewDefaultConfig())

	logger.Info("extraction finished", zap.Int("count", 3))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "extraction finished", lines[0]["msg"])
	assert.Equal(t, ServiceName, lines[0]["service"])
	assert.EqualValues(t, 3, lines[0]["count"])
}

func TestNew_TraceLevel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = TraceLevel
	cfg.Sampling.Enabled = false
	logger, buf := newBufferLogger(t, cfg)

	logger.Log(TraceLevel, "matched rule")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "trace", lines[0]["level"])
}

func TestRedactingEncoder(t *testing.T) {
	logger, buf := newBufferLogger(t, NewDefaultConfig())

	logger.With(zap.String("token", "abc")).Info("call",
		zap.String("api_key", "sk-real"),
		zap.String("header", "Bearer abc.def"),
		zap.String("note", "plain"),
		Secret("password", config.Secret("hunter2")),
	)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "[REDACTED]", line["token"])
	assert.Equal(t, "[REDACTED]", line["api_key"])
	assert.Equal(t, "[REDACTED:pattern]", line["header"])
	assert.Equal(t, "plain", line["note"])
	assert.Equal(t, "[REDACTED]", line["password"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestRedactedString(t *testing.T) {
	tl := NewTestLogger()
	tl.Info("configured", RedactedString("key", "sk-1234567890"))
	tl.AssertField(t, "configured", "key", "[REDACTED:13]")
}

func TestNewRedactingEncoder_RejectsBadPattern(t *testing.T) {
	_, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), RedactionConfig{
		Enabled:  true,
		Patterns: []string{"("},
	})
	assert.Error(t, err)
}

func TestSampling_NeverDropsErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Initial = 1
	cfg.Sampling.Thereafter = 0
	logger, buf := newBufferLogger(t, cfg)

	for range 5 {
		logger.Info("repeated")
		logger.Error("failure")
	}

	var infos, errs int
	for _, line := range decodeLines(t, buf) {
		switch line["msg"] {
		case "repeated":
			infos++
		case "failure":
			errs++
		}
	}
	assert.Equal(t, 1, infos)
	assert.Equal(t, 5, errs)
}

func TestContextFields(t *testing.T) {
	ctx := WithConversationID(context.Background(), "conv-1")
	ctx = WithRequestID(ctx, "req_42")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	tl := NewTestLogger()
	With(ctx, tl.Logger).Info("handled")

	tl.AssertField(t, "handled", "conversation.id", "conv-1")
	tl.AssertField(t, "handled", "request.id", "req_42")
	tl.AssertField(t, "handled", "trace_id", traceID.String())
}

func TestWithConversationID(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, ctx, WithConversationID(ctx, ""))
	assert.Equal(t, ctx, WithConversationID(ctx, "\xff"))

	long := strings.Repeat("é", 100)
	got := ConversationIDFromContext(WithConversationID(ctx, long))
	assert.LessOrEqual(t, len(got), maxIDLen)
	assert.True(t, strings.HasPrefix(long, got))
}

func TestWithRequestID_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(WithRequestID(ctx, "bad id!")))
	assert.Empty(t, RequestIDFromContext(WithRequestID(ctx, strings.Repeat("a", maxIDLen+1))))
	assert.Equal(t, "ok-1", RequestIDFromContext(WithRequestID(ctx, "ok-1")))
}

func TestWith_NoFieldsReturnsSameLogger(t *testing.T) {
	logger := zap.NewNop()
	assert.Same(t, logger, With(context.Background(), logger))
}

func TestTestLogger_Assertions(t *testing.T) {
	tl := NewTestLogger()
	tl.Warn("cache read failed", zap.String("key", "insight:actions:c:2026-10-16"))

	tl.AssertLogged(t, zapcore.WarnLevel, "cache read")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "cache read")
	assert.Len(t, tl.All(), 1)

	tl.Reset()
	assert.Empty(t, tl.All())
}
