package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "", SessionID(ctx))
	assert.Equal(t, "", ScenarioID(ctx))
	assert.Equal(t, "", TraineeID(ctx))

	ctx = WithSessionID(ctx, "sess-123")
	ctx = WithScenarioID(ctx, "ransomware")
	ctx = WithTraineeID(ctx, "trainee-42")

	assert.Equal(t, "sess-123", SessionID(ctx))
	assert.Equal(t, "ransomware", ScenarioID(ctx))
	assert.Equal(t, "trainee-42", TraineeID(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithIDs(context.Background(), "sess-abc", "flood", "trainee-7")
	LogWith(ctx, logger).Info("decision accepted")

	output := buf.String()
	assert.Contains(t, output, "session_id=sess-abc")
	assert.Contains(t, output, "scenario_id=flood")
	assert.Contains(t, output, "trainee_id=trainee-7")
	assert.Contains(t, output, "decision accepted")
}

func TestLogWithMissingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithSessionID(context.Background(), "sess-only")
	LogWith(ctx, logger).Info("partial context")

	output := buf.String()
	assert.Contains(t, output, "session_id=sess-only")
	assert.NotContains(t, output, "scenario_id")
	assert.NotContains(t, output, "trainee_id")
}

func TestLogWithEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogWith(context.Background(), logger).Info("no context")

	output := buf.String()
	assert.NotContains(t, output, "session_id")
	assert.Contains(t, output, "no context")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithIDs(context.Background(), "sess-auto", "quake", "trainee-auto")
	logger.InfoContext(ctx, "auto inject")

	output := buf.String()
	assert.Contains(t, output, `"session_id":"sess-auto"`)
	assert.Contains(t, output, `"scenario_id":"quake"`)
	assert.Contains(t, output, `"trainee_id":"trainee-auto"`)
}

func TestCorrelationHandlerEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "bare log")

	output := buf.String()
	assert.NotContains(t, output, "session_id")
	assert.Contains(t, output, "bare log")
}

func TestCorrelationHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewCorrelationHandler(slog.NewJSONHandler(&buf, nil))
	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("component", "branch_handler")}))

	logger.InfoContext(WithSessionID(context.Background(), "sess-attr"), "with attrs")

	output := buf.String()
	assert.Contains(t, output, `"session_id":"sess-attr"`)
	assert.Contains(t, output, `"component":"branch_handler"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "json", "warn")

	logger.InfoContext(context.Background(), "dropped")
	logger.WarnContext(WithSessionID(context.Background(), "s1"), "kept")

	output := buf.String()
	assert.NotContains(t, output, "dropped")
	assert.Contains(t, output, `"session_id":"s1"`)

	buf.Reset()
	NewLogger(&buf, "text", "info").Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
