package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	scenarioIDKey
	traineeIDKey
)

// correlationAttrs lists the context keys copied into log records, in output order.
var correlationAttrs = []struct {
	key  ctxKey
	name string
}{
	{sessionIDKey, "session_id"},
	{scenarioIDKey, "scenario_id"},
	{traineeIDKey, "trainee_id"},
}

// WithSessionID returns a context with the drill session ID set.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// WithScenarioID returns a context with the scenario ID set.
func WithScenarioID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scenarioIDKey, id)
}

// WithTraineeID returns a context with the trainee ID set.
func WithTraineeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traineeIDKey, id)
}

// SessionID extracts the session ID from the context, or "" if absent.
func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// ScenarioID extracts the scenario ID from the context, or "" if absent.
func ScenarioID(ctx context.Context) string {
	v, _ := ctx.Value(scenarioIDKey).(string)
	return v
}

// TraineeID extracts the trainee ID from the context, or "" if absent.
func TraineeID(ctx context.Context) string {
	v, _ := ctx.Value(traineeIDKey).(string)
	return v
}

// WithIDs sets all three correlation IDs on the context at once.
func WithIDs(ctx context.Context, sessionID, scenarioID, traineeID string) context.Context {
	ctx = WithSessionID(ctx, sessionID)
	ctx = WithScenarioID(ctx, scenarioID)
	ctx = WithTraineeID(ctx, traineeID)
	return ctx
}

func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, a := range correlationAttrs {
		if v, _ := ctx.Value(a.key).(string); v != "" {
			attrs = append(attrs, slog.String(a.name, v))
		}
	}
	return attrs
}

// LogWith returns a logger enriched with correlation IDs from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	for _, attr := range contextAttrs(ctx) {
		logger = logger.With(attr)
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, injecting correlation IDs from
// the context into every record. Use with slog.New(NewCorrelationHandler(inner))
// so callers can log with logger.InfoContext(ctx, ...).
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(contextAttrs(ctx)...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a correlation-aware logger writing text or JSON to w.
func NewLogger(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var inner slog.Handler
	if strings.EqualFold(format, "json") {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewCorrelationHandler(inner))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
