package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lk-keep-fighting/jsonpage/internal/config"
	"github.com/lk-keep-fighting/jsonpage/model"
)

func TestNewLogger_levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLogger(config.ObservabilityConfig{LogLevel: level})
		if err != nil {
			t.Errorf("NewLogger(%q): %v", level, err)
		}
		if logger == nil {
			t.Errorf("NewLogger(%q) returned nil", level)
		}
	}
}

func TestNewLogger_unknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.ObservabilityConfig{LogLevel: "chatty"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zap.DebugLevel) {
		t.Error("fallback level must be info, debug is enabled")
	}
	if !logger.Core().Enabled(zap.InfoLevel) {
		t.Error("info must be enabled")
	}
}

func TestLoggerFrom_fallback(t *testing.T) {
	fallback := zap.NewNop()
	if got := LoggerFrom(context.Background(), fallback); got != fallback {
		t.Error("empty context must return the fallback")
	}

	stored := zap.NewNop()
	ctx := WithLogger(context.Background(), stored)
	if got := LoggerFrom(ctx, fallback); got != stored {
		t.Error("stored logger must win over the fallback")
	}
}

func TestRequestLogger_enrichesFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx := model.WithRequestContext(context.Background(), &model.RequestContext{
		SubjectID:     "user-1",
		CorrelationID: "corr-9",
		TraceID:       "trace-3",
	})

	RequestLogger(ctx, logger).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["subject_id"] != "user-1" || fields["correlation_id"] != "corr-9" || fields["trace_id"] != "trace-3" {
		t.Errorf("fields = %v", fields)
	}
}

func TestRedactBody(t *testing.T) {
	body := map[string]any{
		"name":     "Amy",
		"password": "hunter2",
		"nested": map[string]any{
			"token": "abc",
			"note":  "ok",
		},
	}

	got := RedactBody(body, []string{"note"})

	if got["name"] != "Amy" {
		t.Errorf("name = %v", got["name"])
	}
	if got["password"] != "[REDACTED]" {
		t.Errorf("password = %v", got["password"])
	}
	nested := got["nested"].(map[string]any)
	if nested["token"] != "[REDACTED]" || nested["note"] != "[REDACTED]" {
		t.Errorf("nested = %v", nested)
	}
	// The input is untouched.
	if body["password"] != "hunter2" {
		t.Error("RedactBody mutated its input")
	}
}
