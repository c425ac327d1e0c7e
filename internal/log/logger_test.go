package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentApp, Output: &buf})

	logger.WithComponent(ComponentSync).Info("synced", FieldCount, 3)

	out := buf.String()
	if !strings.Contains(out, "component=sync") || !strings.Contains(out, "count=3") {
		t.Fatalf("unexpected output: %s", out)
	}
	if strings.Contains(out, "component=app") {
		t.Fatalf("component should be replaced, got: %s", out)
	}
}

func TestFromContextFallback(t *testing.T) {
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got component %q", got.Component())
	}
}

func TestNewContext(t *testing.T) {
	logger := New(Config{Component: ComponentHTTP, Output: &bytes.Buffer{}})
	ctx := NewContext(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Fatal("expected the attached logger")
	}
}

func TestAccessLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	access := NewAccessLogger(New(Config{Level: slog.LevelDebug, Output: &buf}), "/healthz")

	cases := []struct {
		target string
		status int
		level  string
	}{
		{"/api/accounts?limit=5", 200, "level=INFO"},
		{"/api/accounts?limit=5", 404, "level=WARN"},
		{"/api/budgets", 503, "level=ERROR"},
		{"/healthz", 200, "level=DEBUG"},
		{"/healthz", 500, "level=ERROR"},
	}
	for _, tc := range cases {
		buf.Reset()
		req := httptest.NewRequest("GET", tc.target, nil)
		access.Finished(context.Background(), req, tc.status, 12*time.Millisecond, "10.0.0.1")
		out := buf.String()
		if !strings.Contains(out, tc.level) {
			t.Errorf("%s %d: expected %s, got: %s", tc.target, tc.status, tc.level, out)
		}
		if !strings.Contains(out, "duration_ms=12") {
			t.Errorf("%s %d: missing duration: %s", tc.target, tc.status, out)
		}
	}
}
