package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerAddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx := ContextWithTick(context.Background(), 7)
	ctx = ContextWithRequestID(ctx, "req-1")
	log.With(String("place", "ring")).Warn(ctx, "transform rejected",
		Float64("curviline", 2.5),
		Bool("strict", false),
		Err(errors.New("invalid path")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"msg":        "transform rejected",
		"level":      "WARN",
		"place":      "ring",
		"curviline":  2.5,
		"strict":     false,
		"error":      "invalid path",
		"tick":       float64(7),
		"request_id": "req-1",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Fatalf("%s = %v, want %v", k, rec[k], v)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	log.Error(context.Background(), "shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestEnsureRequestIDIsStable(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if id == "" {
		t.Fatalf("empty request id")
	}
	if _, again := EnsureRequestID(ctx); again != id {
		t.Fatalf("request id changed: %s != %s", again, id)
	}
}

func TestLoggerFromContextFallback(t *testing.T) {
	if LoggerFromContext(context.Background(), nil) == nil {
		t.Fatalf("nil logger without fallback")
	}
	l := Noop()
	ctx := ContextWithLogger(context.Background(), l)
	if LoggerFromContext(ctx, nil) != l {
		t.Fatalf("stored logger not returned")
	}
	if _, ok := TickFromContext(ctx); ok {
		t.Fatalf("tick present in a bare context")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"":        "INFO",
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"verbose": "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
