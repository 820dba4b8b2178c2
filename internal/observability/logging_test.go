package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level, format string
		check         func(t *testing.T, out string)
	}{
		{"info", "json", func(t *testing.T, out string) {
			var entry map[string]any
			if err := json.Unmarshal([]byte(out), &entry); err != nil {
				t.Fatalf("not JSON: %q", out)
			}
			if entry["msg"] != "class created" || entry["class"] != "7" {
				t.Fatalf("entry = %v", entry)
			}
		}},
		{"info", "", func(t *testing.T, out string) {
			if !strings.HasPrefix(out, "{") {
				t.Fatalf("buffer output not JSON: %q", out)
			}
		}},
		{"debug", "pretty", func(t *testing.T, out string) {
			if !strings.Contains(out, "INF") || !strings.Contains(out, "class created class=7") {
				t.Fatalf("pretty output = %q", out)
			}
		}},
		{"error", "json", func(t *testing.T, out string) {
			if out != "" {
				t.Fatalf("info logged at error level: %q", out)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			SetupLogger(tt.level, tt.format, &buf).Info("class created", "class", "7")
			tt.check(t, buf.String())
		})
	}
}

func TestDefaultFormatNonTerminal(t *testing.T) {
	if got := DefaultFormat(&bytes.Buffer{}); got != "json" {
		t.Fatalf("DefaultFormat(buffer) = %q, want json", got)
	}
}

func TestTraceHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&TraceHandler{Handler: slog.NewJSONHandler(&buf, nil)}).With("component", "ledger")

	traceID, _ := trace.TraceIDFromHex("00000000000000000000000000000001")
	spanID, _ := trace.SpanIDFromHex("0000000000000001")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	logger.InfoContext(ctx, "dispatch")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["trace_id"] != traceID.String() || entry["span_id"] != spanID.String() || entry["component"] != "ledger" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestPrettyHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug enabled with default options")
	}
	logger := slog.New(h).With("component", "eventbus").WithGroup("bus")
	logger.Warn("subscriber dropped", "id", 3)

	out := buf.String()
	for _, want := range []string{"WRN", "subscriber dropped", "component=eventbus", "id=3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestColorLevel(t *testing.T) {
	for level, want := range map[slog.Level]string{
		slog.LevelDebug: "DBG",
		slog.LevelInfo:  "INF",
		slog.LevelWarn:  "WRN",
		slog.LevelError: "ERR",
	} {
		if got := colorLevel(level); !strings.Contains(got, want) {
			t.Errorf("colorLevel(%v) = %q, want %q", level, got, want)
		}
	}
}
