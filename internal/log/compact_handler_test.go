package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type reference string

func (r reference) String() string { return "Calc!" + string(r) }

// TestCompactHandler_Compact tests folding and truncation of strings.
func TestCompactHandler_Compact(t *testing.T) {
	t.Parallel()

	h := NewCompactHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), 10)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "short value unchanged", input: "=A1*2", want: "=A1*2"},
		{name: "exact length unchanged", input: "0123456789", want: "0123456789"},
		{name: "long value truncated", input: "=SUM(A1:A100)+B1", want: "=SUM(A1:A1" + Ellipsis + " (16 chars)"},
		{name: "newlines folded", input: "=IF(A1,\n  1,\n  2)", want: "=IF(A1, 1," + Ellipsis + " (13 chars)"},
		{name: "runes counted, not bytes", input: "äöüäöüäöüä", want: "äöüäöüäöüä"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := h.compact(tt.input); got != tt.want {
				t.Errorf("compact(%q) = %q, expected %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestCompactHandler_Attrs tests that every attribute kind is compacted.
func TestCompactHandler_Attrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(slog.NewJSONHandler(&buf, nil), 8))

	logger.Info("evaluated",
		"formula", "=A1+B1+C1+D1",
		"error", errors.New("division by zero in Calc!C9"),
		"cell", reference("B2"),
		"count", 42,
		slog.Group("dep", "formula", "=VERY_LONG_NAME()"),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
	}
	if got := rec["formula"]; got != "=A1+B1+C"+Ellipsis+" (12 chars)" {
		t.Errorf("formula = %v", got)
	}
	if got, _ := rec["error"].(string); !strings.HasPrefix(got, "division"+Ellipsis) {
		t.Errorf("error = %v", rec["error"])
	}
	if got := rec["cell"]; got != "Calc!B2" {
		t.Errorf("cell = %v, expected the Stringer output", got)
	}
	if got := rec["count"]; got != float64(42) {
		t.Errorf("count = %v", got)
	}
	group, _ := rec["dep"].(map[string]any)
	if got, _ := group["formula"].(string); !strings.Contains(got, Ellipsis) {
		t.Errorf("grouped formula = %v, expected truncation", group["formula"])
	}
}

// TestCompactHandler_WithAttrsAndGroup tests derived handlers.
func TestCompactHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(slog.NewTextHandler(&buf, nil), 5))

	logger.With("template", "quotes/2026/q1.xlsx").WithGroup("cell").Info("done", "ref", "Calc!A1")

	out := buf.String()
	if !strings.Contains(out, "template=\"quote"+Ellipsis) {
		t.Errorf("expected truncated template attribute, got %q", out)
	}
	if !strings.Contains(out, "cell.ref=") {
		t.Errorf("expected grouped attribute, got %q", out)
	}
}

// TestNewLogger_Levels tests the verbose flag.
func TestNewLogger_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		verbose    bool
		level      slog.Level
		shouldShow bool
	}{
		{name: "debug shown in verbose mode", verbose: true, level: slog.LevelDebug, shouldShow: true},
		{name: "debug hidden in quiet mode", verbose: false, level: slog.LevelDebug, shouldShow: false},
		{name: "info hidden in quiet mode", verbose: false, level: slog.LevelInfo, shouldShow: false},
		{name: "warn shown in quiet mode", verbose: false, level: slog.LevelWarn, shouldShow: true},
		{name: "error shown in quiet mode", verbose: false, level: slog.LevelError, shouldShow: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for _, newLogger := range []func(*bytes.Buffer, bool) *slog.Logger{
				func(b *bytes.Buffer, v bool) *slog.Logger { return NewLogger(b, v) },
				func(b *bytes.Buffer, v bool) *slog.Logger { return NewJSONLogger(b, v) },
			} {
				var buf bytes.Buffer
				newLogger(&buf, tt.verbose).Log(t.Context(), tt.level, "test message")
				if got := strings.Contains(buf.String(), "test message"); got != tt.shouldShow {
					t.Errorf("message shown = %v, expected %v", got, tt.shouldShow)
				}
			}
		})
	}
}

// TestNewCompactHandler_Defaults tests the nil handler and length defaults.
func TestNewCompactHandler_Defaults(t *testing.T) {
	t.Parallel()

	h := NewCompactHandler(nil, 0)
	if h.handler == nil {
		t.Error("expected the default handler")
	}
	if h.maxLen != DefaultMaxValueLen {
		t.Errorf("maxLen = %d, expected %d", h.maxLen, DefaultMaxValueLen)
	}
}
