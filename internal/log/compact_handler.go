package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// DefaultMaxValueLen is the longest string value logged unchanged, in runes.
const DefaultMaxValueLen = 160

// Ellipsis marks a shortened value.
const Ellipsis = "…"

// CompactHandler wraps an slog.Handler to keep log records short.
// String values are folded onto one line and cut to a maximum length;
// the original length is appended so that truncation is visible.
//
// Design decision: We use a handler wrapper rather than a custom logger
// because it works with any underlying handler (text, JSON) and every
// component keeps accepting a plain *slog.Logger.
type CompactHandler struct {
	// handler is the underlying slog handler that receives compacted records.
	handler slog.Handler

	// maxLen is the longest value passed through unchanged, in runes.
	maxLen int
}

// NewCompactHandler creates a CompactHandler wrapping handler.
// If handler is nil, slog.Default().Handler() is used. A maxLen of zero or
// less selects DefaultMaxValueLen.
func NewCompactHandler(handler slog.Handler, maxLen int) *CompactHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxValueLen
	}
	return &CompactHandler{handler: handler, maxLen: maxLen}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *CompactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle compacts the record's attributes and passes it to the underlying handler.
func (h *CompactHandler) Handle(ctx context.Context, r slog.Record) error {
	compacted := slog.NewRecord(r.Time, r.Level, h.compact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		compacted.AddAttrs(h.compactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, compacted)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	compacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		compacted[i] = h.compactAttr(a)
	}
	return &CompactHandler{handler: h.handler.WithAttrs(compacted), maxLen: h.maxLen}
}

// WithGroup returns a new handler with the given group name.
func (h *CompactHandler) WithGroup(name string) slog.Handler {
	return &CompactHandler{handler: h.handler.WithGroup(name), maxLen: h.maxLen}
}

// compactAttr compacts a single attribute, recursively handling groups.
func (h *CompactHandler) compactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		compacted := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			compacted[i] = h.compactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(compacted...)}
	case slog.KindString:
		return slog.String(a.Key, h.compact(v.String()))
	case slog.KindAny:
		// Errors and Stringers can be as long as any string.
		switch x := v.Any().(type) {
		case error:
			return slog.String(a.Key, h.compact(x.Error()))
		case fmt.Stringer:
			return slog.String(a.Key, h.compact(x.String()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// compact folds s onto one line and shortens it to maxLen runes.
func (h *CompactHandler) compact(s string) string {
	if strings.ContainsAny(s, "\r\n\t") {
		s = strings.Join(strings.Fields(s), " ")
	}
	n := utf8.RuneCountInString(s)
	if n <= h.maxLen {
		return s
	}
	cut := 0
	for i := range s {
		if cut == h.maxLen {
			return fmt.Sprintf("%s%s (%d chars)", s[:i], Ellipsis, n)
		}
		cut++
	}
	return s
}

// levelFor maps the verbose flag to a log level.
func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewLogger creates a text logger with compact values.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: levelFor(verbose),
	}
	return slog.New(NewCompactHandler(slog.NewTextHandler(w, opts), 0))
}

// NewJSONLogger creates a JSON logger with compact values.
// Use it when logs are collected by a machine rather than read in a terminal.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: levelFor(verbose),
	}
	return slog.New(NewCompactHandler(slog.NewJSONHandler(w, opts), 0))
}
