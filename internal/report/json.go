package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/formulagraph/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json because every model type
// already carries JSON tags and literal-aware (un)marshalers, and the same
// encoding is what the database stores.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the template analysis in JSON format.
func (w *JSONWriter) Write(report *model.TemplateReport) (int, error) {
	return w.writeJSON(report)
}

// WriteRecalc outputs the recalculation run in JSON format.
func (w *JSONWriter) WriteRecalc(report *model.RecalcReport) (int, error) {
	return w.writeJSON(report)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONReport wraps a report with the version of the tool that produced it.
//
// Design decision: We wrap the report rather than adding a field to
// model.TemplateReport, because the tool version is an output concern and
// the stored reports should not depend on which binary wrote them.
type JSONReport struct {
	// Version is the formulagraph version that generated this report.
	Version string `json:"version"`

	// Report is the template analysis, if any.
	Report *model.TemplateReport `json:"report,omitempty"`

	// Recalc is the recalculation run, if any.
	Recalc *model.RecalcReport `json:"recalc,omitempty"`
}

// FullJSONWriter outputs reports with the metadata wrapper.
type FullJSONWriter struct {
	*JSONWriter

	// version is the formulagraph version string.
	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the template analysis wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.TemplateReport) (int, error) {
	return w.writeJSON(&JSONReport{Version: w.version, Report: report})
}

// WriteRecalc outputs the recalculation run wrapped with metadata.
func (w *FullJSONWriter) WriteRecalc(report *model.RecalcReport) (int, error) {
	return w.writeJSON(&JSONReport{Version: w.version, Recalc: report})
}
