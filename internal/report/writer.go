package report

import (
	"io"
	"unicode/utf8"

	"github.com/nao1215/formulagraph/internal/model"
)

// Writer defines the interface for report output.
// Implementations write analysis and recalculation results in various formats.
type Writer interface {
	// Write outputs a template analysis.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.TemplateReport) (int, error)

	// WriteRecalc outputs a recalculation run.
	WriteRecalc(report *model.RecalcReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because each destination may render a different
// format from the same report.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.TemplateReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteRecalc outputs the recalculation run to all configured Writers.
func (m *MultiWriter) WriteRecalc(report *model.RecalcReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteRecalc(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText returns the one-line verdict of a template report.
func statusText(report *model.TemplateReport) string {
	switch {
	case report.Failed():
		return "ERROR - " + report.ErrorMessage
	case report.Validation == nil:
		return "Not validated"
	case report.Validation.Valid:
		return "Valid"
	default:
		return "Invalid"
	}
}

// shortVersion returns the first 12 characters of a document fingerprint.
func shortVersion(version string) string {
	if len(version) > 12 {
		return version[:12]
	}
	return version
}

// displayValue renders a literal, showing empty cells as "-".
func displayValue(v model.Literal) string {
	if model.IsEmpty(v) {
		return "-"
	}
	if t, ok := v.(model.Text); ok {
		return `"` + string(t) + `"`
	}
	return v.String()
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
