package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/formulagraph/internal/model"
)

// ruleWidth is the width of the section rules.
const ruleWidth = 70

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so that the output can be piped to files or other tools.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose adds the execution order, formulas of intermediate cells
	// and informational diagnostics.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the template analysis in human-readable format.
func (w *SimpleWriter) Write(report *model.TemplateReport) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "FORMULAGRAPH REPORT")
	w.writeHeader(&sb, report)

	if report.Structure != nil {
		w.writeSummary(&sb, report)
		w.writeInputs(&sb, report.Structure)
		w.writeOutputs(&sb, report.Structure)
		if w.verbose {
			w.writeOrder(&sb, report)
		}
		w.writeCycles(&sb, report)
		w.writeDiagnostics(&sb, report)
	}

	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteRecalc outputs a recalculation run in human-readable format.
func (w *SimpleWriter) WriteRecalc(report *model.RecalcReport) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "FORMULAGRAPH RECALCULATION")

	fmt.Fprintf(&sb, "Template:       %s\n", report.Identity)
	fmt.Fprintf(&sb, "Version:        %s\n", shortVersion(report.Version))
	fmt.Fprintf(&sb, "Run ID:         %s\n", report.RunID)
	fmt.Fprintf(&sb, "Date:           %s\n\n", report.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	inputs := make([]model.CellReference, 0, len(report.Inputs))
	for ref := range report.Inputs {
		inputs = append(inputs, ref)
	}
	model.SortReferences(inputs)

	w.writeSection(&sb, "INPUTS")
	if len(inputs) == 0 {
		sb.WriteString("  No inputs supplied\n")
	}
	for _, ref := range inputs {
		fmt.Fprintf(&sb, "  %s = %s\n", ref, displayValue(report.Inputs[ref]))
	}
	sb.WriteString("\n")

	if result := report.Result; result != nil {
		outputs := make([]model.CellReference, 0, len(result.Outputs))
		for ref := range result.Outputs {
			outputs = append(outputs, ref)
		}
		model.SortReferences(outputs)

		w.writeSection(&sb, "OUTPUTS")
		if len(outputs) == 0 {
			sb.WriteString("  No output fields\n")
		}
		for _, ref := range outputs {
			out := result.Outputs[ref]
			fmt.Fprintf(&sb, "  %s = %s [%s]\n", ref, displayValue(out.Value), out.Status)
		}
		sb.WriteString("\n")

		if len(result.IgnoredInputs) > 0 || w.showEmpty {
			w.writeSection(&sb, "IGNORED INPUTS")
			if len(result.IgnoredInputs) == 0 {
				sb.WriteString("  None\n")
			}
			for _, ref := range result.IgnoredInputs {
				fmt.Fprintf(&sb, "  [-] %s is not an input field\n", ref)
			}
			sb.WriteString("\n")
		}

		counts := result.CountByStatus()
		fmt.Fprintf(&sb, "  evaluated: %d  not evaluable: %d  upstream cycle: %d\n\n",
			counts[model.StatusEvaluated], counts[model.StatusNotEvaluable], counts[model.StatusUpstreamCycle])
	}

	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", (ruleWidth-len(title))/2))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// writeHeader writes the template identification block.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.TemplateReport) {
	fmt.Fprintf(sb, "Template:       %s\n", report.Identity)
	fmt.Fprintf(sb, "Version:        %s\n", shortVersion(report.Version))
	fmt.Fprintf(sb, "Analyzed:       %s\n", report.AnalyzedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Status:         %s\n\n", statusText(report))
}

// writeSummary writes the field and formula counts.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.TemplateReport) {
	inputs, outputs, formulas := report.RoleCounts()

	w.writeSection(sb, "SUMMARY")
	fmt.Fprintf(sb, "  INPUT FIELDS:   %d\n", inputs)
	fmt.Fprintf(sb, "  OUTPUT FIELDS:  %d\n", outputs)
	fmt.Fprintf(sb, "  FORMULAS:       %d\n", formulas)
	fmt.Fprintf(sb, "  ORDERED:        %d\n", len(report.Order))
	fmt.Fprintf(sb, "  CYCLES:         %d\n", len(report.Cycles))
	if v := report.Validation; v != nil {
		fmt.Fprintf(sb, "  ERRORS:         %d\n", v.ErrorCount())
		fmt.Fprintf(sb, "  WARNINGS:       %d\n", v.WarningCount())
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeInputs(sb *strings.Builder, s *model.TemplateStructure) {
	refs := s.InputReferences()
	if len(refs) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "INPUT FIELDS")
	if len(refs) == 0 {
		sb.WriteString("  No input fields\n")
	}
	for _, ref := range refs {
		fmt.Fprintf(sb, "  [>] %s = %s\n", ref, displayValue(s.InputFields[ref].Value))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeOutputs(sb *strings.Builder, s *model.TemplateStructure) {
	refs := s.OutputReferences()
	if len(refs) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "OUTPUT FIELDS")
	if len(refs) == 0 {
		sb.WriteString("  No output fields\n")
	}
	for _, ref := range refs {
		cell := s.OutputFields[ref]
		fmt.Fprintf(sb, "  [<] %s = %s\n", ref, displayValue(cell.Value))
		if cell.Formula != "" {
			fmt.Fprintf(sb, "      Formula: %s\n", truncateString(cell.Formula, 60))
		}
	}
	sb.WriteString("\n")
}

// writeOrder writes the execution order with each cell's formula.
func (w *SimpleWriter) writeOrder(sb *strings.Builder, report *model.TemplateReport) {
	w.writeSection(sb, "EXECUTION ORDER")
	if len(report.Order) == 0 {
		sb.WriteString("  No formula cells\n")
	}
	for i, ref := range report.Order {
		fmt.Fprintf(sb, "  %3d. %s %s\n", i+1, ref, truncateString(report.Structure.Formulas[ref], 50))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCycles(sb *strings.Builder, report *model.TemplateReport) {
	if len(report.Cycles) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "DEPENDENCY CYCLES")
	if len(report.Cycles) == 0 {
		sb.WriteString("  No cycles\n")
	}
	for _, c := range report.Cycles {
		fmt.Fprintf(sb, "  [!!] %s\n", c)
	}
	sb.WriteString("\n")
}

// writeDiagnostics writes validation errors and warnings, plus
// informational diagnostics in verbose mode.
func (w *SimpleWriter) writeDiagnostics(sb *strings.Builder, report *model.TemplateReport) {
	var errs, warnings, infos []model.Diagnostic
	if v := report.Validation; v != nil {
		errs, warnings = v.Errors, v.Warnings
	}
	if w.verbose {
		for _, d := range report.Diagnostics {
			if d.Severity == model.SeverityInfo {
				infos = append(infos, d)
			}
		}
	}
	if len(errs)+len(warnings)+len(infos) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "DIAGNOSTICS")
	groups := []struct {
		indicator string
		list      []model.Diagnostic
	}{
		{"!!", errs},
		{"!", warnings},
		{"i", infos},
	}
	for _, g := range groups {
		for _, d := range g.list {
			fmt.Fprintf(sb, "  [%s] %s\n", g.indicator, d)
			if w.verbose {
				if info := model.GetDiagnosticInfo(d.Code); info.Recommendation != "" {
					fmt.Fprintf(sb, "       Recommendation: %s\n", info.Recommendation)
				}
			}
		}
	}
	if len(errs)+len(warnings)+len(infos) == 0 {
		sb.WriteString("  No diagnostics\n")
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by formulagraph\n")
	sb.WriteString("https://github.com/nao1215/formulagraph\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
