package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/flowchart"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/formulagraph/internal/model"
)

// DefaultMaxFlowchartEdges is the largest dependency graph drawn as a
// flowchart. Mermaid renders bigger graphs, but nobody can read them.
const DefaultMaxFlowchartEdges = 150

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation. It also builds the mermaid diagrams: a pie chart of cell
// roles and a flowchart of the formula dependencies.
type MarkdownWriter struct {
	baseWriter

	// maxEdges limits the size of the dependency flowchart.
	maxEdges int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMaxFlowchartEdges sets the largest dependency graph drawn as a
// flowchart. Zero disables the flowchart.
func WithMaxFlowchartEdges(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.maxEdges = n
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		maxEdges:   DefaultMaxFlowchartEdges,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the template analysis in Markdown format.
func (w *MarkdownWriter) Write(report *model.TemplateReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	if report.Structure != nil {
		w.writeSummary(md, report)
		w.writeFields(md, report.Structure)
		w.writeDependencies(md, report)
		w.writeDiagnostics(md, report)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteRecalc outputs the recalculation run in Markdown format.
func (w *MarkdownWriter) WriteRecalc(report *model.RecalcReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("formulagraph Recalculation")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Template", "`" + report.Identity + "`"},
			{"Version", "`" + shortVersion(report.Version) + "`"},
			{"Run ID", "`" + report.RunID + "`"},
			{"Date", report.CreatedAt.Format("2006-01-02 15:04:05 MST")},
		},
	})
	md.PlainText("")

	inputs := make([]model.CellReference, 0, len(report.Inputs))
	for ref := range report.Inputs {
		inputs = append(inputs, ref)
	}
	model.SortReferences(inputs)

	md.H2("Inputs")
	md.PlainText("")
	if len(inputs) == 0 {
		md.PlainText("No inputs supplied.")
	} else {
		rows := make([][]string, len(inputs))
		for i, ref := range inputs {
			rows[i] = []string{"`" + ref.String() + "`", displayValue(report.Inputs[ref])}
		}
		md.Table(markdown.TableSet{Header: []string{"Cell", "Value"}, Rows: rows})
	}
	md.PlainText("")

	if result := report.Result; result != nil {
		outputs := make([]model.CellReference, 0, len(result.Outputs))
		for ref := range result.Outputs {
			outputs = append(outputs, ref)
		}
		model.SortReferences(outputs)

		md.H2("Outputs")
		md.PlainText("")
		rows := make([][]string, len(outputs))
		for i, ref := range outputs {
			out := result.Outputs[ref]
			rows[i] = []string{"`" + ref.String() + "`", displayValue(out.Value), out.Status.String()}
		}
		md.Table(markdown.TableSet{Header: []string{"Cell", "Value", "Status"}, Rows: rows})
		md.PlainText("")

		counts := result.CountByStatus()
		switch {
		case counts[model.StatusUpstreamCycle] > 0:
			md.Cautionf("%d cell(s) are part of or downstream of a dependency cycle.", counts[model.StatusUpstreamCycle])
		case counts[model.StatusNotEvaluable] > 0:
			md.Warningf("%d cell(s) could not be evaluated.", counts[model.StatusNotEvaluable])
		default:
			md.Tip("Every formula cell was evaluated.")
		}
		md.PlainText("")

		if len(result.IgnoredInputs) > 0 {
			md.H2("Ignored Inputs")
			md.PlainText("")
			ignored := make([]string, len(result.IgnoredInputs))
			for i, ref := range result.IgnoredInputs {
				ignored[i] = "`" + ref.String() + "` is not an input field"
			}
			md.BulletList(ignored...)
			md.PlainText("")
		}
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with template information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.TemplateReport) {
	md.H1("formulagraph Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Template", "`" + report.Identity + "`"},
			{"Version", "`" + shortVersion(report.Version) + "`"},
			{"Analyzed", report.AnalyzedAt.Format("2006-01-02 15:04:05 MST")},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.TemplateReport) string {
	switch {
	case report.Failed():
		return "❌ Error - " + report.ErrorMessage
	case report.Validation == nil:
		return "⚪ Not validated"
	case report.Validation.Valid:
		return "✅ Valid"
	default:
		return "❌ Invalid"
	}
}

// writeSummary writes the counts, the role pie chart and the verdict alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.TemplateReport) {
	inputs, outputs, formulas := report.RoleCounts()

	md.H2("Summary")
	md.PlainText("")

	rows := [][]string{
		{"Input fields", strconv.Itoa(inputs)},
		{"Output fields", strconv.Itoa(outputs)},
		{"Formula cells", strconv.Itoa(formulas)},
		{"Ordered formulas", strconv.Itoa(len(report.Order))},
		{"Dependency cycles", strconv.Itoa(len(report.Cycles))},
	}
	if v := report.Validation; v != nil {
		rows = append(rows,
			[]string{"Errors", strconv.Itoa(v.ErrorCount())},
			[]string{"Warnings", strconv.Itoa(v.WarningCount())},
		)
	}
	md.Table(markdown.TableSet{Header: []string{"Metric", "Count"}, Rows: rows})
	md.PlainText("")

	if inputs+outputs+formulas > 0 {
		w.writePieChart(md, report.Structure)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of the cell roles.
// Formula outputs count as outputs only.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *model.TemplateStructure) {
	intermediate := 0
	for ref := range s.Formulas {
		if _, ok := s.OutputFields[ref]; !ok {
			intermediate++
		}
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Cell Roles"),
		piechart.WithShowData(true),
	)
	if n := len(s.InputFields); n > 0 {
		chart.LabelAndIntValue("Inputs", uint64(n))
	}
	if n := len(s.OutputFields); n > 0 {
		chart.LabelAndIntValue("Outputs", uint64(n))
	}
	if intermediate > 0 {
		chart.LabelAndIntValue("Intermediate formulas", uint64(intermediate))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert for the validation verdict.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.TemplateReport) {
	v := report.Validation
	switch {
	case v == nil:
		md.Note("The template was not validated.")
	case len(report.Cycles) > 0:
		md.Cautionf("%d dependency cycle(s) detected. Cells on a cycle cannot be recalculated.", len(report.Cycles))
	case v.ErrorCount() > 0:
		md.Cautionf("%d structural error(s) detected.", v.ErrorCount())
	case v.WarningCount() > 0:
		md.Warningf("The template is usable, but %d warning(s) need a look.", v.WarningCount())
	default:
		md.Tip("The template is valid.")
	}
	md.PlainText("")
}

// writeFields writes the input and output field tables.
func (w *MarkdownWriter) writeFields(md *markdown.Markdown, s *model.TemplateStructure) {
	md.H2("Input Fields")
	md.PlainText("")
	if refs := s.InputReferences(); len(refs) == 0 {
		md.PlainText("No input fields detected.")
	} else {
		rows := make([][]string, len(refs))
		for i, ref := range refs {
			rows[i] = []string{"`" + ref.String() + "`", truncateString(displayValue(s.InputFields[ref].Value), 40)}
		}
		md.Table(markdown.TableSet{Header: []string{"Cell", "Value"}, Rows: rows})
	}
	md.PlainText("")

	md.H2("Output Fields")
	md.PlainText("")
	if refs := s.OutputReferences(); len(refs) == 0 {
		md.PlainText("No output fields detected.")
	} else {
		rows := make([][]string, len(refs))
		for i, ref := range refs {
			cell := s.OutputFields[ref]
			formula := "-"
			if cell.Formula != "" {
				formula = "`" + truncateString(cell.Formula, 50) + "`"
			}
			rows[i] = []string{"`" + ref.String() + "`", formula, truncateString(displayValue(cell.Value), 30)}
		}
		md.Table(markdown.TableSet{Header: []string{"Cell", "Formula", "Stored value"}, Rows: rows})
	}
	md.PlainText("")
}

// writeDependencies writes the execution order and the dependency flowchart.
func (w *MarkdownWriter) writeDependencies(md *markdown.Markdown, report *model.TemplateReport) {
	md.H2("Dependencies")
	md.PlainText("")

	if len(report.Order) == 0 {
		md.PlainText("No acyclic formula cells.")
		md.PlainText("")
	} else {
		order := make([]string, len(report.Order))
		for i, ref := range report.Order {
			order[i] = "`" + ref.String() + "`"
		}
		md.Details("Execution order", strings.Join(order, " → "))
		md.PlainText("")
	}

	edges := 0
	for _, deps := range report.Dependencies {
		edges += len(deps)
	}
	switch {
	case edges == 0 || w.maxEdges == 0:
	case edges > w.maxEdges:
		md.Notef("The dependency graph has %d edges; the flowchart is drawn only up to %d.", edges, w.maxEdges)
		md.PlainText("")
	default:
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, dependencyFlowchart(report))
		md.PlainText("")
	}

	if len(report.Cycles) > 0 {
		md.H3("Cycles")
		md.PlainText("")
		cycles := make([]string, len(report.Cycles))
		for i, c := range report.Cycles {
			cycles[i] = "`" + c.String() + "`"
		}
		md.BulletList(cycles...)
		md.PlainText("")
	}
}

// dependencyFlowchart draws every formula cell and the cells it reads.
// Inputs are stadium nodes, outputs subroutine nodes, and edges between
// two members of the same cycle are thick.
func dependencyFlowchart(report *model.TemplateReport) string {
	s := report.Structure
	fc := flowchart.NewFlowchart(io.Discard, flowchart.WithOrientalLeftToRight())

	// Mermaid node names must be identifiers; cell references are not.
	ids := map[model.CellReference]string{}
	node := func(ref model.CellReference) string {
		if id, ok := ids[ref]; ok {
			return id
		}
		id := "c" + strconv.Itoa(len(ids))
		ids[ref] = id

		label := strings.ReplaceAll(ref.String(), `"`, "'")
		switch {
		case hasRef(s.InputFields, ref):
			fc.StadiumNode(id, label)
		case hasRef(s.OutputFields, ref):
			fc.SubroutineNode(id, label)
		default:
			fc.NodeWithText(id, label)
		}
		return id
	}

	cycleOf := map[model.CellReference]int{}
	for i, c := range report.Cycles {
		for _, ref := range c {
			cycleOf[ref] = i + 1
		}
	}

	formulas := s.FormulaReferences()
	for _, ref := range formulas {
		node(ref)
	}
	for _, ref := range formulas {
		deps := report.Dependencies[ref]
		for _, dep := range deps {
			from, to := node(dep), ids[ref]
			if c := cycleOf[ref]; c > 0 && cycleOf[dep] == c {
				fc.ThickLink(from, to)
			} else {
				fc.LinkWithArrowHead(from, to)
			}
		}
	}
	return fc.String()
}

func hasRef(m map[model.CellReference]model.Cell, ref model.CellReference) bool {
	_, ok := m[ref]
	return ok
}

// writeDiagnostics writes the validation diagnostics as a table, with the
// impact of each code in a details block.
func (w *MarkdownWriter) writeDiagnostics(md *markdown.Markdown, report *model.TemplateReport) {
	md.H2("Diagnostics")
	md.PlainText("")

	var all []model.Diagnostic
	if v := report.Validation; v != nil {
		all = append(all, v.Errors...)
		all = append(all, v.Warnings...)
	}
	for _, d := range report.Diagnostics {
		if d.Severity == model.SeverityInfo {
			all = append(all, d)
		}
	}
	if len(all) == 0 {
		md.PlainText("No diagnostics.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(all))
	seen := map[string]bool{}
	var codes []string
	for i, d := range all {
		cells := "-"
		if len(d.Cells) > 0 {
			cells = truncateString(model.JoinReferences(d.Cells), 40)
		}
		rows[i] = []string{d.Severity.String(), "`" + d.Code + "`", truncateString(d.Message, 60), cells}
		if !seen[d.Code] {
			seen[d.Code] = true
			codes = append(codes, d.Code)
		}
	}
	md.Table(markdown.TableSet{Header: []string{"Severity", "Code", "Message", "Cells"}, Rows: rows})
	md.PlainText("")

	for _, code := range codes {
		info := model.GetDiagnosticInfo(code)
		md.Details(code, fmt.Sprintf("%s %s", info.Impact, info.Recommendation))
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [formulagraph](https://github.com/nao1215/formulagraph)*")
}
