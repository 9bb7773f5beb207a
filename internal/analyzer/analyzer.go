// Package analyzer turns the raw cell grid of a document into a classified
// TemplateStructure together with its dependency graph and execution order.
//
// Analyze is a pure function of the document and the classifier
// configuration: analysing an unchanged document twice yields structurally
// identical results. Problems with the shape of the document (empty sheets,
// malformed coordinates, references outside the grid) never make Analyze
// fail; they are recorded as diagnostics for the validator.
package analyzer

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/formulagraph/internal/classifier"
	"github.com/nao1215/formulagraph/internal/graph"
	"github.com/nao1215/formulagraph/internal/model"
	"github.com/nao1215/formulagraph/internal/reference"
)

var (
	// ErrNilDocument is returned when Analyze is called without a document.
	ErrNilDocument = errors.New("document is nil")

	// ErrInvalidConfig is returned when the classifier configuration is unusable.
	ErrInvalidConfig = errors.New("invalid classifier configuration")
)

// Analysis is the result of analysing one document version.
//
// An Analysis is immutable once returned and may be shared between
// goroutines; recalculation builds its own value overlay on top of Cells.
type Analysis struct {
	// Identity is the template identity of the analysed document.
	Identity string

	// Version is the document version the analysis was built from.
	Version string

	// Structure is the classified template.
	Structure *model.TemplateStructure

	// Graph is the dependency graph over formula cells.
	Graph *graph.DependencyGraph

	// Order is the execution order of acyclic formula cells.
	Order []model.CellReference

	// Cycles lists every detected cycle.
	Cycles []model.Cycle

	// Cells is the literal value of every cell in the grid.
	Cells map[model.CellReference]model.Literal

	// Roles is the role of every cell in the grid.
	Roles map[model.CellReference]model.CellRole

	// Diagnostics holds structural diagnostics found while analysing.
	Diagnostics []model.Diagnostic

	extractor *reference.Extractor
	truncated map[model.CellReference]bool
	built     bool
}

// Built reports whether the analysis was produced by Analyze. Hand-made or
// zero Analysis values are rejected by the recalculation engine.
func (a *Analysis) Built() bool {
	return a != nil && a.built
}

// Value returns the literal stored at ref, or Empty when ref lies outside
// the known grid.
func (a *Analysis) Value(ref model.CellReference) model.Literal {
	if v, ok := a.Cells[ref]; ok {
		return v
	}
	return model.Empty{}
}

// Extractor returns the reference extractor the dependency graph was built
// with. Evaluators resolve formula operands with it so that sheet spelling,
// defined names and the range limit match the graph.
func (a *Analysis) Extractor() *reference.Extractor {
	return a.extractor
}

// Truncated reports whether the formula at ref reads an area larger than
// the range limit. Its dependencies are incomplete, so it cannot be
// recalculated.
func (a *Analysis) Truncated(ref model.CellReference) bool {
	return a.truncated[ref]
}

// Role returns the role of ref. Cells outside the grid are plain.
func (a *Analysis) Role(ref model.CellReference) model.CellRole {
	return a.Roles[ref]
}

// FillReport copies the analysis results into r.
func (a *Analysis) FillReport(r *model.TemplateReport) {
	r.Identity = a.Identity
	r.Version = a.Version
	r.Structure = a.Structure
	r.Order = append([]model.CellReference{}, a.Order...)
	r.Cycles = a.Cycles
	r.Dependencies = a.Graph.DependencyMap()
	r.Diagnostics = append([]model.Diagnostic(nil), a.Diagnostics...)
}

// Option configures Analyze.
type Option func(*options)

type options struct {
	rangeLimit int
	logger     *slog.Logger
}

// WithRangeLimit sets the largest area expanded cell by cell when
// extracting references. See reference.WithRangeLimit.
func WithRangeLimit(limit int) Option {
	return func(o *options) {
		o.rangeLimit = limit
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Analyze classifies every cell of doc, extracts formula dependencies and
// builds the dependency graph.
//
// Analyze only returns an error for caller mistakes: a nil document or a
// classifier configuration whose name patterns do not compile.
func Analyze(doc *model.Document, cfg classifier.Config, opts ...Option) (*Analysis, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}

	o := &options{rangeLimit: reference.DefaultRangeLimit, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	cls, err := classifier.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	sheets := model.NewSheetIndex(doc.SheetNames()...)
	extractor := reference.NewExtractor(
		reference.WithNamedRanges(doc.NamedRanges),
		reference.WithSheetResolver(sheets),
		reference.WithRangeLimit(o.rangeLimit),
	)

	a := &Analysis{
		Identity:  doc.Identity,
		Version:   doc.Version,
		Structure: model.NewTemplateStructure(),
		Cells:     make(map[model.CellReference]model.Literal),
		Roles:     make(map[model.CellReference]model.CellRole),
		extractor: extractor,
		truncated: make(map[model.CellReference]bool),
	}

	defaultSheet := ""
	if len(doc.Sheets) > 0 {
		defaultSheet = doc.Sheets[0].Name
	}
	namedCells := make(map[string][]model.CellReference, len(doc.NamedRanges))
	for name, text := range doc.NamedRanges {
		a.Structure.NamedRanges[name] = text
		for _, area := range extractor.ResolveAreas(name, defaultSheet) {
			namedCells[name] = append(namedCells[name], area.Cells(o.rangeLimit)...)
		}
	}
	cls = cls.WithNamedRanges(namedCells)

	for i := range doc.Sheets {
		a.classifySheet(&doc.Sheets[i], sheets, cls)
	}

	a.Graph = graph.Build(a.Structure.Formulas, graph.WithExtractor(extractor))
	a.Order = a.Graph.Order()
	a.Cycles = a.Graph.Cycles()
	a.reportUnresolved()
	a.reportTruncated()
	a.built = true

	o.logger.Debug("analyzed template",
		"identity", a.Identity,
		"version", a.Version,
		"sheets", len(doc.Sheets),
		"inputs", len(a.Structure.InputFields),
		"outputs", len(a.Structure.OutputFields),
		"formulas", len(a.Structure.Formulas),
		"edges", a.Graph.EdgeCount(),
		"cycles", len(a.Cycles),
	)
	return a, nil
}

// classifySheet classifies the cells of one sheet in row-major order.
func (a *Analysis) classifySheet(sheet *model.Sheet, sheets *model.SheetIndex, cls *classifier.Classifier) {
	ss := model.NewSheetStructure()
	a.Structure.Sheets[sheet.Name] = ss

	if len(sheet.Cells) == 0 {
		d := model.NewDiagnostic(model.CodeEmptySheet, fmt.Sprintf("sheet %q has no cells", sheet.Name))
		d.Sheet = sheet.Name
		a.Diagnostics = append(a.Diagnostics, d)
		return
	}

	// Cells belong to the canonical spelling of their sheet, the same one
	// references in formulas are resolved to.
	canonical := sheets.Canonical(sheet.Name)

	coords, invalid := sheet.OrderedCoords()
	for _, coord := range invalid {
		d := model.NewDiagnostic(model.CodeInvalidCoordinate,
			fmt.Sprintf("sheet %q has a cell with malformed coordinate %q", sheet.Name, coord))
		d.Sheet = sheet.Name
		a.Diagnostics = append(a.Diagnostics, d)
	}

	for _, coord := range coords {
		raw := sheet.Cells[coord]
		cell := model.Cell{
			Reference: model.NewCellReference(canonical, coord),
			Value:     model.OrEmpty(raw.Value),
			Formula:   NormalizeFormula(raw.Formula),
			Marker:    strings.TrimSpace(raw.Marker),
		}

		a.Cells[cell.Reference] = cell.Value
		role := cls.Classify(cell)
		a.Roles[cell.Reference] = role

		switch role {
		case model.RoleInput:
			ss.InputCells = append(ss.InputCells, cell)
			a.Structure.InputFields[cell.Reference] = cell
		case model.RoleOutput:
			ss.OutputCells = append(ss.OutputCells, cell)
			a.Structure.OutputFields[cell.Reference] = cell
		case model.RoleFormula:
			ss.FormulaCells = append(ss.FormulaCells, cell)
		case model.RolePlain:
		}

		if cell.HasFormula() {
			a.Structure.Formulas[cell.Reference] = cell.Formula
		}
	}
}

// reportUnresolved records formulas that read cells outside the grid.
// Such cells are read as empty during recalculation.
func (a *Analysis) reportUnresolved() {
	for _, ref := range a.Graph.Nodes() {
		var missing []model.CellReference
		for _, dep := range a.Graph.Dependencies(ref) {
			if _, ok := a.Cells[dep]; !ok {
				missing = append(missing, dep)
			}
		}
		if len(missing) == 0 {
			continue
		}
		a.Diagnostics = append(a.Diagnostics, model.NewDiagnostic(
			model.CodeUnresolvedReference,
			fmt.Sprintf("%s reads %s outside the known grid", ref, model.JoinReferences(missing)),
			missing...,
		))
	}
}

// reportTruncated records formulas that read areas above the range limit.
func (a *Analysis) reportTruncated() {
	for _, ref := range a.Graph.Nodes() {
		formula, _ := a.Graph.Formula(ref)
		areas := a.extractor.Truncated(formula, ref.Sheet)
		if len(areas) == 0 {
			continue
		}
		a.truncated[ref] = true

		names := make([]string, 0, len(areas))
		for _, area := range areas {
			names = append(names, area.String())
		}
		d := model.NewDiagnostic(
			model.CodeTruncatedRange,
			fmt.Sprintf("%s reads %s, more than %d cells", ref, strings.Join(names, ", "), a.extractor.Limit()),
			ref,
		)
		d.Sheet = ref.Sheet
		a.Diagnostics = append(a.Diagnostics, d)
	}
}

// NormalizeFormula trims formula text and ensures it starts with "=".
// Blank text stays blank.
func NormalizeFormula(formula string) string {
	formula = strings.TrimSpace(formula)
	if formula == "" || strings.HasPrefix(formula, "=") {
		return formula
	}
	return "=" + formula
}
