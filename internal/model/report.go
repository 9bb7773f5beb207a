package model

import (
	"time"
)

// Cycle is one dependency cycle as a path of cells. The path starts at its
// lexicographically smallest member and returns to it implicitly, so
// [A1, B1] stands for A1 -> B1 -> A1.
type Cycle []CellReference

// String returns the cycle as "A1 -> B1 -> A1".
func (c Cycle) String() string {
	if len(c) == 0 {
		return ""
	}
	s := ""
	for _, ref := range c {
		s += ref.String() + " -> "
	}
	return s + c[0].String()
}

// TemplateReport is the result of analysing one template.
// It is what the pipeline produces, the store persists and the report
// writers render.
//
// Design decision: We use a single flat struct rather than returning the
// analyzer's internal graph, so that the report can be serialized and stored
// without dragging the graph implementation across package boundaries.
type TemplateReport struct {
	// === Identification ===

	// Path is the file the template was read from, if any.
	Path string `json:"path,omitempty"`

	// Identity is the template identity (cache key).
	Identity string `json:"identity"`

	// Version is the document fingerprint the analysis was built from.
	Version string `json:"version"`

	// AnalyzedAt is when the analysis was performed.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// === Analysis ===

	// Structure is the classified template.
	Structure *TemplateStructure `json:"structure,omitempty"`

	// Order is the execution order of the acyclic formula cells.
	Order []CellReference `json:"order"`

	// Cycles lists every detected dependency cycle.
	Cycles []Cycle `json:"cycles,omitempty"`

	// Dependencies maps each formula cell to the cells it reads.
	Dependencies map[CellReference][]CellReference `json:"dependencies,omitempty"`

	// Diagnostics holds structural diagnostics found while analysing,
	// such as empty sheets.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	// Validation is the validator verdict.
	Validation *ValidationResult `json:"validation,omitempty"`

	// === Pipeline State ===

	// Document is the raw grid the analysis was built from.
	Document *Document `json:"-"` // Excluded from JSON due to size

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Persisted is true when the report was written to the store.
	Persisted bool `json:"persisted,omitempty"`

	// Error contains the error that stopped the pipeline, if any.
	Error error `json:"-"` // Excluded from JSON

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewTemplateReport creates a report for the template at path.
func NewTemplateReport(path string) *TemplateReport {
	return &TemplateReport{
		Path:       path,
		Identity:   path,
		AnalyzedAt: time.Now(),
		Order:      []CellReference{},
	}
}

// SetError records err as the pipeline failure.
func (r *TemplateReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Failed reports whether the pipeline stopped with an error.
func (r *TemplateReport) Failed() bool {
	return r.Error != nil || r.ErrorMessage != ""
}

// RoleCounts returns the number of input, output and formula cells.
func (r *TemplateReport) RoleCounts() (inputs, outputs, formulas int) {
	if r.Structure == nil {
		return 0, 0, 0
	}
	return len(r.Structure.InputFields), len(r.Structure.OutputFields), len(r.Structure.Formulas)
}

// RecalcReport is the result of one recalculation requested by a caller.
type RecalcReport struct {
	// RunID uniquely identifies the recalculation run.
	RunID string `json:"run_id"`

	// Identity is the template identity.
	Identity string `json:"identity"`

	// Version is the document version the run was computed against.
	Version string `json:"version"`

	// CreatedAt is when the run was performed.
	CreatedAt time.Time `json:"created_at"`

	// Inputs are the values the caller supplied.
	Inputs map[CellReference]Literal `json:"inputs"`

	// Result is the engine result.
	Result *RecalcResult `json:"result"`
}
