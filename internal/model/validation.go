package model

import (
	"fmt"
	"strings"
)

// Diagnostic is a single problem found in a template.
type Diagnostic struct {
	// Code is the diagnostic identifier, see the Code* constants.
	Code string `json:"code"`

	// Severity is the level of the diagnostic.
	Severity Severity `json:"severity"`

	// SeverityText is the human-readable severity.
	SeverityText string `json:"severity_text"`

	// Message is a one-line description.
	Message string `json:"message"`

	// Sheet is the affected sheet, when the diagnostic concerns one sheet.
	Sheet string `json:"sheet,omitempty"`

	// Cells lists the affected cells, e.g. the members of a cycle.
	Cells []CellReference `json:"cells,omitempty"`
}

// NewDiagnostic creates a diagnostic with the severity registered for code.
func NewDiagnostic(code, message string, cells ...CellReference) Diagnostic {
	severity := GetSeverity(code)
	return Diagnostic{
		Code:         code,
		Severity:     severity,
		SeverityText: severity.String(),
		Message:      message,
		Cells:        cells,
	}
}

// String returns "[CODE] message".
func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s", d.Code, d.Message)
}

// ValidationResult is the {valid, errors, warnings} record returned by the
// validator.
type ValidationResult struct {
	// Valid is true when Errors is empty. Warnings never make a
	// template invalid.
	Valid bool `json:"valid"`

	// Errors lists structural problems such as dependency cycles.
	Errors []Diagnostic `json:"errors"`

	// Warnings lists suspicious but legal conditions.
	Warnings []Diagnostic `json:"warnings"`
}

// NewValidationResult returns a valid result with empty lists.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Errors:   []Diagnostic{},
		Warnings: []Diagnostic{},
	}
}

// Add files d under Errors or Warnings according to its severity.
// Info diagnostics are recorded as warnings.
func (r *ValidationResult) Add(d Diagnostic) {
	if d.Severity >= SeverityError {
		r.Errors = append(r.Errors, d)
		r.Valid = false
		return
	}
	r.Warnings = append(r.Warnings, d)
}

// HasWarning reports whether a warning with the given code is present.
func (r *ValidationResult) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of errors.
func (r *ValidationResult) ErrorCount() int {
	return len(r.Errors)
}

// WarningCount returns the number of warnings.
func (r *ValidationResult) WarningCount() int {
	return len(r.Warnings)
}

// JoinReferences formats references as "A!B1, A!C1".
func JoinReferences(refs []CellReference) string {
	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		parts = append(parts, ref.String())
	}
	return strings.Join(parts, ", ")
}
