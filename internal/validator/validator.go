// Package validator checks a classified template for problems that make it
// unusable or suspicious.
//
// Validation never fails: every finding is reported in the returned
// ValidationResult. Warnings describe legal but probably unintended
// templates (no inputs, no outputs, empty sheets); errors describe
// structural problems, chiefly dependency cycles. A template with no formula
// cells and no errors is valid: pure data is legal, just inert.
package validator

import (
	"fmt"

	"github.com/nao1215/formulagraph/internal/analyzer"
	"github.com/nao1215/formulagraph/internal/model"
)

// Validate checks the structure, cycles and diagnostics of an analysis.
func Validate(a *analyzer.Analysis) *model.ValidationResult {
	if a == nil {
		return ValidateStructure(nil, nil, nil)
	}
	return ValidateStructure(a.Structure, a.Cycles, a.Diagnostics)
}

// ValidateStructure checks a structure together with the cycles and
// diagnostics reported when it was built. It is the entry point for
// structures loaded back from storage, which have no live analysis.
func ValidateStructure(s *model.TemplateStructure, cycles []model.Cycle, diagnostics []model.Diagnostic) *model.ValidationResult {
	result := model.NewValidationResult()
	if s == nil {
		s = model.NewTemplateStructure()
	}

	if len(s.InputFields) == 0 {
		result.Add(model.NewDiagnostic(model.CodeNoInputFields, "no input fields detected"))
	}
	if len(s.OutputFields) == 0 {
		result.Add(model.NewDiagnostic(model.CodeNoOutputFields, "no output fields detected"))
	}

	// Informational diagnostics such as references outside the grid stay
	// in the report but are not validation findings.
	for _, d := range diagnostics {
		if d.Severity >= model.SeverityWarning {
			result.Add(d)
		}
	}

	for _, c := range cycles {
		result.Add(model.NewDiagnostic(model.CodeCycle,
			fmt.Sprintf("dependency cycle: %s", c), c...))
	}

	checkFieldsListed(result, s)
	checkOverlap(result, s)
	return result
}

// checkFieldsListed verifies that every field appears in the cell list of
// its own sheet.
func checkFieldsListed(result *model.ValidationResult, s *model.TemplateStructure) {
	listed := make(map[model.CellReference]model.CellRole)
	for _, ss := range s.Sheets {
		if ss == nil {
			continue
		}
		for _, c := range ss.InputCells {
			listed[c.Reference] = model.RoleInput
		}
		for _, c := range ss.OutputCells {
			listed[c.Reference] = model.RoleOutput
		}
	}

	check := func(refs []model.CellReference, role model.CellRole) {
		for _, ref := range refs {
			if listed[ref] == role {
				continue
			}
			d := model.NewDiagnostic(model.CodeFieldNotInSheet,
				fmt.Sprintf("%s field %s is not listed in sheet %q", role, ref, ref.Sheet), ref)
			d.Sheet = ref.Sheet
			result.Add(d)
		}
	}
	check(s.InputReferences(), model.RoleInput)
	check(s.OutputReferences(), model.RoleOutput)
}

// checkOverlap verifies that no cell is both an input and an output field.
func checkOverlap(result *model.ValidationResult, s *model.TemplateStructure) {
	for _, ref := range s.InputReferences() {
		if _, ok := s.OutputFields[ref]; ok {
			result.Add(model.NewDiagnostic(model.CodeRoleOverlap,
				fmt.Sprintf("%s is both an input and an output field", ref), ref))
		}
	}
}
