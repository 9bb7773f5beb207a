package model

// Severity is the level of a validation diagnostic.
//
// Design decision: We use iota-based constants rather than string constants
// so that diagnostics can be compared and sorted by level. The String()
// method provides the human-readable form.
type Severity int

const (
	// SeverityInfo is purely informational.
	SeverityInfo Severity = iota

	// SeverityWarning marks a template that is usable but probably not
	// what its author intended, e.g. a template with no output fields.
	SeverityWarning

	// SeverityError marks a structural problem that makes part of the
	// template unusable, e.g. a dependency cycle.
	SeverityError
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic codes produced by the analyzer and validator.
const (
	CodeNoInputFields       = "no_input_fields"
	CodeNoOutputFields      = "no_output_fields"
	CodeEmptySheet          = "empty_sheet"
	CodeInvalidCoordinate   = "invalid_coordinate"
	CodeUnresolvedReference = "unresolved_reference"
	CodeCycle               = "cycle"
	CodeFieldNotInSheet     = "field_not_in_sheet"
	CodeRoleOverlap         = "role_overlap"
	CodeTruncatedRange      = "truncated_range"
)

// DiagnosticInfo contains metadata about a diagnostic code.
type DiagnosticInfo struct {
	Severity       Severity
	Impact         string
	Recommendation string
}

// diagnosticInfoMapping maps diagnostic codes to their metadata.
// This centralized mapping keeps severity levels consistent between the
// analyzer, the validator and the report writers.
var diagnosticInfoMapping = map[string]DiagnosticInfo{
	CodeCycle: {
		Severity:       SeverityError,
		Impact:         "Cells in a dependency cycle can never be recalculated.",
		Recommendation: "Break the cycle by replacing one of the references with a literal or an input cell.",
	},
	CodeFieldNotInSheet: {
		Severity:       SeverityError,
		Impact:         "A field is registered but missing from its sheet listing.",
		Recommendation: "Re-run the analysis; the structure was modified after it was built.",
	},
	CodeRoleOverlap: {
		Severity:       SeverityError,
		Impact:         "A cell is registered as both input and output.",
		Recommendation: "Re-run the analysis; the structure was modified after it was built.",
	},
	CodeNoInputFields: {
		Severity:       SeverityWarning,
		Impact:         "Recalculation has nothing to vary.",
		Recommendation: "Mark input cells with the input fill colour or the input name prefix.",
	},
	CodeNoOutputFields: {
		Severity:       SeverityWarning,
		Impact:         "Recalculation produces no values for callers to read back.",
		Recommendation: "Mark output cells with the output fill colour or the output name prefix.",
	},
	CodeEmptySheet: {
		Severity:       SeverityWarning,
		Impact:         "The sheet contributes no cells to the template.",
		Recommendation: "Remove the sheet or fill it in.",
	},
	CodeInvalidCoordinate: {
		Severity:       SeverityWarning,
		Impact:         "A cell with a malformed coordinate was skipped.",
		Recommendation: "Check the document reader output for that sheet.",
	},
	CodeTruncatedRange: {
		Severity:       SeverityWarning,
		Impact:         "A formula reads an area larger than the range limit; it is never recalculated.",
		Recommendation: "Narrow the area or raise the range limit.",
	},
	CodeUnresolvedReference: {
		Severity:       SeverityInfo,
		Impact:         "A formula reads a cell outside the known grid; it is read as empty.",
		Recommendation: "Check the formula for typos in sheet names or coordinates.",
	},
}

// GetSeverity returns the severity level for a diagnostic code.
// Returns SeverityInfo if the code is not in the mapping.
func GetSeverity(code string) Severity {
	if info, ok := diagnosticInfoMapping[code]; ok {
		return info.Severity
	}
	return SeverityInfo
}

// GetDiagnosticInfo returns the full information for a diagnostic code.
func GetDiagnosticInfo(code string) DiagnosticInfo {
	if info, ok := diagnosticInfoMapping[code]; ok {
		return info
	}
	return DiagnosticInfo{
		Severity:       SeverityInfo,
		Impact:         "Unknown diagnostic. Review manually.",
		Recommendation: "Inspect the template.",
	}
}
