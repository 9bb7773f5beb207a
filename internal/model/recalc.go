package model

import (
	"encoding/json"
	"fmt"
)

// Status is the per-cell outcome of a recalculation pass.
type Status int

const (
	// StatusEvaluated means the cell has a fresh value.
	StatusEvaluated Status = iota

	// StatusNotEvaluable means the cell could not be computed: no
	// evaluator was supplied, the evaluator failed, or a dependency is
	// itself unresolved.
	StatusNotEvaluable

	// StatusUpstreamCycle means the cell is part of a dependency cycle
	// and was never evaluated.
	StatusUpstreamCycle
)

// String returns the snake_case status name.
func (s Status) String() string {
	switch s {
	case StatusEvaluated:
		return "evaluated"
	case StatusNotEvaluable:
		return "not_evaluable"
	case StatusUpstreamCycle:
		return "upstream_cycle"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "evaluated":
		*s = StatusEvaluated
	case "not_evaluable":
		*s = StatusNotEvaluable
	case "upstream_cycle":
		*s = StatusUpstreamCycle
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// OutputValue is the value and status of one output field after
// recalculation.
type OutputValue struct {
	Value  Literal `json:"value"`
	Status Status  `json:"status"`
}

// UnmarshalJSON decodes an output value, including its Literal.
func (o *OutputValue) UnmarshalJSON(data []byte) error {
	var shadow struct {
		Value  json.RawMessage `json:"value"`
		Status Status          `json:"status"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}
	value, err := UnmarshalLiteral(shadow.Value)
	if err != nil {
		return err
	}
	*o = OutputValue{Value: value, Status: shadow.Status}
	return nil
}

// RecalcResult is the result of one recalculation pass.
type RecalcResult struct {
	// Outputs maps every output field to its refreshed value.
	Outputs map[CellReference]OutputValue `json:"outputs"`

	// Statuses holds the status of every formula cell and output field.
	Statuses map[CellReference]Status `json:"statuses"`

	// Values holds the refreshed value of every evaluated formula cell.
	Values map[CellReference]Literal `json:"-"`

	// IgnoredInputs lists supplied references that are not input fields.
	IgnoredInputs []CellReference `json:"ignored_inputs,omitempty"`
}

// NewRecalcResult returns a result with all maps allocated.
func NewRecalcResult() *RecalcResult {
	return &RecalcResult{
		Outputs:  map[CellReference]OutputValue{},
		Statuses: map[CellReference]Status{},
		Values:   map[CellReference]Literal{},
	}
}

// CountByStatus returns how many cells ended with each status.
func (r *RecalcResult) CountByStatus() map[Status]int {
	counts := make(map[Status]int, 3)
	for _, s := range r.Statuses {
		counts[s]++
	}
	return counts
}
