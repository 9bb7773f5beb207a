package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Cell is a single spreadsheet cell as seen by one analysis pass.
// A Cell is immutable once it has been read from the document.
type Cell struct {
	// Reference is the position of the cell.
	Reference CellReference `json:"reference"`

	// Value is the literal the document stores for the cell.
	// For formula cells this is the cached result, if any.
	Value Literal `json:"value"`

	// Formula is the formula text including its leading "=".
	// Empty when the cell holds a plain literal.
	Formula string `json:"formula,omitempty"`

	// Marker is the visual or naming tag attached to the cell,
	// typically a fill colour such as "FFFF00".
	Marker string `json:"marker,omitempty"`
}

// HasFormula reports whether the cell carries formula text.
func (c Cell) HasFormula() bool {
	return strings.TrimSpace(c.Formula) != ""
}

// UnmarshalJSON decodes a cell, including its Literal value.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var shadow struct {
		Reference CellReference   `json:"reference"`
		Value     json.RawMessage `json:"value"`
		Formula   string          `json:"formula"`
		Marker    string          `json:"marker"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}

	value, err := UnmarshalLiteral(shadow.Value)
	if err != nil {
		return fmt.Errorf("cell %s: %w", shadow.Reference, err)
	}

	*c = Cell{
		Reference: shadow.Reference,
		Value:     value,
		Formula:   shadow.Formula,
		Marker:    shadow.Marker,
	}
	return nil
}

// CellRole is the role the classifier assigns to a cell.
// Exactly one role is assigned per cell per analysis.
type CellRole int

const (
	// RolePlain is a cell that is neither input, output nor formula.
	RolePlain CellRole = iota

	// RoleInput is a value the caller supplies before recalculation.
	RoleInput

	// RoleOutput is a value the caller reads back after recalculation.
	RoleOutput

	// RoleFormula is an intermediate cell computed from other cells.
	RoleFormula
)

// String returns the lower-case role name.
func (r CellRole) String() string {
	switch r {
	case RolePlain:
		return "plain"
	case RoleInput:
		return "input"
	case RoleOutput:
		return "output"
	case RoleFormula:
		return "formula"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r CellRole) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// RawCell is one entry of the raw cell grid handed over by a document reader.
type RawCell struct {
	// Value is the literal value of the cell.
	Value Literal `json:"value"`

	// Formula is the optional formula text.
	Formula string `json:"formula,omitempty"`

	// Marker is the optional visual marker.
	Marker string `json:"marker,omitempty"`
}

// UnmarshalJSON decodes a raw cell, including its Literal value.
func (c *RawCell) UnmarshalJSON(data []byte) error {
	var shadow struct {
		Value   json.RawMessage `json:"value"`
		Formula string          `json:"formula"`
		Marker  string          `json:"marker"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}

	value, err := UnmarshalLiteral(shadow.Value)
	if err != nil {
		return err
	}

	*c = RawCell{Value: value, Formula: shadow.Formula, Marker: shadow.Marker}
	return nil
}
