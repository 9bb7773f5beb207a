package model

import "encoding/json"

// SheetStructure lists the classified cells of one sheet in row-major order.
type SheetStructure struct {
	InputCells   []Cell `json:"input_cells"`
	OutputCells  []Cell `json:"output_cells"`
	FormulaCells []Cell `json:"formula_cells"`
}

// NewSheetStructure returns a sheet structure with non-nil, empty lists,
// so that it serializes as [] rather than null.
func NewSheetStructure() *SheetStructure {
	return &SheetStructure{
		InputCells:   []Cell{},
		OutputCells:  []Cell{},
		FormulaCells: []Cell{},
	}
}

// TemplateStructure is the serializable result of analysing a template.
//
// The JSON field names and nesting are a compatibility contract with
// consumers on the other side of a process boundary and must not change.
// encoding/json writes map keys in sorted order, which keeps the encoded
// form byte-identical across runs.
//
// Formulas holds every formula-bearing cell, including formula cells that
// are classified as input or output, because those are exactly the nodes
// of the dependency graph.
type TemplateStructure struct {
	Sheets       map[string]*SheetStructure `json:"sheets"`
	InputFields  map[CellReference]Cell     `json:"input_fields"`
	OutputFields map[CellReference]Cell     `json:"output_fields"`
	Formulas     map[CellReference]string   `json:"formulas"`
	NamedRanges  map[string]string          `json:"named_ranges"`
}

// NewTemplateStructure returns an empty structure with all maps allocated.
func NewTemplateStructure() *TemplateStructure {
	return &TemplateStructure{
		Sheets:       map[string]*SheetStructure{},
		InputFields:  map[CellReference]Cell{},
		OutputFields: map[CellReference]Cell{},
		Formulas:     map[CellReference]string{},
		NamedRanges:  map[string]string{},
	}
}

// InputReferences returns the input field references in sorted order.
func (s *TemplateStructure) InputReferences() []CellReference {
	return sortedKeys(s.InputFields)
}

// OutputReferences returns the output field references in sorted order.
func (s *TemplateStructure) OutputReferences() []CellReference {
	return sortedKeys(s.OutputFields)
}

// FormulaReferences returns the formula cell references in sorted order.
func (s *TemplateStructure) FormulaReferences() []CellReference {
	return sortedKeys(s.Formulas)
}

// MarshalIndent returns the indented JSON encoding of the structure.
func (s *TemplateStructure) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func sortedKeys[V any](m map[CellReference]V) []CellReference {
	refs := make([]CellReference, 0, len(m))
	for ref := range m {
		refs = append(refs, ref)
	}
	SortReferences(refs)
	return refs
}
