package model

import (
	"cmp"
	"slices"
)

// Document is the raw multi-sheet cell grid of one template.
// It is produced by a document reader and consumed by the analyzer.
type Document struct {
	// Identity is the template identity used as cache key,
	// typically the file path or a template name.
	Identity string `json:"identity"`

	// Version changes whenever the grid changes.
	// Readers fill it with a content fingerprint.
	Version string `json:"version"`

	// Sheets holds the worksheets in document order.
	Sheets []Sheet `json:"sheets"`

	// NamedRanges maps a defined name to its range text,
	// e.g. "Rate" -> "Calc!$B$2".
	NamedRanges map[string]string `json:"named_ranges,omitempty"`
}

// Sheet is one worksheet of the raw grid.
type Sheet struct {
	// Name is the worksheet name as declared by the document.
	Name string `json:"name"`

	// Cells maps an A1 coordinate to the raw cell stored there.
	Cells map[string]RawCell `json:"cells"`
}

// SheetNames returns the sheet names in document order.
func (d *Document) SheetNames() []string {
	names := make([]string, 0, len(d.Sheets))
	for _, s := range d.Sheets {
		names = append(names, s.Name)
	}
	return names
}

// Sheet returns the sheet whose name matches name case-insensitively.
func (d *Document) Sheet(name string) (*Sheet, bool) {
	folded := FoldSheetName(name)
	for i := range d.Sheets {
		if FoldSheetName(d.Sheets[i].Name) == folded {
			return &d.Sheets[i], true
		}
	}
	return nil, false
}

// SetCell stores a raw cell, creating the sheet when it does not exist.
func (d *Document) SetCell(sheet, coord string, cell RawCell) {
	s, ok := d.Sheet(sheet)
	if !ok {
		d.Sheets = append(d.Sheets, Sheet{Name: sheet, Cells: map[string]RawCell{}})
		s = &d.Sheets[len(d.Sheets)-1]
	}
	if s.Cells == nil {
		s.Cells = map[string]RawCell{}
	}
	cell.Value = OrEmpty(cell.Value)
	s.Cells[NormalizeCoord(coord)] = cell
}

// OrderedCoords returns the sheet's coordinates in row-major order.
// Coordinates that are not valid A1 names are returned separately,
// sorted lexicographically.
func (s *Sheet) OrderedCoords() (valid, invalid []string) {
	type position struct {
		coord    string
		col, row int
	}

	positions := make([]position, 0, len(s.Cells))
	for coord := range s.Cells {
		ref := NewCellReference(s.Name, coord)
		col, row, err := ref.Position()
		if err != nil {
			invalid = append(invalid, coord)
			continue
		}
		positions = append(positions, position{coord: coord, col: col, row: row})
	}

	slices.SortFunc(positions, func(a, b position) int {
		if c := cmp.Compare(a.row, b.row); c != 0 {
			return c
		}
		if c := cmp.Compare(a.col, b.col); c != 0 {
			return c
		}
		return cmp.Compare(a.coord, b.coord)
	})
	slices.Sort(invalid)

	valid = make([]string, 0, len(positions))
	for _, p := range positions {
		valid = append(valid, p.coord)
	}
	return valid, invalid
}
