package reference

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/formulagraph/internal/model"
)

// ErrInvalidRange is returned when range text cannot be parsed.
var ErrInvalidRange = errors.New("invalid range")

// Area is a rectangular block of cells on one sheet.
// Columns and rows are 1-based and inclusive.
type Area struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// Size returns the number of cells in the area.
func (a Area) Size() int {
	return (a.EndCol - a.StartCol + 1) * (a.EndRow - a.StartRow + 1)
}

// IsSingle reports whether the area is a single cell.
func (a Area) IsSingle() bool {
	return a.StartCol == a.EndCol && a.StartRow == a.EndRow
}

// Start returns the top-left cell.
func (a Area) Start() model.CellReference {
	return a.ref(a.StartCol, a.StartRow)
}

// End returns the bottom-right cell.
func (a Area) End() model.CellReference {
	return a.ref(a.EndCol, a.EndRow)
}

// Cells returns the cells of the area in row-major order. When limit is
// positive and the area holds more than limit cells, only the two corner
// cells are returned.
func (a Area) Cells(limit int) []model.CellReference {
	if a.IsSingle() {
		return []model.CellReference{a.Start()}
	}
	if limit > 0 && a.Size() > limit {
		return []model.CellReference{a.Start(), a.End()}
	}

	refs := make([]model.CellReference, 0, a.Size())
	for row := a.StartRow; row <= a.EndRow; row++ {
		for col := a.StartCol; col <= a.EndCol; col++ {
			refs = append(refs, a.ref(col, row))
		}
	}
	return refs
}

// Contains reports whether ref lies inside the area.
func (a Area) Contains(ref model.CellReference) bool {
	if model.FoldSheetName(ref.Sheet) != model.FoldSheetName(a.Sheet) {
		return false
	}
	col, row, err := ref.Position()
	if err != nil {
		return false
	}
	return col >= a.StartCol && col <= a.EndCol && row >= a.StartRow && row <= a.EndRow
}

// String returns the area in A1 notation.
func (a Area) String() string {
	if a.IsSingle() {
		return a.Start().String()
	}
	return a.Start().String() + ":" + a.End().Coord
}

func (a Area) ref(col, row int) model.CellReference {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return model.CellReference{Sheet: a.Sheet}
	}
	return model.CellReference{Sheet: a.Sheet, Coord: name}
}

// ParseRange parses one area such as "B2", "$A$1:$B$3", "Calc!A1:B3" or
// "'Unit Rates'!A1:'Unit Rates'!A9". Unqualified areas are placed on
// defaultSheet. Corners are normalized so that Start is the top-left cell.
func ParseRange(text, defaultSheet string) (Area, error) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "=")
	if text == "" {
		return Area{}, fmt.Errorf("%w: empty text", ErrInvalidRange)
	}

	// Sheet names cannot contain ":", so the split is safe.
	first, second, isArea := strings.Cut(text, ":")

	sheet, coord := model.SplitSheet(first)
	startCol, startRow, err := excelize.CellNameToCoordinates(model.NormalizeCoord(coord))
	if err != nil {
		return Area{}, fmt.Errorf("%w: %q", ErrInvalidRange, text)
	}
	if sheet == "" {
		sheet = defaultSheet
	}

	endCol, endRow := startCol, startRow
	if isArea {
		endSheet, endCoord := model.SplitSheet(second)
		if endSheet != "" && model.FoldSheetName(endSheet) != model.FoldSheetName(sheet) {
			return Area{}, fmt.Errorf("%w: %q spans two sheets", ErrInvalidRange, text)
		}
		endCol, endRow, err = excelize.CellNameToCoordinates(model.NormalizeCoord(endCoord))
		if err != nil {
			return Area{}, fmt.Errorf("%w: %q", ErrInvalidRange, text)
		}
	}

	return Area{
		Sheet:    sheet,
		StartCol: min(startCol, endCol),
		StartRow: min(startRow, endRow),
		EndCol:   max(startCol, endCol),
		EndRow:   max(startRow, endRow),
	}, nil
}

// ParseRanges parses comma-separated range text as stored in a defined
// name, e.g. "Calc!$A$1,Calc!$B$2:$B$4". Commas inside quoted sheet names
// are not treated as separators.
func ParseRanges(text, defaultSheet string) ([]Area, error) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "=")
	parts := splitOutsideQuotes(text, ',')

	areas := make([]Area, 0, len(parts))
	for _, part := range parts {
		area, err := ParseRange(part, defaultSheet)
		if err != nil {
			return nil, err
		}
		areas = append(areas, area)
	}
	return areas, nil
}

func splitOutsideQuotes(s string, sep rune) []string {
	var (
		parts    []string
		current  strings.Builder
		inQuotes bool
	)
	for _, r := range s {
		switch {
		case r == '\'':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == sep && !inQuotes:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(parts, current.String())
}
