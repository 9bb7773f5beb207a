package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
)

// ErrInvalidReference is returned when text cannot be parsed as a cell reference.
var ErrInvalidReference = errors.New("invalid cell reference")

// CellReference identifies one grid position by sheet name and A1 coordinate.
//
// CellReference is a comparable value type and is safe to use as a map key.
// The coordinate is always stored normalized (upper-case column letters,
// no "$" anchors), so two references written differently in formula text
// ("$b$2" and "B2") compare equal.
//
// Sheet names are matched case-insensitively (Unicode case folding) when a
// reference is resolved against a document, see SheetIndex. The Sheet field
// itself keeps the canonical spelling declared by the document.
type CellReference struct {
	// Sheet is the worksheet name.
	Sheet string

	// Coord is the normalized A1 coordinate, e.g. "B2".
	Coord string
}

// NewCellReference creates a reference with a normalized coordinate.
func NewCellReference(sheet, coord string) CellReference {
	return CellReference{
		Sheet: strings.TrimSpace(sheet),
		Coord: NormalizeCoord(coord),
	}
}

// NormalizeCoord removes "$" anchors and upper-cases column letters.
func NormalizeCoord(coord string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(coord), "$", ""))
}

// String returns the reference as "Sheet!B2". Sheet names that are not
// plain identifiers are single-quoted: "'Unit Rates'!B2".
func (r CellReference) String() string {
	if r.Sheet == "" {
		return r.Coord
	}
	if needsQuoting(r.Sheet) {
		return "'" + strings.ReplaceAll(r.Sheet, "'", "''") + "'!" + r.Coord
	}
	return r.Sheet + "!" + r.Coord
}

// Compare orders references by their string form. This is the tie-break
// used wherever the engine needs a deterministic order.
func (r CellReference) Compare(other CellReference) int {
	return strings.Compare(r.String(), other.String())
}

// Position returns the 1-based column and row numbers of the coordinate.
func (r CellReference) Position() (col, row int, err error) {
	return excelize.CellNameToCoordinates(r.Coord)
}

// Valid reports whether the coordinate is a well-formed A1 cell name.
func (r CellReference) Valid() bool {
	_, _, err := r.Position()
	return err == nil
}

// MarshalText implements encoding.TextMarshaler so references can be used
// as JSON object keys.
func (r CellReference) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *CellReference) UnmarshalText(text []byte) error {
	parsed, err := ParseReference(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseReference parses "Sheet!B2", "'My Sheet'!$B$2" or a bare "B2".
// A bare coordinate yields a reference with an empty sheet name.
func ParseReference(text string) (CellReference, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return CellReference{}, fmt.Errorf("%w: empty text", ErrInvalidReference)
	}

	sheet, coord := SplitSheet(text)
	ref := NewCellReference(sheet, coord)
	if !ref.Valid() {
		return CellReference{}, fmt.Errorf("%w: %q", ErrInvalidReference, text)
	}
	return ref, nil
}

// SplitSheet splits "Sheet!Rest" at the last "!" and unquotes the sheet
// name. When there is no sheet qualifier the sheet is empty.
func SplitSheet(text string) (sheet, rest string) {
	idx := strings.LastIndex(text, "!")
	if idx < 0 {
		return "", text
	}
	return UnquoteSheet(text[:idx]), text[idx+1:]
}

// UnquoteSheet removes surrounding single quotes and unescapes doubled quotes.
func UnquoteSheet(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 2 && strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name
}

// SortReferences sorts refs in place in ascending lexicographic order.
func SortReferences(refs []CellReference) {
	slices.SortFunc(refs, CellReference.Compare)
}

// needsQuoting reports whether a sheet name must be quoted in A1 notation.
func needsQuoting(sheet string) bool {
	for _, r := range sheet {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return true
		}
	}
	return false
}

// FoldSheetName returns the case-folded form of a sheet name used for
// case-insensitive matching.
func FoldSheetName(name string) string {
	// cases.Caser is stateful, so a new one is created per call.
	return cases.Fold().String(strings.TrimSpace(name))
}

// SheetIndex resolves sheet names written in formulas to the spelling
// declared by the document.
type SheetIndex struct {
	canonical map[string]string
}

// NewSheetIndex creates an index over the declared sheet names.
// When two declared names fold to the same key the first one wins.
func NewSheetIndex(names ...string) *SheetIndex {
	idx := &SheetIndex{canonical: make(map[string]string, len(names))}
	for _, name := range names {
		key := FoldSheetName(name)
		if _, exists := idx.canonical[key]; !exists {
			idx.canonical[key] = name
		}
	}
	return idx
}

// Canonical returns the declared spelling of name, or name itself when the
// document declares no such sheet.
func (idx *SheetIndex) Canonical(name string) string {
	if idx == nil {
		return name
	}
	if declared, ok := idx.canonical[FoldSheetName(name)]; ok {
		return declared
	}
	return name
}

// Has reports whether the document declares a sheet matching name.
func (idx *SheetIndex) Has(name string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.canonical[FoldSheetName(name)]
	return ok
}
