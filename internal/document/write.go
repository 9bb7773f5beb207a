package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/formulagraph/internal/model"
)

// ErrNoSheets is returned when writing a document without sheets.
var ErrNoSheets = errors.New("document has no sheets")

// WriteXLSX writes doc as an Excel workbook. Markers become solid fills and
// named ranges become defined names.
func WriteXLSX(w io.Writer, doc *model.Document) error {
	f, err := buildWorkbook(doc)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // in-memory workbook

	_, err = f.WriteTo(w)
	return err
}

// SaveXLSX writes doc as an Excel workbook at path.
func SaveXLSX(path string, doc *model.Document) error {
	f, err := buildWorkbook(doc)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // in-memory workbook

	return f.SaveAs(filepath.Clean(path))
}

func buildWorkbook(doc *model.Document) (*excelize.File, error) {
	if doc == nil || len(doc.Sheets) == 0 {
		return nil, ErrNoSheets
	}

	f := excelize.NewFile()
	styles := map[string]int{}

	for i, sheet := range doc.Sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}

		var maxCol, maxRow int
		coords, _ := sheet.OrderedCoords()
		for _, coord := range coords {
			if err := writeCell(f, sheet.Name, coord, sheet.Cells[coord], styles); err != nil {
				return nil, fmt.Errorf("sheet %q cell %s: %w", sheet.Name, coord, err)
			}
			col, row, _ := excelize.CellNameToCoordinates(coord)
			maxCol, maxRow = max(maxCol, col), max(maxRow, row)
		}
		if maxCol > 0 {
			end, _ := excelize.CoordinatesToCellName(maxCol, maxRow)
			if err := f.SetSheetDimension(sheet.Name, "A1:"+end); err != nil {
				return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
			}
		}
	}

	names := make([]string, 0, len(doc.NamedRanges))
	for name := range doc.NamedRanges {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := f.SetDefinedName(&excelize.DefinedName{Name: name, RefersTo: doc.NamedRanges[name]}); err != nil {
			return nil, fmt.Errorf("defined name %q: %w", name, err)
		}
	}
	return f, nil
}

func writeCell(f *excelize.File, sheet, coord string, cell model.RawCell, styles map[string]int) error {
	switch v := model.OrEmpty(cell.Value).(type) {
	case model.Number:
		if err := f.SetCellValue(sheet, coord, float64(v)); err != nil {
			return err
		}
	case model.Text:
		if err := f.SetCellValue(sheet, coord, string(v)); err != nil {
			return err
		}
	case model.Empty:
	}

	if formula := strings.TrimPrefix(strings.TrimSpace(cell.Formula), "="); formula != "" {
		if err := f.SetCellFormula(sheet, coord, formula); err != nil {
			return err
		}
	}

	marker := strings.TrimPrefix(strings.TrimSpace(cell.Marker), "#")
	if marker == "" {
		return nil
	}
	id, ok := styles[marker]
	if !ok {
		var err error
		id, err = f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{marker}},
		})
		if err != nil {
			return err
		}
		styles[marker] = id
	}
	return f.SetCellStyle(sheet, coord, coord, id)
}

// WriteJSON writes doc as the indented JSON grid record.
func WriteJSON(w io.Writer, doc *model.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
