package document

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/formulagraph/internal/model"
)

// ReadXLSX reads an Excel workbook from path.
func ReadXLSX(path string, opts ...Option) (*model.Document, error) {
	f, err := excelize.OpenFile(filepath.Clean(path))
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck // read-only workbook

	return readWorkbook(f, path, newOptions(opts))
}

// ReadXLSXReader reads an Excel workbook from r. identity names the
// template in the returned document.
func ReadXLSXReader(r io.Reader, identity string, opts ...Option) (*model.Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ReadError{Path: identity, Err: err}
	}
	defer f.Close() //nolint:errcheck // read-only workbook

	return readWorkbook(f, identity, newOptions(opts))
}

// workbookReader reads the sheets of one open workbook.
type workbookReader struct {
	file     *excelize.File
	identity string
	opts     *options

	// markers caches the fill colour of each style index.
	markers map[int]string
}

func readWorkbook(f *excelize.File, identity string, opts *options) (*model.Document, error) {
	wr := &workbookReader{file: f, identity: identity, opts: opts, markers: map[int]string{}}

	doc := &model.Document{Identity: identity}
	for _, name := range f.GetSheetList() {
		sheet, err := wr.readSheet(name)
		if err != nil {
			return nil, &ReadError{Path: identity, Sheet: name, Err: err}
		}
		doc.Sheets = append(doc.Sheets, sheet)
	}

	for _, dn := range f.GetDefinedName() {
		if dn.Name == "" || dn.RefersTo == "" {
			continue
		}
		if doc.NamedRanges == nil {
			doc.NamedRanges = map[string]string{}
		}
		doc.NamedRanges[dn.Name] = strings.TrimPrefix(dn.RefersTo, "=")
	}

	doc.Version = Fingerprint(doc)
	return doc, nil
}

// readSheet scans the used area of a sheet. Blank cells are kept when they
// carry a fill colour, since an input field is often an empty coloured cell.
//
// The used area is the declared sheet dimension widened by the extent of
// the stored rows, because writers do not always keep the dimension current.
func (wr *workbookReader) readSheet(name string) (model.Sheet, error) {
	sheet := model.Sheet{Name: name, Cells: map[string]model.RawCell{}}

	dim, err := wr.file.GetSheetDimension(name)
	if err != nil {
		return sheet, err
	}
	rows, err := wr.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return sheet, err
	}

	startCol, startRow, endCol, endRow, ok := parseDimension(dim)
	if !ok {
		startCol, startRow = 1, 1
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		startCol, startRow = min(startCol, 1), min(startRow, i+1)
		endCol, endRow = max(endCol, len(row)), max(endRow, i+1)
	}
	if endCol == 0 || endRow == 0 {
		return sheet, nil
	}
	if size := (endCol - startCol + 1) * (endRow - startRow + 1); size > wr.opts.maxCells {
		return sheet, fmt.Errorf("%w: used area covers %d cells", ErrTooManyCells, size)
	}

	for row := startRow; row <= endRow; row++ {
		for col := startCol; col <= endCol; col++ {
			coord, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return sheet, err
			}
			cell, ok, err := wr.readCell(name, coord)
			if err != nil {
				return sheet, fmt.Errorf("cell %s: %w", coord, err)
			}
			if ok {
				sheet.Cells[coord] = cell
			}
		}
	}
	return sheet, nil
}

func (wr *workbookReader) readCell(sheet, coord string) (model.RawCell, bool, error) {
	raw, err := wr.file.GetCellValue(sheet, coord, excelize.Options{RawCellValue: true})
	if err != nil {
		return model.RawCell{}, false, err
	}
	formula, err := wr.file.GetCellFormula(sheet, coord)
	if err != nil {
		return model.RawCell{}, false, err
	}
	marker, err := wr.marker(sheet, coord)
	if err != nil {
		return model.RawCell{}, false, err
	}
	if raw == "" && formula == "" && marker == "" {
		return model.RawCell{}, false, nil
	}

	value, err := wr.literal(sheet, coord, raw)
	if err != nil {
		return model.RawCell{}, false, err
	}

	cell := model.RawCell{Value: value, Marker: marker}
	if formula != "" {
		cell.Formula = "=" + strings.TrimPrefix(formula, "=")
	}
	return cell, true, nil
}

// literal converts the raw stored value using the cell type, so that text
// such as "0012" stays text.
func (wr *workbookReader) literal(sheet, coord, raw string) (model.Literal, error) {
	if raw == "" {
		return model.Empty{}, nil
	}
	typ, err := wr.file.GetCellType(sheet, coord)
	if err != nil {
		return nil, err
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return model.Text(raw), nil
	default:
		return model.ParseLiteral(raw), nil
	}
}

// marker returns the first fill colour of the cell's style.
func (wr *workbookReader) marker(sheet, coord string) (string, error) {
	idx, err := wr.file.GetCellStyle(sheet, coord)
	if err != nil || idx == 0 {
		return "", err
	}
	if m, ok := wr.markers[idx]; ok {
		return m, nil
	}

	style, err := wr.file.GetStyle(idx)
	if err != nil {
		return "", err
	}
	var m string
	if style != nil && len(style.Fill.Color) > 0 {
		m = strings.TrimSpace(style.Fill.Color[0])
	}
	wr.markers[idx] = m
	return m, nil
}

// parseDimension parses a sheet dimension such as "A1:D20" or "B3".
func parseDimension(dim string) (startCol, startRow, endCol, endRow int, ok bool) {
	first, last, found := strings.Cut(dim, ":")
	if !found {
		last = first
	}
	startCol, startRow, err := excelize.CellNameToCoordinates(first)
	if err != nil {
		return 0, 0, 0, 0, false
	}
	endCol, endRow, err = excelize.CellNameToCoordinates(last)
	if err != nil {
		return 0, 0, 0, 0, false
	}
	return min(startCol, endCol), min(startRow, endRow), max(startCol, endCol), max(startRow, endRow), true
}
