package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/formulagraph/internal/model"
)

// Workbook evaluates formulas with the excelize calculation engine. Each
// call writes the formula's dependencies into a scratch workbook, so the
// full excelize function library is available. It is safe for concurrent
// use.
//
// Design decision: Workbook is the alternative to the built-in Evaluator,
// not its replacement. A scratch workbook per formula costs far more than
// interpreting a cached expression tree, and excelize resolves sheets and
// ranges itself, so it cannot refuse an area above the range limit. The
// recalculation engine marks such formulas as not evaluable before any
// evaluator sees them.
type Workbook struct {
	names map[string]string
}

// NewWorkbook creates a workbook evaluator. names maps defined names to the
// ranges they refer to, as in model.Document.NamedRanges.
func NewWorkbook(names map[string]string) *Workbook {
	w := &Workbook{names: make(map[string]string, len(names))}
	for name, text := range names {
		w.names[name] = strings.TrimPrefix(strings.TrimSpace(text), "=")
	}
	return w
}

// Evaluate computes formula for cell. Every reference the formula reads
// must be present in deps; a missing cell reads as blank in excelize, so the
// graph's dependency map is expected to be complete.
func (w *Workbook) Evaluate(cell model.CellReference, formula string, deps map[model.CellReference]model.Literal) (model.Literal, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // nothing is written to disk

	if err := w.fill(f, cell, deps); err != nil {
		return nil, err
	}
	if err := f.SetCellFormula(cell.Sheet, cell.Coord, strings.TrimPrefix(strings.TrimSpace(formula), "=")); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	raw, err := f.CalcCellValue(cell.Sheet, cell.Coord, excelize.Options{RawCellValue: true})
	if code := errorCode(raw, err); code != "" {
		return nil, fmt.Errorf("%w: %s evaluates to %s", errorFor(code), cell, code)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	switch raw {
	case "TRUE":
		return model.Number(1), nil
	case "FALSE":
		return model.Number(0), nil
	}
	return model.ParseLiteral(raw), nil
}

// fill creates the sheets and defined names and writes every dependency.
func (w *Workbook) fill(f *excelize.File, cell model.CellReference, deps map[model.CellReference]model.Literal) error {
	if _, err := f.NewSheet(cell.Sheet); err != nil {
		return fmt.Errorf("%w: sheet %q: %w", ErrReference, cell.Sheet, err)
	}
	for ref, value := range deps {
		if _, err := f.NewSheet(ref.Sheet); err != nil {
			return fmt.Errorf("%w: sheet %q: %w", ErrReference, ref.Sheet, err)
		}
		var err error
		switch v := value.(type) {
		case model.Number:
			err = f.SetCellValue(ref.Sheet, ref.Coord, float64(v))
		case model.Text:
			err = f.SetCellStr(ref.Sheet, ref.Coord, string(v))
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrReference, ref, err)
		}
	}

	names := make([]string, 0, len(w.names))
	for name := range w.names {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := f.SetDefinedName(&excelize.DefinedName{Name: name, RefersTo: w.names[name]}); err != nil {
			return fmt.Errorf("%w: defined name %q: %w", ErrName, name, err)
		}
	}
	return nil
}

// errorCode returns the spreadsheet error code of a calculation result, or
// "" when the result is a value.
func errorCode(raw string, err error) string {
	if strings.HasPrefix(raw, "#") {
		return raw
	}
	if err != nil && strings.HasPrefix(err.Error(), "#") {
		return err.Error()
	}
	return ""
}

// errorFor maps a spreadsheet error code to the evaluation error wrapping it.
func errorFor(code string) error {
	for _, sentinel := range []error{ErrDivisionByZero, ErrName, ErrNumber, ErrReference, ErrArity, ErrValue} {
		if prefix, _, _ := strings.Cut(sentinel.Error(), " "); strings.HasPrefix(code, prefix) {
			return sentinel
		}
	}
	return ErrValue
}
