// Package reference extracts the cells a formula textually depends on.
//
// Extraction is best-effort and covers reference topology only. Formula text
// is split into tokens by github.com/xuri/efp; every operand token that names
// cells is matched against the pattern (sheet!)?columnLetters rowDigits, with
// "$" anchors and quoted sheet names accepted. Function semantics are never
// interpreted here, and unrecognized tokens are simply not extracted.
package reference

import (
	"github.com/nao1215/formulagraph/internal/model"
	"golang.org/x/text/cases"
)

// DefaultRangeLimit is the largest area expanded cell by cell. A larger
// area such as "A1:Z10000" contributes only its two corner cells.
const DefaultRangeLimit = 4096

// Option configures an Extractor.
type Option func(*Extractor)

// WithNamedRanges lets bare names in formulas resolve to the cells their
// range text covers. Names are matched case-insensitively.
func WithNamedRanges(ranges map[string]string) Option {
	return func(e *Extractor) {
		for name, text := range ranges {
			e.named[foldName(name)] = text
		}
	}
}

// WithSheetResolver canonicalizes sheet names written in formulas to the
// spelling declared by the document.
func WithSheetResolver(idx *model.SheetIndex) Option {
	return func(e *Extractor) {
		e.sheets = idx
	}
}

// WithRangeLimit sets the largest area expanded cell by cell.
// A non-positive limit expands every area in full.
func WithRangeLimit(limit int) Option {
	return func(e *Extractor) {
		e.limit = limit
	}
}

// Extractor extracts references from formula text.
// An Extractor is immutable after construction and safe for concurrent use.
type Extractor struct {
	named  map[string]string
	sheets *model.SheetIndex
	limit  int
}

// NewExtractor creates an extractor with the given options.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		named: map[string]string{},
		limit: DefaultRangeLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the cells formula depends on, deduplicated in order of
// first appearance. self is the cell holding the formula: unqualified
// references resolve to its sheet, and self is never part of the result.
//
// Extract never fails. Malformed formulas yield whatever references could
// be recognised, possibly none.
func Extract(formula string, self model.CellReference, opts ...Option) []model.CellReference {
	return NewExtractor(opts...).Extract(formula, self)
}

// Extract returns the cells formula depends on. See the package-level Extract.
func (e *Extractor) Extract(formula string, self model.CellReference) []model.CellReference {
	var (
		refs []model.CellReference
		seen = make(map[model.CellReference]struct{})
	)

	for _, tok := range Tokenize(formula) {
		if !IsRangeOperand(tok) {
			continue
		}
		for _, ref := range e.Resolve(tok.TValue, self.Sheet) {
			if ref == self {
				continue
			}
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs
}

// Truncated returns the areas of formula that hold more cells than the
// range limit. Extract only reports the corners of such areas, so a formula
// with truncated areas does not list every cell it reads.
func (e *Extractor) Truncated(formula, sheet string) []Area {
	if e.limit <= 0 {
		return nil
	}

	var areas []Area
	for _, tok := range Tokenize(formula) {
		if !IsRangeOperand(tok) {
			continue
		}
		for _, area := range e.ResolveAreas(tok.TValue, sheet) {
			if area.Size() > e.limit {
				areas = append(areas, area)
			}
		}
	}
	return areas
}

// Resolve turns one range operand into cell references. The operand may be
// a cell, an area or a defined name; sheet is the formula's own sheet.
// Operands that match none of these yield nil.
func (e *Extractor) Resolve(operand, sheet string) []model.CellReference {
	areas := e.ResolveAreas(operand, sheet)

	var refs []model.CellReference
	for _, area := range areas {
		refs = append(refs, area.Cells(e.limit)...)
	}
	return refs
}

// ResolveAreas is like Resolve but returns the areas without expanding them.
func (e *Extractor) ResolveAreas(operand, sheet string) []Area {
	if area, err := ParseRange(operand, sheet); err == nil {
		area.Sheet = e.sheets.Canonical(area.Sheet)
		return []Area{area}
	}

	text, ok := e.named[foldName(operand)]
	if !ok {
		return nil
	}
	areas, err := ParseRanges(text, sheet)
	if err != nil {
		return nil
	}
	for i := range areas {
		areas[i].Sheet = e.sheets.Canonical(areas[i].Sheet)
	}
	return areas
}

// Limit returns the range expansion limit.
func (e *Extractor) Limit() int {
	return e.limit
}

func foldName(name string) string {
	return cases.Fold().String(name)
}
