// Package evaluator is the built-in formula evaluator used by the
// recalculation engine.
//
// Formulas are tokenized with the efp Excel formula tokenizer, compiled into
// an expression tree once per distinct (sheet, formula) pair and then
// interpreted against the values of the cells they read. The supported
// language covers arithmetic, comparison and concatenation operators,
// percent, parentheses and a small set of worksheet functions. Anything
// else is reported as an error, which the engine records as a cell that
// could not be evaluated.
//
// Design decision: logical values are represented as the numbers 1 and 0,
// because the literal model only has numbers, text and empty.
package evaluator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nao1215/formulagraph/internal/model"
	"github.com/nao1215/formulagraph/internal/reference"
)

// Evaluation errors. They wrap the spreadsheet error code they correspond to.
var (
	ErrSyntax         = errors.New("#ERROR! syntax error")
	ErrName           = errors.New("#NAME? unknown name")
	ErrValue          = errors.New("#VALUE! wrong value type")
	ErrDivisionByZero = errors.New("#DIV/0! division by zero")
	ErrNumber         = errors.New("#NUM! invalid numeric result")
	ErrReference      = errors.New("#REF! invalid reference")
	ErrArity          = errors.New("#N/A wrong number of arguments")
	ErrUnsupported    = errors.New("unsupported formula construct")
	ErrRangeLimit     = errors.New("#REF! range exceeds the range limit")
)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithExtractor sets the extractor used to resolve references, so that the
// evaluator resolves names, sheets and large areas exactly as the analysis
// that produced the dependency graph did. Pass analyzer.Analysis.Extractor.
func WithExtractor(e *reference.Extractor) Option {
	return func(ev *Evaluator) {
		if e != nil {
			ev.extractor = e
		}
	}
}

// Evaluator compiles and evaluates formulas. It is safe for concurrent use.
type Evaluator struct {
	extractor *reference.Extractor

	mu    sync.RWMutex
	cache map[compileKey]compiled
}

type compileKey struct {
	sheet   string
	formula string
}

type compiled struct {
	expr Expr
	err  error
}

// New creates an evaluator.
func New(opts ...Option) *Evaluator {
	ev := &Evaluator{
		extractor: reference.NewExtractor(),
		cache:     make(map[compileKey]compiled),
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Compile compiles formula as written in a cell of sheet. Results,
// including failures, are cached.
func (ev *Evaluator) Compile(formula, sheet string) (Expr, error) {
	key := compileKey{sheet: sheet, formula: formula}

	ev.mu.RLock()
	c, ok := ev.cache[key]
	ev.mu.RUnlock()
	if ok {
		return c.expr, c.err
	}

	expr, err := parse(reference.Tokenize(formula), sheet, ev.extractor)
	if err != nil {
		err = fmt.Errorf("compile %q: %w", formula, err)
	}

	ev.mu.Lock()
	ev.cache[key] = compiled{expr: expr, err: err}
	ev.mu.Unlock()
	return expr, err
}

// Evaluate computes the formula of cell from the values in deps. It
// satisfies the recalculation engine's Evaluator interface.
func (ev *Evaluator) Evaluate(cell model.CellReference, formula string, deps map[model.CellReference]model.Literal) (model.Literal, error) {
	expr, err := ev.Compile(formula, cell.Sheet)
	if err != nil {
		return nil, err
	}
	v, err := expr.Eval(MapEnv(deps))
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", cell, err)
	}
	return model.OrEmpty(v), nil
}

// Len returns the number of cached compilations.
func (ev *Evaluator) Len() int {
	ev.mu.RLock()
	defer ev.mu.RUnlock()
	return len(ev.cache)
}
