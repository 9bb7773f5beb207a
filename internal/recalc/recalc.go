// Package recalc re-executes a template's formulas after the caller supplies
// new input values.
//
// The engine does no arithmetic itself. It walks the execution order of an
// analysis and hands each formula, together with the values of the cells it
// reads, to a host-supplied Evaluator. Cells on a dependency cycle are never
// evaluated, and a failure in one cell only affects the cells downstream of
// it: the call as a whole still succeeds with a per-cell status map.
package recalc

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/formulagraph/internal/analyzer"
	"github.com/nao1215/formulagraph/internal/model"
)

// ErrInvalidAnalysis is returned when Recalculate is given an analysis that
// was not produced by analyzer.Analyze. This is a caller bug, not a problem
// with the document.
var ErrInvalidAnalysis = errors.New("analysis was not produced by analyzer.Analyze")

// Evaluator computes the value of one formula cell.
//
// deps holds the current value of every cell the formula reads, keyed by
// reference; cells outside the known grid are present as Empty. An error
// marks the cell not evaluable without aborting the recalculation.
type Evaluator interface {
	Evaluate(cell model.CellReference, formula string, deps map[model.CellReference]model.Literal) (model.Literal, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(cell model.CellReference, formula string, deps map[model.CellReference]model.Literal) (model.Literal, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(cell model.CellReference, formula string, deps map[model.CellReference]model.Literal) (model.Literal, error) {
	return f(cell, formula, deps)
}

// Option configures Recalculate.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Recalculate overlays inputs onto the analysis' cell values, evaluates the
// formula cells in execution order and returns the refreshed output fields.
//
// Supplied references that are not input fields are ignored and listed in
// RecalcResult.IgnoredInputs. When ev is nil every formula cell ends as
// not evaluable. The analysis itself is never modified, so concurrent calls
// on one analysis are safe.
func Recalculate(a *analyzer.Analysis, inputs map[model.CellReference]model.Literal, ev Evaluator, opts ...Option) (*model.RecalcResult, error) {
	if !a.Built() {
		return nil, ErrInvalidAnalysis
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	p := &pass{
		analysis: a,
		result:   model.NewRecalcResult(),
		overlay:  make(map[model.CellReference]model.Literal, len(inputs)),
		supplied: make(map[model.CellReference]bool, len(inputs)),
	}
	p.applyInputs(inputs)

	for _, ref := range a.Graph.CyclicNodes() {
		p.result.Statuses[ref] = model.StatusUpstreamCycle
	}
	for _, ref := range a.Order {
		p.evaluate(ref, ev)
	}
	p.readOutputs()

	counts := p.result.CountByStatus()
	o.logger.Debug("recalculated template",
		"identity", a.Identity,
		"inputs", len(p.supplied),
		"ignored", len(p.result.IgnoredInputs),
		"evaluated", counts[model.StatusEvaluated],
		"not_evaluable", counts[model.StatusNotEvaluable],
		"upstream_cycle", counts[model.StatusUpstreamCycle],
	)
	return p.result, nil
}

// pass is the working state of one Recalculate call.
type pass struct {
	analysis *analyzer.Analysis
	result   *model.RecalcResult
	overlay  map[model.CellReference]model.Literal
	supplied map[model.CellReference]bool
}

func (p *pass) applyInputs(inputs map[model.CellReference]model.Literal) {
	for ref, value := range inputs {
		if _, ok := p.analysis.Structure.InputFields[ref]; !ok {
			p.result.IgnoredInputs = append(p.result.IgnoredInputs, ref)
			continue
		}
		p.overlay[ref] = model.OrEmpty(value)
		p.supplied[ref] = true
	}
	model.SortReferences(p.result.IgnoredInputs)
}

// value returns the current value of ref: the overlay first, then the
// document.
func (p *pass) value(ref model.CellReference) model.Literal {
	if v, ok := p.overlay[ref]; ok {
		return v
	}
	return p.analysis.Value(ref)
}

// evaluate computes one formula cell. Each cell in the order is visited
// exactly once.
func (p *pass) evaluate(ref model.CellReference, ev Evaluator) {
	// A formula cell re-tagged as input takes the supplied value.
	if p.supplied[ref] {
		p.result.Statuses[ref] = model.StatusEvaluated
		p.result.Values[ref] = p.overlay[ref]
		return
	}

	// Only the corners of an oversized area are known dependencies, so the
	// evaluator would see an incomplete range.
	if p.analysis.Truncated(ref) {
		p.result.Statuses[ref] = model.StatusNotEvaluable
		return
	}

	deps := p.analysis.Graph.Dependencies(ref)
	for _, dep := range deps {
		if status, ok := p.result.Statuses[dep]; ok && status != model.StatusEvaluated {
			p.result.Statuses[ref] = model.StatusNotEvaluable
			return
		}
	}
	if ev == nil {
		p.result.Statuses[ref] = model.StatusNotEvaluable
		return
	}

	values := make(map[model.CellReference]model.Literal, len(deps))
	for _, dep := range deps {
		values[dep] = p.value(dep)
	}

	formula, _ := p.analysis.Graph.Formula(ref)
	value, err := safeEvaluate(ev, ref, formula, values)
	if err != nil {
		p.result.Statuses[ref] = model.StatusNotEvaluable
		return
	}

	value = model.OrEmpty(value)
	p.overlay[ref] = value
	p.result.Values[ref] = value
	p.result.Statuses[ref] = model.StatusEvaluated
}

// readOutputs reads every output field once the pass is complete. Output
// fields that are not formula cells keep their value and count as evaluated.
// Output formula cells that could not be evaluated keep the value stored
// in the document.
func (p *pass) readOutputs() {
	for _, ref := range p.analysis.Structure.OutputReferences() {
		status, ok := p.result.Statuses[ref]
		if !ok {
			status = model.StatusEvaluated
			p.result.Statuses[ref] = status
		}
		p.result.Outputs[ref] = model.OutputValue{Value: p.value(ref), Status: status}
	}
}

// safeEvaluate calls the evaluator and turns a panic into an error, so a
// faulty host evaluator cannot abort the recalculation.
func safeEvaluate(ev Evaluator, ref model.CellReference, formula string, deps map[model.CellReference]model.Literal) (value model.Literal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluator panicked on %s: %v", ref, r)
		}
	}()
	return ev.Evaluate(ref, formula, deps)
}
