package evaluator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nao1215/formulagraph/internal/model"
	"github.com/nao1215/formulagraph/internal/reference"
)

// Expr is a compiled formula expression.
//
// Formulas are compiled into a small tree of typed nodes and interpreted;
// formula text is never turned into executable code.
type Expr interface {
	// Eval computes the expression against the cell values in env.
	Eval(env Env) (model.Literal, error)

	// String returns a canonical rendering of the expression.
	String() string
}

// Env provides cell values to an evaluation.
type Env interface {
	// Lookup returns the value of ref. A cell the environment does not
	// know is an error, never an implicit empty value.
	Lookup(ref model.CellReference) (model.Literal, error)
}

// MapEnv is an Env backed by the dependency values handed over by the
// recalculation engine. Those keys use the document's sheet spelling, so a
// reference written with another spelling falls back to a case-folded
// sheet match.
type MapEnv map[model.CellReference]model.Literal

// Lookup returns the value of ref. References absent from the map are a
// #REF! error.
func (m MapEnv) Lookup(ref model.CellReference) (model.Literal, error) {
	if v, ok := m[ref]; ok {
		return model.OrEmpty(v), nil
	}
	folded := model.FoldSheetName(ref.Sheet)
	for key, v := range m {
		if key.Coord == ref.Coord && model.FoldSheetName(key.Sheet) == folded {
			return model.OrEmpty(v), nil
		}
	}
	return nil, fmt.Errorf("%w: %s is not a dependency of the formula", ErrReference, ref)
}

// NumberExpr is a numeric constant. Logical constants compile to 1 and 0.
type NumberExpr struct {
	Value float64
}

// Eval returns the constant.
func (e *NumberExpr) Eval(Env) (model.Literal, error) {
	return model.Number(e.Value), nil
}

func (e *NumberExpr) String() string {
	return strconv.FormatFloat(e.Value, 'f', -1, 64)
}

// TextExpr is a string constant.
type TextExpr struct {
	Value string
}

// Eval returns the constant.
func (e *TextExpr) Eval(Env) (model.Literal, error) {
	return model.Text(e.Value), nil
}

func (e *TextExpr) String() string {
	return strconv.Quote(e.Value)
}

// ErrorExpr is an error constant such as #REF! written in the formula.
type ErrorExpr struct {
	Code string
}

// Eval always fails.
func (e *ErrorExpr) Eval(Env) (model.Literal, error) {
	return nil, fmt.Errorf("%w: formula contains %s", ErrReference, e.Code)
}

func (e *ErrorExpr) String() string {
	return e.Code
}

// RangeExpr reads one cell or a block of cells.
type RangeExpr struct {
	Text  string
	Areas []reference.Area
	Limit int
}

// Eval returns the value of a single-cell range. A multi-cell range used
// where a single value is expected is a #VALUE! error.
func (e *RangeExpr) Eval(env Env) (model.Literal, error) {
	if len(e.Areas) == 1 && e.Areas[0].IsSingle() {
		return env.Lookup(e.Areas[0].Start())
	}
	return nil, fmt.Errorf("%w: range %s used as a single value", ErrValue, e.Text)
}

// Values returns the values of every cell of the range in row-major order.
// An area above the range limit is an error: only its corners are known
// dependencies, and reading them alone would give a wrong result.
func (e *RangeExpr) Values(env Env) ([]model.Literal, error) {
	var values []model.Literal
	for _, area := range e.Areas {
		if e.Limit > 0 && area.Size() > e.Limit {
			return nil, fmt.Errorf("%w: %s holds %d cells, more than the limit of %d",
				ErrRangeLimit, area, area.Size(), e.Limit)
		}
		for _, ref := range area.Cells(e.Limit) {
			v, err := env.Lookup(ref)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
	}
	return values, nil
}

func (e *RangeExpr) String() string {
	parts := make([]string, 0, len(e.Areas))
	for _, a := range e.Areas {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ",")
}

// NegExpr is unary minus.
type NegExpr struct {
	Operand Expr
}

// Eval negates the operand.
func (e *NegExpr) Eval(env Env) (model.Literal, error) {
	v, err := evalNumber(e.Operand, env)
	if err != nil {
		return nil, err
	}
	return model.Number(-v), nil
}

func (e *NegExpr) String() string {
	return "-" + e.Operand.String()
}

// PercentExpr is the postfix percent operator.
type PercentExpr struct {
	Operand Expr
}

// Eval divides the operand by 100.
func (e *PercentExpr) Eval(env Env) (model.Literal, error) {
	v, err := evalNumber(e.Operand, env)
	if err != nil {
		return nil, err
	}
	return model.Number(v / 100), nil
}

func (e *PercentExpr) String() string {
	return e.Operand.String() + "%"
}

// BinaryExpr is an infix operation.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// Eval applies the operator.
func (e *BinaryExpr) Eval(env Env) (model.Literal, error) {
	left, err := e.Left.Eval(env)
	if err != nil {
		return nil, err
	}
	right, err := e.Right.Eval(env)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "&":
		return model.Text(left.String() + right.String()), nil
	case "=", "<>", "<", "<=", ">", ">=":
		return compare(e.Op, left, right), nil
	}

	l, err := toNumber(left)
	if err != nil {
		return nil, err
	}
	r, err := toNumber(right)
	if err != nil {
		return nil, err
	}

	var result float64
	switch e.Op {
	case "+":
		result = l + r
	case "-":
		result = l - r
	case "*":
		result = l * r
	case "/":
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		result = l / r
	case "^":
		result = math.Pow(l, r)
	default:
		return nil, fmt.Errorf("%w: operator %q", ErrUnsupported, e.Op)
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, fmt.Errorf("%w: %s", ErrNumber, e)
	}
	return model.Number(result), nil
}

func (e *BinaryExpr) String() string {
	return "(" + e.Left.String() + e.Op + e.Right.String() + ")"
}

// CallExpr is a function call.
type CallExpr struct {
	Name string
	Args []Expr
	fn   function
}

// Eval calls the function.
func (e *CallExpr) Eval(env Env) (model.Literal, error) {
	return e.fn(e.Args, env)
}

func (e *CallExpr) String() string {
	args := make([]string, 0, len(e.Args))
	for _, a := range e.Args {
		args = append(args, a.String())
	}
	return e.Name + "(" + strings.Join(args, ",") + ")"
}

// evalNumber evaluates e and coerces the result to a number.
func evalNumber(e Expr, env Env) (float64, error) {
	v, err := e.Eval(env)
	if err != nil {
		return 0, err
	}
	return toNumber(v)
}

// toNumber coerces a literal for arithmetic: Empty is 0 and numeric text is
// parsed. Other text is a #VALUE! error.
func toNumber(l model.Literal) (float64, error) {
	switch v := model.OrEmpty(l).(type) {
	case model.Number:
		return float64(v), nil
	case model.Empty:
		return 0, nil
	case model.Text:
		if n, ok := model.ParseLiteral(string(v)).(model.Number); ok {
			return float64(n), nil
		}
		return 0, fmt.Errorf("%w: %q is not a number", ErrValue, string(v))
	default:
		return 0, fmt.Errorf("%w: unexpected literal %T", ErrValue, l)
	}
}

// truth converts a literal to a condition: non-zero numbers and the text
// "TRUE" are true.
func truth(l model.Literal) (bool, error) {
	if t, ok := l.(model.Text); ok {
		switch strings.ToUpper(strings.TrimSpace(string(t))) {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
	}
	n, err := toNumber(l)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

func boolNumber(b bool) model.Literal {
	if b {
		return model.Number(1)
	}
	return model.Number(0)
}

// compare implements the comparison operators. Numbers compare
// numerically, text case-insensitively, and any number is less than any
// text. Empty compares as 0 against numbers and as "" against text.
func compare(op string, left, right model.Literal) model.Literal {
	c := compareLiterals(model.OrEmpty(left), model.OrEmpty(right))
	switch op {
	case "=":
		return boolNumber(c == 0)
	case "<>":
		return boolNumber(c != 0)
	case "<":
		return boolNumber(c < 0)
	case "<=":
		return boolNumber(c <= 0)
	case ">":
		return boolNumber(c > 0)
	default:
		return boolNumber(c >= 0)
	}
}

func compareLiterals(a, b model.Literal) int {
	_, aText := a.(model.Text)
	_, bText := b.(model.Text)

	switch {
	case aText || bText:
		if !aText && !model.IsEmpty(a) {
			return -1
		}
		if !bText && !model.IsEmpty(b) {
			return 1
		}
		return strings.Compare(strings.ToLower(a.String()), strings.ToLower(b.String()))
	default:
		x, _ := toNumber(a)
		y, _ := toNumber(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
}
