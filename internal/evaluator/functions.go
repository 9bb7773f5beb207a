package evaluator

import (
	"errors"
	"fmt"
	"math"

	"github.com/nao1215/formulagraph/internal/model"
)

// function evaluates a call. Arguments are passed unevaluated so that IF
// only computes the branch it takes.
type function func(args []Expr, env Env) (model.Literal, error)

// functions is the set of supported worksheet functions.
var functions map[string]function

func init() {
	functions = map[string]function{
		"SUM":       aggregate("SUM", sum),
		"PRODUCT":   aggregate("PRODUCT", product),
		"MIN":       aggregate("MIN", minimum),
		"MAX":       aggregate("MAX", maximum),
		"AVERAGE":   aggregate("AVERAGE", average),
		"COUNT":     count,
		"ABS":       abs,
		"ROUND":     rounding("ROUND", roundHalfAway),
		"ROUNDUP":   rounding("ROUNDUP", roundAway),
		"ROUNDDOWN": rounding("ROUNDDOWN", math.Trunc),
		"IF":        ifFunc,
		"AND":       logic("AND", true),
		"OR":        logic("OR", false),
		"NOT":       not,
	}
}

// Supported returns whether name is a supported function.
func Supported(name string) bool {
	_, ok := functions[name]
	return ok
}

// numbers collects the numeric arguments of an aggregate. Cells of a range
// that hold text or nothing are skipped; a direct argument is coerced and
// may fail.
func numbers(args []Expr, env Env) ([]float64, error) {
	var out []float64
	for _, arg := range args {
		if r, ok := arg.(*RangeExpr); ok {
			values, err := r.Values(env)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				if n, ok := v.(model.Number); ok {
					out = append(out, float64(n))
				}
			}
			continue
		}
		n, err := evalNumber(arg, env)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func aggregate(name string, reduce func([]float64) (float64, error)) function {
	return func(args []Expr, env Env) (model.Literal, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: %s needs at least one argument", ErrArity, name)
		}
		values, err := numbers(args, env)
		if err != nil {
			return nil, err
		}
		result, err := reduce(values)
		if err != nil {
			return nil, err
		}
		return model.Number(result), nil
	}
}

func sum(values []float64) (float64, error) {
	var total float64
	for _, v := range values {
		total += v
	}
	return total, nil
}

func product(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	total := 1.0
	for _, v := range values {
		total *= v
	}
	return total, nil
}

func minimum(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	m := values[0]
	for _, v := range values[1:] {
		m = math.Min(m, v)
	}
	return m, nil
}

func maximum(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	m := values[0]
	for _, v := range values[1:] {
		m = math.Max(m, v)
	}
	return m, nil
}

func average(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrDivisionByZero
	}
	total, _ := sum(values)
	return total / float64(len(values)), nil
}

// count counts numeric values. Direct arguments that are not numbers are
// simply not counted; a range that cannot be read is still an error.
func count(args []Expr, env Env) (model.Literal, error) {
	var n int
	for _, arg := range args {
		if r, ok := arg.(*RangeExpr); ok {
			values, err := r.Values(env)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				if _, ok := v.(model.Number); ok {
					n++
				}
			}
			continue
		}
		v, err := arg.Eval(env)
		if errors.Is(err, ErrReference) {
			return nil, err
		}
		if err != nil {
			continue
		}
		if _, ok := v.(model.Number); ok {
			n++
		}
	}
	return model.Number(n), nil
}

func abs(args []Expr, env Env) (model.Literal, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: ABS takes 1 argument", ErrArity)
	}
	v, err := evalNumber(args[0], env)
	if err != nil {
		return nil, err
	}
	return model.Number(math.Abs(v)), nil
}

func rounding(name string, round func(float64) float64) function {
	return func(args []Expr, env Env) (model.Literal, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: %s takes 2 arguments", ErrArity, name)
		}
		v, err := evalNumber(args[0], env)
		if err != nil {
			return nil, err
		}
		digits, err := evalNumber(args[1], env)
		if err != nil {
			return nil, err
		}
		scale := math.Pow(10, math.Trunc(digits))
		return model.Number(round(v*scale) / scale), nil
	}
}

// roundHalfAway rounds half away from zero, correcting for binary
// representation error so that ROUND(2.675, 2) is 2.68.
func roundHalfAway(v float64) float64 {
	return math.Round(v + math.Copysign(1e-9, v))
}

func roundAway(v float64) float64 {
	if v < 0 {
		return math.Floor(v + 1e-9)
	}
	return math.Ceil(v - 1e-9)
}

func ifFunc(args []Expr, env Env) (model.Literal, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("%w: IF takes 2 or 3 arguments", ErrArity)
	}
	cond, err := args[0].Eval(env)
	if err != nil {
		return nil, err
	}
	ok, err := truth(cond)
	if err != nil {
		return nil, err
	}
	switch {
	case ok:
		return args[1].Eval(env)
	case len(args) == 3:
		return args[2].Eval(env)
	default:
		return boolNumber(false), nil
	}
}

// logic builds AND (all) and OR (any).
func logic(name string, all bool) function {
	return func(args []Expr, env Env) (model.Literal, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: %s needs at least one argument", ErrArity, name)
		}
		result := all
		for _, arg := range args {
			v, err := arg.Eval(env)
			if err != nil {
				return nil, err
			}
			b, err := truth(v)
			if err != nil {
				return nil, err
			}
			if all {
				result = result && b
			} else {
				result = result || b
			}
		}
		return boolNumber(result), nil
	}
}

func not(args []Expr, env Env) (model.Literal, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: NOT takes 1 argument", ErrArity)
	}
	v, err := args[0].Eval(env)
	if err != nil {
		return nil, err
	}
	b, err := truth(v)
	if err != nil {
		return nil, err
	}
	return boolNumber(!b), nil
}
