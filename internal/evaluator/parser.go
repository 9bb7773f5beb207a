package evaluator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/efp"

	"github.com/nao1215/formulagraph/internal/reference"
)

// Binding powers of the infix operators, loosest first.
const (
	precComparison = iota + 1
	precConcat
	precAdditive
	precMultiplicative
	precPower
)

func infixPrecedence(op string) int {
	switch op {
	case "=", "<>", "<", "<=", ">", ">=":
		return precComparison
	case "&":
		return precConcat
	case "+", "-":
		return precAdditive
	case "*", "/":
		return precMultiplicative
	case "^":
		return precPower
	default:
		return 0
	}
}

// parser is a Pratt parser over efp tokens.
type parser struct {
	tokens    []efp.Token
	pos       int
	sheet     string
	extractor *reference.Extractor
}

// parse compiles the tokens of one formula. sheet is the sheet of the cell
// holding the formula; unqualified references resolve to it.
func parse(tokens []efp.Token, sheet string, extractor *reference.Extractor) (Expr, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty formula", ErrSyntax)
	}
	p := &parser{tokens: tokens, sheet: sheet, extractor: extractor}

	expr, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, fmt.Errorf("%w: unexpected %s %q", ErrSyntax, tok.TType, tok.TValue)
	}
	return expr, nil
}

func (p *parser) peek() (efp.Token, bool) {
	if p.pos >= len(p.tokens) {
		return efp.Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (efp.Token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *parser) expression(minPrec int) (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peek()
		if !ok || tok.TType != efp.TokenTypeOperatorInfix {
			return left, nil
		}
		if tok.TSubType == efp.TokenSubTypeIntersection || tok.TSubType == efp.TokenSubTypeUnion {
			return nil, fmt.Errorf("%w: range %s operator", ErrUnsupported, strings.ToLower(tok.TSubType))
		}

		prec := infixPrecedence(tok.TValue)
		if prec == 0 {
			return nil, fmt.Errorf("%w: operator %q", ErrUnsupported, tok.TValue)
		}
		if prec < minPrec {
			return left, nil
		}
		p.pos++

		// All binary operators are left-associative.
		right, err := p.expression(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: tok.TValue, Left: left, Right: right}
	}
}

// unary parses prefix negation, which binds tighter than every infix
// operator: -2^2 is 4.
func (p *parser) unary() (Expr, error) {
	if tok, ok := p.peek(); ok && tok.TType == efp.TokenTypeOperatorPrefix {
		p.pos++
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		if tok.TValue == "+" {
			return operand, nil
		}
		return &NegExpr{Operand: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Expr, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.TType != efp.TokenTypeOperatorPostfix {
			return expr, nil
		}
		p.pos++
		expr = &PercentExpr{Operand: expr}
	}
}

func (p *parser) primary() (Expr, error) {
	tok, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("%w: formula ends unexpectedly", ErrSyntax)
	}

	switch tok.TType {
	case efp.TokenTypeOperand:
		return p.operand(tok)
	case efp.TokenTypeFunction:
		if tok.TSubType != efp.TokenSubTypeStart {
			return nil, fmt.Errorf("%w: unbalanced parenthesis", ErrSyntax)
		}
		return p.call(tok.TValue)
	case efp.TokenTypeSubexpression:
		if tok.TSubType != efp.TokenSubTypeStart {
			return nil, fmt.Errorf("%w: unbalanced parenthesis", ErrSyntax)
		}
		expr, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		if end, ok := p.next(); !ok || end.TType != efp.TokenTypeSubexpression || end.TSubType != efp.TokenSubTypeStop {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		return expr, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %s %q", ErrSyntax, tok.TType, tok.TValue)
	}
}

func (p *parser) operand(tok efp.Token) (Expr, error) {
	switch tok.TSubType {
	case efp.TokenSubTypeNumber:
		v, err := strconv.ParseFloat(tok.TValue, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrSyntax, tok.TValue)
		}
		return &NumberExpr{Value: v}, nil
	case efp.TokenSubTypeText:
		return &TextExpr{Value: tok.TValue}, nil
	case efp.TokenSubTypeLogical:
		return logical(tok.TValue), nil
	case efp.TokenSubTypeError:
		return &ErrorExpr{Code: tok.TValue}, nil
	case efp.TokenSubTypeRange:
		areas := p.extractor.ResolveAreas(tok.TValue, p.sheet)
		if len(areas) == 0 {
			// The tokenizer only recognises upper-case logicals.
			if upper := strings.ToUpper(tok.TValue); upper == "TRUE" || upper == "FALSE" {
				return logical(upper), nil
			}
			return nil, fmt.Errorf("%w: %q", ErrName, tok.TValue)
		}
		return &RangeExpr{Text: tok.TValue, Areas: areas, Limit: p.extractor.Limit()}, nil
	default:
		return nil, fmt.Errorf("%w: operand %q", ErrUnsupported, tok.TValue)
	}
}

func logical(value string) Expr {
	if value == "TRUE" {
		return &NumberExpr{Value: 1}
	}
	return &NumberExpr{Value: 0}
}

func (p *parser) call(name string) (Expr, error) {
	name = strings.ToUpper(name)
	fn, ok := functions[name]
	if !ok {
		return nil, fmt.Errorf("%w: function %s", ErrName, name)
	}

	call := &CallExpr{Name: name, fn: fn}
	if tok, ok := p.peek(); ok && isFunctionStop(tok) {
		p.pos++
		return call, nil
	}

	for {
		arg, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		tok, ok := p.next()
		switch {
		case !ok:
			return nil, fmt.Errorf("%w: missing closing parenthesis in %s", ErrSyntax, name)
		case isFunctionStop(tok):
			return call, nil
		case tok.TType == efp.TokenTypeArgument:
			continue
		default:
			return nil, fmt.Errorf("%w: unexpected %s %q in %s", ErrSyntax, tok.TType, tok.TValue, name)
		}
	}
}

func isFunctionStop(tok efp.Token) bool {
	return tok.TType == efp.TokenTypeFunction && tok.TSubType == efp.TokenSubTypeStop
}
