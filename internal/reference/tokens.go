package reference

import (
	"strings"

	"github.com/xuri/efp"
)

// Tokenize splits formula text into efp tokens. The leading "=" and
// whitespace tokens are dropped. Tokenize never panics; input the tokenizer
// cannot handle yields no tokens.
func Tokenize(formula string) (tokens []efp.Token) {
	formula = strings.TrimSpace(formula)
	if formula == "" || formula == "=" {
		return nil
	}

	defer func() {
		// Malformed input must never abort an analysis.
		if recover() != nil {
			tokens = nil
		}
	}()

	// A Parser keeps its offset between calls, so each formula gets its own.
	ps := efp.ExcelParser()
	raw := ps.Parse(formula)

	tokens = make([]efp.Token, 0, len(raw))
	for i, tok := range raw {
		if i == 0 && tok.TType == efp.TokenTypeOperatorInfix && tok.TValue == "=" {
			continue
		}
		if tok.TType == efp.TokenTypeWhitespace || tok.TType == efp.TokenTypeNoop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// IsRangeOperand reports whether tok is an operand that names cells:
// a cell, an area or a defined name.
func IsRangeOperand(tok efp.Token) bool {
	return tok.TType == efp.TokenTypeOperand && tok.TSubType == efp.TokenSubTypeRange
}
