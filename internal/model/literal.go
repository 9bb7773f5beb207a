package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Literal is the value held by a cell: a Number, a Text or Empty.
//
// Design decision: Literal is a closed sum type. The unexported marker method
// prevents other packages from adding variants, so a type switch over
// Number, Text and Empty is exhaustive. Callers never have to inspect an
// untyped interface{} value at runtime.
type Literal interface {
	// String returns the literal as a user-facing string.
	String() string

	literal()
}

// Number is a numeric literal.
type Number float64

// Text is a string literal.
type Text string

// Empty is the value of a blank or missing cell.
type Empty struct{}

func (Number) literal() {}
func (Text) literal()   {}
func (Empty) literal()  {}

// String returns the shortest decimal form of the number.
func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

// String returns the text unchanged.
func (t Text) String() string {
	return string(t)
}

// String returns the empty string.
func (Empty) String() string {
	return ""
}

// MarshalJSON encodes Empty as null.
func (Empty) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IsEmpty reports whether l is nil or Empty.
func IsEmpty(l Literal) bool {
	if l == nil {
		return true
	}
	_, ok := l.(Empty)
	return ok
}

// OrEmpty returns l, or Empty when l is nil.
func OrEmpty(l Literal) Literal {
	if l == nil {
		return Empty{}
	}
	return l
}

// ParseLiteral converts raw text from a document reader into a literal.
// Blank text becomes Empty, finite decimal numbers become Number and
// everything else is kept as Text.
func ParseLiteral(raw string) Literal {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Empty{}
	}
	if looksNumeric(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return Number(f)
		}
	}
	return Text(raw)
}

// looksNumeric rejects spellings strconv accepts but a spreadsheet would
// keep as text ("Inf", "NaN", hex floats, "1_000").
func looksNumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return false
		}
	}
	return true
}

// UnmarshalLiteral decodes a JSON number, string or null into a literal.
func UnmarshalLiteral(data []byte) (Literal, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Empty{}, nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode text literal: %w", err)
		}
		return Text(s), nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to decode number literal: %w", err)
		}
		return Number(f), nil
	}
}

// LiteralEqual reports whether two literals hold the same value.
// nil and Empty are equal.
func LiteralEqual(a, b Literal) bool {
	return OrEmpty(a) == OrEmpty(b)
}

// UnmarshalLiteralMap decodes a JSON object of reference -> literal.
func UnmarshalLiteralMap(data []byte) (map[CellReference]Literal, error) {
	var raw map[CellReference]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	values := make(map[CellReference]Literal, len(raw))
	for ref, msg := range raw {
		value, err := UnmarshalLiteral(msg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ref, err)
		}
		values[ref] = value
	}
	return values, nil
}
