package model

import (
	"encoding/json"
	"testing"
)

// TestParseLiteral tests conversion of raw reader text.
func TestParseLiteral(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected Literal
	}{
		{"", Empty{}},
		{"   ", Empty{}},
		{"10", Number(10)},
		{"-2.5", Number(-2.5)},
		{"1e3", Number(1000)},
		{"Inf", Text("Inf")},
		{"NaN", Text("NaN")},
		{"0x10", Text("0x10")},
		{"in_rate", Text("in_rate")},
		{"12 m2", Text("12 m2")},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			got := ParseLiteral(tc.input)
			if !LiteralEqual(got, tc.expected) {
				t.Errorf("ParseLiteral(%q) = %#v, expected %#v", tc.input, got, tc.expected)
			}
		})
	}
}

// TestLiteralJSON tests JSON encoding of each literal variant.
func TestLiteralJSON(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		value    Literal
		expected string
	}{
		{"number", Number(45), "45"},
		{"text", Text("m2"), `"m2"`},
		{"empty", Empty{}, "null"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			data, err := json.Marshal(tc.value)
			if err != nil {
				t.Fatalf("Marshal returned error: %v", err)
			}
			if string(data) != tc.expected {
				t.Errorf("Marshal = %s, expected %s", data, tc.expected)
			}

			decoded, err := UnmarshalLiteral(data)
			if err != nil {
				t.Fatalf("UnmarshalLiteral returned error: %v", err)
			}
			if !LiteralEqual(decoded, tc.value) {
				t.Errorf("UnmarshalLiteral = %#v, expected %#v", decoded, tc.value)
			}
		})
	}
}

// TestLiteralString tests user-facing formatting.
func TestLiteralString(t *testing.T) {
	t.Parallel()

	if got := Number(2.50).String(); got != "2.5" {
		t.Errorf("Number(2.5).String() = %q", got)
	}
	if got := Number(45).String(); got != "45" {
		t.Errorf("Number(45).String() = %q", got)
	}
	if got := (Empty{}).String(); got != "" {
		t.Errorf("Empty.String() = %q", got)
	}
	if !IsEmpty(nil) || !IsEmpty(Empty{}) || IsEmpty(Number(0)) {
		t.Error("IsEmpty returned unexpected result")
	}
}

// TestCellJSON tests that a cell survives a JSON round-trip with its literal.
func TestCellJSON(t *testing.T) {
	t.Parallel()

	cell := Cell{
		Reference: NewCellReference("Calc", "C1"),
		Value:     Number(15),
		Formula:   "=B1+5",
		Marker:    "FF00B050",
	}

	data, err := json.Marshal(cell)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	expected := `{"reference":"Calc!C1","value":15,"formula":"=B1+5","marker":"FF00B050"}`
	if string(data) != expected {
		t.Errorf("Marshal = %s, expected %s", data, expected)
	}

	var decoded Cell
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if decoded.Reference != cell.Reference || !LiteralEqual(decoded.Value, cell.Value) ||
		decoded.Formula != cell.Formula || decoded.Marker != cell.Marker {
		t.Errorf("Unmarshal = %+v, expected %+v", decoded, cell)
	}
}

// TestCellRoleString tests role names.
func TestCellRoleString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		role     CellRole
		expected string
	}{
		{RolePlain, "plain"},
		{RoleInput, "input"},
		{RoleOutput, "output"},
		{RoleFormula, "formula"},
		{CellRole(99), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.role.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.role.String(), tc.expected)
			}
		})
	}
}
