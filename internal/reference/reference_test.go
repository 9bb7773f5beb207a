package reference

import (
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/formulagraph/internal/model"
)

func refsString(refs []model.CellReference) string {
	parts := make([]string, 0, len(refs))
	for _, r := range refs {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ",")
}

// TestExtract tests reference extraction from formula text.
func TestExtract(t *testing.T) {
	t.Parallel()

	self := model.NewCellReference("Sheet1", "C1")

	testCases := []struct {
		name     string
		formula  string
		expected string
	}{
		{"qualified and unqualified", "=Sheet2!A1+B2", "Sheet2!A1,Sheet1!B2"},
		{"anchors", "=$A$1*$b2", "Sheet1!A1,Sheet1!B2"},
		{"deduplicated in order", "=B1+A1+B1", "Sheet1!B1,Sheet1!A1"},
		{"self excluded", "=C1+A1", "Sheet1!A1"},
		{"area expanded", "=SUM(A1:B2)", "Sheet1!A1,Sheet1!B1,Sheet1!A2,Sheet1!B2"},
		{"reversed area normalized", "=SUM(B2:A1)", "Sheet1!A1,Sheet1!B1,Sheet1!A2,Sheet1!B2"},
		{"quoted sheet", "='Unit Rates'!B3*2", "'Unit Rates'!B3"},
		{"nested functions", "=IF(A1>0,ROUND(B1,2),MAX(C2,D2))", "Sheet1!A1,Sheet1!B1,Sheet1!C2,Sheet1!D2"},
		{"string literal ignored", `="A1"&B1`, "Sheet1!B1"},
		{"number ignored", "=2*3", ""},
		{"function names ignored", "=SUM(1,2)", ""},
		{"no leading equals", "A1+1", "Sheet1!A1"},
		{"empty", "", ""},
		{"malformed", "=((A1+", "Sheet1!A1"},
		{"garbage", "=)(*&^%$#@!", ""},
		{"unterminated string", `="abc`, ""},
		{"whole column ignored", "=SUM(A:A)", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := refsString(Extract(tc.formula, self))
			if got != tc.expected {
				t.Errorf("Extract(%q) = %q, expected %q", tc.formula, got, tc.expected)
			}
		})
	}
}

// TestExtractNeverReturnsSelf tests self-reference exclusion inside areas.
func TestExtractNeverReturnsSelf(t *testing.T) {
	t.Parallel()

	self := model.NewCellReference("S", "A2")
	refs := Extract("=SUM(A1:A3)+A2", self)
	for _, r := range refs {
		if r == self {
			t.Fatalf("Extract returned self: %v", refs)
		}
	}
	if got := refsString(refs); got != "S!A1,S!A3" {
		t.Errorf("Extract = %q, expected S!A1,S!A3", got)
	}
}

// TestExtractWithNamedRanges tests defined-name resolution.
func TestExtractWithNamedRanges(t *testing.T) {
	t.Parallel()

	self := model.NewCellReference("Calc", "D1")
	ranges := map[string]string{
		"Rate":    "Calc!$B$2",
		"Lengths": "=Data!$A$1:$A$3",
		"Mixed":   "Calc!$A$1,'Unit Rates'!$C$1",
		"Broken":  "#REF!",
	}

	testCases := []struct {
		name     string
		formula  string
		expected string
	}{
		{"single cell name", "=Rate*2", "Calc!B2"},
		{"case-insensitive name", "=rate*2", "Calc!B2"},
		{"area name", "=SUM(Lengths)", "Data!A1,Data!A2,Data!A3"},
		{"multi area name", "=SUM(Mixed)", "Calc!A1,'Unit Rates'!C1"},
		{"unknown name", "=Unknown+1", ""},
		{"broken name", "=Broken+1", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := refsString(Extract(tc.formula, self, WithNamedRanges(ranges)))
			if got != tc.expected {
				t.Errorf("Extract(%q) = %q, expected %q", tc.formula, got, tc.expected)
			}
		})
	}
}

// TestExtractWithSheetResolver tests case-insensitive sheet canonicalization.
func TestExtractWithSheetResolver(t *testing.T) {
	t.Parallel()

	self := model.NewCellReference("Calc", "A1")
	idx := model.NewSheetIndex("Calc", "Data")

	got := refsString(Extract("=DATA!B1+data!B1+Other!C1", self, WithSheetResolver(idx)))
	if got != "Data!B1,Other!C1" {
		t.Errorf("Extract = %q, expected Data!B1,Other!C1", got)
	}
}

// TestExtractRangeLimit tests that huge areas contribute only their corners.
func TestExtractRangeLimit(t *testing.T) {
	t.Parallel()

	self := model.NewCellReference("S", "Z1")

	got := refsString(Extract("=SUM(A1:B3)", self, WithRangeLimit(4)))
	if got != "S!A1,S!B3" {
		t.Errorf("limited Extract = %q, expected corners", got)
	}

	refs := Extract("=SUM(A1:A10000)", self)
	if len(refs) != 2 {
		t.Errorf("expected default limit to keep corners only, got %d refs", len(refs))
	}

	refs = Extract("=SUM(A1:B3)", self, WithRangeLimit(0))
	if len(refs) != 6 {
		t.Errorf("expected unlimited expansion, got %d refs", len(refs))
	}
}

// TestParseRange tests area parsing.
func TestParseRange(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected Area
	}{
		{"B2", Area{Sheet: "Def", StartCol: 2, StartRow: 2, EndCol: 2, EndRow: 2}},
		{"$A$1:$C$4", Area{Sheet: "Def", StartCol: 1, StartRow: 1, EndCol: 3, EndRow: 4}},
		{"Calc!C4:A1", Area{Sheet: "Calc", StartCol: 1, StartRow: 1, EndCol: 3, EndRow: 4}},
		{"'My Sheet'!A1:'My Sheet'!A2", Area{Sheet: "My Sheet", StartCol: 1, StartRow: 1, EndCol: 1, EndRow: 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRange(tc.input, "Def")
			if err != nil {
				t.Fatalf("ParseRange(%q) returned error: %v", tc.input, err)
			}
			if got != tc.expected {
				t.Errorf("ParseRange(%q) = %+v, expected %+v", tc.input, got, tc.expected)
			}
		})
	}

	for _, bad := range []string{"", "Rate", "A1:Other!B2", "A:A", "#REF!"} {
		if _, err := ParseRange(bad, "Def"); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("ParseRange(%q) error = %v, expected ErrInvalidRange", bad, err)
		}
	}
}

// TestParseRanges tests multi-area defined-name text.
func TestParseRanges(t *testing.T) {
	t.Parallel()

	areas, err := ParseRanges("='A,B'!$A$1,Calc!$B$2:$B$3", "Def")
	if err != nil {
		t.Fatalf("ParseRanges returned error: %v", err)
	}
	if len(areas) != 2 {
		t.Fatalf("expected 2 areas, got %d", len(areas))
	}
	if areas[0].Sheet != "A,B" {
		t.Errorf("areas[0].Sheet = %q, expected A,B", areas[0].Sheet)
	}
	if areas[1].String() != "Calc!B2:B3" {
		t.Errorf("areas[1] = %s, expected Calc!B2:B3", areas[1])
	}
}

// TestAreaContains tests area membership.
func TestAreaContains(t *testing.T) {
	t.Parallel()

	area, err := ParseRange("Calc!B2:C3", "")
	if err != nil {
		t.Fatalf("ParseRange returned error: %v", err)
	}
	if !area.Contains(model.NewCellReference("calc", "C3")) {
		t.Error("expected area to contain calc!C3")
	}
	if area.Contains(model.NewCellReference("Calc", "D3")) {
		t.Error("expected area not to contain Calc!D3")
	}
}
