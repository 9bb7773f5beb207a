package document

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/formulagraph/internal/classifier"
	"github.com/nao1215/formulagraph/internal/model"
)

// scenarioDocument is the Calc sheet with A1 as input, B1 = A1*2 and
// C1 = B1+5 as output, plus a text label and a named range.
func scenarioDocument() *model.Document {
	doc := &model.Document{
		Identity:    "calc",
		NamedRanges: map[string]string{"in_base": "Calc!$A$1"},
	}
	doc.SetCell("Calc", "A1", model.RawCell{Value: model.Number(10), Marker: classifier.DefaultInputMarker})
	doc.SetCell("Calc", "B1", model.RawCell{Formula: "=A1*2"})
	doc.SetCell("Calc", "C1", model.RawCell{Formula: "=B1+5", Marker: classifier.DefaultOutputMarker})
	doc.SetCell("Calc", "A2", model.RawCell{Value: model.Text("0012")})
	doc.SetCell("Notes", "B3", model.RawCell{Value: model.Text("remark")})
	return doc
}

// checkScenario verifies that a reader returned the scenario grid.
func checkScenario(t *testing.T, doc *model.Document) {
	t.Helper()

	if got := strings.Join(doc.SheetNames(), ","); got != "Calc,Notes" {
		t.Fatalf("sheets = %s, expected Calc,Notes", got)
	}
	calc, _ := doc.Sheet("Calc")

	a1 := calc.Cells["A1"]
	if !model.LiteralEqual(a1.Value, model.Number(10)) {
		t.Errorf("A1 value = %#v, expected 10", a1.Value)
	}
	if classifier.NormalizeMarker(a1.Marker) != classifier.DefaultInputMarker {
		t.Errorf("A1 marker = %q", a1.Marker)
	}
	if f := calc.Cells["B1"].Formula; f != "=A1*2" {
		t.Errorf("B1 formula = %q, expected =A1*2", f)
	}
	c1 := calc.Cells["C1"]
	if c1.Formula != "=B1+5" || classifier.NormalizeMarker(c1.Marker) != classifier.DefaultOutputMarker {
		t.Errorf("C1 = %+v", c1)
	}
	if got := calc.Cells["A2"].Value; !model.LiteralEqual(got, model.Text("0012")) {
		t.Errorf("A2 value = %#v, expected text 0012", got)
	}
	if doc.NamedRanges["in_base"] != "Calc!$A$1" {
		t.Errorf("named ranges = %v", doc.NamedRanges)
	}
	if doc.Version == "" {
		t.Error("expected version to be set")
	}
}

// TestXLSXRoundTrip tests writing and reading back a workbook.
func TestXLSXRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, scenarioDocument()); err != nil {
		t.Fatalf("WriteXLSX returned error: %v", err)
	}

	doc, err := ReadXLSXReader(&buf, "calc.xlsx")
	if err != nil {
		t.Fatalf("ReadXLSXReader returned error: %v", err)
	}
	if doc.Identity != "calc.xlsx" {
		t.Errorf("identity = %q", doc.Identity)
	}
	checkScenario(t, doc)

	notes, _ := doc.Sheet("Notes")
	if got := notes.Cells["B3"].Value; !model.LiteralEqual(got, model.Text("remark")) {
		t.Errorf("Notes!B3 = %#v", got)
	}
}

// TestReadXLSXFile tests reading from disk and the cell limit.
func TestReadXLSXFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "calc.xlsx")
	if err := SaveXLSX(path, scenarioDocument()); err != nil {
		t.Fatalf("SaveXLSX returned error: %v", err)
	}

	t.Run("read", func(t *testing.T) {
		t.Parallel()
		doc, err := Read(path)
		if err != nil {
			t.Fatalf("Read returned error: %v", err)
		}
		checkScenario(t, doc)
	})

	t.Run("cell limit", func(t *testing.T) {
		t.Parallel()
		_, err := ReadXLSX(path, WithMaxCells(2))
		if !errors.Is(err, ErrTooManyCells) {
			t.Fatalf("expected ErrTooManyCells, got %v", err)
		}
		var re *ReadError
		if !errors.As(err, &re) || re.Sheet != "Calc" {
			t.Errorf("expected ReadError for sheet Calc, got %v", err)
		}
	})
}

// TestReadHTML tests reading an HTML table export.
func TestReadHTML(t *testing.T) {
	t.Parallel()

	const page = `<!DOCTYPE html>
<html><body>
<table>
  <caption>Quote</caption>
  <tr><th>Item</th><th>Qty</th><th>Total</th></tr>
  <tr>
    <td>Cable</td>
    <td style="background-color: #ffff00">3</td>
    <td data-formula="B2*4" bgcolor="#00B050"></td>
  </tr>
  <tr><td colspan="2">wide</td><td>x</td></tr>
  <tr><td rowspan="2">tall</td><td>r4</td></tr>
  <tr><td>r5</td></tr>
</table>
<table data-sheet="Rates"><tr><td data-cell="D9" data-value="1.5">one and a half</td></tr></table>
<span data-name="in_qty" data-range="Quote!$B$2"></span>
</body></html>`

	doc, err := ReadHTML(strings.NewReader(page), "quote.html")
	if err != nil {
		t.Fatalf("ReadHTML returned error: %v", err)
	}
	if got := strings.Join(doc.SheetNames(), ","); got != "Quote,Rates" {
		t.Fatalf("sheets = %s, expected Quote,Rates", got)
	}

	quote, _ := doc.Sheet("Quote")
	testCases := []struct {
		coord   string
		value   model.Literal
		formula string
		marker  string
	}{
		{coord: "A1", value: model.Text("Item")},
		{coord: "A2", value: model.Text("Cable")},
		{coord: "B2", value: model.Number(3), marker: "#ffff00"},
		{coord: "C2", value: model.Empty{}, formula: "=B2*4", marker: "#00B050"},
		{coord: "A3", value: model.Text("wide")},
		{coord: "C3", value: model.Text("x")},
		{coord: "A4", value: model.Text("tall")},
		{coord: "B4", value: model.Text("r4")},
		{coord: "B5", value: model.Text("r5")},
	}
	for _, tc := range testCases {
		cell, ok := quote.Cells[tc.coord]
		if !ok {
			t.Errorf("missing cell %s", tc.coord)
			continue
		}
		if !model.LiteralEqual(cell.Value, tc.value) || cell.Formula != tc.formula || cell.Marker != tc.marker {
			t.Errorf("%s = %+v, expected value %v formula %q marker %q", tc.coord, cell, tc.value, tc.formula, tc.marker)
		}
	}
	if _, ok := quote.Cells["A5"]; ok {
		t.Error("A5 is covered by a rowspan and must stay empty")
	}

	rates, _ := doc.Sheet("Rates")
	if got := rates.Cells["D9"].Value; !model.LiteralEqual(got, model.Number(1.5)) {
		t.Errorf("Rates!D9 = %#v, expected 1.5", got)
	}
	if doc.NamedRanges["in_qty"] != "Quote!$B$2" {
		t.Errorf("named ranges = %v", doc.NamedRanges)
	}
}

// TestHTMLRoundTrip tests that WriteHTML output reads back.
func TestHTMLRoundTrip(t *testing.T) {
	t.Parallel()

	doc := scenarioDocument()
	// HTML carries no cell types, so numeric-looking text cannot survive.
	calc, _ := doc.Sheet("Calc")
	delete(calc.Cells, "A2")

	var buf bytes.Buffer
	if err := WriteHTML(&buf, doc); err != nil {
		t.Fatalf("WriteHTML returned error: %v", err)
	}
	got, err := ReadHTML(&buf, "calc")
	if err != nil {
		t.Fatalf("ReadHTML returned error: %v", err)
	}
	if Fingerprint(got) != Fingerprint(doc) {
		t.Errorf("fingerprint changed after round trip:\n%s", buf.String())
	}
}

// TestReadJSON tests reading the JSON grid record.
func TestReadJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteJSON(&buf, scenarioDocument()); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}

	doc, err := ReadJSON(&buf, "ignored")
	if err != nil {
		t.Fatalf("ReadJSON returned error: %v", err)
	}
	if doc.Identity != "calc" {
		t.Errorf("identity = %q, expected the recorded identity", doc.Identity)
	}
	checkScenario(t, doc)

	if _, err := ReadJSON(strings.NewReader("{"), "broken.json"); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

// TestRead tests format dispatch by extension.
func TestRead(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "grid.JSON")
	var buf bytes.Buffer
	if err := WriteJSON(&buf, scenarioDocument()); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}
	if err := os.WriteFile(jsonPath, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	if _, err := Read(jsonPath); err != nil {
		t.Errorf("Read(json) returned error: %v", err)
	}
	if _, err := Read(filepath.Join(dir, "grid.csv")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Read(csv) error = %v, expected ErrUnsupportedFormat", err)
	}
	if _, err := Read(filepath.Join(dir, "missing.html")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read(missing) error = %v, expected not exist", err)
	}
}

// TestFingerprint tests that the fingerprint follows the grid contents.
func TestFingerprint(t *testing.T) {
	t.Parallel()

	base := Fingerprint(scenarioDocument())
	if base != Fingerprint(scenarioDocument()) {
		t.Fatal("fingerprint is not stable")
	}
	if len(base) != 64 {
		t.Errorf("fingerprint length = %d, expected 64 hex digits", len(base))
	}

	renamed := scenarioDocument()
	renamed.Identity = "other"
	renamed.Version = "v9"
	if Fingerprint(renamed) != base {
		t.Error("identity and version must not affect the fingerprint")
	}

	testCases := map[string]func(*model.Document){
		"value":       func(d *model.Document) { d.SetCell("Calc", "A1", model.RawCell{Value: model.Number(11)}) },
		"text vs num": func(d *model.Document) { d.SetCell("Calc", "A2", model.RawCell{Value: model.Number(12)}) },
		"formula":     func(d *model.Document) { d.SetCell("Calc", "B1", model.RawCell{Formula: "=A1*3"}) },
		"named range": func(d *model.Document) { d.NamedRanges["out_total"] = "Calc!$C$1" },
		"new sheet":   func(d *model.Document) { d.SetCell("Extra", "A1", model.RawCell{}) },
	}
	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			doc := scenarioDocument()
			mutate(doc)
			if Fingerprint(doc) == base {
				t.Error("expected fingerprint to change")
			}
		})
	}
}
