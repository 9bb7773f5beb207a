package main

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/formulagraph/internal/config"
	"github.com/nao1215/formulagraph/internal/model"
	"github.com/nao1215/formulagraph/internal/reference"
)

// recalcJSON is the part of the JSON recalculation report the tests read.
type recalcJSON struct {
	Recalc struct {
		RunID  string `json:"run_id"`
		Result struct {
			Outputs map[string]struct {
				Value  any    `json:"value"`
				Status string `json:"status"`
			} `json:"outputs"`
			IgnoredInputs []string `json:"ignored_inputs"`
		} `json:"result"`
	} `json:"recalc"`
}

func decodeRecalc(t *testing.T, out string) recalcJSON {
	t.Helper()

	var got recalcJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	return got
}

// TestRunRecalcCmd tests recalculating the sample quote.
func TestRunRecalcCmd(t *testing.T) {
	env := newTestEnv(t)
	sample := env.writeSample(t, "quote.xlsx")

	t.Run("default values", func(t *testing.T) {
		out, err := env.run(t, "recalc", "--json", sample)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		total := decodeRecalc(t, out).Recalc.Result.Outputs["Quote!B5"]
		if total.Value != 41.25 || total.Status != "evaluated" {
			t.Errorf("total = %+v, expected 41.25 evaluated", total)
		}
	})

	t.Run("set by reference and name", func(t *testing.T) {
		out, err := env.run(t, "recalc", "--json", sample,
			"--set", "Quote!B1=5",
			"--set", "in_tax_rate=0.2",
			"--set", "A1=ignored",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := decodeRecalc(t, out)
		if total := got.Recalc.Result.Outputs["Quote!B5"]; total.Value != 75.0 {
			t.Errorf("total = %v, expected 75", total.Value)
		}
		if strings.Join(got.Recalc.Result.IgnoredInputs, ",") != "Quote!A1" {
			t.Errorf("ignored = %v", got.Recalc.Result.IgnoredInputs)
		}
		if got.Recalc.RunID == "" {
			t.Error("expected a run id")
		}
	})

	t.Run("excelize engine", func(t *testing.T) {
		out, err := env.run(t, "recalc", "--json", sample, "--engine", "excelize",
			"--set", "Quote!B1=5",
			"--set", "in_tax_rate=0.2",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		total := decodeRecalc(t, out).Recalc.Result.Outputs["Quote!B5"]
		if total.Value != 75.0 || total.Status != "evaluated" {
			t.Errorf("total = %+v, expected 75 evaluated", total)
		}

		if _, err := env.run(t, "recalc", sample, "--engine", "abacus"); !errors.Is(err, config.ErrInvalidEngine) {
			t.Errorf("expected ErrInvalidEngine, got %v", err)
		}
	})

	t.Run("inputs file", func(t *testing.T) {
		inputs := filepath.Join(env.dir, "inputs.json")
		writeFile(t, inputs, `{"Quote!B2": 10, "in_tax_rate": 0}`)

		out, err := env.run(t, "recalc", "--json", "--inputs", inputs, sample)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total := decodeRecalc(t, out).Recalc.Result.Outputs["Quote!B5"]; total.Value != 30.0 {
			t.Errorf("total = %v, expected 30", total.Value)
		}
	})

	t.Run("text output", func(t *testing.T) {
		out, err := env.run(t, "recalc", sample, "--set", "B1=2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"FORMULAGRAPH RECALCULATION", "Quote!B5 = 27.5 [evaluated]"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q:\n%s", want, out)
			}
		}
	})

	t.Run("bad assignment", func(t *testing.T) {
		for _, set := range []string{"no-equals", "=5", "nosuchname=1"} {
			if _, err := env.run(t, "recalc", sample, "--set", set); !errors.Is(err, errInvalidAssignment) {
				t.Errorf("--set %q: expected errInvalidAssignment, got %v", set, err)
			}
		}
	})

	t.Run("cycle marks outputs", func(t *testing.T) {
		cyclic := env.writeCyclic(t, "loop.xlsx")
		out, err := env.run(t, "recalc", "--json", cyclic)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := decodeRecalc(t, out).Recalc.Result.Outputs["Loop!C1"]; got.Status != "upstream_cycle" {
			t.Errorf("status = %q, expected upstream_cycle", got.Status)
		}
	})
}

// TestParseValue tests command-line literal parsing.
func TestParseValue(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		raw  string
		want model.Literal
	}{
		{raw: "20", want: model.Number(20)},
		{raw: " 1.5 ", want: model.Number(1.5)},
		{raw: "abc", want: model.Text("abc")},
		{raw: `"0012"`, want: model.Text("0012")},
		{raw: `"say \"hi\""`, want: model.Text(`say "hi"`)},
		{raw: "", want: model.Empty{}},
	}
	for _, tc := range testCases {
		if got := parseValue(tc.raw); !model.LiteralEqual(got, tc.want) {
			t.Errorf("parseValue(%q) = %#v, expected %#v", tc.raw, got, tc.want)
		}
	}
}

// TestApplyAssignment tests resolving assignment targets.
func TestApplyAssignment(t *testing.T) {
	t.Parallel()

	doc := sampleTemplate()
	doc.NamedRanges["in_lines"] = "Quote!$B$1:$B$2"
	ex := reference.NewExtractor(
		reference.WithNamedRanges(doc.NamedRanges),
		reference.WithSheetResolver(model.NewSheetIndex(doc.SheetNames()...)),
	)

	inputs := map[model.CellReference]model.Literal{}
	for _, a := range []string{"quote!b1=1", "in_lines=7", "B4=0.5"} {
		if err := applyAssignment(a, doc, ex, inputs); err != nil {
			t.Fatalf("applyAssignment(%q) returned error: %v", a, err)
		}
	}

	want := map[string]model.Literal{
		"Quote!B1": model.Number(7),
		"Quote!B2": model.Number(7),
		"Quote!B4": model.Number(0.5),
	}
	if len(inputs) != len(want) {
		t.Fatalf("inputs = %v", inputs)
	}
	for ref, v := range inputs {
		if !model.LiteralEqual(v, want[ref.String()]) {
			t.Errorf("%s = %v, expected %v", ref, v, want[ref.String()])
		}
	}
}
