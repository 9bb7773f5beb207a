package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/formulagraph/internal/analyzer"
	"github.com/nao1215/formulagraph/internal/cache"
	"github.com/nao1215/formulagraph/internal/config"
	"github.com/nao1215/formulagraph/internal/database"
	"github.com/nao1215/formulagraph/internal/document"
	"github.com/nao1215/formulagraph/internal/evaluator"
	"github.com/nao1215/formulagraph/internal/model"
	"github.com/nao1215/formulagraph/internal/recalc"
	"github.com/nao1215/formulagraph/internal/reference"
)

// errInvalidAssignment is returned for a malformed --set value.
var errInvalidAssignment = errors.New("invalid assignment")

// NewRecalcCmd creates the recalc command.
func NewRecalcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recalc <template>",
		Short: "Recalculate template outputs for new input values",
		Long: `Recalc overlays new values onto the input fields of a template, evaluates
the formula cells in dependency order and prints the refreshed outputs.

Each output carries a status: "evaluated", "not_evaluable" when its formula
or one of its dependencies could not be computed, or "upstream_cycle" when it
depends on a dependency cycle. Values supplied for cells that are not input
fields are ignored and listed in the report.

Targets of --set may be a cell ("Calc!B2"), a bare coordinate on the first
sheet ("B2"), or a defined name ("in_qty"). Quote a value to keep it as text:
--set 'Calc!A2="0012"'.

Examples:
  # Recalculate with one new input
  formulagraph recalc quote.xlsx --set Calc!A1=20

  # Inputs from a JSON object of reference to value
  formulagraph recalc quote.xlsx --inputs inputs.json --json

  # Record the run in the template database
  formulagraph recalc quote.xlsx --set in_qty=3 --save

  # Evaluate with the excelize calculation engine
  formulagraph recalc quote.xlsx --set Calc!A1=20 --engine excelize`,
		Args: cobra.ExactArgs(1),
		RunE: runRecalcCmd,
	}

	addEngineFlags(cmd)
	addReportFlags(cmd)

	cmd.Flags().StringArray("set", nil,
		"Input assignment REF=VALUE (repeatable)")
	cmd.Flags().StringP("inputs", "i", "",
		"JSON file mapping references to input values")
	cmd.Flags().BoolP("save", "s", false,
		"Save the template and the run to the template database")
	cmd.Flags().String("engine", config.EngineBuiltin,
		"Formula evaluator: builtin or excelize")

	return cmd
}

// runRecalcCmd executes the recalc command.
func runRecalcCmd(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := readEngineFlags(cmd, cfg); err != nil {
		return err
	}
	if err := readReportFlags(cmd, cfg); err != nil {
		return err
	}
	if cfg.SaveToDB, err = cmd.Flags().GetBool("save"); err != nil {
		return err
	}
	if cfg.Engine, err = cmd.Flags().GetString("engine"); err != nil {
		return err
	}
	assignments, err := cmd.Flags().GetStringArray("set")
	if err != nil {
		return err
	}
	inputsFile, err := cmd.Flags().GetString("inputs")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd)
	ctx, cancel := signalContext(cmd)
	defer cancel()

	doc, err := document.Read(cfg.Targets[0], document.WithMaxCells(cfg.MaxCells))
	if err != nil {
		return err
	}
	clsCfg, err := cfg.Resolve(doc.Identity)
	if err != nil {
		return err
	}

	var db *database.TemplateDB
	var cacheOpts []cache.Option
	if cfg.SaveToDB {
		if db, err = openDB(cfg.DBDir, true); err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck // nothing to recover on close

		lock, err := database.LockTemplate(ctx, cfg.DBDir, doc.Identity)
		if err != nil {
			return err
		}
		defer func() {
			if uerr := lock.Unlock(); uerr != nil {
				logger.Warn("failed to release template lock", "template", doc.Identity, "error", uerr)
			}
		}()
		cacheOpts = append(cacheOpts, cache.WithStore(db))
	}

	entry, err := newCache(cfg, logger, cacheOpts...).Get(ctx, doc, clsCfg)
	if err != nil {
		return err
	}

	// Targets and formulas resolve exactly as the dependency graph did.
	extractor := entry.Analysis.Extractor()

	inputs := make(map[model.CellReference]model.Literal)
	if inputsFile != "" {
		if err := readInputsFile(inputsFile, doc, extractor, inputs); err != nil {
			return err
		}
	}
	for _, a := range assignments {
		if err := applyAssignment(a, doc, extractor, inputs); err != nil {
			return err
		}
	}

	result, err := recalc.Recalculate(entry.Analysis, inputs, newEvaluator(cfg, entry.Analysis), recalc.WithLogger(logger))
	if err != nil {
		return err
	}

	run := &model.RecalcReport{
		Identity:  doc.Identity,
		Version:   doc.Version,
		CreatedAt: time.Now().UTC(),
		Inputs:    inputs,
		Result:    result,
	}
	if db != nil {
		if err := db.SaveRecalcRun(ctx, run); err != nil {
			return fmt.Errorf("failed to save recalculation run: %w", err)
		}
		logger.Info("recalculation saved", "template", doc.Identity, "run_id", run.RunID)
	} else {
		run.RunID = uuid.NewString()
	}

	return writeRecalcReport(cmd, cfg, run)
}

// newEvaluator returns the formula evaluator selected in cfg, bound to the
// names and sheets of the analysed template.
func newEvaluator(cfg *config.Config, a *analyzer.Analysis) recalc.Evaluator {
	if cfg.Engine == config.EngineExcelize {
		return evaluator.NewWorkbook(a.Structure.NamedRanges)
	}
	return evaluator.New(evaluator.WithExtractor(a.Extractor()))
}

// writeRecalcReport writes run in the format selected in cfg.
func writeRecalcReport(cmd *cobra.Command, cfg *config.Config, run *model.RecalcReport) (err error) {
	out, closeOut, err := openOutput(cmd, cfg.ReportFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	_, err = newReportWriter(cfg, out).WriteRecalc(run)
	return err
}

// applyAssignment parses "REF=VALUE" and stores the value for every cell the
// reference resolves to.
func applyAssignment(assignment string, doc *model.Document, ex *reference.Extractor, inputs map[model.CellReference]model.Literal) error {
	target, raw, ok := strings.Cut(assignment, "=")
	target = strings.TrimSpace(target)
	if !ok || target == "" {
		return fmt.Errorf("%w %q: expected REF=VALUE", errInvalidAssignment, assignment)
	}

	refs, err := resolveTarget(target, doc, ex)
	if err != nil {
		return err
	}
	value := parseValue(raw)
	for _, ref := range refs {
		inputs[ref] = value
	}
	return nil
}

// resolveTarget resolves a cell, area or defined name to cell references.
// Unqualified coordinates refer to the first sheet.
func resolveTarget(target string, doc *model.Document, ex *reference.Extractor) ([]model.CellReference, error) {
	var sheet string
	if names := doc.SheetNames(); len(names) > 0 {
		sheet = names[0]
	}
	refs := ex.Resolve(target, sheet)
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: %q is neither a cell nor a defined name", errInvalidAssignment, target)
	}
	return refs, nil
}

// parseValue converts command-line text into a literal. Double-quoted text
// stays text even when it looks numeric.
func parseValue(raw string) model.Literal {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		if s, err := strconv.Unquote(trimmed); err == nil {
			return model.Text(s)
		}
		return model.Text(trimmed[1 : len(trimmed)-1])
	}
	return model.ParseLiteral(raw)
}

// readInputsFile loads a JSON object mapping references to values.
// Keys are resolved like --set targets, so defined names are allowed.
func readInputsFile(path string, doc *model.Document, ex *reference.Extractor, inputs map[model.CellReference]model.Literal) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read inputs file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse inputs file %s: %w", path, err)
	}
	for key, msg := range raw {
		value, err := model.UnmarshalLiteral(msg)
		if err != nil {
			return fmt.Errorf("inputs file %s, key %q: %w", path, key, err)
		}
		refs, err := resolveTarget(key, doc, ex)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			inputs[ref] = value
		}
	}
	return nil
}
