package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/formulagraph/internal/config"
	"github.com/nao1215/formulagraph/internal/model"
)

// errValidationFailed is returned when at least one template is invalid.
var errValidationFailed = errors.New("validation failed")

// validationEntry is the JSON form of one template's verdict.
type validationEntry struct {
	Path     string             `json:"path"`
	Identity string             `json:"identity"`
	Valid    bool               `json:"valid"`
	Errors   []model.Diagnostic `json:"errors,omitempty"`
	Warnings []model.Diagnostic `json:"warnings,omitempty"`
	Failure  string             `json:"failure,omitempty"`
}

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [template...]",
		Short: "Check templates for cycles and missing fields",
		Long: `Validate analyses each template and prints one verdict per template.

A template is invalid when it has dependency cycles or inconsistent fields.
Missing input or output fields and empty sheets are warnings; use --strict
to treat warnings as failures too. The command exits with a non-zero status
when any template is invalid, which makes it suitable for CI.

Examples:
  # Validate every workbook in a directory
  formulagraph validate templates/*.xlsx

  # Fail on warnings as well
  formulagraph validate --strict quote.xlsx

  # Machine-readable verdicts
  formulagraph validate --json quote.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runValidateCmd,
	}

	addEngineFlags(cmd)
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of templates validated concurrently")
	cmd.Flags().BoolP("json", "j", false, "Output verdicts in JSON format")
	cmd.Flags().Bool("strict", false, "Treat warnings as failures")

	return cmd
}

// runValidateCmd executes the validate command.
func runValidateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := readEngineFlags(cmd, cfg); err != nil {
		return err
	}
	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	strict, err := cmd.Flags().GetBool("strict")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd)
	ctx, cancel := signalContext(cmd)
	defer cancel()

	reports, err := analyzeTemplates(ctx, cfg, logger, false)
	if err != nil {
		return err
	}

	entries := make([]validationEntry, len(reports))
	failed := 0
	for i, r := range reports {
		entries[i] = newValidationEntry(r, strict)
		if !entries[i].Valid {
			failed++
		}
	}

	if jsonOutput {
		if err := encodeJSON(cmd.OutOrStdout(), entries); err != nil {
			return err
		}
	} else {
		printVerdicts(cmd.OutOrStdout(), entries)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d templates", errValidationFailed, failed, len(entries))
	}
	return nil
}

// newValidationEntry converts a report into its verdict.
func newValidationEntry(r *model.TemplateReport, strict bool) validationEntry {
	e := validationEntry{Path: r.Path, Identity: r.Identity}
	if r.Failed() {
		e.Failure = r.ErrorMessage
		return e
	}
	if r.Validation == nil {
		e.Failure = "template was not validated"
		return e
	}

	e.Errors = r.Validation.Errors
	e.Warnings = r.Validation.Warnings
	e.Valid = r.Validation.Valid && (!strict || len(e.Warnings) == 0)
	return e
}

// printVerdicts writes one line per template followed by its findings.
func printVerdicts(w io.Writer, entries []validationEntry) {
	for _, e := range entries {
		switch {
		case e.Failure != "":
			fmt.Fprintf(w, "✗ %s: %s\n", e.Path, e.Failure)
		case e.Valid:
			fmt.Fprintf(w, "✓ %s: valid\n", e.Path)
		default:
			fmt.Fprintf(w, "✗ %s: invalid\n", e.Path)
		}
		for _, d := range e.Errors {
			fmt.Fprintf(w, "    error   %-22s %s\n", d.Code, d.Message)
		}
		for _, d := range e.Warnings {
			fmt.Fprintf(w, "    warning %-22s %s\n", d.Code, d.Message)
		}
	}
}
