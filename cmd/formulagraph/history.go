package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/formulagraph/internal/database"
	"github.com/nao1215/formulagraph/internal/model"
	"github.com/nao1215/formulagraph/internal/report"
)

// defaultRunLimit is the number of recalculation runs shown per template.
const defaultRunLimit = 10

// templateHistory is the JSON form of one template's stored history.
type templateHistory struct {
	Template *model.TemplateReport `json:"template"`
	Runs     []*model.RecalcReport `json:"runs"`
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [template]",
		Short: "Show templates and recalculation runs stored in the database",
		Long: `History displays what 'analyze --save' and 'recalc --save' stored in the
template database.

Without arguments it lists every stored template. With a template identity
it shows the stored analysis and the most recent recalculation runs.

Examples:
  # List all stored templates
  formulagraph history

  # Show one template and its last 5 runs
  formulagraph history -n 5 quote.xlsx

  # Remove a template and its runs
  formulagraph history --delete quote.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultRunLimit,
		"Maximum number of recalculation runs to show (0 for all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output history in JSON format")
	cmd.Flags().Bool("delete", false,
		"Delete the template and its runs from the database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	deleteTemplate, err := cmd.Flags().GetBool("delete")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	if deleteTemplate && len(args) == 0 {
		return errors.New("a template identity is required with --delete")
	}

	setupLogger(cmd)
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	db, err := openDB(cfg.DBDir, false)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-only use

	ctx, cancel := signalContext(cmd)
	defer cancel()
	out := cmd.OutOrStdout()

	switch {
	case len(args) == 0:
		return listTemplates(ctx, out, db, jsonOutput)
	case deleteTemplate:
		return deleteStoredTemplate(ctx, out, db, args[0])
	default:
		return showTemplate(ctx, out, db, args[0], limit, jsonOutput)
	}
}

// listTemplates lists every stored template.
func listTemplates(ctx context.Context, w io.Writer, db *database.TemplateDB, jsonOutput bool) error {
	templates, err := db.ListTemplates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}

	if jsonOutput {
		return encodeJSON(w, templates)
	}

	if len(templates) == 0 {
		fmt.Fprintln(w, "No templates found in the database.")
		fmt.Fprintln(w, "\nUse 'formulagraph analyze --save <template>' to store a template.")
		return nil
	}

	fmt.Fprintf(w, "Stored templates (%d):\n\n", len(templates))
	fmt.Fprintf(w, "  %-40s  %-12s  %-19s  %6s  %7s  %8s  %s\n",
		"Template", "Version", "Analysed", "Inputs", "Outputs", "Formulas", "Status")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 112))
	for _, t := range templates {
		status := "valid"
		if !t.Valid {
			status = fmt.Sprintf("invalid (%d cycles)", t.CycleCount)
		}
		fmt.Fprintf(w, "  %-40s  %-12s  %-19s  %6d  %7d  %8d  %s\n",
			t.Identity,
			shortID(t.Version),
			t.AnalyzedAt.Local().Format("2006-01-02 15:04:05"),
			t.InputCount, t.OutputCount, t.FormulaCount,
			status,
		)
	}
	fmt.Fprintln(w, "\nUse 'formulagraph history <template>' to see a template's recalculation runs.")
	return nil
}

// showTemplate prints one stored template and its recent runs.
func showTemplate(ctx context.Context, w io.Writer, db *database.TemplateDB, identity string, limit int, jsonOutput bool) error {
	stored, err := db.GetTemplate(ctx, identity)
	if err != nil {
		return fmt.Errorf("failed to get template: %w", err)
	}
	if stored == nil {
		return fmt.Errorf("template %q not found in the database", identity)
	}

	runs, err := db.ListRecalcRuns(ctx, identity, limit)
	if err != nil {
		return fmt.Errorf("failed to list recalculation runs: %w", err)
	}

	if jsonOutput {
		return encodeJSON(w, templateHistory{Template: stored, Runs: runs})
	}

	if _, err := report.NewSimpleWriter(w).Write(stored); err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No recalculation runs recorded.")
		return nil
	}
	fmt.Fprintf(w, "Recalculation runs (%d, newest first):\n\n", len(runs))
	fmt.Fprintf(w, "  %-36s  %-19s  %-12s  %6s  %s\n", "Run ID", "Date", "Version", "Inputs", "Statuses")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 100))
	for _, run := range runs {
		fmt.Fprintf(w, "  %-36s  %-19s  %-12s  %6d  %s\n",
			run.RunID,
			run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			shortID(run.Version),
			len(run.Inputs),
			formatStatusCounts(run.Result),
		)
	}
	return nil
}

// deleteStoredTemplate removes a template and its runs.
func deleteStoredTemplate(ctx context.Context, w io.Writer, db *database.TemplateDB, identity string) error {
	deleted, err := db.DeleteTemplate(ctx, identity)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if !deleted {
		return fmt.Errorf("template %q not found in the database", identity)
	}
	fmt.Fprintf(w, "Deleted %s and its recalculation runs.\n", identity)
	return nil
}

// formatStatusCounts summarizes output statuses, e.g. "E:3 N:1".
func formatStatusCounts(result *model.RecalcResult) string {
	if result == nil {
		return "N/A"
	}
	counts := result.CountByStatus()
	var parts []string
	if v := counts[model.StatusEvaluated]; v > 0 {
		parts = append(parts, fmt.Sprintf("E:%d", v))
	}
	if v := counts[model.StatusNotEvaluable]; v > 0 {
		parts = append(parts, fmt.Sprintf("N:%d", v))
	}
	if v := counts[model.StatusUpstreamCycle]; v > 0 {
		parts = append(parts, fmt.Sprintf("C:%d", v))
	}
	if len(parts) == 0 {
		return "no outputs"
	}
	return strings.Join(parts, " ")
}

// shortID returns the first 12 characters of a version fingerprint.
func shortID(version string) string {
	if len(version) > 12 {
		return version[:12]
	}
	return version
}

// encodeJSON writes v as indented JSON.
func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
