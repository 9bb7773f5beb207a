package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/formulagraph/internal/cache"
	"github.com/nao1215/formulagraph/internal/config"
	"github.com/nao1215/formulagraph/internal/database"
	"github.com/nao1215/formulagraph/internal/document"
	"github.com/nao1215/formulagraph/internal/model"
	"github.com/nao1215/formulagraph/internal/pipeline"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [template...]",
		Short: "Analyse the structure and formula dependencies of templates",
		Long: `Analyze reads each template and reports:
- Input fields with their current values
- Output fields with their formulas
- The execution order of the formula cells
- Dependency cycles and other structural diagnostics

Examples:
  # Analyse a single workbook
  formulagraph analyze quote.xlsx

  # Analyse several templates, four at a time
  formulagraph analyze --batch 4 quotes/*.xlsx

  # Markdown report with a dependency flowchart, written to a file
  formulagraph analyze --markdown -o report.md quote.xlsx

  # Save the analysis to the template database
  formulagraph analyze --save quote.xlsx

Configuration file (.formulagraph.yaml) example:
  defaults:
    inputMarker: "FFFF00"
  templates:
    "legacy/*.xlsx":
      inputPrefix: "IN:"
      precedence: prefix`,
		Args: cobra.ArbitraryArgs,
		RunE: runAnalyzeCmd,
	}

	addEngineFlags(cmd)
	addReportFlags(cmd)

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of templates analysed concurrently")
	cmd.Flags().BoolP("save", "s", false,
		"Save the analysis to the template database")

	return cmd
}

// runAnalyzeCmd executes the analyze command.
func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildAnalyzeConfig(cmd, args)
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
	if err := writeReports(cmd, cfg, reports); err != nil {
		return err
	}
	return failedError(reports)
}

// buildAnalyzeConfig creates a Config from the analyze flags.
func buildAnalyzeConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return nil, err
	}
	if err := readEngineFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := readReportFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = cmd.Flags().GetBool("save"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// analyzeTemplates runs the analysis pipeline over every target and returns
// the reports in target order.
func analyzeTemplates(ctx context.Context, cfg *config.Config, logger *slog.Logger, strict bool) ([]*model.TemplateReport, error) {
	var db *database.TemplateDB
	if cfg.SaveToDB {
		var err error
		if db, err = openDB(cfg.DBDir, true); err != nil {
			return nil, err
		}
		defer db.Close() //nolint:errcheck // read-back is not needed after the batch
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// One cache for the whole run, so a template named twice is built once.
	c := newCache(cfg, logger)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline { return createPipeline(cfg, c, db, logger, strict) },
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithTimeout(cfg.Timeout),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	reports, err := bp.ProcessBatch(ctx, cfg.Targets)
	logger.Info("analysis finished",
		"templates", len(cfg.Targets),
		"builds", c.Builds(),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}

	// Templates that never started because of cancellation still get a
	// report, so every target is accounted for.
	for i, r := range reports {
		if r == nil {
			reports[i] = model.NewTemplateReport(cfg.Targets[i])
			reports[i].SetError(context.Canceled)
		}
	}
	return reports, nil
}

// createPipeline assembles the steps for one template.
func createPipeline(cfg *config.Config, c *cache.Cache, db *database.TemplateDB, logger *slog.Logger, strict bool) *pipeline.Pipeline {
	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewReadStep(
			pipeline.WithDocumentOptions(document.WithMaxCells(cfg.MaxCells)),
			pipeline.WithReadLogger(logger),
		),
		pipeline.NewAnalyzeStep(c,
			pipeline.WithResolver(cfg.Resolve),
			pipeline.WithAnalyzeLogger(logger),
		),
		pipeline.NewValidateStep(
			pipeline.WithStrict(strict),
			pipeline.WithValidateLogger(logger),
		),
	)
	if db != nil {
		p.AddStep(pipeline.NewPersistStep(db, cfg.DBDir, pipeline.WithPersistLogger(logger)))
	}
	return p
}

// writeReports writes every report in the format selected in cfg.
func writeReports(cmd *cobra.Command, cfg *config.Config, reports []*model.TemplateReport) (err error) {
	out, closeOut, err := openOutput(cmd, cfg.ReportFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	writer := newReportWriter(cfg, out)
	for _, r := range reports {
		if _, err := writer.Write(r); err != nil {
			return fmt.Errorf("failed to write report for %s: %w", r.Path, err)
		}
	}
	return nil
}

// failedError returns an error naming the number of failed templates, or
// nil when all succeeded.
func failedError(reports []*model.TemplateReport) error {
	failed := 0
	for _, r := range reports {
		if r.Failed() {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d templates failed", failed, len(reports))
}
