package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/formulagraph/internal/analyzer"
	"github.com/nao1215/formulagraph/internal/cache"
	"github.com/nao1215/formulagraph/internal/config"
	"github.com/nao1215/formulagraph/internal/database"
	applog "github.com/nao1215/formulagraph/internal/log"
	"github.com/nao1215/formulagraph/internal/report"
)

// boolFlag returns the value of a local or inherited bool flag, or false
// when the command was built without it (as in unit tests that run a
// subcommand on its own).
func boolFlag(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Lookup(name) == nil && cmd.Root().PersistentFlags().Lookup(name) == nil {
		return false
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, _ = cmd.Root().PersistentFlags().GetBool(name) //nolint:errcheck // lookup checked above
	}
	return v
}

// stringFlag is the string counterpart of boolFlag. It returns def when the
// flag does not exist.
func stringFlag(cmd *cobra.Command, name, def string) string {
	if cmd.Flags().Lookup(name) == nil && cmd.Root().PersistentFlags().Lookup(name) == nil {
		return def
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, _ = cmd.Root().PersistentFlags().GetString(name) //nolint:errcheck // lookup checked above
	}
	return v
}

// setupLogger creates the structured logger selected by the global flags
// and installs it as the default.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	verbose := boolFlag(cmd, "verbose")

	var logger *slog.Logger
	if boolFlag(cmd, "log-json") {
		logger = applog.NewJSONLogger(cmd.ErrOrStderr(), verbose)
	} else {
		logger = applog.NewLogger(cmd.ErrOrStderr(), verbose)
	}
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// loadConfig creates a Config with the template overrides from the
// configuration file and the global flags applied.
func loadConfig(cmd *cobra.Command, targets []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = boolFlag(cmd, "verbose")
	cfg.ConfigFilePath = stringFlag(cmd, "config", "")
	cfg.DBDir = stringFlag(cmd, "data-dir", cfg.DBDir)
	cfg.Targets = targets

	// If the user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.TemplateConfigs = file
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.TemplateConfigs = &config.File{
			Templates: make(map[string]config.TemplateConfig),
		}
	}

	return cfg, nil
}

// addReportFlags registers the report format flags shared by commands.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// readReportFlags copies the report format flags into cfg.
func readReportFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	return nil
}

// addEngineFlags registers the analysis limits shared by commands.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Time limit for reading and analysing each template")
	cmd.Flags().Int("range-limit", config.DefaultRangeLimit,
		"Largest range expanded cell by cell; larger ranges contribute their corners")
	cmd.Flags().Int("max-cells", config.DefaultMaxCells,
		"Largest sheet area read from a workbook")
}

// readEngineFlags copies the analysis limits into cfg.
func readEngineFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.RangeLimit, err = cmd.Flags().GetInt("range-limit"); err != nil {
		return err
	}
	if cfg.MaxCells, err = cmd.Flags().GetInt("max-cells"); err != nil {
		return err
	}
	return nil
}

// newCache creates the template cache configured from cfg.
func newCache(cfg *config.Config, logger *slog.Logger, opts ...cache.Option) *cache.Cache {
	opts = append([]cache.Option{
		cache.WithAnalyzerOptions(
			analyzer.WithRangeLimit(cfg.RangeLimit),
			analyzer.WithLogger(logger),
		),
		cache.WithLogger(logger),
	}, opts...)
	return cache.New(opts...)
}

// openDB opens the template database in dir.
func openDB(dir string, create bool) (*database.TemplateDB, error) {
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = create
	db, err := database.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// openOutput returns the report destination: the report file when set,
// stdout otherwise. The returned function closes the file.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	// Create directories if they don't exist
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter returns the writer for the format selected in cfg.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}
