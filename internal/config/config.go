package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/formulagraph/internal/classifier"
	"github.com/nao1215/formulagraph/internal/document"
	"github.com/nao1215/formulagraph/internal/reference"
)

// Default configuration values.
const (
	// DefaultTimeout bounds reading and analysing one template. Workbooks
	// with a million cells take a few seconds, so a minute is generous.
	DefaultTimeout = 60 * time.Second

	// DefaultBatchSize is the number of templates processed concurrently.
	// Analysis is CPU bound, so more workers than cores rarely helps.
	DefaultBatchSize = 4

	// DefaultRangeLimit is the largest range expanded cell by cell.
	DefaultRangeLimit = reference.DefaultRangeLimit

	// DefaultMaxCells is the largest sheet read from a document.
	DefaultMaxCells = document.DefaultMaxCells

	// EngineBuiltin selects the built-in formula evaluator.
	EngineBuiltin = "builtin"

	// EngineExcelize selects the excelize calculation engine.
	EngineExcelize = "excelize"

	// AppName is the application name used for XDG directory paths.
	AppName = "formulagraph"
)

// Config holds all configuration options for formulagraph.
// This struct is populated from CLI flags and the configuration file and
// passed through the application rather than kept in global state.
//
// Design decision: We keep a flat struct with the classifier settings as
// the only nested value, because the classifier configuration is also what
// the analyzer and the cache key on.
type Config struct {
	// Timeout bounds reading and analysing one template.
	Timeout time.Duration

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of templates processed concurrently.
	BatchSize int

	// RangeLimit is the largest range expanded into individual cells.
	// Larger ranges contribute only their corner cells.
	RangeLimit int

	// Engine names the formula evaluator used by recalc: EngineBuiltin or
	// EngineExcelize.
	Engine string

	// MaxCells is the largest number of cells read from one sheet.
	// A value of 0 means use the default (DefaultMaxCells).
	MaxCells int

	// Classifier holds the global classifier settings. Per-template
	// overrides from the configuration file are applied on top.
	Classifier classifier.Config

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the usual locations.
	ConfigFilePath string

	// TemplateConfigs holds per-template overrides loaded from the
	// configuration file.
	TemplateConfigs *File

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output with mermaid diagrams.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// Targets is the list of template files to process.
	Targets []string

	// DBDir is the directory holding the SQLite database and template locks.
	// Defaults to the XDG data directory (~/.local/share/formulagraph on Linux).
	DBDir string

	// SaveToDB indicates whether analysed templates are persisted.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because most defaults are non-zero. This also serves as
// documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Timeout:    DefaultTimeout,
		BatchSize:  DefaultBatchSize,
		RangeLimit: DefaultRangeLimit,
		Engine:     EngineBuiltin,
		MaxCells:   DefaultMaxCells,
		Classifier: classifier.DefaultConfig(),
		DBDir:      XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for formulagraph.
// On Linux: ~/.local/share/formulagraph
// On macOS: ~/Library/Application Support/formulagraph
// On Windows: %LOCALAPPDATA%\formulagraph
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for formulagraph.
// On Linux: ~/.config/formulagraph
// On macOS: ~/Library/Application Support/formulagraph
// On Windows: %APPDATA%\formulagraph
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error, wrapped with
// detail where the sentinel alone is not enough.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.RangeLimit <= 0 {
		return ErrInvalidRangeLimit
	}

	if c.MaxCells < 0 {
		return ErrInvalidMaxCells
	}

	if c.Engine != EngineBuiltin && c.Engine != EngineExcelize {
		return fmt.Errorf("%w: %q", ErrInvalidEngine, c.Engine)
	}

	if _, err := classifier.New(c.Classifier); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidClassifier, err)
	}

	return nil
}

// Resolve returns the effective classifier configuration for the template
// identified by identity. Settings come from, in increasing priority, the
// global configuration, the file defaults and the matching template entry.
func (c *Config) Resolve(identity string) (classifier.Config, error) {
	if c.TemplateConfigs == nil {
		return c.Classifier, nil
	}

	tc := c.TemplateConfigs.GetTemplateConfig(identity)
	cls, err := tc.Apply(c.Classifier)
	if err != nil {
		return c.Classifier, fmt.Errorf("%w for %s: %w", ErrInvalidClassifier, identity, err)
	}
	return cls, nil
}
