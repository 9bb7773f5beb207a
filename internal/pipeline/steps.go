package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/formulagraph/internal/cache"
	"github.com/nao1215/formulagraph/internal/classifier"
	"github.com/nao1215/formulagraph/internal/database"
	"github.com/nao1215/formulagraph/internal/document"
	"github.com/nao1215/formulagraph/internal/model"
	"github.com/nao1215/formulagraph/internal/validator"
)

// ErrInvalidTemplate is returned by a strict ValidateStep when the template
// fails validation.
var ErrInvalidTemplate = errors.New("template is invalid")

// ErrNotAnalyzed is returned by steps that need the result of AnalyzeStep.
var ErrNotAnalyzed = errors.New("template has not been analysed")

// ReadStep reads the template document from report.Path.
type ReadStep struct {
	opts   []document.Option
	logger *slog.Logger
}

// ReadStepOption configures a ReadStep.
type ReadStepOption func(*ReadStep)

// WithDocumentOptions sets the options passed to document.Read.
func WithDocumentOptions(opts ...document.Option) ReadStepOption {
	return func(s *ReadStep) {
		s.opts = append(s.opts, opts...)
	}
}

// WithReadLogger sets a custom logger for the read step.
func WithReadLogger(logger *slog.Logger) ReadStepOption {
	return func(s *ReadStep) {
		s.logger = logger
	}
}

// NewReadStep creates a new document reading step.
func NewReadStep(opts ...ReadStepOption) *ReadStep {
	s := &ReadStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ReadStep) Name() string {
	return "read"
}

// Do executes the read step.
func (s *ReadStep) Do(_ context.Context, report *model.TemplateReport) error {
	doc, err := document.Read(report.Path, s.opts...)
	if err != nil {
		return err
	}

	report.Document = doc
	report.Identity = doc.Identity
	report.Version = doc.Version

	s.logger.Debug("document read",
		"template", report.Identity,
		"version", report.Version,
		"sheets", len(doc.Sheets),
	)
	return nil
}

// ResolveFunc returns the classifier configuration for a template identity.
// config.Config.Resolve satisfies it.
type ResolveFunc func(identity string) (classifier.Config, error)

// AnalyzeStep classifies the template and builds its dependency graph
// through the shared cache.
//
// Design decision: Analysis always goes through the cache, even for a
// one-shot command, so that batch runs that name the same template twice
// build it once.
type AnalyzeStep struct {
	cache   *cache.Cache
	resolve ResolveFunc
	logger  *slog.Logger
}

// AnalyzeStepOption configures an AnalyzeStep.
type AnalyzeStepOption func(*AnalyzeStep)

// WithResolver sets how the classifier configuration is chosen per template.
// The default is classifier.DefaultConfig for every template.
func WithResolver(resolve ResolveFunc) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		s.resolve = resolve
	}
}

// WithAnalyzeLogger sets a custom logger for the analyze step.
func WithAnalyzeLogger(logger *slog.Logger) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		s.logger = logger
	}
}

// NewAnalyzeStep creates a new analysis step backed by c.
func NewAnalyzeStep(c *cache.Cache, opts ...AnalyzeStepOption) *AnalyzeStep {
	s := &AnalyzeStep{
		cache: c,
		resolve: func(string) (classifier.Config, error) {
			return classifier.DefaultConfig(), nil
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return "analyze"
}

// Do executes the analyze step.
func (s *AnalyzeStep) Do(ctx context.Context, report *model.TemplateReport) error {
	if report.Document == nil {
		return fmt.Errorf("%w: no document loaded", ErrNotAnalyzed)
	}

	cfg, err := s.resolve(report.Identity)
	if err != nil {
		return fmt.Errorf("failed to resolve classifier configuration: %w", err)
	}

	entry, err := s.cache.Get(ctx, report.Document, cfg)
	if err != nil {
		return err
	}

	entry.Analysis.FillReport(report)
	report.Validation = entry.Validation
	report.AnalyzedAt = entry.BuiltAt

	inputs, outputs, formulas := report.RoleCounts()
	s.logger.Debug("template analysed",
		"template", report.Identity,
		"inputs", inputs,
		"outputs", outputs,
		"formulas", formulas,
		"cycles", len(report.Cycles),
	)
	return nil
}

// ValidateStep checks the analysed template.
// In strict mode an invalid template fails the pipeline.
type ValidateStep struct {
	strict bool
	logger *slog.Logger
}

// ValidateStepOption configures a ValidateStep.
type ValidateStepOption func(*ValidateStep)

// WithStrict makes the step fail when the template is invalid.
func WithStrict(strict bool) ValidateStepOption {
	return func(s *ValidateStep) {
		s.strict = strict
	}
}

// WithValidateLogger sets a custom logger for the validate step.
func WithValidateLogger(logger *slog.Logger) ValidateStepOption {
	return func(s *ValidateStep) {
		s.logger = logger
	}
}

// NewValidateStep creates a new validation step.
func NewValidateStep(opts ...ValidateStepOption) *ValidateStep {
	s := &ValidateStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ValidateStep) Name() string {
	return "validate"
}

// Do executes the validate step.
func (s *ValidateStep) Do(_ context.Context, report *model.TemplateReport) error {
	if report.Structure == nil {
		return ErrNotAnalyzed
	}
	if report.Validation == nil {
		report.Validation = validator.ValidateStructure(report.Structure, report.Cycles, report.Diagnostics)
	}

	if !report.Validation.Valid {
		s.logger.Warn("template is invalid",
			"template", report.Identity,
			"errors", report.Validation.ErrorCount(),
		)
		if s.strict {
			return fmt.Errorf("%w: %s", ErrInvalidTemplate, report.Identity)
		}
	}
	return nil
}

// PersistStep writes the analysed template to the store while holding the
// cross-process template lock.
type PersistStep struct {
	store   cache.Store
	lockDir string
	logger  *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithPersistLogger sets a custom logger for the persist step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a new persistence step. Lock files live under
// lockDir, normally the database directory.
func NewPersistStep(store cache.Store, lockDir string, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		store:   store,
		lockDir: lockDir,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the persist step.
func (s *PersistStep) Do(ctx context.Context, report *model.TemplateReport) error {
	if report.Structure == nil {
		return ErrNotAnalyzed
	}

	lock, err := database.LockTemplate(ctx, s.lockDir, report.Identity)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release template lock", "template", report.Identity, "error", err)
		}
	}()

	if err := s.store.SaveTemplate(ctx, report); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	report.Persisted = true

	s.logger.Debug("template saved", "template", report.Identity, "version", report.Version)
	return nil
}
