package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/formulagraph/internal/model"
)

// Step is one stage of template processing. A step reads what earlier
// steps left in the report and adds its own results.
type Step interface {
	// Do runs the step against report. A returned error marks the
	// template as failed; findings about the template itself belong in
	// the report's diagnostics, not in the error.
	Do(ctx context.Context, report *model.TemplateReport) error

	// Name identifies the step in logs and in PerformedSteps.
	Name() string
}

// Pipeline runs a fixed list of steps for one template.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running the remaining steps after a failure.
// The report still records the first error.
//
// Design decision: The default is to stop, because each step needs the
// output of the one before it. A template that could not be read has
// nothing to analyse.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in the given order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order against report. The context is checked
// before every step; a cancelled context fails the template with ctx.Err().
// It returns the first step error unless the pipeline continues on error.
func (p *Pipeline) Execute(ctx context.Context, report *model.TemplateReport) error {
	logger := p.logger.With("template", report.Identity)

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			logger.Warn("pipeline cancelled", "step", step.Name(), "reason", err)
			p.fail(report, err)
			return err
		}

		if err := p.run(ctx, logger, step, report); err != nil {
			p.fail(report, err)
			if !p.continueOnError {
				return err
			}
		}
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}
	return nil
}

// run executes one step and logs its outcome and duration.
func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, step Step, report *model.TemplateReport) error {
	start := time.Now()
	err := step.Do(ctx, report)
	elapsed := time.Since(start)

	if err != nil {
		logger.Error("step failed", "step", step.Name(), "elapsed", elapsed, "error", err)
		return err
	}
	logger.Debug("step completed", "step", step.Name(), "elapsed", elapsed)
	return nil
}

// fail records err unless an earlier step already failed the template.
func (p *Pipeline) fail(report *model.TemplateReport, err error) {
	if !report.Failed() {
		report.SetError(err)
	}
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}
