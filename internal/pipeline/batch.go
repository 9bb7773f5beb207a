package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/formulagraph/internal/model"
)

// DefaultConcurrency is the number of templates processed at once when no
// concurrency is configured.
const DefaultConcurrency = 4

// BatchProcessor handles concurrent processing of multiple templates.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline so that the Pipeline stays focused on one
// template, while the batch owns ordering, limits and the per-template
// timeout.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each template.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of templates processed at once.
	concurrency int

	// timeout bounds each template's pipeline. Zero means no bound.
	timeout time.Duration

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent templates.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithTimeout bounds the pipeline run of each template.
func WithTimeout(d time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each template so that pipeline
// state doesn't leak between templates.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs the pipeline over every path concurrently.
// Reports are returned in the order of paths, including reports of
// templates that failed; the failure is recorded in the report.
//
// The error return is only non-nil when ctx was cancelled before every
// template started. Templates that never started have a nil report.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, paths []string) ([]*model.TemplateReport, error) {
	results := make([]*model.TemplateReport, len(paths))
	err := bp.ProcessBatchWithCallback(ctx, paths, func(report *model.TemplateReport, index int) {
		// Each goroutine writes its own index.
		results[index] = report
	})
	return results, err
}

// ProcessBatchWithCallback runs the pipeline over every path and calls
// callback for each completed template. This is useful for streaming
// results.
//
// The callback is called from the goroutine that completed the template,
// so it must be safe for concurrent use if it touches shared state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	paths []string,
	callback func(report *model.TemplateReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_templates", len(paths),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			bp.logger.Debug("processing template",
				"template", path,
				"index", i+1,
				"total", len(paths),
			)

			report := bp.run(gctx, path)
			if report.Failed() {
				bp.logger.Warn("template failed",
					"template", path,
					"error", report.ErrorMessage,
				)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_templates", len(paths),
		"elapsed", time.Since(startTime),
	)
	return err
}

func (bp *BatchProcessor) run(ctx context.Context, path string) *model.TemplateReport {
	if bp.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bp.timeout)
		defer cancel()
	}

	report := model.NewTemplateReport(path)
	_ = bp.pipelineFactory().Execute(ctx, report) //nolint:errcheck // Error is stored in report
	return report
}
