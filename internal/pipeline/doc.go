// Package pipeline provides a framework for processing templates in steps.
//
// A template goes through reading, analysis, validation and, optionally,
// persistence. Each stage is implemented as a Step that receives the
// current model.TemplateReport and fills in its part.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls so that commands can assemble only the steps they need (the
// validate command never persists, for instance) while logging and error
// recording stay in one place.
//
// The pipeline supports both individual templates and batch processing
// with concurrency control using errgroup.
package pipeline
