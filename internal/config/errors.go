package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors so that callers can
// use errors.Is() for programmatic error handling while still getting
// human-readable messages.
var (
	// ErrNoTarget is returned when no template path is specified.
	ErrNoTarget = errors.New("no template specified: provide at least one template file")

	// ErrInvalidTimeout is returned when the per-template timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	// A batch size of zero would mean no template is ever processed.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidRangeLimit is returned when the range expansion limit is not positive.
	ErrInvalidRangeLimit = errors.New("invalid range limit: must be positive")

	// ErrInvalidMaxCells is returned when the per-sheet cell limit is negative.
	// Use 0 to apply the default limit.
	ErrInvalidMaxCells = errors.New("invalid max cells: must be non-negative")

	// ErrInvalidEngine is returned for an unknown formula evaluator name.
	ErrInvalidEngine = errors.New("invalid engine: must be builtin or excelize")

	// ErrInvalidClassifier is returned when a classifier setting cannot be
	// used, such as a named-range pattern that does not compile.
	ErrInvalidClassifier = errors.New("invalid classifier configuration")
)
