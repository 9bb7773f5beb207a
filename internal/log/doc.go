// Package log provides compact structured logging built on top of the
// standard slog package.
//
// Template content ends up in log attributes: formulas, cell values and
// whole dependency lists. A single workbook can carry formulas thousands of
// characters long, which makes line-oriented logs unreadable. The
// CompactHandler keeps every record on one line and shortens long values
// before they reach the underlying handler.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//
//	logger.Debug("evaluated cell",
//	    "cell", "Calc!C1",
//	    "formula", formula, // shortened to DefaultMaxValueLen runes
//	)
//
//	slog.SetDefault(logger)
package log
