// Package database provides SQLite-based storage for formulagraph.
//
// This package implements the TemplateDB, which stores:
//   - The latest analysis of every template, keyed by identity
//   - Recalculation runs, kept as history per template
//
// It also provides a file lock per template identity, so that several
// formulagraph processes sharing one data directory do not analyse and
// persist the same template concurrently.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because the
// database is a single file under the user's data directory and the
// CGO-free driver keeps cross-compilation simple. Reports are stored as
// JSON next to a few summary columns, so listing templates does not need
// to decode every report.
package database
