package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/formulagraph/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "formulagraph.db"

// TemplateDB provides SQLite-based storage for analysed templates and
// recalculation runs.
//
// Design decision: We keep only the latest analysis per template identity.
// Older versions are superseded by definition (the cache never serves
// them), while recalculation runs keep the version they were computed
// against so that history stays interpretable.
type TemplateDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// now returns the current time; replaced in tests.
	now func() time.Time
}

// Options configures TemplateDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so that readers do not block
	// the writer.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a TemplateDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*TemplateDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	tdb := &TemplateDB{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := tdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return tdb, nil
}

// Close closes the database connection.
func (tdb *TemplateDB) Close() error {
	return tdb.db.Close()
}

// Path returns the database file path.
func (tdb *TemplateDB) Path() string {
	return tdb.dbPath
}

func (tdb *TemplateDB) createTables() error {
	schema := `
	-- One row per template identity: the latest analysis
	CREATE TABLE IF NOT EXISTS templates (
		identity TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		path TEXT,
		analyzed_at TEXT NOT NULL,
		input_count INTEGER NOT NULL DEFAULT 0,
		output_count INTEGER NOT NULL DEFAULT 0,
		formula_count INTEGER NOT NULL DEFAULT 0,
		cycle_count INTEGER NOT NULL DEFAULT 0,
		valid INTEGER NOT NULL DEFAULT 1,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_templates_analyzed ON templates(analyzed_at);

	-- Recalculation runs, kept as history
	CREATE TABLE IF NOT EXISTS recalc_runs (
		run_id TEXT PRIMARY KEY,
		identity TEXT NOT NULL,
		version TEXT NOT NULL,
		created_at TEXT NOT NULL,
		inputs_json TEXT NOT NULL,
		result_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_identity ON recalc_runs(identity);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON recalc_runs(created_at);
	`

	_, err := tdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveTemplate stores the report as the latest analysis of its template,
// replacing any earlier one. It satisfies cache.Store.
func (tdb *TemplateDB) SaveTemplate(ctx context.Context, r *model.TemplateReport) error {
	reportJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	inputs, outputs, formulas := r.RoleCounts()
	valid := r.Validation == nil || r.Validation.Valid

	query := `
	INSERT INTO templates (identity, version, path, analyzed_at, input_count, output_count,
		formula_count, cycle_count, valid, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(identity) DO UPDATE SET
		version = excluded.version,
		path = excluded.path,
		analyzed_at = excluded.analyzed_at,
		input_count = excluded.input_count,
		output_count = excluded.output_count,
		formula_count = excluded.formula_count,
		cycle_count = excluded.cycle_count,
		valid = excluded.valid,
		report_json = excluded.report_json
	`

	_, err = tdb.db.ExecContext(ctx, query,
		r.Identity,
		r.Version,
		r.Path,
		formatTimestamp(r.AnalyzedAt),
		inputs,
		outputs,
		formulas,
		len(r.Cycles),
		valid,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

// GetTemplate retrieves the latest analysis of a template.
// It returns nil without error when the template is unknown.
func (tdb *TemplateDB) GetTemplate(ctx context.Context, identity string) (*model.TemplateReport, error) {
	query := `SELECT report_json FROM templates WHERE identity = ?`

	var reportJSON string
	err := tdb.db.QueryRowContext(ctx, query, identity).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	var report model.TemplateReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// TemplateSummary contains summary information about a stored template.
// It is used for listing templates without loading the full report.
type TemplateSummary struct {
	Identity     string    `json:"identity"`
	Version      string    `json:"version"`
	Path         string    `json:"path"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
	InputCount   int       `json:"input_count"`
	OutputCount  int       `json:"output_count"`
	FormulaCount int       `json:"formula_count"`
	CycleCount   int       `json:"cycle_count"`
	Valid        bool      `json:"valid"`
}

// ListTemplates returns a summary of every stored template, ordered by
// identity.
func (tdb *TemplateDB) ListTemplates(ctx context.Context) ([]TemplateSummary, error) {
	query := `
	SELECT identity, version, path, analyzed_at, input_count, output_count,
		formula_count, cycle_count, valid
	FROM templates
	ORDER BY identity
	`

	rows, err := tdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var results []TemplateSummary
	for rows.Next() {
		var (
			s         TemplateSummary
			path      sql.NullString
			timestamp string
		)
		if err := rows.Scan(&s.Identity, &s.Version, &path, &timestamp, &s.InputCount,
			&s.OutputCount, &s.FormulaCount, &s.CycleCount, &s.Valid); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		s.Path = path.String
		s.AnalyzedAt = parseTimestamp(timestamp)
		results = append(results, s)
	}
	return results, rows.Err()
}

// DeleteTemplate removes a template and its recalculation runs. It reports
// whether the template existed.
func (tdb *TemplateDB) DeleteTemplate(ctx context.Context, identity string) (bool, error) {
	tx, err := tdb.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM recalc_runs WHERE identity = ?`, identity); err != nil {
		return false, fmt.Errorf("failed to delete recalc runs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE identity = ?`, identity)
	if err != nil {
		return false, fmt.Errorf("failed to delete template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete template: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return n > 0, nil
}

// SaveRecalcRun stores one recalculation run. A missing RunID is filled
// with a new random UUID and a zero CreatedAt with the current time.
func (tdb *TemplateDB) SaveRecalcRun(ctx context.Context, r *model.RecalcReport) error {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = tdb.now()
	}

	inputsJSON, err := json.Marshal(r.Inputs)
	if err != nil {
		return fmt.Errorf("failed to serialize inputs: %w", err)
	}
	resultJSON, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	query := `
	INSERT INTO recalc_runs (run_id, identity, version, created_at, inputs_json, result_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = tdb.db.ExecContext(ctx, query,
		r.RunID,
		r.Identity,
		r.Version,
		formatTimestamp(r.CreatedAt),
		string(inputsJSON),
		string(resultJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save recalc run: %w", err)
	}
	return nil
}

// ListRecalcRuns returns the recalculation runs of a template, newest
// first. A limit of zero or less returns every run.
func (tdb *TemplateDB) ListRecalcRuns(ctx context.Context, identity string, limit int) ([]*model.RecalcReport, error) {
	query := `
	SELECT run_id, identity, version, created_at, inputs_json, result_json
	FROM recalc_runs
	WHERE identity = ?
	ORDER BY created_at DESC, run_id
	`
	args := []any{identity}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := tdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recalc runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.RecalcReport
	for rows.Next() {
		var (
			r                      model.RecalcReport
			timestamp              string
			inputsJSON, resultJSON string
		)
		if err := rows.Scan(&r.RunID, &r.Identity, &r.Version, &timestamp, &inputsJSON, &resultJSON); err != nil {
			return nil, fmt.Errorf("failed to scan recalc run: %w", err)
		}
		r.CreatedAt = parseTimestamp(timestamp)

		if r.Inputs, err = model.UnmarshalLiteralMap([]byte(inputsJSON)); err != nil {
			continue // Skip malformed runs
		}
		var result model.RecalcResult
		if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
			continue
		}
		r.Result = &result
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// timestampFormats contains the timestamp formats accepted when reading.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// formatTimestamp formats t in UTC with a fixed width so that timestamps
// sort lexicographically.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
