// Package document reads templates into the raw cell grid consumed by the
// analyzer.
//
// Three formats are supported: Excel workbooks (via excelize), HTML table
// exports (via golang.org/x/net/html) and the JSON grid record. Every reader
// fills Document.Version with Fingerprint, so an unchanged template always
// yields the same version and any edit yields a new one.
//
// Design decision: readers only transport what the file stores. They do not
// classify cells or look inside formulas; that is the analyzer's job.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/formulagraph/internal/model"
)

var (
	// ErrUnsupportedFormat is returned by Read for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrTooManyCells is returned when a sheet exceeds the cell limit.
	ErrTooManyCells = errors.New("sheet exceeds the cell limit")
)

// DefaultMaxCells is the largest sheet area scanned by the xlsx reader.
const DefaultMaxCells = 1 << 20

// ReadError describes a failure to read one document.
type ReadError struct {
	// Path is the file being read.
	Path string

	// Sheet is the sheet being read, when the failure concerns one sheet.
	Sheet string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("read %s (sheet %q): %v", e.Path, e.Sheet, e.Err)
	}
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// Option configures a reader.
type Option func(*options)

type options struct {
	maxCells int
}

// WithMaxCells sets the largest sheet area the xlsx reader scans.
func WithMaxCells(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxCells = n
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{maxCells: DefaultMaxCells}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Format is a supported document format.
type Format string

const (
	// FormatXLSX is an Excel workbook.
	FormatXLSX Format = "xlsx"

	// FormatHTML is an HTML table export.
	FormatHTML Format = "html"

	// FormatJSON is the JSON grid record.
	FormatJSON Format = "json"
)

// DetectFormat returns the format of path from its extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return FormatXLSX, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Read reads the document at path, choosing the reader by file extension.
// The document identity is the path as given.
func Read(path string, opts ...Option) (*model.Document, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	if format == FormatXLSX {
		return ReadXLSX(path, opts...)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck // read-only file

	if format == FormatHTML {
		return ReadHTML(f, path)
	}
	return ReadJSON(f, path)
}
