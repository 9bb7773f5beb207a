// Package classifier assigns a role (input, output, formula or plain) to
// each cell of a template.
//
// A cell is recognised as input or output by one of three conventions:
//   - a visual marker, typically the cell's fill colour;
//   - a naming prefix at the start of the cell's text literal;
//   - membership in a named range whose name matches a pattern.
//
// The naming prefix and the named-range pattern are both "naming" signals
// and rank together. Markers and naming signals are ranked by Precedence.
//
// Known limitation: a text literal that merely happens to start with the
// input prefix is classified as input. This is accepted, not an error.
package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nao1215/formulagraph/internal/model"
)

// ErrInvalidNamePattern is returned when a named-range pattern does not compile.
var ErrInvalidNamePattern = errors.New("invalid named-range pattern")

// Precedence decides which signal wins when a cell carries both a marker
// and a naming signal for different roles.
type Precedence int

const (
	// MarkerFirst checks the input marker, then the input naming signals,
	// then the output marker, then the output naming signals.
	MarkerFirst Precedence = iota

	// PrefixFirst checks naming signals for both roles before any marker.
	// Use it for documents whose reader does not preserve styling reliably.
	PrefixFirst
)

// String returns the configuration name of the precedence.
func (p Precedence) String() string {
	switch p {
	case MarkerFirst:
		return "marker"
	case PrefixFirst:
		return "prefix"
	default:
		return "unknown"
	}
}

// ParsePrecedence parses "marker" or "prefix".
func ParsePrecedence(s string) (Precedence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "marker":
		return MarkerFirst, nil
	case "prefix":
		return PrefixFirst, nil
	default:
		return MarkerFirst, fmt.Errorf("unknown precedence %q (expected marker or prefix)", s)
	}
}

// Config is the classifier configuration. An empty marker, prefix or
// pattern disables that check.
type Config struct {
	// InputMarker is the marker of input cells, e.g. a fill colour "FFFF00".
	InputMarker string `json:"input_marker" yaml:"input_marker" toml:"input_marker"`

	// InputPrefix is the text prefix of input cells, e.g. "in_".
	InputPrefix string `json:"input_prefix" yaml:"input_prefix" toml:"input_prefix"`

	// OutputMarker is the marker of output cells.
	OutputMarker string `json:"output_marker" yaml:"output_marker" toml:"output_marker"`

	// OutputPrefix is the text prefix of output cells.
	OutputPrefix string `json:"output_prefix" yaml:"output_prefix" toml:"output_prefix"`

	// InputNamePattern matches names of named ranges covering input cells.
	InputNamePattern string `json:"input_name_pattern" yaml:"input_name_pattern" toml:"input_name_pattern"`

	// OutputNamePattern matches names of named ranges covering output cells.
	OutputNamePattern string `json:"output_name_pattern" yaml:"output_name_pattern" toml:"output_name_pattern"`

	// Precedence ranks markers against naming signals.
	Precedence Precedence `json:"precedence" yaml:"-" toml:"-"`
}

// Default classifier values.
const (
	// DefaultInputMarker is the yellow fill used for input cells.
	DefaultInputMarker = "FFFF00"

	// DefaultOutputMarker is the green fill used for output cells.
	DefaultOutputMarker = "00B050"

	// DefaultInputPrefix marks input cells by text.
	DefaultInputPrefix = "in_"

	// DefaultOutputPrefix marks output cells by text.
	DefaultOutputPrefix = "out_"

	// DefaultInputNamePattern matches named ranges such as "in_rate" or "Input_Qty".
	DefaultInputNamePattern = `(?i)^in(put)?_`

	// DefaultOutputNamePattern matches named ranges such as "out_total".
	DefaultOutputNamePattern = `(?i)^out(put)?_`
)

// DefaultConfig returns the default classifier configuration.
func DefaultConfig() Config {
	return Config{
		InputMarker:       DefaultInputMarker,
		InputPrefix:       DefaultInputPrefix,
		OutputMarker:      DefaultOutputMarker,
		OutputPrefix:      DefaultOutputPrefix,
		InputNamePattern:  DefaultInputNamePattern,
		OutputNamePattern: DefaultOutputNamePattern,
		Precedence:        MarkerFirst,
	}
}

// Classify returns the role of cell using markers, prefixes and the
// presence of a formula. Named ranges are not considered; use a Classifier
// for that. Classify is pure.
func Classify(cell model.Cell, cfg Config) model.CellRole {
	return classify(cell, cfg, model.RolePlain)
}

// Classifier classifies cells with a fixed configuration and the roles
// implied by named ranges.
//
// A Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	cfg         Config
	inputNames  *regexp.Regexp
	outputNames *regexp.Regexp
	named       map[model.CellReference]model.CellRole
}

// New creates a classifier. It returns ErrInvalidNamePattern when one of the
// named-range patterns does not compile.
func New(cfg Config) (*Classifier, error) {
	c := &Classifier{cfg: cfg}

	var err error
	if c.inputNames, err = compilePattern(cfg.InputNamePattern); err != nil {
		return nil, err
	}
	if c.outputNames, err = compilePattern(cfg.OutputNamePattern); err != nil {
		return nil, err
	}
	return c, nil
}

// Config returns the configuration the classifier was built with.
func (c *Classifier) Config() Config {
	return c.cfg
}

// WithNamedRanges returns a copy of the classifier that also recognises
// cells covered by named ranges. ranges maps a range name to the cells it
// covers. When a cell is covered by both an input and an output name, the
// input name wins, matching the input-before-output order of the checks.
func (c *Classifier) WithNamedRanges(ranges map[string][]model.CellReference) *Classifier {
	named := make(map[model.CellReference]model.CellRole)
	for name, refs := range ranges {
		role := c.nameRole(name)
		if role == model.RolePlain {
			continue
		}
		for _, ref := range refs {
			if existing, ok := named[ref]; ok && existing == model.RoleInput {
				continue
			}
			named[ref] = role
		}
	}

	return &Classifier{
		cfg:         c.cfg,
		inputNames:  c.inputNames,
		outputNames: c.outputNames,
		named:       named,
	}
}

// Classify returns the role of cell.
func (c *Classifier) Classify(cell model.Cell) model.CellRole {
	return classify(cell, c.cfg, c.named[cell.Reference])
}

// nameRole returns the role implied by a range name.
func (c *Classifier) nameRole(name string) model.CellRole {
	switch {
	case c.inputNames != nil && c.inputNames.MatchString(name):
		return model.RoleInput
	case c.outputNames != nil && c.outputNames.MatchString(name):
		return model.RoleOutput
	default:
		return model.RolePlain
	}
}

// classify implements the ranking. namedRole is the role implied by named
// ranges, or RolePlain when none applies.
func classify(cell model.Cell, cfg Config, namedRole model.CellRole) model.CellRole {
	marker := NormalizeMarker(cell.Marker)
	text, _ := cell.Value.(model.Text)

	inputMarked := marker != "" && marker == NormalizeMarker(cfg.InputMarker)
	outputMarked := marker != "" && marker == NormalizeMarker(cfg.OutputMarker)
	inputNamed := hasPrefix(string(text), cfg.InputPrefix) || namedRole == model.RoleInput
	outputNamed := hasPrefix(string(text), cfg.OutputPrefix) || namedRole == model.RoleOutput

	type check struct {
		hit  bool
		role model.CellRole
	}
	checks := []check{
		{inputMarked, model.RoleInput},
		{inputNamed, model.RoleInput},
		{outputMarked, model.RoleOutput},
		{outputNamed, model.RoleOutput},
	}
	if cfg.Precedence == PrefixFirst {
		checks = []check{
			{inputNamed, model.RoleInput},
			{outputNamed, model.RoleOutput},
			{inputMarked, model.RoleInput},
			{outputMarked, model.RoleOutput},
		}
	}

	for _, check := range checks {
		if check.hit {
			return check.role
		}
	}
	if cell.HasFormula() {
		return model.RoleFormula
	}
	return model.RolePlain
}

// NormalizeMarker canonicalizes a marker for comparison: surrounding space
// and a leading "#" are dropped, letters are upper-cased, and an 8-digit
// ARGB colour loses its alpha byte so "FFFFFF00" equals "#ffff00".
func NormalizeMarker(marker string) string {
	m := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(marker), "#"))
	if len(m) == 8 && isHex(m) {
		m = m[2:]
	}
	return m
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			return false
		}
	}
	return true
}

func hasPrefix(text, prefix string) bool {
	return prefix != "" && strings.HasPrefix(text, prefix)
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidNamePattern, pattern, err)
	}
	return re, nil
}
