package config

import (
	"path/filepath"
	"slices"

	"github.com/nao1215/formulagraph/internal/classifier"
)

// Disabled is the override value that switches a classifier check off.
// An empty value means "inherit".
const Disabled = "-"

// TemplateConfig holds classifier overrides for templates.
// Empty fields inherit the setting from the level below.
type TemplateConfig struct {
	// InputMarker overrides the marker of input cells.
	InputMarker string `yaml:"inputMarker,omitempty" toml:"inputMarker,omitempty"`

	// OutputMarker overrides the marker of output cells.
	OutputMarker string `yaml:"outputMarker,omitempty" toml:"outputMarker,omitempty"`

	// InputPrefix overrides the text prefix of input cells.
	InputPrefix string `yaml:"inputPrefix,omitempty" toml:"inputPrefix,omitempty"`

	// OutputPrefix overrides the text prefix of output cells.
	OutputPrefix string `yaml:"outputPrefix,omitempty" toml:"outputPrefix,omitempty"`

	// InputNamePattern overrides the pattern for input named ranges.
	InputNamePattern string `yaml:"inputNamePattern,omitempty" toml:"inputNamePattern,omitempty"`

	// OutputNamePattern overrides the pattern for output named ranges.
	OutputNamePattern string `yaml:"outputNamePattern,omitempty" toml:"outputNamePattern,omitempty"`

	// Precedence is "marker" or "prefix".
	Precedence string `yaml:"precedence,omitempty" toml:"precedence,omitempty"`
}

// File represents the structure of the formulagraph configuration file.
type File struct {
	// Defaults applies to every template unless overridden below.
	Defaults TemplateConfig `yaml:"defaults,omitempty" toml:"defaults,omitempty"`

	// Templates maps a template path, or a glob such as "quotes/*.xlsx",
	// to its overrides.
	Templates map[string]TemplateConfig `yaml:"templates,omitempty" toml:"templates,omitempty"`
}

// GetTemplateConfig returns the overrides for a template, merged over the
// file defaults. An exact key wins over glob keys; glob keys are matched
// against the path and then the base name, in sorted order, and the first
// match is used.
func (cf *File) GetTemplateConfig(identity string) TemplateConfig {
	result := cf.Defaults

	tc, ok := cf.Templates[identity]
	if !ok {
		tc, ok = cf.matchGlob(identity)
	}
	if ok {
		result = result.merge(tc)
	}
	return result
}

func (cf *File) matchGlob(identity string) (TemplateConfig, bool) {
	keys := make([]string, 0, len(cf.Templates))
	for k := range cf.Templates {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	base := filepath.Base(identity)
	for _, k := range keys {
		if ok, _ := filepath.Match(k, identity); ok {
			return cf.Templates[k], true
		}
		if ok, _ := filepath.Match(k, base); ok {
			return cf.Templates[k], true
		}
	}
	return TemplateConfig{}, false
}

// merge returns tc with every non-empty field of o applied on top.
func (tc TemplateConfig) merge(o TemplateConfig) TemplateConfig {
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&tc.InputMarker, o.InputMarker)
	pick(&tc.OutputMarker, o.OutputMarker)
	pick(&tc.InputPrefix, o.InputPrefix)
	pick(&tc.OutputPrefix, o.OutputPrefix)
	pick(&tc.InputNamePattern, o.InputNamePattern)
	pick(&tc.OutputNamePattern, o.OutputNamePattern)
	pick(&tc.Precedence, o.Precedence)
	return tc
}

// Apply returns base with the overrides applied. The value Disabled clears
// a setting. The result is checked by building a classifier from it.
func (tc TemplateConfig) Apply(base classifier.Config) (classifier.Config, error) {
	set := func(dst *string, v string) {
		switch v {
		case "":
		case Disabled:
			*dst = ""
		default:
			*dst = v
		}
	}
	set(&base.InputMarker, tc.InputMarker)
	set(&base.OutputMarker, tc.OutputMarker)
	set(&base.InputPrefix, tc.InputPrefix)
	set(&base.OutputPrefix, tc.OutputPrefix)
	set(&base.InputNamePattern, tc.InputNamePattern)
	set(&base.OutputNamePattern, tc.OutputNamePattern)

	if tc.Precedence != "" {
		p, err := classifier.ParsePrecedence(tc.Precedence)
		if err != nil {
			return base, err
		}
		base.Precedence = p
	}

	if _, err := classifier.New(base); err != nil {
		return base, err
	}
	return base, nil
}
