package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/formulagraph/internal/classifier"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// Changes to defaults should be intentional, so the tests fail when they change.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Timeout is 60 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 60*time.Second {
			t.Errorf("expected Timeout to be 60s, got %v", cfg.Timeout)
		}
	})

	t.Run("default BatchSize is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 4 {
			t.Errorf("expected BatchSize to be 4, got %d", cfg.BatchSize)
		}
	})

	t.Run("default RangeLimit is 4096", func(t *testing.T) {
		t.Parallel()
		if cfg.RangeLimit != 4096 {
			t.Errorf("expected RangeLimit to be 4096, got %d", cfg.RangeLimit)
		}
	})

	t.Run("default classifier", func(t *testing.T) {
		t.Parallel()
		if cfg.Classifier != classifier.DefaultConfig() {
			t.Errorf("expected default classifier, got %+v", cfg.Classifier)
		}
	})

	t.Run("default DBDir is the XDG data directory", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"quote.xlsx"}
		return cfg
	}

	testCases := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid config returns nil", modify: func(*Config) {}},
		{name: "multiple targets is valid", modify: func(c *Config) { c.Targets = []string{"a.xlsx", "b.html", "c.json"} }},
		{name: "nil targets", modify: func(c *Config) { c.Targets = nil }, wantErr: ErrNoTarget},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative batch size", modify: func(c *Config) { c.BatchSize = -1 }, wantErr: ErrInvalidBatchSize},
		{name: "both report formats", modify: func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, wantErr: ErrConflictingReportFormats},
		{name: "zero range limit", modify: func(c *Config) { c.RangeLimit = 0 }, wantErr: ErrInvalidRangeLimit},
		{name: "negative max cells", modify: func(c *Config) { c.MaxCells = -5 }, wantErr: ErrInvalidMaxCells},
		{name: "excelize engine", modify: func(c *Config) { c.Engine = EngineExcelize }},
		{name: "unknown engine", modify: func(c *Config) { c.Engine = "libreoffice" }, wantErr: ErrInvalidEngine},
		{name: "zero max cells uses default", modify: func(c *Config) { c.MaxCells = 0 }},
		{name: "bad name pattern", modify: func(c *Config) { c.Classifier.OutputNamePattern = "(" }, wantErr: ErrInvalidClassifier},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// TestFileGetTemplateConfig tests merging of defaults and template entries.
func TestFileGetTemplateConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: TemplateConfig{InputMarker: "FFC000", OutputMarker: "00B050"},
		Templates: map[string]TemplateConfig{
			"quotes/q1.xlsx": {OutputPrefix: "total_"},
			"*.html":         {Precedence: "prefix"},
			"quotes/*.xlsx":  {OutputMarker: "FF0000"},
		},
	}

	t.Run("exact key wins over globs", func(t *testing.T) {
		t.Parallel()
		got := cf.GetTemplateConfig("quotes/q1.xlsx")
		if got.OutputPrefix != "total_" || got.InputMarker != "FFC000" || got.OutputMarker != "00B050" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("glob on path", func(t *testing.T) {
		t.Parallel()
		got := cf.GetTemplateConfig("quotes/q2.xlsx")
		if got.OutputMarker != "FF0000" || got.InputMarker != "FFC000" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("glob on base name", func(t *testing.T) {
		t.Parallel()
		got := cf.GetTemplateConfig("/srv/exports/rates.html")
		if got.Precedence != "prefix" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("no match returns defaults", func(t *testing.T) {
		t.Parallel()
		got := cf.GetTemplateConfig("other.json")
		if got != cf.Defaults {
			t.Errorf("got %+v, expected defaults", got)
		}
	})
}

// TestTemplateConfigApply tests applying overrides to a classifier configuration.
func TestTemplateConfigApply(t *testing.T) {
	t.Parallel()

	base := classifier.DefaultConfig()

	got, err := TemplateConfig{InputMarker: "#ffc000", OutputPrefix: Disabled, Precedence: "prefix"}.Apply(base)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if got.InputMarker != "#ffc000" || got.OutputPrefix != "" || got.Precedence != classifier.PrefixFirst {
		t.Errorf("got %+v", got)
	}
	if got.OutputMarker != base.OutputMarker || got.InputPrefix != base.InputPrefix {
		t.Error("empty overrides must inherit")
	}

	if _, err := (TemplateConfig{Precedence: "loudest"}).Apply(base); err == nil {
		t.Error("expected error for unknown precedence")
	}
	if _, err := (TemplateConfig{InputNamePattern: "["}).Apply(base); !errors.Is(err, classifier.ErrInvalidNamePattern) {
		t.Errorf("expected ErrInvalidNamePattern, got %v", err)
	}
}

// TestConfigResolve tests the effective per-template settings.
func TestConfigResolve(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	res, err := cfg.Resolve("quote.xlsx")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res != cfg.Classifier {
		t.Errorf("without a file Resolve = %+v", res)
	}

	cfg.TemplateConfigs = &File{
		Templates: map[string]TemplateConfig{
			"quote.xlsx": {OutputMarker: "FF0000"},
			"bad.xlsx":   {OutputNamePattern: "(("},
		},
	}
	res, err = cfg.Resolve("quote.xlsx")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res.OutputMarker != "FF0000" || res.InputMarker != cfg.Classifier.InputMarker {
		t.Errorf("Resolve = %+v", res)
	}

	if _, err := cfg.Resolve("bad.xlsx"); !errors.Is(err, ErrInvalidClassifier) {
		t.Errorf("expected ErrInvalidClassifier, got %v", err)
	}
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, name, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), name)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		return path
	}

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.formulagraph.yaml")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		path := write(t, ".formulagraph.yaml", `defaults:
  inputMarker: "FFC000"
  outputNamePattern: "^total_"
templates:
  quotes/*.xlsx:
    outputPrefix: "total_"
    precedence: prefix
`)
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Defaults.InputMarker != "FFC000" || cf.Defaults.OutputNamePattern != "^total_" {
			t.Errorf("defaults = %+v", cf.Defaults)
		}
		if got := cf.Templates["quotes/*.xlsx"]; got.OutputPrefix != "total_" || got.Precedence != "prefix" {
			t.Errorf("template = %+v", got)
		}
	})

	t.Run("loads valid TOML config", func(t *testing.T) {
		t.Parallel()

		path := write(t, ".formulagraph.toml", `[defaults]
outputMarker = "FF0000"

[templates."rates.html"]
inputPrefix = "rate_"
precedence = "prefix"
`)
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Defaults.OutputMarker != "FF0000" {
			t.Errorf("defaults = %+v", cf.Defaults)
		}
		if got := cf.Templates["rates.html"]; got.InputPrefix != "rate_" || got.Precedence != "prefix" {
			t.Errorf("template = %+v", got)
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadConfigFile(write(t, "c.yaml", "defaults:\n  inputMarkr: FFC000\n")); err == nil {
			t.Error("expected error for unknown YAML key")
		}
		_, err := LoadConfigFile(write(t, "c.toml", "[defaults]\ninputMarkr = \"FFC000\"\n"))
		if err == nil || !strings.Contains(err.Error(), "inputMarkr") {
			t.Errorf("expected unknown TOML key error, got %v", err)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadConfigFile(write(t, "c.yaml", `invalid: yaml: content: [}`)); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("empty file initializes Templates map", func(t *testing.T) {
		t.Parallel()

		cf, err := LoadConfigFile(write(t, "c.yaml", ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Templates == nil {
			t.Error("expected Templates map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("findIn respects name order", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		for _, name := range []string{".formulagraph.toml", DefaultConfigFile} {
			if err := os.WriteFile(filepath.Join(dir, name), nil, 0600); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
		}
		if got := findIn(dir, configFileNames); got != filepath.Join(dir, DefaultConfigFile) {
			t.Errorf("findIn = %q, expected the YAML file", got)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if dir := XDGDataDir(); !strings.HasSuffix(dir, AppName) {
		t.Errorf("unexpected XDG data dir %q", dir)
	}
	if dir := XDGConfigDir(); !strings.HasSuffix(dir, AppName) {
		t.Errorf("unexpected XDG config dir %q", dir)
	}
}
