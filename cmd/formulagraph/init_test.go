package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/formulagraph/internal/config"
	"github.com/nao1215/formulagraph/internal/document"
)

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "init" {
			t.Errorf("expected use 'init', got %q", cmd.Use)
		}
	})

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
		if flag.DefValue != configFileName {
			t.Errorf("expected default %q, got %q", configFileName, flag.DefValue)
		}
	})

	t.Run("has force and sample flags", func(t *testing.T) {
		t.Parallel()
		if flag := cmd.Flags().Lookup("force"); flag == nil || flag.Shorthand != "f" {
			t.Error("expected force flag with shorthand 'f'")
		}
		if flag := cmd.Flags().Lookup("sample"); flag == nil || flag.DefValue != "" {
			t.Error("expected sample flag with empty default")
		}
	})
}

// runInit executes a standalone init command.
func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewInitCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// TestRunInitCmd tests the init command execution.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates a loadable config file", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "nested", ".formulagraph.yaml")
		out, err := runInit(t, "-o", outputPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Created configuration file") {
			t.Errorf("unexpected output: %s", out)
		}

		file, err := config.LoadConfigFile(outputPath)
		if err != nil {
			t.Fatalf("generated config does not load: %v", err)
		}
		if file.Defaults.InputMarker != "FFFF00" || file.Defaults.Precedence != "marker" {
			t.Errorf("defaults = %+v", file.Defaults)
		}

		cfg := config.NewConfig()
		cfg.TemplateConfigs = file
		if _, err := cfg.Resolve("quote.xlsx"); err != nil {
			t.Errorf("generated defaults do not resolve: %v", err)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".formulagraph.yaml")
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, err := runInit(t, "-o", outputPath); err == nil {
			t.Fatal("expected error for existing file")
		}
		content, _ := os.ReadFile(outputPath)
		if string(content) != "existing" {
			t.Error("existing file was modified")
		}

		if _, err := runInit(t, "-o", outputPath, "-f"); err != nil {
			t.Fatalf("unexpected error with -f: %v", err)
		}
		content, _ = os.ReadFile(outputPath)
		if !strings.Contains(string(content), "defaults:") {
			t.Error("expected file to be overwritten with -f")
		}
	})

	t.Run("writes a sample workbook", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		samplePath := filepath.Join(dir, "quote.xlsx")
		out, err := runInit(t, "-o", filepath.Join(dir, "cfg.yaml"), "--sample", samplePath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Created sample workbook") {
			t.Errorf("unexpected output: %s", out)
		}

		doc, err := document.Read(samplePath)
		if err != nil {
			t.Fatalf("sample does not read back: %v", err)
		}
		if got := strings.Join(doc.SheetNames(), ","); got != "Quote" {
			t.Errorf("sheets = %s", got)
		}
		if doc.NamedRanges["in_tax_rate"] != "Quote!$B$4" {
			t.Errorf("named ranges = %v", doc.NamedRanges)
		}
	})
}
