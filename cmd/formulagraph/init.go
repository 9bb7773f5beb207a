package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/formulagraph/internal/classifier"
	"github.com/nao1215/formulagraph/internal/config"
	"github.com/nao1215/formulagraph/internal/document"
	"github.com/nao1215/formulagraph/internal/model"
)

//go:embed templates/formulagraph.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new formulagraph configuration file",
		Long: `Initialize creates a new .formulagraph.yaml configuration file in the
current directory.

The generated file includes:
- The default input and output markers, prefixes and name patterns
- Commented examples for per-template overrides

With --sample it also writes a small quote workbook that shows every way of
marking fields, which is a good first input for 'formulagraph analyze'.

Examples:
  # Create .formulagraph.yaml in current directory
  formulagraph init

  # Create config file at a specific path
  formulagraph init -o myconfig.yaml

  # Also write a sample workbook
  formulagraph init --sample quote.xlsx

  # Force overwrite existing file
  formulagraph init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing files")
	cmd.Flags().String("sample", "",
		"Also write a sample template workbook to this path")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	samplePath, err := cmd.Flags().GetString("sample")
	if err != nil {
		return err
	}

	// Check existing files before writing anything.
	if !force {
		for _, path := range []string{outputPath, samplePath} {
			if path == "" {
				continue
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("file already exists: %s (use -f to overwrite)", path)
			}
		}
	}

	// Read template from embedded filesystem
	content, err := configTemplate.ReadFile("templates/formulagraph.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if err := ensureDir(outputPath); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)

	if samplePath != "" {
		if err := ensureDir(samplePath); err != nil {
			return err
		}
		if err := document.SaveXLSX(samplePath, sampleTemplate()); err != nil {
			return fmt.Errorf("failed to write sample workbook: %w", err)
		}
		fmt.Fprintf(out, "Created sample workbook: %s\n", samplePath)
		fmt.Fprintf(out, "\nTry: formulagraph recalc %s --set Quote!B1=5\n", samplePath)
	}

	fmt.Fprintln(out, "\nEdit the configuration to change how fields are detected:")
	fmt.Fprintln(out, "  - Fill colours of input and output cells")
	fmt.Fprintln(out, "  - Text prefixes and named range patterns")
	fmt.Fprintln(out, "  - Overrides for individual templates")

	return nil
}

// ensureDir creates the parent directory of path if needed.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// sampleTemplate returns a quote with two marked inputs, a named-range
// input, an intermediate subtotal and a marked total.
func sampleTemplate() *model.Document {
	doc := &model.Document{
		Identity:    "sample",
		NamedRanges: map[string]string{"in_tax_rate": "Quote!$B$4"},
	}
	label := func(coord, text string) {
		doc.SetCell("Quote", coord, model.RawCell{Value: model.Text(text)})
	}

	label("A1", "Quantity")
	doc.SetCell("Quote", "B1", model.RawCell{Value: model.Number(3), Marker: classifier.DefaultInputMarker})
	label("A2", "Unit price")
	doc.SetCell("Quote", "B2", model.RawCell{Value: model.Number(12.5), Marker: classifier.DefaultInputMarker})
	label("A3", "Subtotal")
	doc.SetCell("Quote", "B3", model.RawCell{Formula: "=B1*B2"})
	label("A4", "Tax rate")
	doc.SetCell("Quote", "B4", model.RawCell{Value: model.Number(0.1)})
	label("A5", "Total")
	doc.SetCell("Quote", "B5", model.RawCell{Formula: "=ROUND(B3*(1+B4),2)", Marker: classifier.DefaultOutputMarker})
	return doc
}
