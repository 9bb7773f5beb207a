package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/formulagraph/internal/config"
)

// NewRootCmd creates the root command for formulagraph.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formulagraph",
		Short: "Template structure and formula dependency engine",
		Long: `formulagraph analyses spreadsheet templates (.xlsx, HTML table exports
and JSON grids). It classifies every cell as input, output, formula or plain
data, builds the dependency graph of the formulas, reports cycles and
recalculates the outputs for new input values.

Input cells are found by fill colour (yellow by default), by an "in_" text
prefix or by named ranges such as "in_rate"; output cells likewise by a green
fill, an "out_" prefix or "out_" named ranges.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .formulagraph.yaml in current or home directory)")
	cmd.PersistentFlags().String("data-dir", config.XDGDataDir(),
		"Directory holding the template database")

	// Add subcommands
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewRecalcCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
