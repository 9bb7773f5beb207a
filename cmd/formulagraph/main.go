// Package main provides the entry point for the formulagraph CLI.
//
// formulagraph reads spreadsheet templates, finds their input and output
// fields, builds the dependency graph of their formulas and recalculates
// outputs for new input values.
//
// Usage:
//
//	formulagraph analyze <template.xlsx>
//	formulagraph recalc <template.xlsx> --set Calc!A1=20
//
// See --help for all available options.
package main

// main is the entry point for formulagraph.
func main() {
	Execute()
}
