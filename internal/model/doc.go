// Package model defines the core data structures used throughout formulagraph.
//
// This package contains the following main types:
//   - CellReference: a (sheet, coordinate) pair identifying one grid position
//   - Literal: the closed sum type Number | Text | Empty held by a cell
//   - Cell and CellRole: a classified cell of one analysis pass
//   - Document: the raw multi-sheet grid handed over by a document reader
//   - TemplateStructure: the serializable analysis result
//   - ValidationResult, RecalcResult: validator and recalculation outputs
//   - TemplateReport, RecalcReport: records rendered by report writers
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The engine packages (classifier, reference, graph, analyzer,
// recalc, validator) and the host packages (document, cache, database,
// report) all need these types, so centralizing them prevents import cycles.
//
// Sheet-name policy: sheet names are matched case-insensitively using
// Unicode case folding. The canonical spelling of a sheet is the one the
// document declares; a reference to an undeclared sheet keeps the spelling
// written in the formula.
package model
