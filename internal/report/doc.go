// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown with mermaid diagrams
//
// Every writer renders both template analyses (model.TemplateReport) and
// recalculation runs (model.RecalcReport).
//
// Design decision: We separate report writing from report data structures
// (which are in the model package), so that adding an output format never
// touches the analysis code.
package report
