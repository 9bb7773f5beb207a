// Package config provides configuration structures and utilities for
// formulagraph. It defines the options for reading and analysing templates,
// the classifier defaults, persistence and report output, and the optional
// per-template overrides loaded from a YAML or TOML file.
package config
