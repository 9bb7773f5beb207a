package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".formulagraph.yaml"

// configFileNames are searched in order in each candidate directory.
var configFileNames = []string{DefaultConfigFile, ".formulagraph.yml", ".formulagraph.toml"}

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads template configurations from a YAML or TOML file.
// The format is chosen by extension: ".toml" is TOML, anything else YAML.
// Unknown keys are rejected so that a misspelt setting does not pass
// silently. If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), &cf)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty file decodes to io.EOF; treat it as an empty configuration.
		if err := dec.Decode(&cf); err != nil && len(bytes.TrimSpace(data)) > 0 {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if cf.Templates == nil {
		cf.Templates = make(map[string]TemplateConfig)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .formulagraph.{yaml,yml,toml} in the current directory
// 3. Look for the same names in the user's home directory
// 4. Look for config.{yaml,yml,toml} in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		if found := findIn(cwd, configFileNames); found != "" {
			return found
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		if found := findIn(home, configFileNames); found != "" {
			return found
		}
	}

	return findIn(XDGConfigDir(), []string{"config.yaml", "config.yml", "config.toml"})
}

func findIn(dir string, names []string) string {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
