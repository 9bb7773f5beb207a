package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/formulagraph/internal/classifier"
	"github.com/nao1215/formulagraph/internal/document"
	"github.com/nao1215/formulagraph/internal/model"
)

// testEnv isolates a CLI run from the user's configuration and database.
type testEnv struct {
	dir     string
	config  string
	dataDir string
}

// newTestEnv creates an empty configuration file and data directory.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	env := &testEnv{
		dir:     dir,
		config:  filepath.Join(dir, ".formulagraph.yaml"),
		dataDir: filepath.Join(dir, "data"),
	}
	if err := os.WriteFile(env.config, nil, 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return env
}

// run executes the root command with args and returns stdout.
// Commands that run a pipeline install a process-wide default logger, so
// tests calling run must not be parallel.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.config, "--data-dir", e.dataDir}, args...))

	err := cmd.Execute()
	return stdout.String(), err
}

// writeSample saves the init sample workbook in the environment.
func (e *testEnv) writeSample(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(e.dir, name)
	if err := document.SaveXLSX(path, sampleTemplate()); err != nil {
		t.Fatalf("SaveXLSX returned error: %v", err)
	}
	return path
}

// writeCyclic saves a workbook whose output depends on a cycle.
func (e *testEnv) writeCyclic(t *testing.T, name string) string {
	t.Helper()

	doc := &model.Document{Identity: name}
	doc.SetCell("Loop", "A1", model.RawCell{Value: model.Number(1), Marker: classifier.DefaultInputMarker})
	doc.SetCell("Loop", "B1", model.RawCell{Formula: "=C1+A1"})
	doc.SetCell("Loop", "C1", model.RawCell{Formula: "=B1*2", Marker: classifier.DefaultOutputMarker})

	path := filepath.Join(e.dir, name)
	if err := document.SaveXLSX(path, doc); err != nil {
		t.Fatalf("SaveXLSX returned error: %v", err)
	}
	return path
}

// readFile returns the contents of path.
func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// writeFile replaces the contents of path.
func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
