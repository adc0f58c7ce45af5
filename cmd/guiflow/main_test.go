package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = filepath.Join("..", "..", "pkg", "facts", "testdata", "app.yaml")

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSolve_Text(t *testing.T) {
	out, err := execute(t, "solve", sample, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Solution Report")
	assert.Contains(t, out, "reachingWindows")
}

func TestSolve_JSONWithMetrics(t *testing.T) {
	prom := filepath.Join(t.TempDir(), "guiflow.prom")
	out, err := execute(t, "solve", "--facts", sample, "--format", "json", "--metrics-file", prom)
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Contains(t, report, "maps")

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestCycles(t *testing.T) {
	out, err := execute(t, "cycles", sample)
	require.NoError(t, err)
	assert.Contains(t, out, "Recursive Flows")
}

func TestMissingFacts(t *testing.T) {
	_, err := execute(t, "solve")
	assert.Error(t, err)

	_, err = execute(t, "solve", "--format", "xml", sample)
	assert.Error(t, err)
}
