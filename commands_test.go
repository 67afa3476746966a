package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencil/parallel-stencil-go/core"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateThenRunVerified(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.stn")
	result := filepath.Join(dir, "out.stn")
	metrics := filepath.Join(dir, "metrics.prom")

	_, err := execute(t, "generate", "--n", "64", "--seed", "3", "--out", input)
	require.NoError(t, err)

	out, err := execute(t, "run", "--engine", "fuzzy", "--tasks", "5", "--iterations", "21",
		"--in", input, "--out", result, "--verify", "--metrics-out", metrics)
	require.NoError(t, err)
	assert.Contains(t, out, "engine=fuzzy")
	assert.Contains(t, out, "verified")

	f, err := os.Open(result)
	require.NoError(t, err)
	defer f.Close()
	snap, err := core.ReadSnapshot(f)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), snap.N)
	assert.Equal(t, uint64(21), snap.Iterations)

	text, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(text), `stencil_iterations_total{engine="fuzzy"} 21`)
}

func TestWriteSnapshotReportsCreateFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.stn")
	err := writeSnapshot(path, core.NewWorkspace([]float64{1}, 0, 0), 0)
	assert.ErrorContains(t, err, "create output")
}

func TestWriteSnapshotRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.stn")
	w := core.NewWorkspace([]float64{1, 2, 3}, -1, 1)
	require.NoError(t, writeSnapshot(path, w, 5))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	snap, err := core.ReadSnapshot(f)
	require.NoError(t, err)
	assert.Equal(t, w.Current(), snap.Values)
}

func TestRunWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: barrier\nn: 40\niterations: 9\ntasks: 3\n"), 0o644))

	out, err := execute(t, "run", "--config", path, "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "engine=barrier n=40 tasks=3 iterations=9")
}

func TestRunRejectsInvalidConfiguration(t *testing.T) {
	_, err := execute(t, "run", "--engine", "barrier", "--tasks", "0", "--n", "10")
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	_, err = execute(t, "run", "--engine", "gpu")
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestBenchReportsEveryEngine(t *testing.T) {
	out, err := execute(t, "bench", "--n", "100", "--iterations", "10", "--tasks", "4", "--repeats", "1")
	require.NoError(t, err)
	for _, name := range core.EngineNames() {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "max_diff=0")
}
