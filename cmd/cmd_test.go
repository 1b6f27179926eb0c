package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clinventory/internal/backend"
	"github.com/cwbudde/clinventory/internal/dispatch"
)

// execute runs the root command with args against fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logLevel, runtimeName, traceSpans, metricsFile = "error", "opencl", false, ""
	maxDevices, showHost, deviceCategories, vecCategories = 0, true, nil, nil
	vecN, localSize, precision, allDevices, jobs = 10_000_000, dispatch.DefaultLocalSize, "single", false, 1

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	finish()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "clinventory version "+version)
}

func TestPlatformsCommand(t *testing.T) {
	out, err := execute(t, "--runtime", "sim", "platforms")
	require.NoError(t, err)
	assert.Contains(t, out, "Number of platforms: 1")
	assert.Contains(t, out, "clinventory host simulator")
}

func TestDevicesCommand(t *testing.T) {
	out, err := execute(t, "--runtime", "sim", "devices", "--max-devices", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Host")
	assert.Contains(t, out, "CPU: 1")
	assert.Contains(t, out, "GPU: 0")
	assert.Contains(t, out, "Compute units")
}

func TestVecAddCommand(t *testing.T) {
	out, err := execute(t, "--runtime", "sim", "vecadd", "--n", "1000", "--categories", "cpu,gpu")
	require.NoError(t, err)
	assert.Contains(t, out, "GPU: 0 devices, skipped")
	assert.Contains(t, out, "Result on")
	assert.Contains(t, out, "1 passes, 0 failed")
}

func TestVecAddDoublePrecision(t *testing.T) {
	out, err := execute(t, "--runtime", "sim", "vecadd", "--n", "257", "--precision", "double", "--local-size", "16")
	require.NoError(t, err)
	assert.Contains(t, out, "double-precision")
	assert.Contains(t, out, "global 272, local 16")
}

func TestVecAddRejectsBadInput(t *testing.T) {
	_, err := execute(t, "--runtime", "sim", "vecadd", "--precision", "quad")
	assert.ErrorContains(t, err, "unknown precision")

	_, err = execute(t, "--runtime", "sim", "vecadd", "--n", "0")
	assert.ErrorContains(t, err, "--n must be at least 1")
}

func TestUnknownRuntime(t *testing.T) {
	_, err := execute(t, "--runtime", "cuda", "platforms")
	assert.ErrorIs(t, err, backend.ErrUnknownBackend)
}

func TestMetricsFileWrittenOnExit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinventory.prom")
	_, err := execute(t, "--runtime", "sim", "--metrics-file", path, "vecadd", "--n", "64")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "clinventory_dispatch_passes_total")
}
