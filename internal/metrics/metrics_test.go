package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	DispatchPasses.WithLabelValues(OutcomeOK).Inc()
	PlatformsDiscovered.Set(2)

	path := filepath.Join(t.TempDir(), "clinventory.prom")
	require.NoError(t, WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "clinventory_dispatch_passes_total")
	assert.Contains(t, string(data), "clinventory_platforms_discovered 2")
}

func TestCollectorsRegistered(t *testing.T) {
	before := testutil.ToFloat64(ReleaseFailures.WithLabelValues("kernel"))
	ReleaseFailures.WithLabelValues("kernel").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ReleaseFailures.WithLabelValues("kernel")))

	n, err := testutil.GatherAndCount(Registry, "clinventory_dispatch_release_failures_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}
