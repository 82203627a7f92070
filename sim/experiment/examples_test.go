package experiment

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_ShippedExamples_ParseAndRun(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "examples", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no example experiment files found")

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			// GIVEN a shipped experiments file
			f, err := LoadFile(path)
			require.NoError(t, err)

			// WHEN every experiment runs at a short horizon
			results, err := RunAll(context.Background(), Sweep(f.Experiments, []int64{200}), 0)
			require.NoError(t, err)

			// THEN each run reports progress
			require.Len(t, results, len(f.Experiments))
			for _, res := range results {
				assert.Positive(t, res.Report.Steps, res.Name)
				assert.Positive(t, res.Report.CompletedRequests, res.Name)
			}
		})
	}
}

func TestLoadFile_BatchingStrategies_IFBBeatsStatic(t *testing.T) {
	f, err := LoadFile(filepath.Join("..", "..", "examples", "batching-strategies.yaml"))
	require.NoError(t, err)
	byName := make(map[string]Spec)
	for _, s := range f.Experiments {
		byName[s.Name] = s
	}

	static, err := byName["static"].Run()
	require.NoError(t, err)
	ifb, err := byName["ifb"].Run()
	require.NoError(t, err)

	// THEN the shared YAML anchor gives both runs the same 100 requests, and
	// in-flight refill finishes them sooner
	assert.Equal(t, 100, static.Report.CompletedRequests)
	assert.Equal(t, 100, ifb.Report.CompletedRequests)
	assert.Less(t, ifb.Report.ElapsedTicks, static.Report.ElapsedTicks)
	assert.Less(t, ifb.Report.AvgE2ELatency, static.Report.AvgE2ELatency)
	assert.Greater(t, ifb.Report.RequestsPer1kTicks, static.Report.RequestsPer1kTicks)

	onePrefill, err := byName["one-prefill"].Run()
	require.NoError(t, err)
	require.NotNil(t, onePrefill.Summary)
	assert.Equal(t, 1, onePrefill.Summary.MaxConcurrentPrefills)
}
