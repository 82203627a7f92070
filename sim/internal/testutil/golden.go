// Package testutil provides shared test infrastructure for the batch
// simulator: the golden scenario dataset and float assertion helpers used
// by sim/ and its sub-package tests.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one fully deterministic scenario: output lengths are
// fixed or drawn from a seeded normal stream, arrivals use the tick accumulator.
type GoldenTestCase struct {
	Name         string        `json:"name"`
	Batcher      string        `json:"batcher"`
	LatencyModel string        `json:"latency_model"`
	MaxBatchSize int           `json:"max_batch_size"`
	Horizon      int64         `json:"horizon"`
	UntilIdle    bool          `json:"until_idle"`
	Load         GoldenLoad    `json:"load"`
	Metrics      GoldenMetrics `json:"metrics"`
}

// GoldenLoad describes the load generator of a golden scenario.
type GoldenLoad struct {
	Type               string  `json:"type"`
	InitialBatch       int     `json:"initial_batch"`
	TargetConcurrency  int     `json:"target_concurrency"`
	RequestRate        float64 `json:"request_rate"`
	PrefillTime        int64   `json:"prefill_time"`
	ITL                int64   `json:"itl"`
	OutputTokens       int     `json:"output_tokens"`
	OutputTokensStdDev float64 `json:"output_tokens_stdev"`
	PrefillChunks      int     `json:"prefill_chunks"`
	Seed               int64   `json:"seed"`
}

// GoldenMetrics represents the expected report of a golden scenario.
type GoldenMetrics struct {
	// Exact match metrics (integers)
	CompletedRequests int   `json:"completed_requests"`
	TotalOutputTokens int   `json:"total_output_tokens"`
	ElapsedTicks      int64 `json:"elapsed_ticks"`
	Steps             int   `json:"steps"`
	FinalQueueSize    int   `json:"final_queue_size"`
	InFlightRequests  int   `json:"in_flight_requests"`

	// Latency metrics (ticks)
	AvgE2ELatency    float64 `json:"avg_e2e_latency"`
	AvgTTFT          float64 `json:"avg_ttft"`
	AvgITL           float64 `json:"avg_itl"`
	MedianE2ELatency float64 `json:"median_e2e_latency"`
	P90E2ELatency    float64 `json:"p90_e2e_latency"`
	MedianTTFT       float64 `json:"median_ttft"`
	P90TTFT          float64 `json:"p90_ttft"`

	// Throughput metrics (per 1000 ticks)
	RequestsPer1kTicks float64 `json:"requests_per_1k_ticks"`
	TokensPer1kTicks   float64 `json:"tokens_per_1k_ticks"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
