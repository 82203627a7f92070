// sim/metrics_utils.go
package sim

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

// CalculatePercentile returns the empirical p-th percentile (0..100) of data.
// data is not modified. Returns 0 for empty input.
func CalculatePercentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)
	return stat.Quantile(p/100.0, stat.Empirical, sorted, nil)
}

// CalculateMean returns the arithmetic mean of data, or 0 for empty input.
func CalculateMean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}
