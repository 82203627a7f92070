package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePercentile(t *testing.T) {
	data := []float64{5, 1, 4, 2, 3}
	assert.Equal(t, 3.0, CalculatePercentile(data, 50))
	assert.Equal(t, 5.0, CalculatePercentile(data, 90))
	assert.Equal(t, 1.0, CalculatePercentile(data, 0))
	assert.Equal(t, 5.0, CalculatePercentile(data, 100))
	// input is left untouched
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, data)
	assert.Zero(t, CalculatePercentile(nil, 50))
}

func TestCalculateMean(t *testing.T) {
	assert.InDelta(t, 2.5, CalculateMean([]float64{1, 2, 3, 4}), 1e-12)
	assert.Zero(t, CalculateMean(nil))
}
