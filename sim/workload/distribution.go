package workload

import (
	"math"

	"github.com/inference-sim/batchsim/sim"
)

// LengthSampler generates output token counts.
type LengthSampler interface {
	// Sample returns a non-negative token count.
	Sample() int
}

// ConstantSampler always returns the same token count (which may be 0).
type ConstantSampler struct {
	value int
}

func (s *ConstantSampler) Sample() int {
	return s.value
}

// NormalSampler draws token counts from N(mean, stdDev) and truncates them
// toward zero after flooring the draw at 1, so every request produces at
// least one token.
type NormalSampler struct {
	mean, stdDev float64
	src          *sim.NormalStream
}

func (s *NormalSampler) Sample() int {
	return int(math.Max(s.src.Normal(s.mean, s.stdDev), 1))
}

// NewLengthSampler returns a ConstantSampler when stdDev is 0 and a
// NormalSampler around mean drawing from src otherwise.
func NewLengthSampler(mean int, stdDev float64, src *sim.NormalStream) LengthSampler {
	if stdDev == 0 {
		return &ConstantSampler{value: mean}
	}
	return &NormalSampler{mean: float64(mean), stdDev: stdDev, src: src}
}
