package sim

import (
	"hash/fnv"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mathext/prng"
)

// StreamArrivals is the named stream feeding stochastic arrival processes.
const StreamArrivals = "arrivals"

// PartitionedRNG derives independent random streams from a single run seed,
// so drawing output lengths never shifts the arrival sequence and vice versa.
// Two runs with the same seed and configuration produce identical results.
//
// Not safe for concurrent use: each load generator owns its own instance.
type PartitionedRNG struct {
	seed    int64
	lengths *NormalStream
	streams map[string]*rand.Rand
}

// NewPartitionedRNG returns a PartitionedRNG for seed. Streams are created
// lazily on first use.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{seed: seed, streams: make(map[string]*rand.Rand)}
}

// Seed returns the run seed.
func (p *PartitionedRNG) Seed() int64 { return p.seed }

// OutputLengths returns the normal stream used for output length sampling.
// It is seeded with the low 32 bits of the run seed, so seed 42 yields the
// same lengths as numpy.random.seed(42).
func (p *PartitionedRNG) OutputLengths() *NormalStream {
	if p.lengths == nil {
		p.lengths = NewNormalStream(uint32(p.seed))
	}
	return p.lengths
}

// Stream returns the generator for name, always the same instance for the
// same name, seeded with seed XOR fnv1a64(name).
func (p *PartitionedRNG) Stream(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.seed ^ fnv1a64(name)))
	p.streams[name] = rng
	return rng
}

// Arrivals is shorthand for Stream(StreamArrivals).
func (p *PartitionedRNG) Arrivals() *rand.Rand { return p.Stream(StreamArrivals) }

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// NormalStream draws the same sequence as numpy's legacy RandomState:
// MT19937 seeded through init_genrand, 53-bit doubles built from two 32-bit
// outputs, and the polar Box-Muller method, which yields variates in pairs
// and returns the cached second one on the next call.
type NormalStream struct {
	mt       *prng.MT19937
	cached   float64
	hasCache bool
}

// NewNormalStream returns a stream seeded like numpy.random.seed(seed).
func NewNormalStream(seed uint32) *NormalStream {
	mt := prng.NewMT19937()
	mt.Seed(uint64(seed))
	return &NormalStream{mt: mt}
}

// Float64 returns a uniform value in [0, 1).
func (s *NormalStream) Float64() float64 {
	a := s.mt.Uint32() >> 5
	b := s.mt.Uint32() >> 6
	return (float64(a)*67108864.0 + float64(b)) / 9007199254740992.0
}

// StdNormal returns a standard normal variate.
func (s *NormalStream) StdNormal() float64 {
	if s.hasCache {
		s.hasCache = false
		return s.cached
	}
	var x1, x2, r2 float64
	for {
		x1 = 2*s.Float64() - 1
		x2 = 2*s.Float64() - 1
		r2 = x1*x1 + x2*x2
		if r2 < 1 && r2 != 0 {
			break
		}
	}
	f := math.Sqrt(-2 * math.Log(r2) / r2)
	s.cached = f * x1
	s.hasCache = true
	return f * x2
}

// Normal returns a normal variate with the given mean and standard deviation.
func (s *NormalStream) Normal(mean, stdDev float64) float64 {
	return mean + stdDev*s.StdNormal()
}
