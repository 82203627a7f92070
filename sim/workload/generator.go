package workload

import (
	"fmt"
	"math"

	"github.com/inference-sim/batchsim/sim"
)

// Generator names accepted by NewLoadGenerator.
const (
	GeneratorBatch      = "batch"
	GeneratorConcurrent = "concurrent"
	GeneratorRate       = "rate"
)

// ValidGenerators is the set of recognized load generator names.
var ValidGenerators = map[string]bool{GeneratorBatch: true, GeneratorConcurrent: true, GeneratorRate: true}

// GeneratorConfig is the per-request configuration shared by every generator
// variant. Every emitted request uses the same RequestParams, except that a
// positive OutputTokensStdDev draws each request's output length from a
// normal distribution around TargetOutputTokens.
type GeneratorConfig struct {
	sim.RequestParams
	OutputTokensStdDev float64 // 0 = fixed output length
	Seed               int64   // master seed for every random draw the generator makes
}

// Validate rejects out-of-range parameters with a *sim.ConfigError.
func (c GeneratorConfig) Validate() error {
	if err := c.RequestParams.Validate(); err != nil {
		return err
	}
	if c.OutputTokensStdDev < 0 || math.IsNaN(c.OutputTokensStdDev) || math.IsInf(c.OutputTokensStdDev, 0) {
		return sim.NewConfigError("output_tokens_stdev", c.OutputTokensStdDev, "must be a finite value >= 0")
	}
	return nil
}

// requestFactory builds requests with sequential IDs. Output lengths come
// from the output-length stream of the generator's PartitionedRNG, so the
// sequence depends only on the seed and the order of emission.
type requestFactory struct {
	params  sim.RequestParams
	sampler LengthSampler
	rng     *sim.PartitionedRNG
	emitted int
}

func newRequestFactory(cfg GeneratorConfig) *requestFactory {
	rng := sim.NewPartitionedRNG(cfg.Seed)
	return &requestFactory{
		params:  cfg.RequestParams,
		sampler: NewLengthSampler(cfg.TargetOutputTokens, cfg.OutputTokensStdDev, rng.OutputLengths()),
		rng:     rng,
	}
}

func (f *requestFactory) newRequests(n int, now int64) []*sim.Request {
	if n <= 0 {
		return nil
	}
	reqs := make([]*sim.Request, 0, n)
	for i := 0; i < n; i++ {
		params := f.params
		params.TargetOutputTokens = f.sampler.Sample()
		reqs = append(reqs, sim.NewRequest(fmt.Sprintf("request_%d", f.emitted), now, params))
		f.emitted++
	}
	return reqs
}

// BatchLoadGenerator emits InitialBatch requests on its first call and nothing
// afterwards.
type BatchLoadGenerator struct {
	*requestFactory
	initialBatch int
	done         bool
}

// NewBatchLoadGenerator validates cfg and initialBatch (>= 0).
func NewBatchLoadGenerator(initialBatch int, cfg GeneratorConfig) (*BatchLoadGenerator, error) {
	if initialBatch < 0 {
		return nil, sim.NewConfigError("initial_batch", initialBatch, "must be >= 0")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BatchLoadGenerator{requestFactory: newRequestFactory(cfg), initialBatch: initialBatch}, nil
}

func (g *BatchLoadGenerator) Name() string { return GeneratorBatch }

func (g *BatchLoadGenerator) Arrivals(now int64, _ int) []*sim.Request {
	if g.done {
		return nil
	}
	g.done = true
	return g.newRequests(g.initialBatch, now)
}

func (g *BatchLoadGenerator) Exhausted() bool { return g.done }

// ConcurrentLoadGenerator is a closed loop: every step it tops the system up
// to TargetConcurrency requests that are not done.
type ConcurrentLoadGenerator struct {
	*requestFactory
	targetConcurrency int
}

// NewConcurrentLoadGenerator validates cfg and targetConcurrency (> 0).
func NewConcurrentLoadGenerator(targetConcurrency int, cfg GeneratorConfig) (*ConcurrentLoadGenerator, error) {
	if targetConcurrency <= 0 {
		return nil, sim.NewConfigError("target_concurrency", targetConcurrency, "must be > 0")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ConcurrentLoadGenerator{requestFactory: newRequestFactory(cfg), targetConcurrency: targetConcurrency}, nil
}

func (g *ConcurrentLoadGenerator) Name() string { return GeneratorConcurrent }

func (g *ConcurrentLoadGenerator) Arrivals(now int64, occupancy int) []*sim.Request {
	return g.newRequests(g.targetConcurrency-occupancy, now)
}

// Exhausted is always false: a closed loop never stops on its own.
func (g *ConcurrentLoadGenerator) Exhausted() bool { return false }

// RequestRateLoadGenerator is an open loop emitting RequestRate requests per
// tick on average. Arrivals that fall inside a multi-tick step are observed
// at the start of the following step.
type RequestRateLoadGenerator struct {
	*requestFactory
	rate    float64
	arrival ArrivalProcess
}

// NewRequestRateLoadGenerator validates cfg, rate (> 0) and the arrival process
// name. Poisson arrivals draw from the arrival stream derived from cfg.Seed.
func NewRequestRateLoadGenerator(rate float64, process string, cfg GeneratorConfig) (*RequestRateLoadGenerator, error) {
	if !(rate > 0) || math.IsInf(rate, 0) {
		return nil, sim.NewConfigError("request_rate", rate, "must be a finite value > 0")
	}
	if !ValidArrivalProcesses[process] {
		return nil, sim.NewConfigError("arrival", process, "unknown arrival process")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := newRequestFactory(cfg)
	return &RequestRateLoadGenerator{
		requestFactory: f,
		rate:           rate,
		arrival:        NewArrivalProcess(process, rate, f.rng.Arrivals()),
	}, nil
}

func (g *RequestRateLoadGenerator) Name() string { return GeneratorRate }

func (g *RequestRateLoadGenerator) Arrivals(now int64, _ int) []*sim.Request {
	return g.newRequests(g.arrival.Due(now), now)
}

// Exhausted is always false: arrivals continue for as long as the run lasts.
func (g *RequestRateLoadGenerator) Exhausted() bool { return false }
