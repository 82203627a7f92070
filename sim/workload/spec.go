package workload

import (
	"github.com/inference-sim/batchsim/sim"
)

// LoadSpec is the declarative form of a load generator, as read from an
// experiment file. Only the fields relevant to Type are consulted.
type LoadSpec struct {
	Type              string  `yaml:"type"`
	InitialBatch      int     `yaml:"initial_batch,omitempty"`
	TargetConcurrency int     `yaml:"target_concurrency,omitempty"`
	RequestRate       float64 `yaml:"request_rate,omitempty"`
	Arrival           string  `yaml:"arrival,omitempty"`

	PrefillTime        int64   `yaml:"prefill_time"`
	ITL                int64   `yaml:"itl"`
	OutputTokens       int     `yaml:"output_tokens"`
	OutputTokensStdDev float64 `yaml:"output_tokens_stdev,omitempty"`
	PrefillChunks      int     `yaml:"prefill_chunks"`
	Seed               int64   `yaml:"seed,omitempty"`
}

// GeneratorConfig returns the per-request part of the spec.
func (s LoadSpec) GeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		RequestParams: sim.RequestParams{
			PrefillTime:        s.PrefillTime,
			ITL:                s.ITL,
			TargetOutputTokens: s.OutputTokens,
			TotalPrefillChunks: s.PrefillChunks,
		},
		OutputTokensStdDev: s.OutputTokensStdDev,
		Seed:               s.Seed,
	}
}

// NewLoadGenerator builds the generator named by spec.Type. Invalid specs
// return a *sim.ConfigError.
func NewLoadGenerator(spec LoadSpec) (sim.LoadGenerator, error) {
	cfg := spec.GeneratorConfig()
	var (
		gen sim.LoadGenerator
		err error
	)
	switch spec.Type {
	case GeneratorBatch:
		var g *BatchLoadGenerator
		g, err = NewBatchLoadGenerator(spec.InitialBatch, cfg)
		gen = g
	case GeneratorConcurrent:
		var g *ConcurrentLoadGenerator
		g, err = NewConcurrentLoadGenerator(spec.TargetConcurrency, cfg)
		gen = g
	case GeneratorRate:
		var g *RequestRateLoadGenerator
		g, err = NewRequestRateLoadGenerator(spec.RequestRate, spec.Arrival, cfg)
		gen = g
	default:
		return nil, sim.NewConfigError("load_generator", spec.Type, "unknown load generator type")
	}
	if err != nil {
		// a nil concrete pointer must not leak out as a non-nil interface
		return nil, err
	}
	return gen, nil
}
