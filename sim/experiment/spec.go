// Package experiment describes simulation runs declaratively and executes
// them, alone or as a parallel sweep of independent engines.
package experiment

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/batchsim/sim"
	"github.com/inference-sim/batchsim/sim/trace"
	"github.com/inference-sim/batchsim/sim/workload"
)

// Per-request defaults applied when a load section leaves a field unset.
const (
	DefaultPrefillTime   int64 = 2
	DefaultITL           int64 = 1
	DefaultOutputTokens        = 4
	DefaultPrefillChunks       = 1
	DefaultMaxBatchSize        = 4
	DefaultHorizon       int64 = 1000
)

// Spec is one experiment: an engine configuration, a load and a horizon.
// Nil pointer fields mean "not set in YAML" and take the package defaults.
type Spec struct {
	Name         string      `yaml:"name"`
	MaxBatchSize *int        `yaml:"max_batch_size"`
	Batcher      string      `yaml:"batcher"`
	LatencyModel string      `yaml:"latency_model"`
	Horizon      *int64      `yaml:"horizon"`
	UntilIdle    bool        `yaml:"until_idle"` // stop early once the generator is exhausted and the system is empty
	Load         LoadConfig  `yaml:"load"`
	Trace        trace.Level `yaml:"trace"`
}

// LoadConfig is the YAML form of workload.LoadSpec.
type LoadConfig struct {
	Type              string   `yaml:"type"`
	InitialBatch      *int     `yaml:"initial_batch"`
	TargetConcurrency *int     `yaml:"target_concurrency"`
	RequestRate       *float64 `yaml:"request_rate"`
	Arrival           string   `yaml:"arrival"`

	PrefillTime        *int64   `yaml:"prefill_time"`
	ITL                *int64   `yaml:"itl"`
	OutputTokens       *int     `yaml:"output_tokens"`
	OutputTokensStdDev *float64 `yaml:"output_tokens_stdev"`
	PrefillChunks      *int     `yaml:"prefill_chunks"`
	Seed               *int64   `yaml:"seed"`
}

// File is the top-level structure of an experiments YAML file.
type File struct {
	Experiments []Spec `yaml:"experiments"`
}

// LoadFile reads, strictly parses and validates an experiments file.
// Unknown keys are errors.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiments file: %w", err)
	}
	return Parse(data)
}

// Parse strictly decodes and validates an experiments document.
func Parse(data []byte) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing experiments file: %w", err)
	}
	if len(f.Experiments) == 0 {
		return nil, fmt.Errorf("experiments file defines no experiments")
	}
	seen := make(map[string]bool, len(f.Experiments))
	for i := range f.Experiments {
		s := &f.Experiments[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("experiment_%d", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate experiment name %q", s.Name)
		}
		seen[s.Name] = true
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("experiment %q: %w", s.Name, err)
		}
	}
	return &f, nil
}

// EngineConfig resolves the engine part of the spec with defaults applied.
func (s Spec) EngineConfig() sim.EngineConfig {
	return sim.EngineConfig{
		MaxBatchSize: deref(s.MaxBatchSize, DefaultMaxBatchSize),
		LatencyModel: s.LatencyModel,
		Trace:        trace.Config{Level: s.Trace},
	}
}

// HorizonTicks is the run length, or the upper bound when UntilIdle is set.
func (s Spec) HorizonTicks() int64 {
	return deref(s.Horizon, DefaultHorizon)
}

// WithHorizon returns a copy of s that runs for horizon ticks.
func (s Spec) WithHorizon(horizon int64) Spec {
	s.Horizon = &horizon
	return s
}

// LoadSpec resolves the load section with defaults applied.
func (l LoadConfig) LoadSpec() workload.LoadSpec {
	return workload.LoadSpec{
		Type:               l.Type,
		InitialBatch:       deref(l.InitialBatch, 0),
		TargetConcurrency:  deref(l.TargetConcurrency, 0),
		RequestRate:        deref(l.RequestRate, 0),
		Arrival:            l.Arrival,
		PrefillTime:        deref(l.PrefillTime, DefaultPrefillTime),
		ITL:                deref(l.ITL, DefaultITL),
		OutputTokens:       deref(l.OutputTokens, DefaultOutputTokens),
		OutputTokensStdDev: deref(l.OutputTokensStdDev, 0),
		PrefillChunks:      deref(l.PrefillChunks, DefaultPrefillChunks),
		Seed:               deref(l.Seed, 0),
	}
}

// Validate checks names and ranges without running anything. Errors are
// *sim.ConfigError values naming the offending field.
func (s Spec) Validate() error {
	if !sim.IsValidBatcher(s.Batcher) {
		return sim.NewConfigError("batcher", s.Batcher, "unknown batcher")
	}
	if !sim.ValidLatencyModels[s.LatencyModel] {
		return sim.NewConfigError("latency_model", s.LatencyModel, "unknown latency model")
	}
	if !trace.IsValidLevel(string(s.Trace)) {
		return sim.NewConfigError("trace", s.Trace, "unknown trace level")
	}
	if n := deref(s.MaxBatchSize, DefaultMaxBatchSize); n <= 0 {
		return sim.NewConfigError("max_batch_size", n, "must be > 0")
	}
	if h := s.HorizonTicks(); h < 0 {
		return sim.NewConfigError("horizon", h, "must be >= 0")
	}
	_, err := workload.NewLoadGenerator(s.Load.LoadSpec())
	return err
}

// NewEngine builds a fresh engine for the spec. Every call returns an
// independent engine with its own generator state.
func (s Spec) NewEngine() (*sim.Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	gen, err := workload.NewLoadGenerator(s.Load.LoadSpec())
	if err != nil {
		return nil, err
	}
	return sim.NewEngine(s.EngineConfig(), gen, sim.NewBatcher(s.Batcher))
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
