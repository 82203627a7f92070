package experiment

import (
	"github.com/inference-sim/batchsim/sim/workload"
)

// Parameters of the batching demos: four slots, ten output tokens with a
// spread of five, seed 42, 100-tick runs.
const (
	demoSeed         int64   = 42
	demoOutputTokens int     = 10
	demoOutputStdDev float64 = 5
	demoHorizon      int64   = 100
)

func ptr[T any](v T) *T { return &v }

func demoSpec(name, batcher string, load LoadConfig) Spec {
	return Spec{Name: name, Batcher: batcher, Horizon: ptr(demoHorizon), Load: load}
}

func demoLoad(kind string) LoadConfig {
	return LoadConfig{
		Type:               kind,
		OutputTokens:       ptr(demoOutputTokens),
		OutputTokensStdDev: ptr(demoOutputStdDev),
		Seed:               ptr(demoSeed),
	}
}

// StrategyComparison returns the batching strategy walkthrough: the same
// 100-request batch under static batching, in-flight batching, chunked
// context and one-prefill admission, followed by closed- and open-loop
// loads on the one-prefill batcher.
func StrategyComparison() []Spec {
	batch := func(chunks int) LoadConfig {
		l := demoLoad(workload.GeneratorBatch)
		l.InitialBatch = ptr(100)
		l.PrefillChunks = ptr(chunks)
		return l
	}
	concurrent := demoLoad(workload.GeneratorConcurrent)
	concurrent.TargetConcurrency = ptr(6)
	concurrent.PrefillChunks = ptr(2)

	return []Spec{
		demoSpec("static", "static", batch(1)),
		demoSpec("ifb", "ifb", batch(1)),
		demoSpec("chunked-context", "ifb", batch(2)),
		demoSpec("one-prefill", "ifb-one-prefill", batch(2)),
		demoSpec("concurrent-load", "ifb-one-prefill", concurrent),
		demoSpec("request-rate", "ifb-one-prefill", rateLoad()),
	}
}

// QueueGrowth returns the open-loop and closed-loop loads compared across
// horizons: the open loop outruns the one-prefill batcher, the closed loop
// cannot.
func QueueGrowth() []Spec {
	concurrent := demoLoad(workload.GeneratorConcurrent)
	concurrent.TargetConcurrency = ptr(6)
	concurrent.PrefillChunks = ptr(2)
	return []Spec{
		demoSpec("request-rate", "ifb-one-prefill", rateLoad()),
		demoSpec("concurrent-load", "ifb-one-prefill", concurrent),
	}
}

// rateLoad is 460 requests per 1000 ticks.
func rateLoad() LoadConfig {
	l := demoLoad(workload.GeneratorRate)
	l.RequestRate = ptr(0.46)
	l.PrefillChunks = ptr(2)
	return l
}
