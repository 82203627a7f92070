package sim

import (
	"fmt"
	"math"
)

// LatencyModel estimates how many ticks one engine step takes.
// Two implementations exist: IterationLatencyModel (prefill chunks serialize,
// decode tokens overlap) and UnitLatencyModel (every step is one tick).
type LatencyModel interface {
	// StepTime estimates the duration of one step given the requests that
	// perform a unit of work in it, observed before they advance.
	// The result is always >= 1.
	StepTime(work []*Request) int64
}

// ceilSlack absorbs float error when summing fractional chunk times
// (e.g. three chunks of 2/3 tick must cost 2 ticks, not 3).
const ceilSlack = 1e-9

// IterationLatencyModel prices a step like one forward pass over a mixed
// batch: prefill chunk times add up, decode tokens run in parallel and cost
// the slowest ITL, and a step never takes less than one tick:
//
//	max(ceil(Σ prefill chunk time), max ITL, 1)
type IterationLatencyModel struct{}

func (m *IterationLatencyModel) StepTime(work []*Request) int64 {
	var prefill float64
	var decode int64
	for _, req := range work {
		switch req.State {
		case StatePrefilling:
			prefill += req.PrefillChunkTime()
		case StateDecoding:
			decode = max(decode, req.ITL)
		}
	}
	prefillTicks := int64(math.Ceil(prefill - ceilSlack))
	return max(prefillTicks, decode, 1)
}

// UnitLatencyModel charges exactly one tick per step regardless of batch
// contents.
type UnitLatencyModel struct{}

func (m *UnitLatencyModel) StepTime(_ []*Request) int64 { return 1 }

// ValidLatencyModels is the set of recognized latency model names.
var ValidLatencyModels = map[string]bool{"": true, "iteration": true, "unit": true}

// NewLatencyModel creates a LatencyModel by name. Empty string selects
// "iteration". Unknown names return a *ConfigError for "latency_model".
func NewLatencyModel(name string) (LatencyModel, error) {
	switch name {
	case "", "iteration":
		return &IterationLatencyModel{}, nil
	case "unit":
		return &UnitLatencyModel{}, nil
	default:
		return nil, NewConfigError("latency_model", name, fmt.Sprintf("unknown latency model %q", name))
	}
}
