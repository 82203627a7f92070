package workload

import (
	"math"
	"math/rand"
)

// ArrivalProcess decides how many requests arrive at each observation tick
// of an open-loop generator.
type ArrivalProcess interface {
	// Due returns the number of requests that arrived since the previous
	// call, observed at tick now. Calls must use non-decreasing now.
	Due(now int64) int
}

// AccumulatorArrivals is a deterministic fixed-rate process: by tick now,
// floor(rate × now) requests have arrived in total. The count is derived from
// the tick itself, so float error never builds up over long runs. Identical
// configurations produce identical arrival sequences.
type AccumulatorArrivals struct {
	rate    float64 // requests per tick
	emitted int64
}

// arrivalSlack keeps products such as 0.46 × 50 = 22.999… on the whole unit.
const arrivalSlack = 1e-9

func (a *AccumulatorArrivals) Due(now int64) int {
	total := int64(math.Floor(a.rate*float64(now) + arrivalSlack))
	if total <= a.emitted {
		return 0
	}
	n := total - a.emitted
	a.emitted = total
	return int(n)
}

// PoissonArrivals draws exponentially-distributed inter-arrival gaps from an
// explicitly seeded RNG (CV=1).
type PoissonArrivals struct {
	rate float64 // requests per tick
	rng  *rand.Rand
	next float64 // time of the next arrival, in ticks
}

func (p *PoissonArrivals) Due(now int64) int {
	n := 0
	for p.next <= float64(now) {
		n++
		p.next += p.rng.ExpFloat64() / p.rate
	}
	return n
}

// Arrival process names accepted by NewArrivalProcess.
const (
	ArrivalDeterministic = "deterministic"
	ArrivalPoisson       = "poisson"
)

// ValidArrivalProcesses is the set of recognized arrival process names.
var ValidArrivalProcesses = map[string]bool{"": true, ArrivalDeterministic: true, ArrivalPoisson: true}

// NewArrivalProcess creates an ArrivalProcess for rate requests per tick.
// Empty process selects the deterministic accumulator. rng is only consumed
// by the Poisson process. Callers validate process and rate beforehand.
func NewArrivalProcess(process string, rate float64, rng *rand.Rand) ArrivalProcess {
	switch process {
	case ArrivalPoisson:
		return &PoissonArrivals{rate: rate, rng: rng, next: rng.ExpFloat64() / rate}
	default:
		return &AccumulatorArrivals{rate: rate}
	}
}
