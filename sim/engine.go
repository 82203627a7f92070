// sim/engine.go
package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/batchsim/sim/trace"
)

// EngineConfig groups engine construction parameters.
type EngineConfig struct {
	MaxBatchSize int          // number of batch slots, > 0
	LatencyModel string       // "iteration" (default) or "unit"
	Trace        trace.Config // step tracing; zero value disables it
}

// Engine is the core object that holds simulation time, the wait queue, the
// batch slots, and the step loop. One Engine simulates one run; it shares no
// mutable state with other engines, so independent runs may execute in
// parallel.
type Engine struct {
	clock     int64
	stepCount int

	maxBatchSize int
	// WaitQ aka request waiting queue before a slot is available
	waitQ *WaitQueue
	// batch holds the requests currently occupying execution slots
	batch *Batch

	batcher      Batcher
	loadGen      LoadGenerator
	latencyModel LatencyModel
	metrics      *MetricsCollector
	trace        *trace.StepTrace
}

// NewEngine validates cfg and wires an Engine around gen and batcher.
func NewEngine(cfg EngineConfig, gen LoadGenerator, batcher Batcher) (*Engine, error) {
	if cfg.MaxBatchSize <= 0 {
		return nil, NewConfigError("max_batch_size", cfg.MaxBatchSize, "must be > 0")
	}
	if gen == nil {
		return nil, NewConfigError("load_generator", nil, "must not be nil")
	}
	if batcher == nil {
		return nil, NewConfigError("batcher", nil, "must not be nil")
	}
	if !trace.IsValidLevel(string(cfg.Trace.Level)) {
		return nil, NewConfigError("trace", cfg.Trace.Level, "unknown trace level")
	}
	lm, err := NewLatencyModel(cfg.LatencyModel)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		maxBatchSize: cfg.MaxBatchSize,
		waitQ:        &WaitQueue{},
		batch:        NewBatch(cfg.MaxBatchSize),
		batcher:      batcher,
		loadGen:      gen,
		latencyModel: lm,
		metrics:      NewMetricsCollector(),
	}
	if cfg.Trace.Enabled() {
		e.trace = trace.NewStepTrace(cfg.Trace)
	}
	return e, nil
}

// Clock returns the current simulation time in ticks.
func (e *Engine) Clock() int64 { return e.clock }

// StepCount returns the number of steps executed so far.
func (e *Engine) StepCount() int { return e.stepCount }

// LoadGenerator returns the arrival source.
func (e *Engine) LoadGenerator() LoadGenerator { return e.loadGen }

// Trace returns the step trace, or nil when tracing is disabled.
func (e *Engine) Trace() *trace.StepTrace { return e.trace }

// Occupancy returns the number of requests in the system that are not done.
func (e *Engine) Occupancy() int {
	return e.waitQ.Len() + e.batch.Occupied()
}

// Idle reports whether the generator is exhausted and no request is queued
// or in flight.
func (e *Engine) Idle() bool {
	return e.loadGen.Exhausted() && e.Occupancy() == 0
}

// Report snapshots the metrics at the current clock.
func (e *Engine) Report() MetricsReport {
	return e.metrics.Snapshot(e.clock, e.waitQ.Len(), e.batch.Occupied())
}

// Step executes one engine step in a fixed order:
//  1. enqueue the generator's arrivals for the current tick
//  2. let the batcher admit queued requests into empty slots
//  3. price the step with the latency model
//  4. advance every eligible slot by one unit of work, releasing and
//     recording requests that complete
//  5. advance the clock
func (e *Engine) Step() {
	now := e.clock
	e.stepCount++

	arrivals := e.loadGen.Arrivals(now, e.Occupancy())
	for _, req := range arrivals {
		if req.ArrivalTime != now {
			panic(fmt.Sprintf("[tick %07d] generator %s emitted %s with arrival time %d", now, e.loadGen.Name(), req.ID, req.ArrivalTime))
		}
		e.waitQ.Enqueue(req)
	}

	admitted := e.batcher.Admit(AdmitContext{
		WaitQ:        e.waitQ,
		Batch:        e.batch,
		MaxBatchSize: e.maxBatchSize,
		Now:          now,
	})
	occupied := e.batch.Occupied()
	if occupied > e.maxBatchSize {
		panic(fmt.Sprintf("[tick %07d] batcher %s filled %d slots, max %d", now, e.batcher.Name(), occupied, e.maxBatchSize))
	}

	// Eligibility is decided for the whole batch before anything advances,
	// so lockstep policies see a consistent view.
	size := e.batch.Size()
	eligible := make([]bool, size)
	work := make([]*Request, 0, occupied)
	prefill := false
	for i := 0; i < size; i++ {
		req := e.batch.Slot(i)
		if req == nil || !e.batcher.CanAdvance(req, e.batch) {
			continue
		}
		eligible[i] = true
		work = append(work, req)
		if req.State == StatePrefilling {
			prefill = true
		}
	}
	duration := e.latencyModel.StepTime(work)
	end := now + duration

	var record *trace.StepRecord
	if e.trace != nil {
		record = e.newStepRecord(now, duration, len(arrivals), admitted, eligible)
	}

	tokens := 0
	for i := 0; i < size; i++ {
		if !eligible[i] {
			continue
		}
		req := e.batch.Slot(i)
		out := req.Advance(end)
		tokens += out.NewTokens
		if out.FirstToken {
			e.metrics.RecordFirstToken(req)
			logrus.Debugf("[tick %07d] first token for %s", end, req.ID)
		}
		if out.Completed {
			e.batch.Release(i)
			e.metrics.RecordCompletion(req)
			logrus.Debugf("[tick %07d] finished %s (e2e=%d)", end, req.ID, req.CompletionTime-req.ArrivalTime)
			if record != nil {
				record.Completed = append(record.Completed, req.ID)
			}
		}
	}
	e.metrics.RecordTokens(tokens)
	e.metrics.RecordStep(occupied, size, prefill, duration)
	if record != nil {
		e.trace.RecordStep(*record)
	}

	logrus.Debugf("[tick %07d] step %d: arrived=%d admitted=%d occupied=%d duration=%d queue=%d",
		now, e.stepCount, len(arrivals), len(admitted), occupied, duration, e.waitQ.Len())
	e.clock = end
}

func (e *Engine) newStepRecord(now, duration int64, arrived int, admitted []*Request, eligible []bool) *trace.StepRecord {
	record := &trace.StepRecord{
		Step:     e.stepCount,
		Clock:    now,
		Duration: duration,
		QueueLen: e.waitQ.Len(),
		Arrived:  arrived,
		Slots:    make([]trace.SlotRecord, e.batch.Size()),
	}
	for _, req := range admitted {
		record.Admitted = append(record.Admitted, req.ID)
	}
	for i := range record.Slots {
		req := e.batch.Slot(i)
		if req == nil {
			record.Slots[i] = trace.SlotRecord{State: trace.SlotEmpty}
			continue
		}
		state := trace.SlotDecoding
		if req.State == StatePrefilling {
			state = trace.SlotPrefilling
		}
		record.Slots[i] = trace.SlotRecord{RequestID: req.ID, State: state, Held: !eligible[i]}
	}
	return record
}

// Run executes steps until numTicks more ticks have elapsed. Work still queued
// or in flight at the horizon is left in place and counted in FinalQueueSize /
// InFlightRequests. In-flight requests that already produced a token count
// toward TTFT but not toward E2E latency or ITL.
// With the iteration latency model the last step may end past the horizon;
// throughput is computed over the elapsed clock.
func (e *Engine) Run(numTicks int64) (MetricsReport, error) {
	if numTicks < 0 {
		return MetricsReport{}, NewConfigError("num_ticks", numTicks, "must be >= 0")
	}
	horizon := e.clock + numTicks
	logrus.Infof("[tick %07d] run: horizon=%d batcher=%s generator=%s slots=%d",
		e.clock, horizon, e.batcher.Name(), e.loadGen.Name(), e.maxBatchSize)
	for e.clock < horizon {
		e.Step()
	}
	logrus.Infof("[tick %07d] run ended after %d steps", e.clock, e.stepCount)
	return e.Report(), nil
}

// RunUntilIdle executes steps until the generator is exhausted and the
// system is empty, or until maxTicks more ticks have elapsed.
func (e *Engine) RunUntilIdle(maxTicks int64) (MetricsReport, error) {
	if maxTicks < 0 {
		return MetricsReport{}, NewConfigError("max_ticks", maxTicks, "must be >= 0")
	}
	horizon := e.clock + maxTicks
	logrus.Infof("[tick %07d] run until idle: max horizon=%d batcher=%s generator=%s slots=%d",
		e.clock, horizon, e.batcher.Name(), e.loadGen.Name(), e.maxBatchSize)
	for e.clock < horizon && !e.Idle() {
		e.Step()
	}
	if !e.Idle() {
		logrus.Warnf("[tick %07d] horizon reached with %d requests outstanding", e.clock, e.Occupancy())
	}
	logrus.Infof("[tick %07d] run ended after %d steps", e.clock, e.stepCount)
	return e.Report(), nil
}
