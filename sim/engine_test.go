package sim

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/batchsim/sim/trace"
)

// testGenerator emits a fixed batch at the first call, then keeps the system
// topped up to concurrency (0 disables the closed loop). Every emitted
// request is kept for inspection.
type testGenerator struct {
	batch       int
	concurrency int
	params      RequestParams
	started     bool
	emitted     []*Request
}

func (g *testGenerator) Name() string { return "test" }

func (g *testGenerator) Arrivals(now int64, occupancy int) []*Request {
	n := 0
	if !g.started {
		g.started = true
		n = g.batch
	}
	if g.concurrency > 0 {
		n = max(n, g.concurrency-occupancy)
	}
	var out []*Request
	for i := 0; i < n; i++ {
		req := NewRequest(fmt.Sprintf("request_%d", len(g.emitted)), now, g.params)
		g.emitted = append(g.emitted, req)
		out = append(out, req)
	}
	return out
}

func (g *testGenerator) Exhausted() bool { return g.started && g.concurrency == 0 }

var demoParams = RequestParams{PrefillTime: 2, ITL: 1, TargetOutputTokens: 10, TotalPrefillChunks: 1}

func newTestEngine(t *testing.T, batcher string, gen *testGenerator, latency string) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{
		MaxBatchSize: 4,
		LatencyModel: latency,
		Trace:        trace.Config{Level: trace.LevelSteps},
	}, gen, NewBatcher(batcher))
	require.NoError(t, err)
	return e
}

func TestNewEngine_InvalidConfig_ReturnsConfigError(t *testing.T) {
	gen := &testGenerator{batch: 1, params: demoParams}
	tests := []struct {
		name    string
		cfg     EngineConfig
		gen     LoadGenerator
		batcher Batcher
		field   string
	}{
		{"zero slots", EngineConfig{MaxBatchSize: 0}, gen, &IFBatcher{}, "max_batch_size"},
		{"negative slots", EngineConfig{MaxBatchSize: -3}, gen, &IFBatcher{}, "max_batch_size"},
		{"nil generator", EngineConfig{MaxBatchSize: 4}, nil, &IFBatcher{}, "load_generator"},
		{"nil batcher", EngineConfig{MaxBatchSize: 4}, gen, nil, "batcher"},
		{"trace level", EngineConfig{MaxBatchSize: 4, Trace: trace.Config{Level: "all"}}, gen, &IFBatcher{}, "trace"},
		{"latency model", EngineConfig{MaxBatchSize: 4, LatencyModel: "roofline"}, gen, &IFBatcher{}, "latency_model"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := NewEngine(tc.cfg, tc.gen, tc.batcher)
			require.Error(t, err)
			assert.Nil(t, e)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Equal(t, tc.field, ConfigErrorField(err))
		})
	}
}

func TestEngineRun_ZeroTicks_ReturnsZeroReport(t *testing.T) {
	// GIVEN an engine with pending load
	e := newTestEngine(t, "static", &testGenerator{batch: 10, params: demoParams}, "")

	// WHEN run for zero ticks
	r, err := e.Run(0)

	// THEN nothing happens and the report is all zeros
	require.NoError(t, err)
	assert.Equal(t, MetricsReport{}, r)
	assert.Equal(t, int64(0), e.Clock())

	_, err = e.Run(-1)
	assert.Equal(t, "num_ticks", ConfigErrorField(err))
	_, err = e.RunUntilIdle(-1)
	assert.Equal(t, "max_ticks", ConfigErrorField(err))
}

func TestEngineRunUntilIdle_EmptyLoad_ReturnsZeroCounts(t *testing.T) {
	e := newTestEngine(t, "ifb", &testGenerator{batch: 0, params: demoParams}, "")
	r, err := e.RunUntilIdle(1000)
	require.NoError(t, err)
	assert.Zero(t, r.CompletedRequests)
	assert.Zero(t, r.FinalQueueSize)
	assert.True(t, e.Idle())
}

func TestEngine_StaticBatch_CohortTimeline(t *testing.T) {
	// GIVEN 100 identical requests on 4 static slots
	gen := &testGenerator{batch: 100, params: demoParams}
	e := newTestEngine(t, "static", gen, "")

	// WHEN run until every request is done
	r, err := e.RunUntilIdle(10000)
	require.NoError(t, err)

	// THEN each 17-tick cohort is one 8-tick prefill step and nine decode steps
	assert.Equal(t, 100, r.CompletedRequests)
	assert.Equal(t, 1000, r.TotalOutputTokens)
	assert.Equal(t, int64(425), r.ElapsedTicks)
	assert.Equal(t, 250, r.Steps)
	assert.InDelta(t, 212.0, r.AvgTTFT, 1e-9)
	assert.InDelta(t, 221.0, r.AvgE2ELatency, 1e-9)
	assert.InDelta(t, 1.0, r.AvgITL, 1e-9)
	assert.InDelta(t, 1000*100/425.0, r.RequestsPer1kTicks, 1e-9)
	for k := 0; k < 25; k++ {
		req := gen.emitted[4*k]
		assert.Equal(t, int64(17*k+8), req.FirstTokenTime-req.ArrivalTime, req.ID)
		assert.Equal(t, int64(17*k+17), req.CompletionTime-req.ArrivalTime, req.ID)
	}
}

func TestEngine_ChunkedIFB_FirstTokenAfterLastChunk(t *testing.T) {
	// GIVEN one request with two prefill chunks on the unit latency model
	p := demoParams
	p.TotalPrefillChunks = 2
	p.TargetOutputTokens = 3
	gen := &testGenerator{batch: 1, params: p}
	e := newTestEngine(t, "ifb", gen, "unit")

	// WHEN run to completion
	_, err := e.RunUntilIdle(100)
	require.NoError(t, err)

	// THEN two prefill steps precede the first token and two decode steps follow
	req := gen.emitted[0]
	assert.Equal(t, int64(2), req.FirstTokenTime)
	assert.Equal(t, int64(4), req.CompletionTime)
	assert.Equal(t, 4, e.StepCount())
}

func TestEngineRun_InFlightFirstTokens_CountTowardTTFT(t *testing.T) {
	// GIVEN one static cohort of 4 requests
	gen := &testGenerator{batch: 4, params: demoParams}
	e := newTestEngine(t, "static", gen, "")

	// WHEN the run stops after the prefill step and two decode steps
	r, err := e.Run(10)
	require.NoError(t, err)

	// THEN every first token is in TTFT although nothing has completed
	assert.Equal(t, int64(10), r.ElapsedTicks)
	assert.Zero(t, r.CompletedRequests)
	assert.Equal(t, 4, r.InFlightRequests)
	assert.InDelta(t, 8.0, r.AvgTTFT, 1e-9)
	assert.InDelta(t, 8.0, r.MedianTTFT, 1e-9)
	assert.Zero(t, r.AvgE2ELatency)
	assert.Zero(t, r.AvgITL)
}

func TestEngine_ZeroOutputRequests_CompleteWithoutFirstToken(t *testing.T) {
	p := demoParams
	p.TargetOutputTokens = 0
	gen := &testGenerator{batch: 6, params: p}
	e := newTestEngine(t, "ifb", gen, "")

	r, err := e.RunUntilIdle(100)
	require.NoError(t, err)

	assert.Equal(t, 6, r.CompletedRequests)
	assert.Zero(t, r.TotalOutputTokens)
	assert.Zero(t, r.AvgTTFT)
	for _, req := range gen.emitted {
		assert.False(t, req.FirstTokenSet)
	}
}

// checkTimelineInvariants asserts the properties every batcher must keep.
func checkTimelineInvariants(t *testing.T, e *Engine, gen *testGenerator) {
	t.Helper()
	for _, rec := range e.Trace().Steps {
		require.LessOrEqual(t, rec.Occupied(), 4, "step %d", rec.Step)
	}
	for _, req := range gen.emitted {
		if !req.IsDone() {
			continue
		}
		if req.FirstTokenSet {
			assert.LessOrEqual(t, req.ArrivalTime, req.FirstTokenTime, req.ID)
			assert.LessOrEqual(t, req.FirstTokenTime, req.CompletionTime, req.ID)
		}
		assert.LessOrEqual(t, req.ArrivalTime, req.CompletionTime, req.ID)
		assert.Equal(t, req.TargetOutputTokens, req.DecodeTokensDone, req.ID)
		assert.Equal(t, req.TotalPrefillChunks, req.PrefillChunksDone, req.ID)
	}
}

func TestEngine_StaticBatcher_NoRefillUntilCohortDone(t *testing.T) {
	// GIVEN chunked prefill and a closed loop keeping the queue non-empty
	p := demoParams
	p.TotalPrefillChunks = 2
	gen := &testGenerator{concurrency: 10, params: p}
	e := newTestEngine(t, "static", gen, "")

	_, err := e.Run(500)
	require.NoError(t, err)
	checkTimelineInvariants(t, e, gen)

	steps := e.Trace().Steps
	for i, rec := range steps {
		if len(rec.Admitted) == 0 {
			continue
		}
		// THEN admission only happens into a completely empty batch
		assert.Equal(t, len(rec.Admitted), rec.Occupied(), "step %d admitted into a partial cohort", rec.Step)
		if i > 0 {
			prev := steps[i-1]
			assert.Equal(t, prev.Occupied(), len(prev.Completed), "step %d: previous cohort not fully done", rec.Step)
		}
		// THEN a cohort never mixes prefill with unheld decode work
		for _, s := range rec.Slots {
			if s.State == trace.SlotDecoding && rec.CountState(trace.SlotPrefilling) > 0 {
				assert.True(t, s.Held)
			}
		}
	}
}

func TestEngine_IFBatcher_RefillsInTheSameStep(t *testing.T) {
	gen := &testGenerator{concurrency: 7, params: demoParams}
	e := newTestEngine(t, "ifb", gen, "")

	_, err := e.Run(500)
	require.NoError(t, err)
	checkTimelineInvariants(t, e, gen)

	// THEN no slot stays empty while requests wait
	for _, rec := range e.Trace().Steps {
		if rec.QueueLen > 0 {
			assert.Equal(t, 4, rec.Occupied(), "step %d left a slot empty with %d queued", rec.Step, rec.QueueLen)
		}
	}
}

func TestEngine_OnePrefillBatcher_AtMostOnePrefillPerStep(t *testing.T) {
	p := demoParams
	p.TotalPrefillChunks = 2
	gen := &testGenerator{batch: 20, concurrency: 6, params: p}
	e := newTestEngine(t, "ifb-one-prefill", gen, "")

	_, err := e.Run(1000)
	require.NoError(t, err)
	checkTimelineInvariants(t, e, gen)

	for _, rec := range e.Trace().Steps {
		assert.LessOrEqual(t, rec.CountState(trace.SlotPrefilling), 1, "step %d", rec.Step)
		assert.LessOrEqual(t, len(rec.Admitted), 1, "step %d", rec.Step)
	}
}

func TestEngine_IdenticalConfig_IdenticalReports(t *testing.T) {
	for _, batcher := range []string{"static", "ifb", "ifb-one-prefill"} {
		t.Run(batcher, func(t *testing.T) {
			run := func() MetricsReport {
				p := demoParams
				p.TotalPrefillChunks = 2
				e := newTestEngine(t, batcher, &testGenerator{batch: 30, concurrency: 5, params: p}, "")
				r, err := e.Run(2000)
				require.NoError(t, err)
				return r
			}
			if diff := cmp.Diff(run(), run()); diff != "" {
				t.Errorf("reports differ between identical runs (-first +second):\n%s", diff)
			}
		})
	}
}

func TestEngineRun_IsRelativeToCurrentClock(t *testing.T) {
	// GIVEN a closed loop on the unit latency model, so every step is one tick
	e := newTestEngine(t, "ifb", &testGenerator{concurrency: 4, params: demoParams}, "unit")

	// WHEN run twice for 50 ticks
	short, err := e.Run(50)
	require.NoError(t, err)
	long, err := e.Run(50)
	require.NoError(t, err)

	// THEN the clock advanced by exactly 100 ticks and metrics accumulated
	assert.Equal(t, int64(50), short.ElapsedTicks)
	assert.Equal(t, int64(100), e.Clock())
	assert.Greater(t, long.CompletedRequests, short.CompletedRequests)
}

func TestEngineRunUntilIdle_ClosedLoop_StopsAtHorizon(t *testing.T) {
	e := newTestEngine(t, "ifb", &testGenerator{concurrency: 4, params: demoParams}, "unit")
	r, err := e.RunUntilIdle(30)
	require.NoError(t, err)
	// THEN cohorts finish at ticks 10, 20 and 30 and the open loop never idles
	assert.Equal(t, int64(30), r.ElapsedTicks)
	assert.Equal(t, 12, r.CompletedRequests)
	assert.False(t, e.Idle())
}

type lateGenerator struct{ testGenerator }

func (g *lateGenerator) Arrivals(now int64, _ int) []*Request {
	return []*Request{NewRequest("late", now+1, demoParams)}
}

func TestEngineStep_ArrivalTimeMismatch_Panics(t *testing.T) {
	e, err := NewEngine(EngineConfig{MaxBatchSize: 2}, &lateGenerator{}, &IFBatcher{})
	require.NoError(t, err)
	assert.Panics(t, func() { e.Step() })
}
