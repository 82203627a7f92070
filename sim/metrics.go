// Tracks simulation-wide and per-request performance metrics such as
// end-to-end latency, TTFT, ITL, throughput and slot utilization.

package sim

import (
	"fmt"
	"io"
)

// MetricsCollector accumulates completion records and per-step counters.
// Snapshot may be called at any tick without resetting accumulated state.
type MetricsCollector struct {
	CompletedRequests int // Number of requests completed
	TotalOutputTokens int // Output tokens generated, including by requests still in flight

	DecodeTicks  int64 // Σ (completion - first token) over completed requests
	DecodeTokens int   // Σ (tokens - 1) over completed requests, the tokens DecodeTicks covers

	Steps             int   // Number of engine steps executed
	PrefillSteps      int   // Steps in which at least one prefill chunk ran
	SlotTicks         int64 // Σ slots × step duration
	OccupiedSlotTicks int64 // Σ occupied slots × step duration

	completed  map[string]bool
	firstToken map[string]bool
	e2es       []float64
	ttfts      []float64
}

// NewMetricsCollector returns an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{completed: make(map[string]bool), firstToken: make(map[string]bool)}
}

// RecordFirstToken records a request's TTFT at the tick its first token
// appears, whether or not it completes before the run ends. Recording the
// same request twice, or one without a first token, panics.
func (m *MetricsCollector) RecordFirstToken(req *Request) {
	if !req.FirstTokenSet {
		panic(fmt.Sprintf("RecordFirstToken: request %s has no first token", req.ID))
	}
	if m.firstToken[req.ID] {
		panic(fmt.Sprintf("RecordFirstToken: request %s recorded twice", req.ID))
	}
	m.firstToken[req.ID] = true
	m.ttfts = append(m.ttfts, float64(req.FirstTokenTime-req.ArrivalTime))
}

// RecordCompletion records a request at the tick it reached StateDone.
// Recording the same request twice, or a request that is not done, is an
// invariant violation and panics.
func (m *MetricsCollector) RecordCompletion(req *Request) {
	if !req.IsDone() {
		panic(fmt.Sprintf("RecordCompletion: request %s is %s, want %s", req.ID, req.State, StateDone))
	}
	if m.completed[req.ID] {
		panic(fmt.Sprintf("RecordCompletion: request %s recorded twice", req.ID))
	}
	m.completed[req.ID] = true
	m.CompletedRequests++
	m.e2es = append(m.e2es, float64(req.CompletionTime-req.ArrivalTime))

	// The first token belongs to TTFT; a single-token request has no gaps.
	if req.FirstTokenSet && req.DecodeTokensDone > 1 {
		m.DecodeTicks += req.CompletionTime - req.FirstTokenTime
		m.DecodeTokens += req.DecodeTokensDone - 1
	}
}

// RecordTokens adds n generated output tokens.
func (m *MetricsCollector) RecordTokens(n int) {
	m.TotalOutputTokens += n
}

// RecordStep records one engine step that lasted ticks, with occupied of
// size slots filled. prefill marks steps that ran at least one prefill chunk.
func (m *MetricsCollector) RecordStep(occupied, size int, prefill bool, ticks int64) {
	m.Steps++
	if prefill {
		m.PrefillSteps++
	}
	m.SlotTicks += int64(size) * ticks
	m.OccupiedSlotTicks += int64(occupied) * ticks
}

// MetricsReport is an immutable snapshot of the collected metrics.
// Latencies are in ticks; throughputs are per 1000 ticks of elapsed time.
type MetricsReport struct {
	AvgE2ELatency      float64 `json:"avg_e2e_latency" yaml:"avg_e2e_latency"`
	AvgTTFT            float64 `json:"avg_ttft" yaml:"avg_ttft"`
	AvgITL             float64 `json:"avg_itl" yaml:"avg_itl"`
	RequestsPer1kTicks float64 `json:"requests_per_1k_ticks" yaml:"requests_per_1k_ticks"`
	TokensPer1kTicks   float64 `json:"tokens_per_1k_ticks" yaml:"tokens_per_1k_ticks"`
	FinalQueueSize     int     `json:"final_queue_size" yaml:"final_queue_size"`

	CompletedRequests   int     `json:"completed_requests" yaml:"completed_requests"`
	TotalOutputTokens   int     `json:"total_output_tokens" yaml:"total_output_tokens"`
	InFlightRequests    int     `json:"in_flight_requests" yaml:"in_flight_requests"`
	ElapsedTicks        int64   `json:"elapsed_ticks" yaml:"elapsed_ticks"`
	Steps               int     `json:"steps" yaml:"steps"`
	MedianE2ELatency    float64 `json:"median_e2e_latency" yaml:"median_e2e_latency"`
	P90E2ELatency       float64 `json:"p90_e2e_latency" yaml:"p90_e2e_latency"`
	MedianTTFT          float64 `json:"median_ttft" yaml:"median_ttft"`
	P90TTFT             float64 `json:"p90_ttft" yaml:"p90_ttft"`
	SlotUtilization     float64 `json:"slot_utilization" yaml:"slot_utilization"`
	PrefillStepFraction float64 `json:"prefill_step_fraction" yaml:"prefill_step_fraction"`
}

// Snapshot derives a report from the data recorded so far. now is the
// elapsed simulation time used as the throughput denominator.
func (m *MetricsCollector) Snapshot(now int64, queueLen, inFlight int) MetricsReport {
	r := MetricsReport{
		FinalQueueSize:    queueLen,
		CompletedRequests: m.CompletedRequests,
		TotalOutputTokens: m.TotalOutputTokens,
		InFlightRequests:  inFlight,
		ElapsedTicks:      now,
		Steps:             m.Steps,
	}
	if len(m.e2es) > 0 {
		r.AvgE2ELatency = CalculateMean(m.e2es)
		r.MedianE2ELatency = CalculatePercentile(m.e2es, 50)
		r.P90E2ELatency = CalculatePercentile(m.e2es, 90)
	}
	if len(m.ttfts) > 0 {
		r.AvgTTFT = CalculateMean(m.ttfts)
		r.MedianTTFT = CalculatePercentile(m.ttfts, 50)
		r.P90TTFT = CalculatePercentile(m.ttfts, 90)
	}
	if m.DecodeTokens > 0 {
		r.AvgITL = float64(m.DecodeTicks) / float64(m.DecodeTokens)
	}
	if now > 0 {
		r.RequestsPer1kTicks = 1000 * float64(m.CompletedRequests) / float64(now)
		r.TokensPer1kTicks = 1000 * float64(m.TotalOutputTokens) / float64(now)
	}
	if m.SlotTicks > 0 {
		r.SlotUtilization = float64(m.OccupiedSlotTicks) / float64(m.SlotTicks)
	}
	if m.Steps > 0 {
		r.PrefillStepFraction = float64(m.PrefillSteps) / float64(m.Steps)
	}
	return r
}

// Print writes the report in a human-readable block.
func (r MetricsReport) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Elapsed Ticks        : %d (%d steps)\n", r.ElapsedTicks, r.Steps)
	fmt.Fprintf(w, "Completed Requests   : %d\n", r.CompletedRequests)
	fmt.Fprintf(w, "In-flight Requests   : %d\n", r.InFlightRequests)
	fmt.Fprintf(w, "Final Queue Size     : %d\n", r.FinalQueueSize)
	fmt.Fprintln(w, "\n# Latency Metrics:")
	fmt.Fprintf(w, "Average E2E Latency  : %.2f ticks\n", r.AvgE2ELatency)
	fmt.Fprintf(w, "Median E2E Latency   : %.2f ticks\n", r.MedianE2ELatency)
	fmt.Fprintf(w, "P90 E2E Latency      : %.2f ticks\n", r.P90E2ELatency)
	fmt.Fprintf(w, "Average TTFT         : %.2f ticks\n", r.AvgTTFT)
	fmt.Fprintf(w, "Median TTFT          : %.2f ticks\n", r.MedianTTFT)
	fmt.Fprintf(w, "Average ITL          : %.2f ticks\n", r.AvgITL)
	fmt.Fprintln(w, "\n# Throughput Metrics:")
	fmt.Fprintf(w, "Requests/(1K ticks)  : %.2f\n", r.RequestsPer1kTicks)
	fmt.Fprintf(w, "Tokens/(1K ticks)    : %.2f\n", r.TokensPer1kTicks)
	fmt.Fprintf(w, "Slot Utilization     : %.2f\n", r.SlotUtilization)
	fmt.Fprintf(w, "Prefill Step Fraction: %.2f\n", r.PrefillStepFraction)
}
