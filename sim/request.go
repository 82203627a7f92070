// Defines the Request struct that models an individual inference request in the simulation.
// Tracks arrival, prefill chunk progress, decode token progress, and the
// timestamps needed for TTFT, ITL and end-to-end latency.

package sim

import (
	"fmt"
)

// RequestState represents the lifecycle state of a request.
// States only move forward: queued → prefilling → decoding → done.
// Decoding is skipped when the request asks for zero output tokens.
type RequestState string

const (
	StateQueued     RequestState = "queued"
	StatePrefilling RequestState = "prefilling"
	StateDecoding   RequestState = "decoding"
	StateDone       RequestState = "done"
)

// stateRank orders states for the monotonicity check in setState.
var stateRank = map[RequestState]int{
	StateQueued:     0,
	StatePrefilling: 1,
	StateDecoding:   2,
	StateDone:       3,
}

// RequestParams holds the per-request work description shared by every
// request a load generator emits.
type RequestParams struct {
	PrefillTime        int64 // total prefill work in ticks, >= 0
	ITL                int64 // ticks per generated token, >= 1
	TargetOutputTokens int   // tokens to generate, >= 0
	TotalPrefillChunks int   // prefill split into this many equal chunks, >= 1
}

// Validate rejects out-of-range parameters. The returned error is a
// *ConfigError naming the offending field.
func (p RequestParams) Validate() error {
	if p.PrefillTime < 0 {
		return NewConfigError("prefill_time", p.PrefillTime, "must be >= 0")
	}
	if p.ITL < 1 {
		return NewConfigError("itl", p.ITL, "must be >= 1")
	}
	if p.TargetOutputTokens < 0 {
		return NewConfigError("target_output_len_tokens", p.TargetOutputTokens, "must be >= 0")
	}
	if p.TotalPrefillChunks < 1 {
		return NewConfigError("total_prefill_chunks", p.TotalPrefillChunks, "must be >= 1")
	}
	return nil
}

// Request models a single request's lifecycle in the simulation.
type Request struct {
	ID string // Unique identifier for the request

	Seq         int64 // Arrival sequence number, assigned by WaitQueue.Enqueue
	ArrivalTime int64 // Tick at which the request entered the queue

	PrefillTime        int64
	TotalPrefillChunks int
	ITL                int64
	TargetOutputTokens int

	State             RequestState
	PrefillChunksDone int // 0..TotalPrefillChunks
	DecodeTokensDone  int // 0..TargetOutputTokens

	AdmittedTime   int64 // Tick at which the request took a batch slot
	FirstTokenSet  bool  // Tracks whether FirstTokenTime has been set
	FirstTokenTime int64 // Tick at which the first output token completed
	CompletionTime int64 // Tick at which the request reached StateDone
}

// NewRequest creates a queued request carrying params.
// params are assumed to have passed RequestParams.Validate.
func NewRequest(id string, arrivalTime int64, params RequestParams) *Request {
	return &Request{
		ID:                 id,
		ArrivalTime:        arrivalTime,
		PrefillTime:        params.PrefillTime,
		TotalPrefillChunks: params.TotalPrefillChunks,
		ITL:                params.ITL,
		TargetOutputTokens: params.TargetOutputTokens,
		State:              StateQueued,
	}
}

// StepOutcome describes what a single Advance call produced.
type StepOutcome struct {
	NewTokens  int  // output tokens generated by this unit of work (0 or 1)
	FirstToken bool // the first output token completed in this step
	Completed  bool // the request reached StateDone in this step
}

// setState moves the request to next. Any non-forward move is an
// invariant violation in the caller.
func (req *Request) setState(next RequestState) {
	if stateRank[next] <= stateRank[req.State] {
		panic(fmt.Sprintf("request %s: illegal state transition %s -> %s", req.ID, req.State, next))
	}
	req.State = next
}

// Admit places a queued request into a batch slot at tick now.
func (req *Request) Admit(now int64) {
	req.setState(StatePrefilling)
	req.AdmittedTime = now
}

// Advance performs one unit of work: one prefill chunk while prefilling, one
// output token while decoding. now is the tick at which that work completes.
// The last prefill chunk also emits the first output token.
func (req *Request) Advance(now int64) StepOutcome {
	var out StepOutcome
	switch req.State {
	case StatePrefilling:
		req.PrefillChunksDone++
		if req.PrefillChunksDone < req.TotalPrefillChunks {
			return out
		}
		if req.TargetOutputTokens == 0 {
			req.complete(now)
			out.Completed = true
			return out
		}
		req.setState(StateDecoding)
		req.FirstTokenSet = true
		req.FirstTokenTime = now
		out.FirstToken = true
		out.NewTokens = req.emitToken(now)
		out.Completed = req.State == StateDone
	case StateDecoding:
		out.NewTokens = req.emitToken(now)
		out.Completed = req.State == StateDone
	default:
		panic(fmt.Sprintf("request %s: cannot advance in state %s", req.ID, req.State))
	}
	return out
}

func (req *Request) emitToken(now int64) int {
	if req.DecodeTokensDone >= req.TargetOutputTokens {
		panic(fmt.Sprintf("request %s: decode progress %d exceeds target %d", req.ID, req.DecodeTokensDone+1, req.TargetOutputTokens))
	}
	req.DecodeTokensDone++
	if req.DecodeTokensDone == req.TargetOutputTokens {
		req.complete(now)
	}
	return 1
}

func (req *Request) complete(now int64) {
	req.setState(StateDone)
	req.CompletionTime = now
}

// PrefillChunkTime is the duration in ticks of one prefill chunk.
func (req *Request) PrefillChunkTime() float64 {
	return float64(req.PrefillTime) / float64(req.TotalPrefillChunks)
}

// IsDone reports whether the request reached its terminal state.
func (req *Request) IsDone() bool {
	return req.State == StateDone
}

// This method returns a human-readable string representation of a Request.
func (req Request) String() string {
	return fmt.Sprintf("Request: (ID: %s, State: %s, Chunks: %d/%d, Tokens: %d/%d, ArrivalTime: %d)",
		req.ID, req.State, req.PrefillChunksDone, req.TotalPrefillChunks, req.DecodeTokensDone, req.TargetOutputTokens, req.ArrivalTime)
}
