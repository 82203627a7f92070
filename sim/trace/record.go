// Package trace provides step-trace recording for batch slot timelines.
// This package has no dependencies on sim/ — it stores pure data types.
package trace

// Slot states as recorded in a SlotRecord.
const (
	SlotEmpty      = "empty"
	SlotPrefilling = "prefilling"
	SlotDecoding   = "decoding"
)

// SlotRecord captures one batch slot during one step, observed after
// admission and before the step's work is applied.
type SlotRecord struct {
	RequestID string `yaml:"request_id,omitempty"`
	State     string `yaml:"state"`
	Held      bool   `yaml:"held,omitempty"` // occupied but not advanced this step
}

// StepRecord captures a single engine step.
type StepRecord struct {
	Step      int          `yaml:"step"`
	Clock     int64        `yaml:"clock"`    // tick at which the step started
	Duration  int64        `yaml:"duration"` // ticks consumed by the step
	QueueLen  int          `yaml:"queue_len"`
	Arrived   int          `yaml:"arrived"`
	Admitted  []string     `yaml:"admitted,omitempty"`
	Completed []string     `yaml:"completed,omitempty"`
	Slots     []SlotRecord `yaml:"slots"`
}

// Occupied returns the number of non-empty slots in the step.
func (r StepRecord) Occupied() int {
	n := 0
	for _, s := range r.Slots {
		if s.State != SlotEmpty {
			n++
		}
	}
	return n
}

// CountState returns the number of slots in state.
func (r StepRecord) CountState(state string) int {
	n := 0
	for _, s := range r.Slots {
		if s.State == state {
			n++
		}
	}
	return n
}
