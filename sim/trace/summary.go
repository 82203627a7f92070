package trace

// Summary aggregates statistics from a StepTrace.
type Summary struct {
	TotalSteps            int     `yaml:"total_steps"`
	TotalTicks            int64   `yaml:"total_ticks"`
	MaxOccupied           int     `yaml:"max_occupied"`
	MaxConcurrentPrefills int     `yaml:"max_concurrent_prefills"`
	MixedSteps            int     `yaml:"mixed_steps"` // steps running prefill and decode work together
	IdleSteps             int     `yaml:"idle_steps"`  // steps with every slot empty
	MaxQueueLen           int     `yaml:"max_queue_len"`
	SlotUtilization       float64 `yaml:"slot_utilization"` // occupied slot-ticks / total slot-ticks
}

// Summarize computes aggregate statistics from a StepTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *StepTrace) *Summary {
	summary := &Summary{}
	if st == nil {
		return summary
	}

	var occupiedTicks, slotTicks int64
	for _, rec := range st.Steps {
		summary.TotalSteps++
		summary.TotalTicks += rec.Duration

		occupied := rec.Occupied()
		prefills := rec.CountState(SlotPrefilling)
		decodes := rec.CountState(SlotDecoding)

		summary.MaxOccupied = max(summary.MaxOccupied, occupied)
		summary.MaxConcurrentPrefills = max(summary.MaxConcurrentPrefills, prefills)
		summary.MaxQueueLen = max(summary.MaxQueueLen, rec.QueueLen)
		if prefills > 0 && decodes > 0 {
			summary.MixedSteps++
		}
		if occupied == 0 {
			summary.IdleSteps++
		}
		occupiedTicks += int64(occupied) * rec.Duration
		slotTicks += int64(len(rec.Slots)) * rec.Duration
	}
	if slotTicks > 0 {
		summary.SlotUtilization = float64(occupiedTicks) / float64(slotTicks)
	}
	return summary
}
