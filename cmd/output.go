package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/batchsim/sim/experiment"
	"github.com/inference-sim/batchsim/sim/trace"
)

// printSummary writes the step trace summary below the metrics block.
func printSummary(w io.Writer, s *trace.Summary) {
	fmt.Fprintln(w, "\n# Slot Timeline:")
	fmt.Fprintf(w, "Steps                : %d (%d ticks)\n", s.TotalSteps, s.TotalTicks)
	fmt.Fprintf(w, "Max Occupied Slots   : %d\n", s.MaxOccupied)
	fmt.Fprintf(w, "Max Prefills / Step  : %d\n", s.MaxConcurrentPrefills)
	fmt.Fprintf(w, "Mixed Steps          : %d\n", s.MixedSteps)
	fmt.Fprintf(w, "Idle Steps           : %d\n", s.IdleSteps)
	fmt.Fprintf(w, "Max Queue Length     : %d\n", s.MaxQueueLen)
}

// writeTrace dumps the step timeline as YAML.
func writeTrace(path string, st *trace.StepTrace) error {
	if st == nil {
		return fmt.Errorf("tracing was not enabled")
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}

// printComparison writes one row per result.
func printComparison(w io.Writer, results []experiment.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "experiment\thorizon\tcompleted\tqueue\tavg ttft\tavg e2e\tavg itl\treq/1k ticks\ttok/1k ticks\t")
	for _, res := range results {
		r := res.Report
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			res.Name, res.Horizon, r.CompletedRequests, r.FinalQueueSize,
			r.AvgTTFT, r.AvgE2ELatency, r.AvgITL, r.RequestsPer1kTicks, r.TokensPer1kTicks)
	}
	return tw.Flush()
}
