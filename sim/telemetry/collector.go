// Package telemetry exports experiment reports in the Prometheus exposition
// format, either to a registry or to a node-exporter textfile.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inference-sim/batchsim/sim"
	"github.com/inference-sim/batchsim/sim/experiment"
)

const namespace = "batchsim"

// reportGauge maps one MetricsReport field to a gauge.
type reportGauge struct {
	desc  *prometheus.Desc
	value func(r sim.MetricsReport) float64
}

func newGauge(name, help string, value func(r sim.MetricsReport) float64) reportGauge {
	return reportGauge{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, []string{"experiment"}, nil),
		value: value,
	}
}

var reportGauges = []reportGauge{
	newGauge("avg_e2e_latency_ticks", "Mean end-to-end latency of completed requests.",
		func(r sim.MetricsReport) float64 { return r.AvgE2ELatency }),
	newGauge("avg_ttft_ticks", "Mean time to first token over requests that produced one.",
		func(r sim.MetricsReport) float64 { return r.AvgTTFT }),
	newGauge("avg_itl_ticks", "Mean gap between output tokens of completed requests, weighted by tokens.",
		func(r sim.MetricsReport) float64 { return r.AvgITL }),
	newGauge("median_e2e_latency_ticks", "Median end-to-end latency of completed requests.",
		func(r sim.MetricsReport) float64 { return r.MedianE2ELatency }),
	newGauge("p90_e2e_latency_ticks", "90th percentile end-to-end latency of completed requests.",
		func(r sim.MetricsReport) float64 { return r.P90E2ELatency }),
	newGauge("median_ttft_ticks", "Median time to first token over requests that produced one.",
		func(r sim.MetricsReport) float64 { return r.MedianTTFT }),
	newGauge("p90_ttft_ticks", "90th percentile time to first token over requests that produced one.",
		func(r sim.MetricsReport) float64 { return r.P90TTFT }),
	newGauge("requests_per_1k_ticks", "Completed requests per 1000 ticks of elapsed time.",
		func(r sim.MetricsReport) float64 { return r.RequestsPer1kTicks }),
	newGauge("tokens_per_1k_ticks", "Generated output tokens per 1000 ticks of elapsed time.",
		func(r sim.MetricsReport) float64 { return r.TokensPer1kTicks }),
	newGauge("queue_size", "Requests waiting in the queue when the run ended.",
		func(r sim.MetricsReport) float64 { return float64(r.FinalQueueSize) }),
	newGauge("in_flight_requests", "Requests occupying a batch slot when the run ended.",
		func(r sim.MetricsReport) float64 { return float64(r.InFlightRequests) }),
	newGauge("completed_requests", "Requests that reached the done state.",
		func(r sim.MetricsReport) float64 { return float64(r.CompletedRequests) }),
	newGauge("output_tokens", "Output tokens generated, including by requests still in flight.",
		func(r sim.MetricsReport) float64 { return float64(r.TotalOutputTokens) }),
	newGauge("elapsed_ticks", "Simulated time covered by the run.",
		func(r sim.MetricsReport) float64 { return float64(r.ElapsedTicks) }),
	newGauge("steps", "Engine steps executed.",
		func(r sim.MetricsReport) float64 { return float64(r.Steps) }),
	newGauge("slot_utilization_ratio", "Occupied slot-ticks over total slot-ticks.",
		func(r sim.MetricsReport) float64 { return r.SlotUtilization }),
	newGauge("prefill_step_ratio", "Fraction of steps that ran prefill work.",
		func(r sim.MetricsReport) float64 { return r.PrefillStepFraction }),
}

// ReportCollector exposes the reports of finished experiments, one series per
// experiment name.
type ReportCollector struct {
	results []experiment.Result
}

var _ prometheus.Collector = &ReportCollector{}

// NewReportCollector returns a collector over results. Experiment names must
// be unique.
func NewReportCollector(results []experiment.Result) (*ReportCollector, error) {
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate experiment name %q", r.Name)
		}
		seen[r.Name] = true
	}
	return &ReportCollector{results: results}, nil
}

// Describe implements the prometheus.Collector interface.
func (c *ReportCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, g := range reportGauges {
		ch <- g.desc
	}
}

// Collect implements the prometheus.Collector interface.
func (c *ReportCollector) Collect(ch chan<- prometheus.Metric) {
	for _, res := range c.results {
		for _, g := range reportGauges {
			ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, g.value(res.Report), res.Name)
		}
	}
}

// WriteTextfile writes results to path in the text exposition format, for
// pickup by a node-exporter textfile collector.
func WriteTextfile(path string, results []experiment.Result) error {
	c, err := NewReportCollector(results)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return fmt.Errorf("registering report collector: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
