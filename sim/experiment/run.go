package experiment

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/batchsim/sim"
	"github.com/inference-sim/batchsim/sim/trace"
)

// Result is the outcome of one experiment run.
type Result struct {
	Name    string            `yaml:"name" json:"name"`
	Horizon int64             `yaml:"horizon" json:"horizon"`
	Report  sim.MetricsReport `yaml:"report" json:"report"`
	Summary *trace.Summary    `yaml:"summary,omitempty" json:"summary,omitempty"` // nil unless tracing is enabled
	Trace   *trace.StepTrace  `yaml:"-" json:"-"`
}

// Run builds a fresh engine for s and runs it to its horizon.
func (s Spec) Run() (Result, error) {
	engine, err := s.NewEngine()
	if err != nil {
		return Result{}, err
	}
	horizon := s.HorizonTicks()
	var report sim.MetricsReport
	if s.UntilIdle {
		report, err = engine.RunUntilIdle(horizon)
	} else {
		report, err = engine.Run(horizon)
	}
	if err != nil {
		return Result{}, err
	}
	res := Result{Name: s.Name, Horizon: horizon, Report: report}
	if st := engine.Trace(); st != nil {
		res.Trace = st
		res.Summary = trace.Summarize(st)
	}
	return res, nil
}

// RunAll runs every spec on its own engine, at most parallelism at a time
// (parallelism <= 0 means unbounded). Results keep the order of specs.
// The first failure cancels runs that have not started yet.
func RunAll(ctx context.Context, specs []Spec, parallelism int) ([]Result, error) {
	results := make([]Result, len(specs))
	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i := range specs {
		i := i
		spec := specs[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			logrus.Debugf("starting experiment %q (horizon=%d)", spec.Name, spec.HorizonTicks())
			res, err := spec.Run()
			if err != nil {
				return fmt.Errorf("experiment %q: %w", spec.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Sweep expands every spec into one run per horizon, named "<name>@<horizon>",
// in spec-major order.
func Sweep(specs []Spec, horizons []int64) []Spec {
	if len(horizons) == 0 {
		return specs
	}
	out := make([]Spec, 0, len(specs)*len(horizons))
	for _, s := range specs {
		for _, h := range horizons {
			run := s.WithHorizon(h)
			run.Name = fmt.Sprintf("%s@%d", s.Name, h)
			out = append(out, run)
		}
	}
	return out
}
