package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/batchsim/sim/experiment"
	"github.com/inference-sim/batchsim/sim/telemetry"
)

var (
	comparePreset      string  // Built-in experiment set
	compareHorizons    []int64 // Horizons to repeat every experiment at
	compareParallelism int     // Maximum experiments running at once
)

// Built-in experiment sets for the compare command.
var comparePresets = map[string]func() []experiment.Spec{
	"strategies":   experiment.StrategyComparison,
	"queue-growth": experiment.QueueGrowth,
}

// compareCmd runs a set of independent experiments in parallel
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run several experiments in parallel and compare their metrics",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		specs, err := compareSpecs()
		if err != nil {
			logrus.Fatalf("Invalid experiments: %v", err)
		}
		specs = experiment.Sweep(specs, compareHorizons)
		logrus.Infof("Running %d experiments (parallelism=%d)", len(specs), compareParallelism)

		results, err := experiment.RunAll(context.Background(), specs, compareParallelism)
		if err != nil {
			logrus.Fatalf("Comparison failed: %v", err)
		}
		if err := printComparison(os.Stdout, results); err != nil {
			logrus.Fatalf("Could not print comparison: %v", err)
		}
		if metricsOutPath != "" {
			if err := telemetry.WriteTextfile(metricsOutPath, results); err != nil {
				logrus.Fatalf("Could not write metrics: %v", err)
			}
		}
	},
}

// compareSpecs returns the experiments of --config, or the --preset set.
func compareSpecs() ([]experiment.Spec, error) {
	if configPath != "" {
		f, err := experiment.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		return f.Experiments, nil
	}
	preset, ok := comparePresets[comparePreset]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (valid: strategies, queue-growth)", comparePreset)
	}
	return preset(), nil
}

func init() {
	compareCmd.Flags().StringVar(&configPath, "config", "", "Experiments YAML file (default: the --preset set)")
	compareCmd.Flags().StringVar(&comparePreset, "preset", "strategies", "Built-in experiments: strategies, queue-growth")
	compareCmd.Flags().Int64SliceVar(&compareHorizons, "horizons", nil, "Repeat every experiment at these horizons (e.g. 100,10000)")
	compareCmd.Flags().IntVar(&compareParallelism, "parallelism", 0, "Maximum experiments running at once (0 = unbounded)")
	compareCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	compareCmd.Flags().StringVar(&metricsOutPath, "metrics-out", "", "Write every report as a Prometheus textfile")

	rootCmd.AddCommand(compareCmd)
}
