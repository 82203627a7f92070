package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/batchsim/sim/experiment"
	"github.com/inference-sim/batchsim/sim/telemetry"
	"github.com/inference-sim/batchsim/sim/trace"
)

var (
	// CLI flags for the engine
	maxBatchSize int    // Number of batch slots
	batcherName  string // Admission policy
	latencyModel string // Step pricing model
	horizon      int64  // Simulation horizon (in ticks)
	untilIdle    bool   // Stop early once every request is done
	logLevel     string // Log verbosity level

	// CLI flags for the load generator
	loadType          string  // batch, concurrent or rate
	initialBatch      int     // Requests emitted at tick 0 (batch)
	targetConcurrency int     // Requests kept in the system (concurrent)
	requestRate       float64 // Requests per tick (rate)
	arrivalProcess    string  // deterministic or poisson (rate)
	prefillTime       int64   // Prefill work per request (in ticks)
	itl               int64   // Ticks per output token
	outputTokens      int     // Output tokens per request
	outputTokensStdev float64 // Stdev of output tokens per request
	prefillChunks     int     // Prefill chunks per request
	seed              int64   // Seed for output lengths and stochastic arrivals
	configPath        string  // Experiments file
	experimentName    string  // Experiment to run from the experiments file
	traceOutPath      string  // Step timeline output
	metricsOutPath    string  // Prometheus textfile output
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "batchsim",
	Short: "Tick-driven simulator for LLM serving batching strategies",
}

// runCmd executes one experiment built from CLI flags or an experiments file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single batching simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		spec, err := runSpec(cmd)
		if err != nil {
			logrus.Fatalf("Invalid experiment: %v", err)
		}
		if traceOutPath != "" {
			spec.Trace = trace.LevelSteps
		}
		if err := spec.Validate(); err != nil {
			logrus.Fatalf("Invalid experiment: %v", err)
		}

		logrus.Infof("Starting experiment %q: batcher=%s slots=%d load=%s horizon=%d",
			spec.Name, spec.Batcher, spec.EngineConfig().MaxBatchSize, spec.Load.Type, spec.HorizonTicks())
		res, err := spec.Run()
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		res.Report.Print(os.Stdout)
		if res.Summary != nil {
			printSummary(os.Stdout, res.Summary)
		}

		if traceOutPath != "" {
			if err := writeTrace(traceOutPath, res.Trace); err != nil {
				logrus.Fatalf("Could not write trace: %v", err)
			}
		}
		if metricsOutPath != "" {
			if err := telemetry.WriteTextfile(metricsOutPath, []experiment.Result{res}); err != nil {
				logrus.Fatalf("Could not write metrics: %v", err)
			}
		}
		logrus.Info("Simulation complete.")
	},
}

// setLogLevel applies the --log flag
func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// runSpec builds the experiment for the run command. With --config the named
// (or first) experiment of the file is used, and only flags set explicitly
// on the command line override it.
func runSpec(cmd *cobra.Command) (experiment.Spec, error) {
	if configPath == "" {
		return specFromFlags(), nil
	}
	f, err := experiment.LoadFile(configPath)
	if err != nil {
		return experiment.Spec{}, err
	}
	spec := f.Experiments[0]
	if experimentName != "" {
		found := false
		for _, s := range f.Experiments {
			if s.Name == experimentName {
				spec, found = s, true
				break
			}
		}
		if !found {
			return experiment.Spec{}, fmt.Errorf("experiment %q not found in %s", experimentName, configPath)
		}
	}
	applyFlagOverrides(cmd, &spec)
	return spec, nil
}

// specFromFlags builds an experiment entirely from CLI flags.
func specFromFlags() experiment.Spec {
	return experiment.Spec{
		Name:         "cli",
		MaxBatchSize: &maxBatchSize,
		Batcher:      batcherName,
		LatencyModel: latencyModel,
		Horizon:      &horizon,
		UntilIdle:    untilIdle,
		Load: experiment.LoadConfig{
			Type:               loadType,
			InitialBatch:       &initialBatch,
			TargetConcurrency:  &targetConcurrency,
			RequestRate:        &requestRate,
			Arrival:            arrivalProcess,
			PrefillTime:        &prefillTime,
			ITL:                &itl,
			OutputTokens:       &outputTokens,
			OutputTokensStdDev: &outputTokensStdev,
			PrefillChunks:      &prefillChunks,
			Seed:               &seed,
		},
	}
}

// applyFlagOverrides copies every explicitly set flag into spec.
func applyFlagOverrides(cmd *cobra.Command, spec *experiment.Spec) {
	flags := cmd.Flags()
	overrides := map[string]func(){
		"max-batch-size":      func() { spec.MaxBatchSize = &maxBatchSize },
		"batcher":             func() { spec.Batcher = batcherName },
		"latency-model":       func() { spec.LatencyModel = latencyModel },
		"horizon":             func() { spec.Horizon = &horizon },
		"until-idle":          func() { spec.UntilIdle = untilIdle },
		"load":                func() { spec.Load.Type = loadType },
		"initial-batch":       func() { spec.Load.InitialBatch = &initialBatch },
		"target-concurrency":  func() { spec.Load.TargetConcurrency = &targetConcurrency },
		"request-rate":        func() { spec.Load.RequestRate = &requestRate },
		"arrival":             func() { spec.Load.Arrival = arrivalProcess },
		"prefill-time":        func() { spec.Load.PrefillTime = &prefillTime },
		"itl":                 func() { spec.Load.ITL = &itl },
		"output-tokens":       func() { spec.Load.OutputTokens = &outputTokens },
		"output-tokens-stdev": func() { spec.Load.OutputTokensStdDev = &outputTokensStdev },
		"prefill-chunks":      func() { spec.Load.PrefillChunks = &prefillChunks },
		"seed":                func() { spec.Load.Seed = &seed },
	}
	for name, apply := range overrides {
		if flags.Changed(name) {
			logrus.Infof("Flag --%s overrides experiment file value", name)
			apply()
		}
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	// Engine and run control
	runCmd.Flags().IntVar(&maxBatchSize, "max-batch-size", experiment.DefaultMaxBatchSize, "Number of batch slots")
	runCmd.Flags().StringVar(&batcherName, "batcher", "static", "Batcher: static, ifb, ifb-one-prefill")
	runCmd.Flags().StringVar(&latencyModel, "latency-model", "iteration", "Step latency model: iteration, unit")
	runCmd.Flags().Int64Var(&horizon, "horizon", 100, "Simulation horizon (in ticks)")
	runCmd.Flags().BoolVar(&untilIdle, "until-idle", false, "Stop before the horizon once every request is done")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Load generator
	runCmd.Flags().StringVar(&loadType, "load", "batch", "Load generator: batch, concurrent, rate")
	runCmd.Flags().IntVar(&initialBatch, "initial-batch", 100, "Requests emitted at tick 0 (batch)")
	runCmd.Flags().IntVar(&targetConcurrency, "target-concurrency", 6, "Requests kept in the system (concurrent)")
	runCmd.Flags().Float64Var(&requestRate, "request-rate", 0.46, "Requests per tick (rate)")
	runCmd.Flags().StringVar(&arrivalProcess, "arrival", "deterministic", "Arrival process: deterministic, poisson (rate)")
	runCmd.Flags().Int64Var(&prefillTime, "prefill-time", experiment.DefaultPrefillTime, "Prefill work per request (in ticks)")
	runCmd.Flags().Int64Var(&itl, "itl", experiment.DefaultITL, "Ticks per output token")
	runCmd.Flags().IntVar(&outputTokens, "output-tokens", experiment.DefaultOutputTokens, "Output tokens per request")
	runCmd.Flags().Float64Var(&outputTokensStdev, "output-tokens-stdev", 0, "Stddev of output tokens per request (0 = fixed)")
	runCmd.Flags().IntVar(&prefillChunks, "prefill-chunks", experiment.DefaultPrefillChunks, "Prefill chunks per request")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for output lengths and poisson arrivals")

	// Files
	runCmd.Flags().StringVar(&configPath, "config", "", "Experiments YAML file (flags set explicitly override it)")
	runCmd.Flags().StringVar(&experimentName, "experiment", "", "Experiment to run from --config (default: first)")
	runCmd.Flags().StringVar(&traceOutPath, "trace-out", "", "Write the per-step slot timeline as YAML")
	runCmd.Flags().StringVar(&metricsOutPath, "metrics-out", "", "Write the report as a Prometheus textfile")

	rootCmd.AddCommand(runCmd)
}
