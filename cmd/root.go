package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/sfc-sim/sfc-sim/sim"
	"github.com/sfc-sim/sfc-sim/sim/results"
)

var (
	configPath string // Path to the experiment YAML
	logLevel   string // Log verbosity level
	outputDir  string // Directory for result tables (overrides config)
	seed       int64  // Experiment seed (overrides config when set)
	workers    int    // Concurrent runs (overrides config when set)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "sfc-sim",
	Short: "Discrete-event simulator for time-constrained NFV profiling",
}

// runCmd loads the experiment description, executes all runs, and
// writes one result table per run.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a profiling experiment",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		file, err := LoadExperimentFile(configPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if cmd.Flags().Changed("seed") {
			file.Seed = seed
		}
		if cmd.Flags().Changed("workers") {
			file.Workers = workers
		}
		outDir := file.OutputDir
		if cmd.Flags().Changed("out") || outDir == "" {
			outDir = outputDir
		}

		cfg, err := file.Build()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		exp, err := sim.NewExperiment(cfg)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		logrus.Infof("Starting experiment %s: %d runs, seed=%d", cfg.Name, exp.Runs(), cfg.Seed)
		start := time.Now()

		tables, runErr := exp.Run()
		if runErr != nil {
			// Completed runs still produce tables; report failures and
			// write what finished.
			logrus.Errorf("Some runs failed: %v", runErr)
		}

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			logrus.Fatalf("Creating output directory: %v", err)
		}
		written := 0
		rows := 0
		for _, t := range tables {
			if t == nil {
				continue
			}
			if err := writeTable(outDir, t); err != nil {
				logrus.Fatalf("%v", err)
			}
			written++
			rows += t.Len()
		}

		logrus.Infof("Wrote %d result tables (%d rows) to %s in %s", written, rows, outDir, time.Since(start).Round(time.Millisecond))
		if runErr != nil {
			os.Exit(1)
		}
	},
}

// writeTable serializes one run's table to result_<runID>.csv.
func writeTable(dir string, t *results.Table) error {
	path := filepath.Join(dir, fmt.Sprintf("result_%s.csv", t.RunID()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := t.WriteCSV(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "experiment.yaml", "Path to the experiment YAML file")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&outputDir, "out", "results", "Directory for per-run result tables")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Experiment seed (overrides the config file)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent runs (overrides the config file; 0 = GOMAXPROCS)")

	rootCmd.AddCommand(runCmd)
}
