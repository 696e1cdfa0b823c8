package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/miretskiy/fitsim/recording"
	"github.com/miretskiy/fitsim/simulator"
	"github.com/miretskiy/fitsim/workload"
)

var runCmd = &cobra.Command{
	Use:   "run <workload.json|workbook.xlsx>",
	Short: "Run a workload and print the final state as JSON.",
	Long: "Runs a JSON workload or an .xlsx workbook. Without --ticks the " +
		"simulation runs until every process has completed or --max-ticks is reached.",
	Args: cobra.ExactArgs(1),
	RunE: runWorkload,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("technique", "", "Fit technique (overrides the workload)")
	runCmd.Flags().Int("ticks", 0, "Run exactly this many ticks")
	runCmd.Flags().Int("max-ticks", 10000, "Stop after this many ticks when running until idle")
	runCmd.Flags().String("output", "", "Write results to this file instead of stdout")
	runCmd.Flags().String("record", os.Getenv("FITSIM_RECORD"), "Record events and logs to <path>.sqlite3")
	runCmd.Flags().Bool("verbose", false, "Print simulator trace lines to stderr")
}

type runResult struct {
	Workload    string             `json:"workload"`
	Technique   string             `json:"technique"`
	TicksRun    int                `json:"ticksRun"`
	Idle        bool               `json:"idle"`
	RealTime    float64            `json:"realTime"`
	RecordingTo string             `json:"recording,omitempty"`
	Snapshot    simulator.Snapshot `json:"snapshot"`
}

func runWorkload(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	technique, _ := flags.GetString("technique")
	ticks, _ := flags.GetInt("ticks")
	maxTicks, _ := flags.GetInt("max-ticks")
	outputFile, _ := flags.GetString("output")
	recordPath, _ := flags.GetString("record")
	verbose, _ := flags.GetBool("verbose")

	config := simulator.DefaultConfig()
	config.LogCapacity = 1000
	var opts []simulator.Option

	var recorder *recording.Recorder
	if recordPath != "" {
		var err error
		recorder, err = recording.New(recordPath)
		if err != nil {
			return err
		}
		atexit.Register(func() { recorder.Close() })
		opts = append(opts, simulator.WithObserver(recorder))
	}

	sim, err := simulator.NewSimulator(config, opts...)
	if err != nil {
		return err
	}
	if verbose {
		sim.LogEvent = func(msg string) {
			fmt.Fprintf(os.Stderr, "[SIM] %s\n", msg)
		}
	}

	if err := loadWorkload(sim, args[0]); err != nil {
		return err
	}
	if technique != "" {
		t, err := simulator.ParseTechnique(technique)
		if err != nil {
			return err
		}
		if err := sim.SetTechnique(t); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "Running %s with %s on %d KB...\n", args[0], sim.Config().Technique, sim.TotalMemory())
	startTime := time.Now()

	var stepped int
	if ticks > 0 {
		from := sim.CurrentTime()
		stepped = sim.StepUntil(from+ticks) - from
	} else {
		stepped = sim.RunUntilIdle(maxTicks)
	}

	elapsed := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "Simulation completed in %v (%d ticks)\n", elapsed, stepped)

	result := runResult{
		Workload:  args[0],
		Technique: sim.Config().Technique.String(),
		TicksRun:  stepped,
		Idle:      sim.IsIdle(),
		RealTime:  elapsed.Seconds(),
		Snapshot:  sim.Snapshot(),
	}
	if recorder != nil {
		if err := recorder.Flush(); err != nil {
			return err
		}
		result.RecordingTo = recorder.Filename()
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if outputFile != "" {
		if err := os.WriteFile(outputFile, output, 0644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Results written to %s\n", outputFile)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}

// loadWorkload applies a workbook or JSON workload, chosen by extension
func loadWorkload(sim *simulator.Simulator, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		bundle, err := workload.ParseFile(path)
		if err != nil {
			return err
		}
		return sim.ImportWorkload(bundle.ToImport())
	}

	w, err := workload.LoadJSONFile(path)
	if err != nil {
		return err
	}
	return w.Apply(sim)
}
