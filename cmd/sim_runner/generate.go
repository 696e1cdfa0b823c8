package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/miretskiy/fitsim/simulator"
	"github.com/miretskiy/fitsim/workload"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic JSON workload.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		config := workload.DefaultSyntheticConfig()
		config.Processes, _ = flags.GetInt("processes")
		config.TotalMemory, _ = flags.GetInt("memory")
		config.MinSize, _ = flags.GetInt("min-size")
		config.MaxSize, _ = flags.GetInt("max-size")
		config.MinBurst, _ = flags.GetInt("min-burst")
		config.MaxBurst, _ = flags.GetInt("max-burst")
		config.MaxInterarrival, _ = flags.GetInt("max-gap")

		var err error
		for name, dst := range map[string]*workload.DistributionType{
			"size-dist":  &config.SizeDist,
			"burst-dist": &config.BurstDist,
			"gap-dist":   &config.InterarrivalDist,
		} {
			s, _ := flags.GetString(name)
			if *dst, err = workload.ParseDistributionType(s); err != nil {
				return fmt.Errorf("--%s: %w", name, err)
			}
		}
		if s, _ := flags.GetString("technique"); s != "" {
			technique, err := simulator.ParseTechnique(s)
			if err != nil {
				return err
			}
			config.Technique = &technique
		}

		seed, _ := flags.GetInt64("seed")
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		w, err := workload.Synthetic(rand.New(rand.NewSource(seed)), config)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if output, _ := flags.GetString("output"); output != "" {
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(w)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	defaults := workload.DefaultSyntheticConfig()
	flags := generateCmd.Flags()
	flags.Int("processes", defaults.Processes, "Number of processes")
	flags.Int("memory", defaults.TotalMemory, "Total memory in KB")
	flags.Int("min-size", defaults.MinSize, "Smallest process size in KB")
	flags.Int("max-size", defaults.MaxSize, "Largest process size in KB")
	flags.String("size-dist", defaults.SizeDist.String(), "Size distribution (uniform, exponential, geometric, fixed)")
	flags.Int("min-burst", defaults.MinBurst, "Shortest burst in ticks")
	flags.Int("max-burst", defaults.MaxBurst, "Longest burst in ticks")
	flags.String("burst-dist", defaults.BurstDist.String(), "Burst distribution")
	flags.Int("max-gap", defaults.MaxInterarrival, "Largest gap between arrivals in ticks")
	flags.String("gap-dist", defaults.InterarrivalDist.String(), "Interarrival distribution")
	flags.String("technique", "", "Fit technique stored in the workload")
	flags.Int64("seed", 0, "Random seed (default: current time)")
	flags.String("output", "", "Output file (default: stdout)")
}
