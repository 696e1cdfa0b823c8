package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/miretskiy/fitsim/workload"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write a random demo workbook.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, _ := cmd.Flags().GetString("output")
		seed, _ := cmd.Flags().GetInt64("seed")
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		if output == "" {
			output = fmt.Sprintf("memory-allocation-template-%s.xlsx", time.Now().UTC().Format("2006-01-02T15-04-05"))
		}

		f, err := os.Create(output)
		if err != nil {
			return err
		}
		if err := workload.WriteTemplate(f, rand.New(rand.NewSource(seed))); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Template written to %s\n", output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)
	templateCmd.Flags().String("output", "", "Output file (default: timestamped name)")
	templateCmd.Flags().Int64("seed", 0, "Random seed (default: current time)")
}
