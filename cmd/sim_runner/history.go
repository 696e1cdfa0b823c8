package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/miretskiy/fitsim/recording"
)

var historyCmd = &cobra.Command{
	Use:   "history <recording.sqlite3> [run-id]",
	Short: "List recorded runs, or print the events and logs of one run.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := recording.Open(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			runs, err := reader.Runs()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSEQ\tSTARTED\tEVENTS\tLOGS\tLAST TICK")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\t%d\n",
					r.ID, r.Seq, r.StartedAt.Format("2006-01-02 15:04:05"), r.EventCount, r.LogCount, r.LastTick)
			}
			return tw.Flush()
		}

		events, err := reader.Events(args[1])
		if err != nil {
			return err
		}
		logs, err := reader.Logs(args[1])
		if err != nil {
			return err
		}
		output, err := json.MarshalIndent(map[string]interface{}{
			"run":    args[1],
			"events": events,
			"logs":   logs,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(output))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
