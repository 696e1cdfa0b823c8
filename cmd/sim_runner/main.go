// Command sim_runner drives the memory allocation simulator without a UI.
package main

import (
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sim_runner",
	Short: "Run memory allocation simulations headlessly.",
	Long: `sim_runner replays a workload through the contiguous memory allocator ` +
		`and prints the resulting layout, statistics and event timeline as JSON. ` +
		`It can also write demo workbooks and inspect recorded runs.`,
	SilenceUsage: true,
}

func main() {
	// A missing .env is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env: %v", err)
	}

	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
