package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Aegis US - automated US equities trading loop",
	Long: `Aegis US Trader CLI

Runs a strategy through the phases of each NYSE trading day:
pre-open candidate selection, hourly trades, pre-close position
refresh and post-close bookkeeping.

Usage:
  go run ./cmd/trader [command]

Examples:
  go run ./cmd/trader run
  go run ./cmd/trader snapshot
  go run ./cmd/trader candidates
  go run ./cmd/trader clock
  go run ./cmd/trader scheduler list`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
