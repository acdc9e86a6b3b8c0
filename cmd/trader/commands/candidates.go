package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// candidatesCmd represents the candidates command
var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Run candidate selection once",
	Long: `Builds a snapshot and runs the strategy's pre-open selection
outside the schedule: tradable assets, listed symbols, price range and
the 3/45 day SMA breakout filter.

Example:
  go run ./cmd/trader candidates`,
	RunE: runCandidates,
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
}

func runCandidates(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	d, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	snap, err := d.buildSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}

	start := time.Now()
	candidates, err := d.strategy.SelectCandidates(ctx, snap)
	if err != nil {
		return fmt.Errorf("select candidates: %w", err)
	}

	printHeader("Candidates",
		[2]string{"Strategy", d.strategy.Name()},
		[2]string{"Assets", fmt.Sprintf("%d", len(snap.Assets))},
		[2]string{"Selected", fmt.Sprintf("%d", len(candidates))},
		[2]string{"Duration", time.Since(start).Round(time.Millisecond).String()},
	)
	for i, a := range candidates {
		fmt.Printf("  %3d. %s\n", i+1, a)
	}

	return nil
}
