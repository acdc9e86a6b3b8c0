package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Build and print one snapshot",
	Long: `Fetches account, assets, calendar, clock, earnings, orders,
symbols and positions once, in that order, and prints a summary.

Example:
  go run ./cmd/trader snapshot
  go run ./cmd/trader snapshot --positions --orders`,
	RunE: runSnapshot,
}

var (
	snapshotShowPositions bool
	snapshotShowOrders    bool
	snapshotShowEarnings  bool
)

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().BoolVar(&snapshotShowPositions, "positions", false, "list positions")
	snapshotCmd.Flags().BoolVar(&snapshotShowOrders, "orders", false, "list open orders")
	snapshotCmd.Flags().BoolVar(&snapshotShowEarnings, "earnings", false, "list earnings events")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	d, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	start := time.Now()
	snap, err := d.buildSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}

	printHeader("Snapshot",
		[2]string{"Created", snap.CreatedAt.In(d.loc).Format(time.RFC3339)},
		[2]string{"Duration", time.Since(start).Round(time.Millisecond).String()},
		[2]string{"Account", snap.Account.String()},
		[2]string{"Clock", snap.Clock.String()},
	)
	fmt.Println(snap)

	if snapshotShowPositions {
		printSection(fmt.Sprintf("Positions (%d)", len(snap.Positions)))
		for _, p := range snap.Positions {
			fmt.Printf("  %s\n", p)
		}
	}

	if snapshotShowOrders {
		open := snap.OpenOrders()
		printSection(fmt.Sprintf("Open orders (%d)", len(open)))
		for _, o := range open {
			fmt.Printf("  %s\n", o)
		}
	}

	if snapshotShowEarnings {
		printSection(fmt.Sprintf("Earnings (%d)", len(snap.Earnings)))
		for _, e := range snap.Earnings {
			fmt.Printf("  %s\n", e)
		}
	}

	return nil
}
