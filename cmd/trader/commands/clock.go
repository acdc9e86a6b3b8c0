package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-us/internal/marketclock"
	"github.com/wonny/aegis-us/internal/trader"
)

// clockCmd represents the clock command
var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Show the market clock and today's phase schedule",
	Long: `Fetches the clock and calendar and prints today's session with the
instant each phase becomes due.

Example:
  go run ./cmd/trader clock`,
	RunE: runClock,
}

func init() {
	rootCmd.AddCommand(clockCmd)
}

func runClock(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	d, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	clock, err := d.broker.GetClock(ctx)
	if err != nil {
		return fmt.Errorf("get clock: %w", err)
	}

	now := time.Now().In(d.loc)
	calendar, err := d.broker.GetCalendar(ctx, now.AddDate(0, 0, -1), now.AddDate(0, 0, 7))
	if err != nil {
		return fmt.Errorf("get calendar: %w", err)
	}

	printHeader("Market clock",
		[2]string{"Now", now.Format(time.RFC3339)},
		[2]string{"Open", fmt.Sprintf("%t", clock.IsOpen)},
		[2]string{"Next open", clock.NextOpen.In(d.loc).Format(time.RFC3339)},
		[2]string{"Next close", clock.NextClose.In(d.loc).Format(time.RFC3339)},
	)

	phases := trader.DefaultPhases()
	triggers := make([]marketclock.Trigger, 0, len(phases))
	for _, p := range phases {
		triggers = append(triggers, p.Trigger)
	}
	gate := marketclock.NewGate(clock, d.loc).Report(now, triggers)
	printSection("Gate (exact second)")
	fmt.Printf("  Matching     %v\n", gate.Matching)
	fmt.Printf("  Minute tick  %t\n", gate.MinuteTick)
	fmt.Printf("  Hour tick    %t\n", gate.HourTick)

	session, ok := marketclock.SessionFor(now, calendar, clock, d.loc)
	if !ok {
		fmt.Println("\nNo trading session today")
		return nil
	}

	printSection(session.String())
	for _, p := range phases {
		at := p.At(session)
		state := "pending"
		switch {
		case p.Action == trader.ActionTrade && !at.Before(session.Close):
			state = "skipped"
		case now.After(at):
			state = "past"
		}
		fmt.Printf("  %-12s %s  %-18s %s\n", p.Name, at.Format("15:04:05"), p.Action, state)
	}

	return nil
}
