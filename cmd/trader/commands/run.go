package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-us/internal/api"
	"github.com/wonny/aegis-us/internal/api/handlers"
	"github.com/wonny/aegis-us/internal/scheduler"
	"github.com/wonny/aegis-us/internal/scheduler/jobs"
	"github.com/wonny/aegis-us/internal/trader"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loop",
	Long: `Builds the first snapshot and runs the strategy through each
trading day until interrupted.

Phases (market time):
  pre_open     open -15m    select candidates
  intraday_N   open +N:01   trade (N = 0..6)
  pre_close    close -10m   refresh positions, update data
  post_close   close +30m   close specifics

Each phase fires at most once per session date. By default the status API
and the snapshot refresh scheduler run in the same process.

Example:
  go run ./cmd/trader run
  go run ./cmd/trader run --api=false --refresh=false`,
	RunE: runTrader,
}

var (
	runWithAPI     bool
	runWithRefresh bool
	runPort        string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runWithAPI, "api", true, "serve the status API")
	runCmd.Flags().BoolVar(&runWithRefresh, "refresh", true, "schedule snapshot refresh and phase audit jobs")
	runCmd.Flags().StringVar(&runPort, "port", "", "API port (default from PORT)")
}

func runTrader(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	if runPort != "" {
		d.cfg.Port = runPort
	}

	engine := d.engine()

	printHeader("Aegis US Trader",
		[2]string{"Strategy", d.strategy.Name()},
		[2]string{"Broker", d.cfg.Alpaca.BaseURL},
		[2]string{"Timezone", d.loc.String()},
		[2]string{"Price", d.settings.priceRange()},
		[2]string{"Parameters", d.settings.source},
		[2]string{"Poll", d.cfg.Trader.PollInterval.String()},
	)

	if runWithRefresh {
		sched := scheduler.New(d.log, d.loc)
		if err := registerJobs(sched, d, engine.Phases()); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	if runWithAPI {
		status := handlers.NewStatusHandler(d.store, d.journal, engine.Phases(), d.loc, d.log)
		stream := handlers.NewEventsHandler(d.bus, d.log)
		server := api.New(d.cfg, d.log, api.NewRouter(status, stream, d.log))

		go func() {
			if err := server.Start(); err != nil {
				d.log.WithError(err).Error("API server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				d.log.WithError(err).Warn("API server shutdown failed")
			}
		}()

		fmt.Printf("\n✅ Status API on http://localhost:%s\n", d.cfg.Port)
	}

	fmt.Println("\nPress Ctrl+C to stop")

	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("trading loop: %w", err)
	}

	fmt.Println("\nTrader stopped")
	return nil
}

// registerJobs adds the snapshot refresh and phase audit jobs
func registerJobs(sched *scheduler.Scheduler, d *deps, phases []trader.Phase) error {
	names := make([]string, 0, len(phases))
	for _, p := range phases {
		names = append(names, p.Name)
	}

	for _, job := range []scheduler.Job{
		jobs.NewSnapshotRefreshJob(d.builder, d.store, d.cfg.Trader.SnapshotRefreshSchedule, d.log),
		jobs.NewPhaseAuditJob(d.journal, names, d.loc, d.log),
	} {
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("add job: %w", err)
		}
	}
	return nil
}
