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
	"github.com/wonny/aegis-us/internal/trader"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the status API without trading",
	Long: `Builds a snapshot, keeps it fresh on the refresh schedule, and
serves it read-only. No phases run in this mode.

Endpoints:
  GET /health                     - Health check
  GET /api/snapshot               - Snapshot summary
  GET /api/clock                  - Clock and today's session
  GET /api/positions              - Positions with ages
  GET /api/orders?open=true       - Orders
  GET /api/candidates             - Latest candidates
  GET /api/assets/{symbol}/tradable
  GET /api/phases                 - Schedule and journal
  GET /api/events                 - Phase event websocket

Example:
  go run ./cmd/trader api
  go run ./cmd/trader api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API port (default from PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}

	if _, err := d.buildSnapshot(ctx); err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}

	phases := trader.DefaultPhases()

	sched := scheduler.New(d.log, d.loc)
	if err := registerJobs(sched, d, phases); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	status := handlers.NewStatusHandler(d.store, d.journal, phases, d.loc, d.log)
	stream := handlers.NewEventsHandler(d.bus, d.log)
	server := api.New(d.cfg, d.log, api.NewRouter(status, stream, d.log))

	go func() {
		if err := server.Start(); err != nil {
			d.log.WithError(err).Error("Failed to start server")
			stop()
		}
	}()

	d.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", d.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	d.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	d.log.Info("Server stopped")
	return nil
}
