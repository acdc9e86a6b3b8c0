package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-us/internal/scheduler"
	"github.com/wonny/aegis-us/internal/trader"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage scheduled jobs",
	Long: `Starts the scheduler or inspects its jobs.

Subcommands:
  start   - Start the scheduler
  list    - List registered jobs
  run     - Run one job now

Example:
  go run ./cmd/trader scheduler start
  go run ./cmd/trader scheduler list
  go run ./cmd/trader scheduler run snapshot_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Starts the scheduler with every job registered.

Registered jobs (market time):
- snapshot_refresh: SNAPSHOT_REFRESH_SCHEDULE (default weekdays 09:00)
- phase_audit: weekdays 17:00

Stop with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler wires deps and registers the jobs
func initScheduler(ctx context.Context) (*scheduler.Scheduler, *deps, error) {
	d, err := initDeps(ctx)
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(d.log, d.loc)
	if err := registerJobs(sched, d, trader.DefaultPhases()); err != nil {
		d.close()
		return nil, nil, err
	}
	return sched, d, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, d, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	sched.Start()

	printHeader("Aegis US Scheduler", [2]string{"Timezone", d.loc.String()})
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sortedJobs(sched) {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, d, err := initScheduler(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	// next run times are only computed once cron is running
	sched.Start()
	defer sched.Stop()
	time.Sleep(50 * time.Millisecond)

	stats := sched.GetJobStats()
	printHeader("Registered jobs")
	for _, name := range sortedJobs(sched) {
		next, _ := sched.NextRun(name)
		fmt.Printf("  %-18s %-20s next %s\n", name, stats[name].Schedule, next.Format(time.RFC3339))
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	sched, d, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	jobName := args[0]
	fmt.Printf("Running job: %s\n", jobName)

	result, err := sched.RunJobAndWait(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed: %s", jobName, result.Error)
	}

	fmt.Printf("\n✅ Job %s completed in %s\n", jobName, result.Duration.Round(time.Millisecond))
	return nil
}

func sortedJobs(sched *scheduler.Scheduler) []string {
	names := sched.GetAllJobs()
	sort.Strings(names)
	return names
}
