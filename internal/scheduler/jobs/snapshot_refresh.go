package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/aegis-us/internal/snapshot"
	"github.com/wonny/aegis-us/pkg/logger"
)

// DefaultSnapshotRefreshSchedule is weekdays at 9 AM market time
const DefaultSnapshotRefreshSchedule = "0 0 9 * * MON-FRI"

// SnapshotRefreshJob rebuilds the snapshot before the session opens
type SnapshotRefreshJob struct {
	builder  *snapshot.Builder
	store    *snapshot.Store
	schedule string
	logger   *logger.Logger
}

// NewSnapshotRefreshJob creates a refresh job. An empty schedule uses
// DefaultSnapshotRefreshSchedule.
func NewSnapshotRefreshJob(builder *snapshot.Builder, store *snapshot.Store, schedule string, log *logger.Logger) *SnapshotRefreshJob {
	if schedule == "" {
		schedule = DefaultSnapshotRefreshSchedule
	}
	return &SnapshotRefreshJob{
		builder:  builder,
		store:    store,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *SnapshotRefreshJob) Name() string {
	return "snapshot_refresh"
}

// Schedule returns the cron schedule
func (j *SnapshotRefreshJob) Schedule() string {
	return j.schedule
}

// Run builds a new snapshot aged against the current one and stores it
func (j *SnapshotRefreshJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled snapshot refresh")

	base := j.store.Current()
	built, err := j.builder.Build(ctx, base)
	if err != nil {
		return fmt.Errorf("snapshot refresh: %w", err)
	}
	// the engine may refresh clock or positions while this build runs
	snap := j.store.Replace(base, built)

	j.logger.WithFields(map[string]interface{}{
		"assets":    len(snap.Assets),
		"symbols":   len(snap.Symbols),
		"positions": len(snap.Positions),
	}).Info("Snapshot refreshed")

	return nil
}
