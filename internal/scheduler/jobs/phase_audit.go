package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-us/internal/journal"
	"github.com/wonny/aegis-us/pkg/logger"
)

// PhaseAuditJob reports phases that failed or did not fire today
type PhaseAuditJob struct {
	journal journal.Store
	phases  []string
	loc     *time.Location
	now     func() time.Time
	logger  *logger.Logger
}

// NewPhaseAuditJob creates an audit job over the named phases
func NewPhaseAuditJob(j journal.Store, phases []string, loc *time.Location, log *logger.Logger) *PhaseAuditJob {
	return &PhaseAuditJob{
		journal: j,
		phases:  append([]string(nil), phases...),
		loc:     loc,
		now:     time.Now,
		logger:  log,
	}
}

// WithClock overrides the time source
func (j *PhaseAuditJob) WithClock(now func() time.Time) *PhaseAuditJob {
	j.now = now
	return j
}

// Name returns the job name
func (j *PhaseAuditJob) Name() string {
	return "phase_audit"
}

// Schedule returns the cron schedule (weekdays at 5 PM)
func (j *PhaseAuditJob) Schedule() string {
	return "0 0 17 * * MON-FRI"
}

// Run logs every missed or failed phase and returns the findings
func (j *PhaseAuditJob) Run(ctx context.Context) error {
	_, err := j.Audit(ctx)
	return err
}

// Audit returns "phase: reason" for each phase that did not complete today
func (j *PhaseAuditJob) Audit(ctx context.Context) ([]string, error) {
	entries, err := j.journal.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase audit: %w", err)
	}

	byPhase := make(map[string]journal.Entry, len(entries))
	for _, e := range entries {
		byPhase[e.Phase] = e
	}

	today := j.now().In(j.loc).Format("2006-01-02")
	var findings []string
	for _, phase := range j.phases {
		e, ok := byPhase[phase]
		switch {
		case !ok || e.Date != today:
			findings = append(findings, phase+": not fired")
		case e.Status == journal.StatusError:
			findings = append(findings, phase+": "+e.Error)
		}
	}

	if len(findings) > 0 {
		j.logger.WithFields(map[string]interface{}{
			"date":     today,
			"findings": findings,
		}).Warn("Phases incomplete")
	} else {
		j.logger.WithField("date", today).Info("All phases completed")
	}

	return findings, nil
}
