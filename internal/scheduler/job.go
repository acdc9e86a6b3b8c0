package scheduler

import (
	"context"
	"fmt"
	"time"
)

// historyLimit is how many results are kept per job
const historyLimit = 100

// Job is work run on a cron schedule in the market time zone, such as
// the morning snapshot_refresh or the after-close phase_audit
// ⭐ SSOT: the scheduled job interface is defined here only
type Job interface {
	Name() string

	// Run does one pass. An error is retried by the scheduler; ctx is
	// cancelled when the scheduler stops.
	Run(ctx context.Context) error

	// Schedule is a six-field cron expression, seconds first,
	// e.g. "0 0 9 * * MON-FRI" for weekdays at 09:00 market time
	Schedule() string
}

// JobResult is one run of a job, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

func (r JobResult) String() string {
	status := "ok"
	if !r.Success {
		status = "failed: " + r.Error
	}
	return fmt.Sprintf("JobResult{%s at=%s attempts=%d took=%s %s}",
		r.JobName, r.StartTime.Format(time.RFC3339), r.Attempts, r.Duration.Round(time.Millisecond), status)
}

// JobHistory keeps the most recent results of one job, oldest first
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, dropping the oldest beyond historyLimit
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > historyLimit {
		h.Results = append([]JobResult(nil), h.Results[len(h.Results)-historyLimit:]...)
	}
}

// Last returns the latest result
func (h *JobHistory) Last() (JobResult, bool) {
	if len(h.Results) == 0 {
		return JobResult{}, false
	}
	return h.Results[len(h.Results)-1], true
}

// GetLatestResults returns a copy of the latest n results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	return append([]JobResult{}, h.Results[len(h.Results)-n:]...)
}

// GetFailedResults returns the failed results
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// GetSuccessRate is the share of successful results, 0 when empty
func (h *JobHistory) GetSuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0
	}
	return float64(len(h.Results)-len(h.GetFailedResults())) / float64(len(h.Results))
}
