package unify

import (
	"fmt"

	"github.com/nutsq/nutsdash/nuts/api"
)

// WorkflowStatusScheduled is the display status of a workflow with no run
// in progress, and of every stub
const WorkflowStatusScheduled = "scheduled"

// WorkflowSummary is one display row of the workflow listing
type WorkflowSummary struct {
	Name     string  `json:"name" yaml:"name"`
	Status   string  `json:"status" yaml:"status"`
	Progress string  `json:"progress" yaml:"progress"`
	NextRun  *string `json:"next_run" yaml:"next_run"`
	Schedule string  `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Error    *string `json:"error,omitempty" yaml:"error,omitempty"`
	HasJobs  bool    `json:"has_jobs" yaml:"has_jobs"`
}

// Progress counts constituent jobs whose status is "completed"
func Progress(ws api.WorkflowStatus) (completed, total int) {
	for _, j := range ws.Jobs {
		if j.Status != nil && *j.Status == string(StatusCompleted) {
			completed++
		}
	}
	return completed, len(ws.Jobs)
}

// ProgressRatio is completed/total, or 0 for a workflow without jobs
func ProgressRatio(ws api.WorkflowStatus) float64 {
	completed, total := Progress(ws)
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total)
}

// ProgressLabel renders progress as "c/n", or "-" when there are no jobs
func ProgressLabel(ws api.WorkflowStatus) string {
	completed, total := Progress(ws)
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", completed, total)
}

// DisplayStatus is the workflow's status, "scheduled" when null
func DisplayStatus(ws api.WorkflowStatus) string {
	if ws.Status == nil || *ws.Status == "" {
		return WorkflowStatusScheduled
	}
	return *ws.Status
}

// Summarize builds display rows, telling full entries from stubs by the
// presence of a jobs breakdown. Stubs show status "scheduled" and progress "-".
func Summarize(listings []api.WorkflowListing) []WorkflowSummary {
	out := make([]WorkflowSummary, 0, len(listings))
	for _, l := range listings {
		if ws, ok := l.Status(); ok {
			out = append(out, WorkflowSummary{
				Name:     ws.Name,
				Status:   DisplayStatus(ws),
				Progress: ProgressLabel(ws),
				NextRun:  ws.NextRun,
				Schedule: ws.Schedule,
				Error:    ws.Error,
				HasJobs:  true,
			})
			continue
		}

		stub := l.Stub()
		nextRun := stub.NextRun
		out = append(out, WorkflowSummary{
			Name:     stub.Name,
			Status:   WorkflowStatusScheduled,
			Progress: "-",
			NextRun:  &nextRun,
		})
	}
	return out
}
