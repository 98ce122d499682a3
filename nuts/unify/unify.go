// Package unify folds the four disjoint job collections of the nuts backend
// into one ordered sequence of UnifiedJob, each tagged with exactly one
// lifecycle status.
package unify

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/nuts/api"
)

// Status is the normalized lifecycle status of a unified job
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// AllStatuses lists every status in display order
var AllStatuses = []Status{StatusScheduled, StatusPending, StatusRunning, StatusCompleted, StatusFailed}

// IsValidStatus checks if a status string is valid
func IsValidStatus(s string) bool {
	for _, st := range AllStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// UnifiedJob is one backend job record with a single normalized status.
// Only the fields of the source collection are set.
type UnifiedJob struct {
	Name         string  `json:"name" yaml:"name"`
	Status       Status  `json:"status" yaml:"status"`
	NextRun      string  `json:"next_run,omitempty" yaml:"next_run,omitempty"`
	StartedAt    string  `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	WorkerID     string  `json:"worker_id,omitempty" yaml:"worker_id,omitempty"`
	Success      *bool   `json:"success,omitempty" yaml:"success,omitempty"`
	Error        *string `json:"error,omitempty" yaml:"error,omitempty"`
	WorkflowName *string `json:"workflow_name,omitempty" yaml:"workflow_name,omitempty"`
	Params       []any   `json:"params,omitempty" yaml:"params,omitempty"`
}

// Unify maps each record to a UnifiedJob and concatenates them in the order
// scheduled, pending, running, completed. A completed record whose success
// flag is false becomes StatusFailed. The result is always a fresh slice.
func Unify(scheduled []api.ScheduledJob, pending []api.PendingJob, running []api.RunningJob, completed []api.CompletedJob) []UnifiedJob {
	jobs := make([]UnifiedJob, 0, len(scheduled)+len(pending)+len(running)+len(completed))

	for _, j := range scheduled {
		jobs = append(jobs, UnifiedJob{
			Name:    j.Name,
			Status:  StatusScheduled,
			NextRun: j.NextRun,
		})
	}
	for _, j := range pending {
		jobs = append(jobs, UnifiedJob{
			Name:   j.Name,
			Status: StatusPending,
			Params: j.Params,
		})
	}
	for _, j := range running {
		jobs = append(jobs, UnifiedJob{
			Name:      j.Name,
			Status:    StatusRunning,
			StartedAt: j.StartedAt,
			WorkerID:  j.WorkerID,
			Params:    j.Params,
		})
	}
	for _, j := range completed {
		status := StatusFailed
		if j.Success {
			status = StatusCompleted
		}
		success := j.Success
		jobs = append(jobs, UnifiedJob{
			Name:         j.Name,
			Status:       status,
			Success:      &success,
			Error:        j.Error,
			WorkflowName: j.WorkflowName,
		})
	}

	return jobs
}

// Source is the part of the nuts API the unifier reads from
type Source interface {
	ListScheduledJobs(ctx context.Context) ([]api.ScheduledJob, error)
	ListPendingJobs(ctx context.Context) ([]api.PendingJob, error)
	ListRunningJobs(ctx context.Context) ([]api.RunningJob, error)
	ListCompletedJobs(ctx context.Context) ([]api.CompletedJob, error)
	ListWorkflows(ctx context.Context) ([]api.WorkflowListing, error)
	GetWorkflow(ctx context.Context, name string) (api.WorkflowStatus, error)
}

// Unifier fetches and folds backend collections. It keeps no state between calls.
type Unifier struct {
	src Source
}

// New creates a Unifier reading from src
func New(src Source) *Unifier {
	return &Unifier{src: src}
}

// ListAllJobs fetches the four job collections concurrently and returns
// their unified sequence. If any fetch fails the whole call fails; there
// are no partial results.
func (u *Unifier) ListAllJobs(ctx context.Context) ([]UnifiedJob, error) {
	var (
		scheduled []api.ScheduledJob
		pending   []api.PendingJob
		running   []api.RunningJob
		completed []api.CompletedJob
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		scheduled, err = u.src.ListScheduledJobs(gctx)
		return errors.Wrap(err, "list scheduled jobs")
	})
	g.Go(func() error {
		var err error
		pending, err = u.src.ListPendingJobs(gctx)
		return errors.Wrap(err, "list pending jobs")
	})
	g.Go(func() error {
		var err error
		running, err = u.src.ListRunningJobs(gctx)
		return errors.Wrap(err, "list running jobs")
	})
	g.Go(func() error {
		var err error
		completed, err = u.src.ListCompletedJobs(gctx)
		return errors.Wrap(err, "list completed jobs")
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Unify(scheduled, pending, running, completed), nil
}

// ListWorkflows passes the workflow listing through unchanged. Consumers
// tell full entries from stubs with WorkflowListing.Status.
func (u *Unifier) ListWorkflows(ctx context.Context) ([]api.WorkflowListing, error) {
	listings, err := u.src.ListWorkflows(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list workflows")
	}
	return listings, nil
}

// GetWorkflow passes one workflow's full status through unchanged
func (u *Unifier) GetWorkflow(ctx context.Context, name string) (api.WorkflowStatus, error) {
	ws, err := u.src.GetWorkflow(ctx, name)
	if err != nil {
		return api.WorkflowStatus{}, errors.Wrapf(err, "get workflow %q", name)
	}
	return ws, nil
}

// Instances returns every unified entry for name in sequence order. The
// first entry is the job's current instance.
func Instances(jobs []UnifiedJob, name string) []UnifiedJob {
	var out []UnifiedJob
	for _, j := range jobs {
		if j.Name == name {
			out = append(out, j)
		}
	}
	return out
}

// FilterByStatus keeps jobs with the given status. "all" and "" keep everything.
func FilterByStatus(jobs []UnifiedJob, status string) []UnifiedJob {
	if status == "" || status == "all" {
		return jobs
	}
	out := make([]UnifiedJob, 0, len(jobs))
	for _, j := range jobs {
		if string(j.Status) == status {
			out = append(out, j)
		}
	}
	return out
}

// CountByStatus tallies jobs per status
func CountByStatus(jobs []UnifiedJob) map[Status]int {
	counts := make(map[Status]int, len(AllStatuses))
	for _, j := range jobs {
		counts[j.Status]++
	}
	return counts
}
