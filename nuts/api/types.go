package api

import (
	"encoding/json"

	"github.com/nutsq/nutsdash/errors"
)

// ScheduledJob is a job waiting for its next run time.
// NextRun is the backend's ISO-8601 string, kept verbatim.
type ScheduledJob struct {
	Name    string `json:"name"`
	NextRun string `json:"next_run"`
}

// PendingJob is a job in the pending queue
type PendingJob struct {
	Name   string `json:"name"`
	Params []any  `json:"params"`
}

// RunningJob is a job currently held by a worker
type RunningJob struct {
	Name      string `json:"name"`
	WorkerID  string `json:"worker_id"`
	StartedAt string `json:"started_at"`
	Params    []any  `json:"params"`
}

// CompletedJob is a finished job, successful or not
type CompletedJob struct {
	Name         string  `json:"name"`
	Success      bool    `json:"success"`
	Error        *string `json:"error"`
	WorkflowName *string `json:"workflow_name"`
}

// WorkflowJobStatus is one constituent job of a workflow run
type WorkflowJobStatus struct {
	Name     string   `json:"name"`
	Status   *string  `json:"status"`
	Requires []string `json:"requires"`
	Error    *string  `json:"error"`
}

// WorkflowStatus is the full state of a materialized workflow run
type WorkflowStatus struct {
	Name     string              `json:"name"`
	Schedule string              `json:"schedule"`
	Status   *string             `json:"status"`
	Error    *string             `json:"error"`
	Jobs     []WorkflowJobStatus `json:"jobs"`
	NextRun  *string             `json:"next_run"`
}

// ScheduledWorkflow is the stub the backend lists for a workflow that has
// no materialized run yet
type ScheduledWorkflow struct {
	Name    string `json:"name"`
	NextRun string `json:"next_run"`
}

// WorkflowListing is one element of the workflow listing. The backend
// returns either a WorkflowStatus or a ScheduledWorkflow; the presence of a
// "jobs" field in the raw object tells them apart.
type WorkflowListing struct {
	status *WorkflowStatus
	stub   ScheduledWorkflow
}

// NewStatusListing wraps a full workflow status as a listing entry
func NewStatusListing(ws WorkflowStatus) WorkflowListing {
	return WorkflowListing{status: &ws}
}

// NewStubListing wraps a scheduled-workflow stub as a listing entry
func NewStubListing(sw ScheduledWorkflow) WorkflowListing {
	return WorkflowListing{stub: sw}
}

// Name returns the workflow name for either shape
func (l WorkflowListing) Name() string {
	if l.status != nil {
		return l.status.Name
	}
	return l.stub.Name
}

// Status returns the full workflow status if the entry carried a jobs field.
// ok is false for stubs.
func (l WorkflowListing) Status() (ws WorkflowStatus, ok bool) {
	if l.status == nil {
		return WorkflowStatus{}, false
	}
	return *l.status, true
}

// Stub returns the entry as a ScheduledWorkflow. For full entries NextRun is
// the status's next run, or empty.
func (l WorkflowListing) Stub() ScheduledWorkflow {
	if l.status == nil {
		return l.stub
	}
	sw := ScheduledWorkflow{Name: l.status.Name}
	if l.status.NextRun != nil {
		sw.NextRun = *l.status.NextRun
	}
	return sw
}

// UnmarshalJSON implements json.Unmarshaler
func (l *WorkflowListing) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return errors.Wrap(err, "workflow listing entry is not an object")
	}

	if _, hasJobs := probe["jobs"]; hasJobs {
		var ws WorkflowStatus
		if err := json.Unmarshal(data, &ws); err != nil {
			return errors.Wrap(err, "decode workflow status")
		}
		*l = WorkflowListing{status: &ws}
		return nil
	}

	var sw ScheduledWorkflow
	if err := json.Unmarshal(data, &sw); err != nil {
		return errors.Wrap(err, "decode scheduled workflow")
	}
	*l = WorkflowListing{stub: sw}
	return nil
}

// MarshalJSON emits the entry in the shape it was received
func (l WorkflowListing) MarshalJSON() ([]byte, error) {
	if l.status != nil {
		return json.Marshal(l.status)
	}
	return json.Marshal(l.stub)
}

// SuccessResponse is returned by every mutating endpoint
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// EnqueueRequest is the body of POST /api/jobs
type EnqueueRequest struct {
	Name   string `json:"name"`
	Params []any  `json:"params"`
}

// ScheduleRequest is the body of POST /api/jobs/schedule
type ScheduleRequest struct {
	Name   string `json:"name"`
	RunAt  string `json:"run_at"`
	Params []any  `json:"params"`
}

// RescheduleRequest is the body of POST /api/workflows/{name}/reschedule
type RescheduleRequest struct {
	RunAt string `json:"run_at"`
}

func nonNilParams(params []any) []any {
	if params == nil {
		return []any{}
	}
	return params
}
