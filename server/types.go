package server

import (
	"time"

	"github.com/nutsq/nutsdash/nuts/api"
	"github.com/nutsq/nutsdash/nuts/unify"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ViewState describes the freshness of a view snapshot
type ViewState struct {
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Stale     bool       `json:"stale"`
	Error     string     `json:"error,omitempty"`
}

// JobsResponse is the body of GET /api/jobs and GET /api/jobs/{name}
type JobsResponse struct {
	ViewState
	Jobs   []unify.UnifiedJob   `json:"jobs"`
	Counts map[unify.Status]int `json:"counts"`
}

// WorkflowsResponse is the body of GET /api/workflows
type WorkflowsResponse struct {
	ViewState
	Workflows []unify.WorkflowSummary `json:"workflows"`
}

// WorkflowResponse is the body of GET /api/workflows/{name}
type WorkflowResponse struct {
	ViewState
	Workflow api.WorkflowStatus `json:"workflow"`
	Status   string             `json:"status"`
	Progress string             `json:"progress"`
	Actions  []string           `json:"actions"`
}

// CancelJobRequest is the body of POST /api/jobs/{name}/cancel. An empty
// status cancels the job's current non-terminal instance.
type CancelJobRequest struct {
	Status string `json:"status"`
}

// RunAtRequest carries an operator-entered date and time, either a local
// datetime-input value or an RFC 3339 instant
type RunAtRequest struct {
	RunAt    string `json:"run_at"`
	Timezone string `json:"timezone,omitempty"` // IANA name used for local values
}

// EnqueueJobRequest is the body of POST /api/jobs. Params, if set, wins
// over Args; Args is shell-style text as typed in a form field.
type EnqueueJobRequest struct {
	Name   string `json:"name"`
	Params []any  `json:"params,omitempty"`
	Args   string `json:"args,omitempty"`
}

// ViewMessage is pushed over the WebSocket on every view update
type ViewMessage struct {
	Type string `json:"type"` // "jobs" or "workflows"
	ViewState
	Data any `json:"data"`
}

// ClientMessage is sent by browsers over the WebSocket
type ClientMessage struct {
	Type string `json:"type"` // "refresh"
	View string `json:"view,omitempty"`
}
