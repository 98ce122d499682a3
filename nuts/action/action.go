// Package action decides which control actions are legal for a job or
// workflow in its current state and dispatches each to the single backend
// operation it maps to.
package action

import (
	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/nuts/unify"
)

// Action is an operator intent
type Action string

const (
	Cancel     Action = "cancel"
	Trigger    Action = "trigger"
	Reschedule Action = "reschedule"
)

// Operation is a concrete backend mutation
type Operation string

const (
	OpDeletePending           Operation = "delete-pending"
	OpDeleteScheduled         Operation = "delete-scheduled"
	OpRequestCancelRunning    Operation = "request-cancel-running"
	OpScheduleJob             Operation = "schedule-job"
	OpRescheduleWorkflow      Operation = "reschedule-workflow"
	OpTriggerWorkflow         Operation = "trigger-workflow"
	OpCancelScheduledWorkflow Operation = "cancel-scheduled-workflow"
	OpEnqueueJob              Operation = "enqueue-job"
)

// cancelOps is total over the cancellable statuses and has no entry for
// terminal ones
var cancelOps = map[unify.Status]Operation{
	unify.StatusPending:   OpDeletePending,
	unify.StatusScheduled: OpDeleteScheduled,
	unify.StatusRunning:   OpRequestCancelRunning,
}

// Resolve maps a job's status and a requested action to the backend
// operation that performs it. Illegal combinations return a *ProgrammingError.
func Resolve(status unify.Status, action Action) (Operation, error) {
	if !unify.IsValidStatus(string(status)) {
		return "", newProgrammingError(action, status, "unknown job status %q", status)
	}

	switch action {
	case Cancel:
		op, ok := cancelOps[status]
		if !ok {
			return "", newProgrammingError(action, status, "cancel is not offered for %s jobs", status)
		}
		return op, nil
	case Reschedule:
		return OpScheduleJob, nil
	case Trigger:
		return "", newProgrammingError(action, status, "trigger applies to workflows, not jobs")
	default:
		return "", newProgrammingError(action, status, "unknown action %q", action)
	}
}

// Available lists the actions an operator may be offered for a job
func Available(status unify.Status) []Action {
	var actions []Action
	if _, ok := cancelOps[status]; ok {
		actions = append(actions, Cancel)
	}
	if unify.IsValidStatus(string(status)) {
		actions = append(actions, Reschedule)
	}
	return actions
}

// CanCancel reports whether cancel is offered for status
func CanCancel(status unify.Status) bool {
	_, ok := cancelOps[status]
	return ok
}

// WorkflowActions lists the actions offered for a workflow with the given
// display status. Only a scheduled workflow can be cancelled.
func WorkflowActions(displayStatus string) []Action {
	actions := []Action{Trigger, Reschedule}
	if displayStatus == unify.WorkflowStatusScheduled {
		actions = append(actions, Cancel)
	}
	return actions
}

// ProgrammingError reports a router call that the caller should never have
// made, such as cancelling a completed job. It wraps an assertion failure.
type ProgrammingError struct {
	Action Action
	Status unify.Status
	cause  error
}

func newProgrammingError(action Action, status unify.Status, format string, args ...interface{}) *ProgrammingError {
	return &ProgrammingError{
		Action: action,
		Status: status,
		cause:  errors.AssertionFailedf(format, args...),
	}
}

func (e *ProgrammingError) Error() string {
	return "illegal action: " + e.cause.Error()
}

func (e *ProgrammingError) Unwrap() error {
	return e.cause
}

// IsProgrammingError reports whether err is or wraps a *ProgrammingError
func IsProgrammingError(err error) bool {
	var pe *ProgrammingError
	return errors.As(err, &pe)
}

// ValidationError rejects operator input before any network call
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return e.Field + ": " + e.Reason
	}
	return e.Field + ": " + e.Reason + " (got " + e.Value + ")"
}

// IsValidationError reports whether err is or wraps a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
