package action

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/logger"
	"github.com/nutsq/nutsdash/nuts/api"
	"github.com/nutsq/nutsdash/nuts/unify"
)

// Backend is the set of mutating nuts API calls the router dispatches to
type Backend interface {
	CancelPendingJob(ctx context.Context, name string) (api.SuccessResponse, error)
	CancelScheduledJob(ctx context.Context, name string) (api.SuccessResponse, error)
	RequestCancelRunningJob(ctx context.Context, name string) (api.SuccessResponse, error)
	ScheduleJob(ctx context.Context, name, runAt string, params []any) (api.SuccessResponse, error)
	EnqueueJob(ctx context.Context, name string, params []any) (api.SuccessResponse, error)
	TriggerWorkflow(ctx context.Context, name string) (api.SuccessResponse, error)
	CancelScheduledWorkflow(ctx context.Context, name string) (api.SuccessResponse, error)
	RescheduleWorkflow(ctx context.Context, name, runAt string) (api.SuccessResponse, error)
}

// Router issues exactly one backend call per legal action and none for an
// illegal one
type Router struct {
	backend Backend
	log     *zap.SugaredLogger
}

// NewRouter creates a Router. A nil log uses the global logger.
func NewRouter(backend Backend, log *zap.SugaredLogger) *Router {
	if log == nil {
		log = logger.ComponentLogger("action")
	}
	return &Router{backend: backend, log: log}
}

// Cancel cancels job according to its current status: pending jobs are
// deleted from the queue, scheduled jobs from the schedule, and running
// jobs get an advisory cancel request. Terminal jobs yield a
// *ProgrammingError without any network call.
func (r *Router) Cancel(ctx context.Context, job unify.UnifiedJob) (api.SuccessResponse, error) {
	if err := requireName("name", job.Name); err != nil {
		return api.SuccessResponse{}, err
	}

	op, err := Resolve(job.Status, Cancel)
	if err != nil {
		r.log.Errorw("Refusing illegal cancel",
			logger.FieldJobName, job.Name,
			logger.FieldStatus, job.Status,
			logger.FieldError, err)
		return api.SuccessResponse{}, err
	}

	var resp api.SuccessResponse
	switch op {
	case OpDeletePending:
		resp, err = r.backend.CancelPendingJob(ctx, job.Name)
	case OpDeleteScheduled:
		resp, err = r.backend.CancelScheduledJob(ctx, job.Name)
	case OpRequestCancelRunning:
		resp, err = r.backend.RequestCancelRunningJob(ctx, job.Name)
	}
	return resp, r.report(op, job.Name, err)
}

// RescheduleJob creates or replaces a scheduled run of the job name at at
func (r *Router) RescheduleJob(ctx context.Context, name string, at time.Time) (api.SuccessResponse, error) {
	if err := requireName("name", name); err != nil {
		return api.SuccessResponse{}, err
	}
	if err := requireInstant(at); err != nil {
		return api.SuccessResponse{}, err
	}

	resp, err := r.backend.ScheduleJob(ctx, name, FormatInstant(at), nil)
	return resp, r.report(OpScheduleJob, name, err)
}

// EnqueueJob asks the backend to run name now
func (r *Router) EnqueueJob(ctx context.Context, name string, params []any) (api.SuccessResponse, error) {
	if err := requireName("name", name); err != nil {
		return api.SuccessResponse{}, err
	}

	resp, err := r.backend.EnqueueJob(ctx, name, params)
	return resp, r.report(OpEnqueueJob, name, err)
}

// RescheduleWorkflow moves a workflow's next run to at
func (r *Router) RescheduleWorkflow(ctx context.Context, name string, at time.Time) (api.SuccessResponse, error) {
	if err := requireName("workflow", name); err != nil {
		return api.SuccessResponse{}, err
	}
	if err := requireInstant(at); err != nil {
		return api.SuccessResponse{}, err
	}

	resp, err := r.backend.RescheduleWorkflow(ctx, name, FormatInstant(at))
	return resp, r.report(OpRescheduleWorkflow, name, err)
}

// TriggerWorkflow runs a workflow immediately
func (r *Router) TriggerWorkflow(ctx context.Context, name string) (api.SuccessResponse, error) {
	if err := requireName("workflow", name); err != nil {
		return api.SuccessResponse{}, err
	}

	resp, err := r.backend.TriggerWorkflow(ctx, name)
	return resp, r.report(OpTriggerWorkflow, name, err)
}

// CancelScheduledWorkflow removes a workflow's scheduled run
func (r *Router) CancelScheduledWorkflow(ctx context.Context, name string) (api.SuccessResponse, error) {
	if err := requireName("workflow", name); err != nil {
		return api.SuccessResponse{}, err
	}

	resp, err := r.backend.CancelScheduledWorkflow(ctx, name)
	return resp, r.report(OpCancelScheduledWorkflow, name, err)
}

// report logs the outcome of one dispatched operation and annotates failures
func (r *Router) report(op Operation, name string, err error) error {
	if err != nil {
		r.log.Warnw("Action failed",
			logger.FieldOperation, op,
			logger.FieldJobName, name,
			logger.FieldError, err)
		return errors.WithMessagef(err, "%s %s", op, name)
	}
	r.log.Infow("Action dispatched",
		logger.FieldOperation, op,
		logger.FieldJobName, name)
	return nil
}

func requireName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}

func requireInstant(at time.Time) error {
	if at.IsZero() {
		return &ValidationError{Field: "run_at", Reason: "a date and time are required"}
	}
	return nil
}
