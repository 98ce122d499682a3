package api

import (
	"context"
	"net/http"
)

// ListPendingJobs returns GET /api/jobs/pending
func (c *Client) ListPendingJobs(ctx context.Context) ([]PendingJob, error) {
	var jobs []PendingJob
	if err := c.do(ctx, http.MethodGet, "/api/jobs/pending", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListRunningJobs returns GET /api/jobs/running
func (c *Client) ListRunningJobs(ctx context.Context) ([]RunningJob, error) {
	var jobs []RunningJob
	if err := c.do(ctx, http.MethodGet, "/api/jobs/running", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListCompletedJobs returns GET /api/jobs/completed
func (c *Client) ListCompletedJobs(ctx context.Context) ([]CompletedJob, error) {
	var jobs []CompletedJob
	if err := c.do(ctx, http.MethodGet, "/api/jobs/completed", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListScheduledJobs returns GET /api/jobs/scheduled
func (c *Client) ListScheduledJobs(ctx context.Context) ([]ScheduledJob, error) {
	var jobs []ScheduledJob
	if err := c.do(ctx, http.MethodGet, "/api/jobs/scheduled", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// EnqueueJob asks the backend to run name now with params.
// A nil params slice is sent as [].
func (c *Client) EnqueueJob(ctx context.Context, name string, params []any) (SuccessResponse, error) {
	var out SuccessResponse
	body := EnqueueRequest{Name: name, Params: nonNilParams(params)}
	err := c.do(ctx, http.MethodPost, "/api/jobs", body, &out)
	return out, err
}

// ScheduleJob creates or replaces a scheduled run of name at runAt (ISO-8601)
func (c *Client) ScheduleJob(ctx context.Context, name, runAt string, params []any) (SuccessResponse, error) {
	var out SuccessResponse
	body := ScheduleRequest{Name: name, RunAt: runAt, Params: nonNilParams(params)}
	err := c.do(ctx, http.MethodPost, "/api/jobs/schedule", body, &out)
	return out, err
}

// CancelPendingJob removes name from the pending queue
func (c *Client) CancelPendingJob(ctx context.Context, name string) (SuccessResponse, error) {
	var out SuccessResponse
	err := c.do(ctx, http.MethodDelete, "/api/jobs/pending/"+escape(name), nil, &out)
	return out, err
}

// CancelScheduledJob removes name from the scheduled set
func (c *Client) CancelScheduledJob(ctx context.Context, name string) (SuccessResponse, error) {
	var out SuccessResponse
	err := c.do(ctx, http.MethodDelete, "/api/jobs/scheduled/"+escape(name), nil, &out)
	return out, err
}

// RequestCancelRunningJob asks the backend to stop a running job. Success
// means the request was accepted, not that the job has stopped.
func (c *Client) RequestCancelRunningJob(ctx context.Context, name string) (SuccessResponse, error) {
	var out SuccessResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/running/"+escape(name)+"/cancel", nil, &out)
	return out, err
}
