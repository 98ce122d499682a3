package api

import (
	"context"
	"net/http"
)

// ListWorkflows returns GET /api/workflows. Entries are full statuses or
// stubs; use WorkflowListing.Status to tell them apart.
func (c *Client) ListWorkflows(ctx context.Context) ([]WorkflowListing, error) {
	var listings []WorkflowListing
	if err := c.do(ctx, http.MethodGet, "/api/workflows", nil, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// GetWorkflow returns the full status of one workflow
func (c *Client) GetWorkflow(ctx context.Context, name string) (WorkflowStatus, error) {
	var ws WorkflowStatus
	err := c.do(ctx, http.MethodGet, "/api/workflows/"+escape(name), nil, &ws)
	return ws, err
}

// TriggerWorkflow asks the backend to run a workflow immediately
func (c *Client) TriggerWorkflow(ctx context.Context, name string) (SuccessResponse, error) {
	var out SuccessResponse
	err := c.do(ctx, http.MethodPost, "/api/workflows/"+escape(name)+"/trigger", nil, &out)
	return out, err
}

// CancelScheduledWorkflow removes a workflow's scheduled run
func (c *Client) CancelScheduledWorkflow(ctx context.Context, name string) (SuccessResponse, error) {
	var out SuccessResponse
	err := c.do(ctx, http.MethodDelete, "/api/workflows/"+escape(name)+"/scheduled", nil, &out)
	return out, err
}

// RescheduleWorkflow moves a workflow's next run to runAt (ISO-8601)
func (c *Client) RescheduleWorkflow(ctx context.Context, name, runAt string) (SuccessResponse, error) {
	var out SuccessResponse
	err := c.do(ctx, http.MethodPost, "/api/workflows/"+escape(name)+"/reschedule", RescheduleRequest{RunAt: runAt}, &out)
	return out, err
}
