package unify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nutstest "github.com/nutsq/nutsdash/internal/testing"
	"github.com/nutsq/nutsdash/internal/util"
	"github.com/nutsq/nutsdash/nuts/api"
)

func etlStatus() api.WorkflowStatus {
	return api.WorkflowStatus{
		Name:     "etl",
		Schedule: "0 3 * * *",
		Status:   util.Ptr("running"),
		Jobs: []api.WorkflowJobStatus{
			{Name: "extract", Status: util.Ptr("completed")},
			{Name: "transform", Status: util.Ptr("running"), Requires: []string{"extract"}},
			{Name: "load", Requires: []string{"transform"}},
		},
	}
}

func TestProgress(t *testing.T) {
	ws := etlStatus()

	completed, total := Progress(ws)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 3, total)
	assert.InDelta(t, 1.0/3.0, ProgressRatio(ws), 1e-9)
	assert.Equal(t, "1/3", ProgressLabel(ws))
}

func TestProgress_NoJobs(t *testing.T) {
	ws := api.WorkflowStatus{Name: "empty"}
	assert.Equal(t, "-", ProgressLabel(ws))
	assert.Zero(t, ProgressRatio(ws))
}

func TestDisplayStatus(t *testing.T) {
	assert.Equal(t, "running", DisplayStatus(etlStatus()))
	assert.Equal(t, "scheduled", DisplayStatus(api.WorkflowStatus{}))
}

func TestSummarize_StubScenario(t *testing.T) {
	summaries := Summarize([]api.WorkflowListing{
		api.NewStubListing(api.ScheduledWorkflow{Name: "nightly", NextRun: "2024-01-02T03:00:00Z"}),
	})

	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, "nightly", s.Name)
	assert.Equal(t, "scheduled", s.Status, "stub status defaults to scheduled")
	assert.Equal(t, "-", s.Progress)
	assert.False(t, s.HasJobs, "no job breakdown for a stub")
	require.NotNil(t, s.NextRun)
	assert.Equal(t, "2024-01-02T03:00:00Z", *s.NextRun)
}

func TestSummarize_FullEntry(t *testing.T) {
	ws := etlStatus()
	ws.Status = nil

	summaries := Summarize([]api.WorkflowListing{api.NewStatusListing(ws)})
	require.Len(t, summaries, 1)
	assert.Equal(t, "scheduled", summaries[0].Status, "null status defaults to scheduled")
	assert.Equal(t, "1/3", summaries[0].Progress)
	assert.Equal(t, "0 3 * * *", summaries[0].Schedule)
	assert.True(t, summaries[0].HasJobs)
	assert.Nil(t, summaries[0].NextRun)
}

func TestUnifier_WorkflowPassthrough(t *testing.T) {
	fb := nutstest.NewFakeBackend(t)
	fb.SetWorkflows(
		api.NewStatusListing(etlStatus()),
		api.NewStubListing(api.ScheduledWorkflow{Name: "nightly", NextRun: "2024-01-02T03:00:00Z"}),
	)
	u := newUnifier(t, fb)
	ctx := context.Background()

	listings, err := u.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	_, full := listings[0].Status()
	assert.True(t, full)
	_, full = listings[1].Status()
	assert.False(t, full)

	ws, err := u.GetWorkflow(ctx, "etl")
	require.NoError(t, err)
	assert.Equal(t, etlStatus(), ws)

	_, err = u.GetWorkflow(ctx, "nightly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Workflow 'nightly' not found")
}
