package dashboard

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutsq/nutsdash/errors"
	nutstest "github.com/nutsq/nutsdash/internal/testing"
	"github.com/nutsq/nutsdash/nuts/action"
	"github.com/nutsq/nutsdash/nuts/api"
	"github.com/nutsq/nutsdash/nuts/unify"
)

func newService(t *testing.T) (*Service, *nutstest.FakeBackend) {
	t.Helper()
	fb := nutstest.NewFakeBackend(t)
	c, err := api.New(api.Config{BaseURL: fb.URL})
	require.NoError(t, err)
	return New(c, Config{Interval: time.Hour}, zap.NewNop().Sugar()), fb
}

func strp(s string) *string { return &s }

func listCalls(fb *nutstest.FakeBackend) int {
	return fb.CallCount(http.MethodGet, "/api/jobs/pending") +
		fb.CallCount(http.MethodGet, "/api/jobs/running") +
		fb.CallCount(http.MethodGet, "/api/jobs/completed") +
		fb.CallCount(http.MethodGet, "/api/jobs/scheduled")
}

func TestNew_RegistersViews(t *testing.T) {
	s, _ := newService(t)
	assert.Equal(t, []string{KeyJobs, KeyWorkflows}, s.Controller().Keys())
	assert.Equal(t, KeyJobs, s.Jobs().Key())
	assert.Equal(t, KeyWorkflows, s.Workflows().Key())
	assert.Equal(t, "workflow-etl", WorkflowKey("etl"))
}

func TestJobsView_NightlyReportScenario(t *testing.T) {
	s, fb := newService(t)
	fb.SetScheduled(api.ScheduledJob{Name: "nightly-report", NextRun: "2024-01-02T03:00:00Z"})
	fb.SetCompleted(
		api.CompletedJob{Name: "nightly-report", Success: true},
		api.CompletedJob{Name: "nightly-report", Success: false, Error: strp("timeout")},
	)

	require.NoError(t, s.Jobs().Refresh(context.Background()))
	jobs := unify.Instances(s.Jobs().Snapshot().Data, "nightly-report")

	require.Len(t, jobs, 3)
	assert.Equal(t, unify.StatusScheduled, jobs[0].Status)
	assert.Equal(t, unify.StatusCompleted, jobs[1].Status)
	assert.Equal(t, unify.StatusFailed, jobs[2].Status)
}

func TestCancelJob_MutateThenRefetch(t *testing.T) {
	s, fb := newService(t)
	fb.SetPending(api.PendingJob{Name: "etl-job"})
	ctx := context.Background()

	require.NoError(t, s.Jobs().Refresh(ctx))
	require.Len(t, s.Jobs().Snapshot().Data, 1)
	fb.ResetCalls()

	resp, err := s.CancelJob(ctx, s.Jobs().Snapshot().Data[0])
	require.NoError(t, err)
	assert.True(t, resp.Success)

	assert.Equal(t, 1, fb.CallCount(http.MethodDelete, "/api/jobs/pending/etl-job"))
	assert.Equal(t, 4, listCalls(fb), "exactly one refetch of the four collections")
	assert.Empty(t, s.Jobs().Snapshot().Data)
}

func TestCancelJob_FailureStillRefetchesOnce(t *testing.T) {
	s, fb := newService(t)
	ctx := context.Background()

	// job already left the pending queue
	_, err := s.CancelJob(ctx, unify.UnifiedJob{Name: "etl-job", Status: unify.StatusPending})
	require.Error(t, err)
	re, ok := api.IsRequestError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, re.StatusCode)

	assert.Equal(t, 4, listCalls(fb))
	assert.NotNil(t, s.Jobs().Snapshot())
}

func TestCancelJob_TerminalRefreshesWithoutMutation(t *testing.T) {
	s, fb := newService(t)

	_, err := s.CancelJob(context.Background(), unify.UnifiedJob{Name: "report", Status: unify.StatusCompleted})
	require.Error(t, err)
	assert.True(t, action.IsProgrammingError(err))
	assert.Empty(t, fb.MutationCalls())
	assert.Equal(t, 4, listCalls(fb))
}

func TestScheduleAndEnqueue(t *testing.T) {
	s, fb := newService(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)

	_, err := s.ScheduleJob(ctx, "nightly-report", at)
	require.NoError(t, err)
	_, err = s.EnqueueJob(ctx, "etl-job", []any{"eu"})
	require.NoError(t, err)

	jobs := s.Jobs().Snapshot().Data
	counts := unify.CountByStatus(jobs)
	assert.Equal(t, 1, counts[unify.StatusScheduled])
	assert.Equal(t, 1, counts[unify.StatusPending])
	assert.Len(t, fb.MutationCalls(), 2)
}

func TestWorkflowOperations_RefreshListingAndOpenDetail(t *testing.T) {
	s, fb := newService(t)
	fb.SetWorkflows(api.NewStubListing(api.ScheduledWorkflow{Name: "etl", NextRun: "2024-01-02T03:00:00Z"}))
	fb.SetWorkflowDetail(api.WorkflowStatus{Name: "etl", Schedule: "0 3 * * *", Jobs: []api.WorkflowJobStatus{}})
	ctx := context.Background()

	detail := s.Workflow("etl")
	assert.Same(t, detail, s.Workflow("etl"))
	assert.Contains(t, s.Controller().Keys(), "workflow-etl")

	_, err := s.TriggerWorkflow(ctx, "etl")
	require.NoError(t, err)
	assert.Equal(t, 1, fb.CallCount(http.MethodGet, "/api/workflows"))
	assert.Equal(t, 1, fb.CallCount(http.MethodGet, "/api/workflows/etl"))
	require.NotNil(t, detail.Snapshot())
	assert.Equal(t, "0 3 * * *", detail.Snapshot().Data.Schedule)

	_, err = s.RescheduleWorkflow(ctx, "etl", time.Date(2024, 1, 5, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	summaries := unify.Summarize(s.Workflows().Snapshot().Data)
	require.Len(t, summaries, 1)
	require.NotNil(t, summaries[0].NextRun)
	assert.Equal(t, "2024-01-05T03:00:00.000Z", *summaries[0].NextRun)

	_, err = s.CancelScheduledWorkflow(ctx, "etl")
	require.NoError(t, err)
	assert.Empty(t, s.Workflows().Snapshot().Data)
	assert.Equal(t, 3, fb.CallCount(http.MethodGet, "/api/workflows/etl"))
}

func TestWorkflowOperations_ClosedDetailNotRefreshed(t *testing.T) {
	s, fb := newService(t)
	s.Workflow("etl")
	s.CloseWorkflow("etl")
	s.CloseWorkflow("etl") // no-op

	_, err := s.TriggerWorkflow(context.Background(), "etl")
	require.NoError(t, err)
	assert.Zero(t, fb.CallCount(http.MethodGet, "/api/workflows/etl"))
	assert.NotContains(t, s.Controller().Keys(), "workflow-etl")

	_, ok := s.OpenWorkflow("etl")
	assert.False(t, ok)
}

func TestCloseIdleWorkflows(t *testing.T) {
	s, fb := newService(t)
	ttl := s.cfg.DetailIdleTTL

	stale := s.Workflow("etl")
	time.Sleep(20 * time.Millisecond)
	mid := time.Now()
	s.Workflow("backup")

	assert.Empty(t, s.CloseIdleWorkflows(mid))

	closed := s.CloseIdleWorkflows(mid.Add(ttl - time.Millisecond))
	assert.Equal(t, []string{"etl"}, closed)
	assert.NotContains(t, s.Controller().Keys(), "workflow-etl")
	assert.Contains(t, s.Controller().Keys(), "workflow-backup")

	// a closed view is no longer refreshed by workflow operations
	_, err := s.TriggerWorkflow(context.Background(), "etl")
	require.NoError(t, err)
	assert.Zero(t, fb.CallCount(http.MethodGet, "/api/workflows/etl"))

	// reading again opens a fresh view
	assert.NotSame(t, stale, s.Workflow("etl"))
}

func TestIdleWorkflowView_StopsPolling(t *testing.T) {
	fb := nutstest.NewFakeBackend(t)
	c, err := api.New(api.Config{BaseURL: fb.URL})
	require.NoError(t, err)
	s := New(c, Config{Interval: 10 * time.Millisecond, DetailIdleTTL: 50 * time.Millisecond}, zap.NewNop().Sugar())
	fb.SetWorkflowDetail(api.WorkflowStatus{Name: "etl", Jobs: []api.WorkflowJobStatus{}})

	s.Start()
	defer s.Stop()

	s.Workflow("etl")
	assert.Eventually(t, func() bool {
		return fb.CallCount(http.MethodGet, "/api/workflows/etl") > 0
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, open := s.OpenWorkflow("etl")
		return !open
	}, 2*time.Second, 5*time.Millisecond)

	// let the removal finish stopping an in-flight refresh
	time.Sleep(30 * time.Millisecond)
	assert.NotContains(t, s.Controller().Keys(), "workflow-etl")

	n := fb.CallCount(http.MethodGet, "/api/workflows/etl")
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, n, fb.CallCount(http.MethodGet, "/api/workflows/etl"))

	// the shared views keep polling
	assert.Contains(t, s.Controller().Keys(), KeyJobs)
	assert.Contains(t, s.Controller().Keys(), KeyWorkflows)
}

func TestWorkflowView_ClosedWhenWorkflowDisappears(t *testing.T) {
	s, fb := newService(t)
	fb.SetWorkflowDetail(api.WorkflowStatus{Name: "etl", Jobs: []api.WorkflowJobStatus{}})

	v := s.Workflow("etl")
	require.NoError(t, v.Refresh(context.Background()))

	fb.Fail(http.MethodGet, "/api/workflows/etl", http.StatusNotFound, `{"detail":"Workflow 'etl' not found"}`)
	err := v.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	assert.Eventually(t, func() bool {
		_, open := s.OpenWorkflow("etl")
		return !open
	}, 2*time.Second, 5*time.Millisecond)
	assert.NotContains(t, s.Controller().Keys(), "workflow-etl")
}

func TestWorkflowView_OtherErrorsKeepView(t *testing.T) {
	s, fb := newService(t)
	fb.Fail(http.MethodGet, "/api/workflows/etl", http.StatusInternalServerError, `{"detail":"redis down"}`)

	v := s.Workflow("etl")
	require.Error(t, v.Refresh(context.Background()))

	time.Sleep(20 * time.Millisecond)
	got, open := s.OpenWorkflow("etl")
	require.True(t, open)
	assert.Same(t, v, got)
}

func TestCloseWorkflowView_LeavesReopenedView(t *testing.T) {
	s, _ := newService(t)

	old := s.Workflow("etl")
	s.CloseWorkflow("etl")
	reopened := s.Workflow("etl")
	require.NotSame(t, old, reopened)

	// a late close aimed at the old view must not touch the new one
	assert.False(t, s.closeWorkflowView("etl", old, "idle"))
	got, open := s.OpenWorkflow("etl")
	require.True(t, open)
	assert.Same(t, reopened, got)

	registered, ok := s.Controller().Get("workflow-etl")
	require.True(t, ok)
	assert.Same(t, reopened, registered)
}

func TestStartStop_PollsAndOpensRunningDetail(t *testing.T) {
	s, fb := newService(t)
	fb.SetWorkflowDetail(api.WorkflowStatus{Name: "etl", Jobs: []api.WorkflowJobStatus{}})

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return s.Jobs().Snapshot() != nil && s.Workflows().Snapshot() != nil
	}, 2*time.Second, 10*time.Millisecond)

	detail := s.Workflow("etl")
	assert.Eventually(t, func() bool { return detail.Snapshot() != nil }, 2*time.Second, 10*time.Millisecond)
}

func TestSetInterval(t *testing.T) {
	s, _ := newService(t)
	s.SetInterval(2 * time.Second)
	for _, st := range s.Controller().Stats() {
		assert.Equal(t, 2*time.Second, st.Interval, st.Key)
	}
}

func TestJobsView_BackendDownKeepsSnapshot(t *testing.T) {
	s, fb := newService(t)
	fb.SetRunning(api.RunningJob{Name: "etl-job", WorkerID: "w1"})
	ctx := context.Background()

	require.NoError(t, s.Jobs().Refresh(ctx))
	fb.Fail(http.MethodGet, "/api/jobs/running", http.StatusInternalServerError, `{"detail":"redis down"}`)

	err := s.Jobs().Refresh(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")

	cur := s.Jobs().Current()
	assert.True(t, cur.Stale)
	require.Len(t, cur.Snapshot.Data, 1)
	assert.Equal(t, unify.StatusRunning, cur.Snapshot.Data[0].Status)
}

func TestCurrent_FetchesOnce(t *testing.T) {
	s, fb := newService(t)
	fb.SetPending(api.PendingJob{Name: "report"})

	cur, err := Current(context.Background(), s.Jobs())
	require.NoError(t, err)
	require.NotNil(t, cur.Snapshot)
	assert.Len(t, cur.Snapshot.Data, 1)

	// a loaded view is served without another fetch
	_, err = Current(context.Background(), s.Jobs())
	require.NoError(t, err)
	assert.Equal(t, 4, listCalls(fb))
}

func TestCurrent_ErrorOnlyWithoutSnapshot(t *testing.T) {
	s, fb := newService(t)
	fb.Fail(http.MethodGet, "/api/workflows", http.StatusInternalServerError, `{"detail":"redis down"}`)

	_, err := Current(context.Background(), s.Workflows())
	require.Error(t, err)

	fb.ClearFailures()
	require.NoError(t, s.Workflows().Refresh(context.Background()))
	fb.Fail(http.MethodGet, "/api/workflows", http.StatusInternalServerError, `{"detail":"redis down"}`)
	require.Error(t, s.Workflows().Refresh(context.Background()))

	cur, err := Current(context.Background(), s.Workflows())
	require.NoError(t, err)
	assert.True(t, cur.Stale)
}

func TestCancelTarget(t *testing.T) {
	s, fb := newService(t)
	fb.SetScheduled(api.ScheduledJob{Name: "nightly-report", NextRun: "2024-01-02T03:00:00Z"})
	fb.SetCompleted(api.CompletedJob{Name: "nightly-report", Success: false})
	fb.SetRunning(api.RunningJob{Name: "etl-job", WorkerID: "w1"})

	job, err := s.CancelTarget(context.Background(), "nightly-report", "")
	require.NoError(t, err)
	assert.Equal(t, unify.StatusScheduled, job.Status)

	job, err = s.CancelTarget(context.Background(), "etl-job", "")
	require.NoError(t, err)
	assert.Equal(t, unify.StatusRunning, job.Status)
	assert.Equal(t, "w1", job.WorkerID)

	// explicit status is trusted without a lookup
	calls := listCalls(fb)
	job, err = s.CancelTarget(context.Background(), "report", "pending")
	require.NoError(t, err)
	assert.Equal(t, unify.UnifiedJob{Name: "report", Status: unify.StatusPending}, job)
	assert.Equal(t, calls, listCalls(fb))

	_, err = s.CancelTarget(context.Background(), "report", "paused")
	assert.True(t, action.IsValidationError(err))

	fb.SetScheduled()
	require.NoError(t, s.Jobs().Refresh(context.Background()))
	_, err = s.CancelTarget(context.Background(), "nightly-report", "")
	assert.True(t, errors.IsNotFoundError(err))
}
