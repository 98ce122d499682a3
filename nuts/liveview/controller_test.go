package liveview

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutsq/nutsdash/errors"
)

func TestMutate_ExactlyOneRefreshAfterSuccess(t *testing.T) {
	var calls atomic.Int32
	v := NewView("jobs", scripted(&calls, ok("rows")), Config{}, nop)

	res, err := Mutate(context.Background(), func(context.Context) (string, error) {
		assert.Zero(t, calls.Load(), "refresh must wait for the mutation to settle")
		return "cancelled", nil
	}, v)

	require.NoError(t, err)
	assert.Equal(t, "cancelled", res)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, "rows", v.Snapshot().Data)
}

func TestMutate_ExactlyOneRefreshAfterFailure(t *testing.T) {
	var calls atomic.Int32
	v := NewView("jobs", scripted(&calls, ok("rows")), Config{}, nop)
	boom := errors.New("Job 'etl-job' not found in pending queue")

	_, err := Mutate(context.Background(), func(context.Context) (struct{}, error) {
		return struct{}{}, boom
	}, v)

	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, calls.Load())
	assert.NotNil(t, v.Snapshot())
}

func TestMutate_RefreshFailureDoesNotMaskMutationResult(t *testing.T) {
	var calls atomic.Int32
	v := NewView("jobs", scripted(&calls, fail("down")), Config{}, nop)

	res, err := Mutate(context.Background(), func(context.Context) (int, error) { return 7, nil }, v)
	require.NoError(t, err)
	assert.Equal(t, 7, res)
	assert.True(t, v.Current().Stale)
}

func TestMutate_RefreshesEveryViewOnce(t *testing.T) {
	var a, b atomic.Int32
	list := NewView("workflows", scripted(&a, ok("list")), Config{}, nop)
	detail := NewView("workflow-etl", scripted(&b, ok("detail")), Config{}, nop)

	_, err := Mutate(context.Background(), func(context.Context) (int, error) { return 0, nil }, list, nil, detail)
	require.NoError(t, err)
	assert.EqualValues(t, 1, a.Load())
	assert.EqualValues(t, 1, b.Load())
}

func TestMutate_RefreshSurvivesCancelledContext(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "rows", nil
	}
	v := NewView("jobs", fetch, Config{}, nop)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := Mutate(ctx, func(context.Context) (int, error) {
		cancel()
		return 0, context.Canceled
	}, v)

	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, calls.Load())
	require.NotNil(t, v.Snapshot())
	assert.Equal(t, "rows", v.Snapshot().Data)
}

func TestMutate_PostMutationRefreshWinsOverInFlightPoll(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})

	fetch := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
			return "pending: etl-job", nil
		}
		return "empty", nil
	}
	v := NewView("jobs", fetch, Config{}, nop)

	poll := make(chan error, 1)
	go func() { poll <- v.Refresh(context.Background()) }()
	<-entered

	_, err := Mutate(context.Background(), func(context.Context) (int, error) { return 0, nil }, v)
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-poll)

	assert.Equal(t, "empty", v.Snapshot().Data)
}

func TestController_RegisterGetKeys(t *testing.T) {
	c := NewController(0, nop)
	assert.Equal(t, DefaultInterval, c.Interval())

	jobs := NewView("jobs", func(context.Context) (int, error) { return 1, nil }, Config{}, nop)
	wfs := NewView("workflows", func(context.Context) (int, error) { return 2, nil }, Config{}, nop)
	c.Register(wfs.Key(), wfs)
	c.Register(jobs.Key(), jobs)

	got, ok := c.Get("jobs")
	require.True(t, ok)
	assert.Same(t, jobs, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"jobs", "workflows"}, c.Keys())
}

func TestController_RefreshUnknownKey(t *testing.T) {
	c := NewController(time.Second, nop)
	err := c.Refresh(context.Background(), "workflow-etl")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestController_RefreshByKey(t *testing.T) {
	c := NewController(time.Second, nop)
	var calls atomic.Int32
	v := NewView("jobs", scripted(&calls, ok("rows")), Config{}, nop)
	c.Register("jobs", v)

	require.NoError(t, c.Refresh(context.Background(), "jobs"))
	assert.EqualValues(t, 1, calls.Load())
}

func TestController_StartAllStopAll(t *testing.T) {
	c := NewController(10*time.Millisecond, nop)
	var a, b atomic.Int32
	c.Register("jobs", NewView("jobs", scripted(&a, ok("rows")), Config{}, nop))

	c.StartAll()
	// registered while running starts immediately
	c.Register("workflows", NewView("workflows", scripted(&b, ok("rows")), Config{}, nop))

	assert.Eventually(t, func() bool { return a.Load() >= 2 && b.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	c.StopAll()
	for _, s := range c.Stats() {
		assert.False(t, s.Running, s.Key)
	}

	na, nb := a.Load(), b.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, na, a.Load())
	assert.Equal(t, nb, b.Load())
}

func TestController_RemoveStopsView(t *testing.T) {
	c := NewController(10*time.Millisecond, nop)
	var calls atomic.Int32
	c.Register("workflow-etl", NewView("workflow-etl", scripted(&calls, ok("rows")), Config{}, nop))
	c.StartAll()
	defer c.StopAll()

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, c.Remove("workflow-etl"))
	assert.False(t, c.Remove("workflow-etl"))

	n := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
	assert.Empty(t, c.Keys())
}

func TestController_RemoveViewOnlyRemovesSameView(t *testing.T) {
	c := NewController(time.Hour, nop)
	var calls atomic.Int32
	old := NewView("workflow-etl", scripted(&calls, ok("old")), Config{}, nop)
	replacement := NewView("workflow-etl", scripted(&calls, ok("new")), Config{}, nop)

	c.Register("workflow-etl", old)
	c.Register("workflow-etl", replacement)

	assert.False(t, c.RemoveView("workflow-etl", old))
	got, ok := c.Get("workflow-etl")
	require.True(t, ok)
	assert.Same(t, replacement, got)

	assert.True(t, c.RemoveView("workflow-etl", replacement))
	assert.Empty(t, c.Keys())
	assert.False(t, c.RemoveView("workflow-etl", replacement))
}

func TestController_SetInterval(t *testing.T) {
	c := NewController(time.Second, nop)
	jobs := NewView("jobs", func(context.Context) (int, error) { return 1, nil }, Config{Interval: time.Hour}, nop)
	c.Register("jobs", jobs)

	// registration applies the controller interval
	assert.Equal(t, time.Second, jobs.Stats().Interval)

	c.SetInterval(3 * time.Second)
	assert.Equal(t, 3*time.Second, c.Interval())
	assert.Equal(t, 3*time.Second, jobs.Stats().Interval)

	later := NewView("workflows", func(context.Context) (int, error) { return 1, nil }, Config{}, nop)
	c.Register("workflows", later)
	assert.Equal(t, 3*time.Second, later.Stats().Interval)

	stats := c.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "jobs", stats[0].Key)
	assert.Equal(t, "workflows", stats[1].Key)
}
