package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/nuts/unify"
)

func TestResolve_CancelIsTotalOverActionableStatuses(t *testing.T) {
	tests := []struct {
		status unify.Status
		want   Operation
	}{
		{unify.StatusPending, OpDeletePending},
		{unify.StatusScheduled, OpDeleteScheduled},
		{unify.StatusRunning, OpRequestCancelRunning},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			op, err := Resolve(tt.status, Cancel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, op)
		})
	}
}

func TestResolve_CancelTerminalIsProgrammingError(t *testing.T) {
	for _, status := range []unify.Status{unify.StatusCompleted, unify.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			op, err := Resolve(status, Cancel)
			require.Error(t, err)
			assert.Empty(t, op)
			assert.True(t, IsProgrammingError(err))
			assert.True(t, errors.HasAssertionFailure(err))

			var pe *ProgrammingError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, Cancel, pe.Action)
			assert.Equal(t, status, pe.Status)
		})
	}
}

func TestResolve_Reschedule(t *testing.T) {
	for _, status := range unify.AllStatuses {
		op, err := Resolve(status, Reschedule)
		require.NoError(t, err)
		assert.Equal(t, OpScheduleJob, op)
	}
}

func TestResolve_Illegal(t *testing.T) {
	tests := []struct {
		name   string
		status unify.Status
		action Action
	}{
		{"trigger a job", unify.StatusPending, Trigger},
		{"unknown action", unify.StatusPending, Action("pause")},
		{"unknown status", unify.Status("active"), Cancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.status, tt.action)
			assert.True(t, IsProgrammingError(err))
		})
	}
}

func TestAvailable(t *testing.T) {
	assert.Equal(t, []Action{Cancel, Reschedule}, Available(unify.StatusPending))
	assert.Equal(t, []Action{Cancel, Reschedule}, Available(unify.StatusRunning))
	assert.Equal(t, []Action{Reschedule}, Available(unify.StatusCompleted))
	assert.Equal(t, []Action{Reschedule}, Available(unify.StatusFailed))
	assert.Empty(t, Available(unify.Status("bogus")))

	assert.True(t, CanCancel(unify.StatusScheduled))
	assert.False(t, CanCancel(unify.StatusFailed))
}

func TestWorkflowActions(t *testing.T) {
	assert.Equal(t, []Action{Trigger, Reschedule, Cancel}, WorkflowActions("scheduled"))
	assert.Equal(t, []Action{Trigger, Reschedule}, WorkflowActions("running"))
	assert.Equal(t, []Action{Trigger, Reschedule}, WorkflowActions("failed"))
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "run_at", Value: "tomorrow", Reason: "bad format"}
	assert.Equal(t, "run_at: bad format (got tomorrow)", err.Error())
	assert.True(t, IsValidationError(errors.Wrap(err, "reschedule")))
	assert.False(t, IsValidationError(errors.New("plain")))
}
