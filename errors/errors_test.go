package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWithHint(t *testing.T) {
	err := WithHint(New("connection refused"), "is the scheduler running?")

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "is the scheduler running?", hints[0])
}

func TestAssertionFailure(t *testing.T) {
	err := AssertionFailedf("cancel on terminal status %q", "completed")
	assert.True(t, HasAssertionFailure(err))
	assert.True(t, HasAssertionFailure(Wrap(err, "router")))
	assert.False(t, HasAssertionFailure(New("plain")))
}

func TestSentinels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"wrapped not found", Wrap(ErrNotFound, "workflow nightly"), IsNotFoundError, true},
		{"plain error is not not-found", New("boom"), IsNotFoundError, false},
		{"nil is not not-found", nil, IsNotFoundError, false},
		{"formatted invalid request", NewInvalidRequestError("bad status %q", "x"), IsInvalidRequestError, true},
		{"wrapped timeout", Wrapf(ErrTimeout, "after %s", "10s"), IsTimeoutError, true},
		{"timeout is not invalid request", ErrTimeout, IsInvalidRequestError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.Nil(t, WithDetail(nil, "detail"))
}

func ExampleWrap() {
	baseErr := New("connection refused")
	err := Wrap(baseErr, "failed to list pending jobs")
	fmt.Println(err)
	// Output: failed to list pending jobs: connection refused
}
