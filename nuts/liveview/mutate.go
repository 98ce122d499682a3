package liveview

import (
	"context"
	"time"

	"github.com/nutsq/nutsdash/logger"
)

// Refresher is the type-erased face of a View used by Mutate and Controller
type Refresher interface {
	Key() string
	Refresh(ctx context.Context) error
	Start()
	Stop()
	SetInterval(d time.Duration)
	Stats() Stats
}

// Mutate runs mutation to completion and then forces exactly one refresh of
// each view, whatever the mutation's outcome. The forced refreshes ignore
// cancellation of ctx so a view is never left showing pre-mutation state.
// The mutation's result and error are returned; refresh failures are only
// recorded on the views.
func Mutate[R any](ctx context.Context, mutation func(context.Context) (R, error), views ...Refresher) (R, error) {
	res, err := mutation(ctx)
	if err != nil {
		logger.ComponentLogger("liveview").Warnw("Mutation failed, refreshing affected views",
			logger.FieldCount, len(views),
			logger.FieldError, err)
	}

	refreshCtx := context.WithoutCancel(ctx)
	for _, v := range views {
		if v == nil {
			continue
		}
		// failures are recorded and logged by the view
		_ = v.Refresh(refreshCtx)
	}
	return res, err
}
