package pipeline

import (
	"context"
	"time"
)

// Observer receives lifecycle notifications from a Runner. Calls for the
// process phase arrive from many goroutines at once.
type Observer interface {
	PhaseStarted(ctx context.Context, phase Phase)
	PhaseFinished(ctx context.Context, phase Phase, elapsed time.Duration, err error)
	RecordsFetched(ctx context.Context, n int)
	RecordProcessed(ctx context.Context)
}

type observers []Observer

func (o observers) PhaseStarted(ctx context.Context, phase Phase) {
	for _, ob := range o {
		ob.PhaseStarted(ctx, phase)
	}
}

func (o observers) PhaseFinished(ctx context.Context, phase Phase, elapsed time.Duration, err error) {
	for _, ob := range o {
		ob.PhaseFinished(ctx, phase, elapsed, err)
	}
}

func (o observers) RecordsFetched(ctx context.Context, n int) {
	for _, ob := range o {
		ob.RecordsFetched(ctx, n)
	}
}

func (o observers) RecordProcessed(ctx context.Context) {
	for _, ob := range o {
		ob.RecordProcessed(ctx)
	}
}
