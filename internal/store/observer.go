package store

import (
	"context"
	"time"

	"go-etl-pipeline/internal/model"
	"go-etl-pipeline/internal/pipeline"
)

// RunObserver writes phase progress of one run to the store. Write failures
// are logged and never fail the run.
type RunObserver struct {
	store *Store
	runID string
}

// Observer returns a pipeline.Observer recording progress for runID.
func (s *Store) Observer(runID string) *RunObserver {
	return &RunObserver{store: s, runID: runID}
}

func (o *RunObserver) PhaseStarted(ctx context.Context, phase pipeline.Phase) {
	if err := o.store.StartPhase(context.WithoutCancel(ctx), o.runID, phase.String()); err != nil {
		o.store.logger.Error("failed to record phase start", "run_id", o.runID, "phase", phase, "error", err)
	}
}

func (o *RunObserver) PhaseFinished(ctx context.Context, phase pipeline.Phase, elapsed time.Duration, err error) {
	ctx = context.WithoutCancel(ctx)
	if e := o.store.FinishPhase(ctx, o.runID, phase.String(), elapsed, err); e != nil {
		o.store.logger.Error("failed to record phase end", "run_id", o.runID, "phase", phase, "error", e)
	}
}

func (o *RunObserver) RecordsFetched(ctx context.Context, n int) {
	counts := model.RunCounts{RecordsFetched: int64(n)}
	if err := o.store.UpdateRunCounts(context.WithoutCancel(ctx), o.runID, counts); err != nil {
		o.store.logger.Error("failed to record fetched count", "run_id", o.runID, "error", err)
	}
}

// RecordProcessed is a no-op; the final count is stored when the run ends.
func (o *RunObserver) RecordProcessed(context.Context) {}
