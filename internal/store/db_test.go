package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-etl-pipeline/internal/model"
	"go-etl-pipeline/internal/pipeline"
	"go-etl-pipeline/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func jobSpec(name string) model.PipelineJobSpec {
	return model.PipelineJobSpec{
		Name: name,
		Pipeline: map[string]any{
			"source": map[string]any{"module": "sources/static", "config": map[string]any{}},
		},
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.SaveRun(ctx, "run-1", jobSpec("first")))
	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, run.Status)
	assert.Equal(t, "first", run.Name)
	assert.Equal(t, "first", run.Spec.Name)
	assert.Contains(t, run.Spec.Pipeline, "source")

	require.NoError(t, s.UpdateRunStatus(ctx, "run-1", model.StatusRunning, nil))
	require.NoError(t, s.UpdateRunCounts(ctx, "run-1", model.RunCounts{RecordsFetched: 5, RecordsProcessed: 3}))
	require.NoError(t, s.UpdateRunStatus(ctx, "run-1", model.StatusFailed, errors.New("boom")))

	run, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, run.Status)
	assert.True(t, run.Status.Done())
	assert.Equal(t, "boom", run.Error)
	assert.Equal(t, int64(5), run.RecordsFetched)
	assert.Equal(t, int64(3), run.RecordsProcessed)
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateRunStatus(ctx, "missing", model.StatusRunning, nil), store.ErrNotFound)
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, s.SaveRun(ctx, "a", jobSpec("a")))
	require.NoError(t, s.SaveRun(ctx, "b", jobSpec("b")))
	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.SaveRun(ctx, "r", jobSpec("r")))

	require.NoError(t, s.SaveRunError(ctx, "r", "process", "loaders/file", errors.New("disk full")))
	require.NoError(t, s.SaveRunError(ctx, "r", "abort", "", nil))

	errs, err := s.GetRunErrors(ctx, "r")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "process", errs[0].Phase)
	assert.Equal(t, "loaders/file", errs[0].Step)
	assert.Equal(t, "disk full", errs[0].Message)
}

func TestObserverRecordsPhases(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.SaveRun(ctx, "r", jobSpec("r")))

	var obs pipeline.Observer = s.Observer("r")
	obs.PhaseStarted(ctx, pipeline.PhaseBegin)
	obs.PhaseFinished(ctx, pipeline.PhaseBegin, 2*time.Millisecond, nil)
	obs.PhaseStarted(ctx, pipeline.PhaseFetch)
	obs.RecordsFetched(ctx, 7)
	obs.RecordProcessed(ctx)
	obs.PhaseFinished(ctx, pipeline.PhaseFetch, time.Millisecond, errors.New("source down"))
	obs.PhaseStarted(ctx, pipeline.PhaseAbort)

	phases, err := s.GetPhaseProgress(ctx, "r")
	require.NoError(t, err)
	require.Len(t, phases, 3)
	assert.Equal(t, "begin", phases[0].Phase)
	assert.Equal(t, 2*time.Millisecond, phases[0].Duration)
	assert.NotNil(t, phases[0].FinishedAt)
	assert.Equal(t, "source down", phases[1].Error)
	assert.Equal(t, "abort", phases[2].Phase)
	assert.Nil(t, phases[2].FinishedAt)

	run, err := s.GetRun(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, int64(7), run.RecordsFetched)
}
