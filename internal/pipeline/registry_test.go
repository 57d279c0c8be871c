package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-etl-pipeline/internal/pipeline"
)

func TestRegistry_Resolve(t *testing.T) {
	reg := pipeline.NewRegistry()
	csv := pipeline.DeclareSource("csv", nil, nil)
	reg.Register("sources/csv", csv)

	got, err := reg.Resolve(context.Background(), "sources/csv", nil)
	require.NoError(t, err)
	assert.Same(t, csv, got)

	got, err = reg.Resolve(context.Background(), "csv", []string{"loaders", "sources"})
	require.NoError(t, err)
	assert.Same(t, csv, got)

	got, err = reg.Resolve(context.Background(), "./sources/../sources/csv", nil)
	require.NoError(t, err)
	assert.Same(t, csv, got)

	_, err = reg.Resolve(context.Background(), "csv", []string{"loaders"})
	require.ErrorIs(t, err, pipeline.ErrUnknownStep)
}

func TestRegistry_ResolveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pipeline.NewRegistry().Resolve(ctx, "x", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_Types(t *testing.T) {
	reg := pipeline.NewRegistry()
	reg.Register("loaders/log", pipeline.DeclareLoader("log", nil, nil))
	reg.Register("sources/static", pipeline.DeclareSource("static", nil, nil))

	assert.Equal(t, []pipeline.TypeInfo{
		{Identifier: "loaders/log", Name: "log", Role: "RecordLoader"},
		{Identifier: "sources/static", Name: "static", Role: "RecordSource"},
	}, reg.Types())

	assert.Panics(t, func() { reg.Register("nil", nil) })
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{"csv", "a/csv", "b/csv"}, pipeline.Candidates("csv", []string{"a", "b"}))
	assert.Equal(t, []string{"/abs/csv"}, pipeline.Candidates("/abs/csv", []string{"a"}))
}

func TestChainResolver(t *testing.T) {
	empty := pipeline.NewRegistry()
	full := pipeline.NewRegistry()
	st := pipeline.DeclareSource("s", nil, nil)
	full.Register("s", st)

	errBroken := errors.New("broken resolver")
	broken := pipeline.ResolverFunc(func(context.Context, string, []string) (*pipeline.StepType, error) {
		return nil, errBroken
	})

	got, err := pipeline.ChainResolver{empty, broken, full}.Resolve(context.Background(), "s", nil)
	require.NoError(t, err)
	assert.Same(t, st, got)

	_, err = pipeline.ChainResolver{empty, broken}.Resolve(context.Background(), "s", nil)
	require.ErrorIs(t, err, errBroken)
	require.ErrorIs(t, err, pipeline.ErrUnknownStep)

	_, err = pipeline.ChainResolver{}.Resolve(context.Background(), "s", nil)
	require.ErrorIs(t, err, pipeline.ErrUnknownStep)
}

func TestRoleAndPhaseNames(t *testing.T) {
	assert.Equal(t, "RecordTransformer", pipeline.RoleTransformer.String())
	assert.Equal(t, "PipelineStep", pipeline.RoleStep.String())
	assert.False(t, pipeline.Role(0).Valid())
	assert.Equal(t, "process", pipeline.PhaseProcess.String())
	assert.True(t, pipeline.StateFailed.Terminal())
	assert.False(t, pipeline.StateBegun.Terminal())
}
