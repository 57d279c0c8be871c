package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-etl-pipeline/internal/pipeline"
)

func step(module any) map[string]any {
	return map[string]any{"module": module, "config": map[string]any{}}
}

func TestDecodeConfig_Errors(t *testing.T) {
	good := func() map[string]any {
		return map[string]any{
			"source":       step("sources/static"),
			"transformers": []any{step("transformers/fields")},
			"loader":       step("loaders/log"),
		}
	}

	tests := []struct {
		name   string
		mutate func(m map[string]any)
		want   string
	}{
		{"searchPaths not a list", func(m map[string]any) { m["searchPaths"] = "sources" }, "searchPaths must be an array"},
		{"searchPaths with a number", func(m map[string]any) { m["searchPaths"] = []any{"a", 1} }, "searchPaths must be an array"},
		{"missing source", func(m map[string]any) { delete(m, "source") }, "The source configuration is not valid"},
		{"source not an object", func(m map[string]any) { m["source"] = "sources/static" }, "The source configuration is not valid"},
		{"source without module", func(m map[string]any) { m["source"] = map[string]any{"config": map[string]any{}} }, "The source configuration is not valid"},
		{"source with empty module", func(m map[string]any) { m["source"] = step("") }, "The source configuration is not valid"},
		{"source with numeric module", func(m map[string]any) { m["source"] = step(42) }, "The source configuration is not valid"},
		{"source without config", func(m map[string]any) { m["source"] = map[string]any{"module": "x"} }, "The source configuration is not valid"},
		{"source with list config", func(m map[string]any) { m["source"] = map[string]any{"module": "x", "config": []any{}} }, "The source configuration is not valid"},
		{"transformers not a list", func(m map[string]any) { m["transformers"] = step("x") }, "The transformers configuration is not valid"},
		{"transformers null", func(m map[string]any) { m["transformers"] = nil }, "The transformers configuration is not valid"},
		{"one bad transformer", func(m map[string]any) { m["transformers"] = []any{step("a"), step(false)} }, "The transformers configuration is not valid"},
		{"missing loader", func(m map[string]any) { delete(m, "loader") }, "The loader configuration is not valid"},
		{"loader without config", func(m map[string]any) { m["loader"] = map[string]any{"module": "x"} }, "The loader configuration is not valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := good()
			tt.mutate(raw)
			_, err := pipeline.DecodeConfig(raw)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())

			var ce *pipeline.ConfigError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestDecodeConfig_Valid(t *testing.T) {
	st := pipeline.DeclareSource("inline", nil, nil)
	raw := map[string]any{
		"searchPaths": []any{"sources", "loaders"},
		"source":      step(st),
		"loader": map[string]any{
			"module": "log",
			"config": map[string]any{"level": "info"},
		},
	}

	cfg, err := pipeline.DecodeConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"sources", "loaders"}, cfg.SearchPaths)
	assert.Same(t, st, cfg.Source.Type)
	assert.Empty(t, cfg.Transformers, "absent transformers means none")
	assert.Equal(t, "log", cfg.Loader.Module)
	assert.Equal(t, "info", cfg.Loader.Config["level"])

	// decoded config is detached from the raw document
	raw["loader"].(map[string]any)["config"].(map[string]any)["level"] = "debug"
	assert.Equal(t, "info", cfg.Loader.Config["level"])
}

func TestNewRunner_ValidatesStructure(t *testing.T) {
	st := pipeline.DeclareSource("s", nil, nil)
	lt := pipeline.DeclareLoader("l", nil, nil)

	tests := []struct {
		name string
		cfg  pipeline.Config
		want error
	}{
		{"empty", pipeline.Config{}, pipeline.ErrSourceConfig},
		{"module and type", pipeline.Config{
			Source: pipeline.StepSpec{Module: "s", Type: st, Config: map[string]any{}},
			Loader: spec(lt),
		}, pipeline.ErrSourceConfig},
		{"nil source config", pipeline.Config{
			Source: pipeline.StepSpec{Type: st},
			Loader: spec(lt),
		}, pipeline.ErrSourceConfig},
		{"bad transformer", pipeline.Config{
			Source:       spec(st),
			Transformers: []pipeline.StepSpec{{}},
			Loader:       spec(lt),
		}, pipeline.ErrTransformersConfig},
		{"missing loader", pipeline.Config{Source: spec(st)}, pipeline.ErrLoaderConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipeline.NewRunner(nil, tt.cfg)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewRunner_CopiesConfig(t *testing.T) {
	var seen map[string]any
	st := pipeline.DeclareSource("s", nil, func(_ context.Context, _ pipeline.Logger, c map[string]any) (pipeline.Source, error) {
		seen = c
		return &spySource{spy: spy{calls: &calls{}}}, nil
	})
	lt := loaderType("l", &spyLoader{spy: spy{calls: &calls{}}})

	cfg := pipeline.Config{
		Source: pipeline.StepSpec{Type: st, Config: map[string]any{"path": "a.csv", "nested": map[string]any{"k": "v"}}},
		Loader: spec(lt),
	}
	r, err := pipeline.NewRunner(nil, cfg)
	require.NoError(t, err)

	cfg.Source.Config["path"] = "b.csv"
	cfg.Source.Config["nested"].(map[string]any)["k"] = "changed"
	cfg.Transformers = append(cfg.Transformers, module("late"))

	require.NoError(t, r.LoadPipeline(context.Background()))
	assert.Equal(t, "a.csv", seen["path"])
	assert.Equal(t, "v", seen["nested"].(map[string]any)["k"])
	assert.Empty(t, r.TransformerSteps())
}
