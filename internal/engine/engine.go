// Package engine runs pipelines on behalf of the CLI and the API, recording
// each run in the store and in metrics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"go-etl-pipeline/internal/metrics"
	"go-etl-pipeline/internal/model"
	"go-etl-pipeline/internal/pipeline"
	"go-etl-pipeline/internal/store"
)

// Engine builds a fresh Runner for every run.
type Engine struct {
	logger      *slog.Logger
	resolver    pipeline.Resolver
	store       *store.Store
	metrics     *metrics.Collector
	searchPaths []string

	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore records run history in s.
func WithStore(s *store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithMetrics reports runs to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithSearchPaths appends paths to every pipeline's own search paths.
func WithSearchPaths(paths []string) Option {
	return func(e *Engine) { e.searchPaths = append([]string(nil), paths...) }
}

// New creates an Engine resolving step identifiers with resolver.
func New(logger *slog.Logger, resolver pipeline.Resolver, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{logger: logger, resolver: resolver}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) withSearchPaths(cfg pipeline.Config) pipeline.Config {
	if len(e.searchPaths) == 0 {
		return cfg
	}
	paths := make([]string, 0, len(cfg.SearchPaths)+len(e.searchPaths))
	paths = append(paths, cfg.SearchPaths...)
	cfg.SearchPaths = append(paths, e.searchPaths...)
	return cfg
}

func (e *Engine) newRunner(logger *slog.Logger, cfg pipeline.Config, obs ...pipeline.Observer) (*pipeline.Runner, error) {
	opts := []pipeline.Option{pipeline.WithResolver(e.resolver)}
	for _, o := range obs {
		opts = append(opts, pipeline.WithObserver(o))
	}
	return pipeline.NewRunner(logger, e.withSearchPaths(cfg), opts...)
}

// Validate resolves, validates and instantiates every step without
// beginning any of them.
func (e *Engine) Validate(ctx context.Context, cfg pipeline.Config) error {
	r, err := e.newRunner(e.logger, cfg)
	if err != nil {
		return err
	}
	return r.LoadPipeline(ctx)
}

// Execute runs cfg to completion under runID. The run must already be saved
// when the engine has a store.
func (e *Engine) Execute(ctx context.Context, runID string, cfg pipeline.Config) (pipeline.Stats, error) {
	logger := e.logger.With("run_id", runID)

	var obs []pipeline.Observer
	if e.store != nil {
		obs = append(obs, e.store.Observer(runID))
	}
	if e.metrics != nil {
		obs = append(obs, e.metrics)
	}
	r, err := e.newRunner(logger, cfg, obs...)
	if err != nil {
		e.finish(ctx, logger, runID, pipeline.Stats{}, err)
		return pipeline.Stats{}, err
	}

	e.setStatus(ctx, logger, runID, model.StatusRunning, nil)
	if e.metrics != nil {
		e.metrics.RunStarted()
	}
	err = r.Run(ctx)
	stats := r.Stats()
	if e.metrics != nil {
		status := model.StatusCompleted
		if err != nil {
			status = model.StatusFailed
		}
		e.metrics.RunFinished(string(status))
	}
	e.finish(ctx, logger, runID, stats, err)
	return stats, err
}

// finish stores the outcome of a run. Store failures are logged only.
func (e *Engine) finish(ctx context.Context, logger *slog.Logger, runID string, stats pipeline.Stats, runErr error) {
	if e.store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	counts := model.RunCounts{RecordsFetched: stats.RecordsFetched, RecordsProcessed: stats.RecordsProcessed}
	if err := e.store.UpdateRunCounts(ctx, runID, counts); err != nil {
		logger.Error("failed to store run counts", "error", err)
	}
	if runErr == nil {
		e.setStatus(ctx, logger, runID, model.StatusCompleted, nil)
		return
	}

	phase, step := "construct", ""
	var pe *pipeline.PhaseError
	if errors.As(runErr, &pe) {
		phase, step = pe.Phase.String(), pe.Step
	}
	if err := e.store.SaveRunError(ctx, runID, phase, step, runErr); err != nil {
		logger.Error("failed to store run error", "error", err)
	}
	e.setStatus(ctx, logger, runID, model.StatusFailed, runErr)
}

func (e *Engine) setStatus(ctx context.Context, logger *slog.Logger, runID string, status model.RunStatus, cause error) {
	if e.store == nil {
		return
	}
	if err := e.store.UpdateRunStatus(context.WithoutCancel(ctx), runID, status, cause); err != nil {
		logger.Error("failed to update run status", "status", status, "error", err)
	}
}

// Submit decodes spec, saves it as a pending run and executes it in the
// background. Structural errors are returned before anything is saved.
func (e *Engine) Submit(ctx context.Context, spec model.PipelineJobSpec) (string, error) {
	cfg, err := pipeline.DecodeConfig(spec.Pipeline)
	if err != nil {
		return "", err
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	runID := uuid.NewString()
	if e.store != nil {
		if err := e.store.SaveRun(ctx, runID, spec); err != nil {
			return "", fmt.Errorf("save run: %w", err)
		}
	}

	runCtx := context.WithoutCancel(ctx)
	e.wg.Go(func() {
		if _, err := e.Execute(runCtx, runID, cfg); err != nil {
			e.logger.Error("pipeline run failed", "run_id", runID, "error", err)
			return
		}
		e.logger.Info("pipeline run completed", "run_id", runID)
	})
	return runID, nil
}

// Wait blocks until every submitted run has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}
