package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// progressEvery is how often, in processed records, progress is logged.
const progressEvery = 10

// Runner drives one pipeline through Load, Begin, Fetch, Process and End,
// aborting every step when a phase after Load fails. A Runner runs once.
// Only State and Stats are safe to call while Run is in progress.
type Runner struct {
	logger    Logger
	resolver  Resolver
	observers observers
	cfg       Config

	mu           sync.Mutex
	started      bool
	loading      *loadCall
	state        State
	source       Source
	transformers []Transformer
	loader       Loader
	names        []string

	fetched   atomic.Int64
	processed atomic.Int64
}

// Option configures a Runner.
type Option func(*Runner)

// WithResolver sets the resolver used for Module identifiers. The default is
// DefaultRegistry.
func WithResolver(res Resolver) Option {
	return func(r *Runner) {
		if res != nil {
			r.resolver = res
		}
	}
}

// WithObserver adds an observer. It may be given more than once.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// NewRunner validates cfg and returns an unloaded runner holding a private
// copy of it. A nil logger discards output.
func NewRunner(logger Logger, cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{
		logger:   logger,
		resolver: DefaultRegistry,
		cfg:      cfg.clone(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns a copy of the runner's configuration.
func (r *Runner) Config() Config { return r.cfg.clone() }

// State reports where the runner is in its lifecycle.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stats returns the current counters.
func (r *Runner) Stats() Stats {
	return Stats{
		State:            r.State(),
		RecordsFetched:   r.fetched.Load(),
		RecordsProcessed: r.processed.Load(),
	}
}

// Steps returns the live steps in the order source, transformers, loader.
// It is nil until the pipeline is loaded.
func (r *Runner) Steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stepsLocked()
}

func (r *Runner) stepsLocked() []Step {
	if r.source == nil {
		return nil
	}
	steps := make([]Step, 0, len(r.transformers)+2)
	steps = append(steps, r.source)
	for _, t := range r.transformers {
		steps = append(steps, t)
	}
	return append(steps, r.loader)
}

// SourceStep returns the loaded source, or nil.
func (r *Runner) SourceStep() Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

// TransformerSteps returns the loaded transformers in configured order.
func (r *Runner) TransformerSteps() []Transformer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transformers == nil {
		return nil
	}
	return append([]Transformer(nil), r.transformers...)
}

// LoaderStep returns the loaded loader, or nil.
func (r *Runner) LoaderStep() Loader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loader
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run executes the pipeline. On failure it returns a single *PhaseError for
// the phase that failed, after every step was aborted when the failure came
// after Load.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.started || r.state.Terminal() {
		r.mu.Unlock()
		return ErrRunnerDone
	}
	r.started = true
	loaded := r.state == StateLoaded
	r.mu.Unlock()

	r.logger.Info("beginning pipeline", "pipeline", r.cfg.String())

	if !loaded {
		err := r.phase(ctx, PhaseLoad, func() error { return r.LoadPipeline(ctx) })
		if err != nil {
			r.setState(StateFailed)
			r.logger.Error("could not load pipeline", "error", err)
			return loadError(err)
		}
	}

	r.mu.Lock()
	steps, names := r.stepsLocked(), append([]string(nil), r.names...)
	r.mu.Unlock()

	r.logger.Info("calling begin")
	err := r.phase(ctx, PhaseBegin, func() error {
		return fanOut(PhaseBegin, steps, names, stepCall(ctx, Step.Begin))
	})
	if err != nil {
		r.logger.Error("could not initialize steps", "error", err)
		return r.fail(ctx, steps, names, err)
	}
	r.setState(StateBegun)

	r.logger.Info("fetching records from source")
	var records []Record
	err = r.phase(ctx, PhaseFetch, func() error {
		recs, err := safeFetch(ctx, r.source)
		if err != nil {
			return &PhaseError{Phase: PhaseFetch, Step: names[0], Err: err}
		}
		records = recs
		return nil
	})
	if err != nil {
		r.logger.Error("could not fetch records", "error", err)
		return r.fail(ctx, steps, names, err)
	}
	r.fetched.Store(int64(len(records)))
	r.observers.RecordsFetched(ctx, len(records))
	r.setState(StateFetched)

	r.logger.Info("transforming and loading records", "records", len(records))
	err = r.phase(ctx, PhaseProcess, func() error {
		var g errgroup.Group
		for _, rec := range records {
			g.Go(func() error { return r.processRecord(ctx, names, rec) })
		}
		return g.Wait()
	})
	if err != nil {
		r.logger.Error("could not process pipeline", "error", err)
		return r.fail(ctx, steps, names, err)
	}
	r.setState(StateProcessed)

	r.logger.Info("calling end")
	err = r.phase(ctx, PhaseEnd, func() error {
		return fanOut(PhaseEnd, steps, names, stepCall(ctx, Step.End))
	})
	if err != nil {
		r.logger.Error("could not end steps", "error", err)
		return r.fail(ctx, steps, names, err)
	}
	r.setState(StateComplete)

	r.logger.Info("pipeline complete", "stats", r.Stats())
	return nil
}

// processRecord feeds one record through the transformer chain and into the
// loader. The processed counter moves only after a successful load.
func (r *Runner) processRecord(ctx context.Context, names []string, rec Record) error {
	cur := rec
	for i, t := range r.transformers {
		var out Record
		err := safeCall(func() error {
			var err error
			out, err = t.Transform(ctx, cur)
			return err
		})
		if err != nil {
			return &PhaseError{Phase: PhaseProcess, Step: names[i+1], Err: err}
		}
		cur = out
	}

	if err := safeCall(func() error { return r.loader.LoadRecord(ctx, cur) }); err != nil {
		return &PhaseError{Phase: PhaseProcess, Step: names[len(names)-1], Err: err}
	}

	n := r.processed.Add(1)
	r.observers.RecordProcessed(ctx)
	if n%progressEvery == 0 {
		r.logger.Info("records processed", "count", n)
	}
	return nil
}

// fail aborts every step and returns the triggering error unchanged. Abort
// errors are logged and never returned.
func (r *Runner) fail(ctx context.Context, steps []Step, names []string, cause error) error {
	r.abort(ctx, steps, names)
	r.setState(StateFailed)
	return cause
}

func (r *Runner) abort(ctx context.Context, steps []Step, names []string) {
	actx := context.WithoutCancel(ctx)
	r.logger.Error("aborting", "steps", len(steps))

	_ = r.phase(actx, PhaseAbort, func() error {
		return fanOutAll(steps, names, stepCall(actx, Step.Abort), func(step string, err error) {
			r.logger.Error("abort failed", "step", step, "error", err)
		})
	})
}

// phase times fn and reports it to the observers.
func (r *Runner) phase(ctx context.Context, p Phase, fn func() error) error {
	r.observers.PhaseStarted(ctx, p)
	start := time.Now()
	err := fn()
	r.observers.PhaseFinished(ctx, p, time.Since(start), err)
	r.logger.Debug("phase finished", "phase", p.String(), "elapsed", time.Since(start), "error", err)
	return err
}

func safeFetch(ctx context.Context, src Source) (records []Record, err error) {
	err = safeCall(func() error {
		var err error
		records, err = src.GetRecords(ctx)
		return err
	})
	return records, err
}

// loadError wraps a load failure as a *PhaseError naming the step that
// could not be loaded.
func loadError(err error) error {
	pe := &PhaseError{Phase: PhaseLoad, Err: err}
	var se *StepError
	if errors.As(err, &se) {
		pe.Step = se.Step
	}
	return pe
}
