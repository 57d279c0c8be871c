package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// loadCall is one LoadPipeline in flight. Concurrent callers wait on done
// and share err.
type loadCall struct {
	done chan struct{}
	err  error
}

// LoadPipeline loads the source, every transformer and the loader
// concurrently. Transformer order follows the configuration. If any load
// fails the first error is returned and no slot is populated. Calls made
// while a load is in flight wait for it and return its result.
func (r *Runner) LoadPipeline(ctx context.Context) error {
	r.mu.Lock()
	switch {
	case r.state == StateLoaded:
		r.mu.Unlock()
		return nil
	case r.state != StateUnloaded:
		r.mu.Unlock()
		return ErrRunnerDone
	}
	if call := r.loading; call != nil {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &loadCall{done: make(chan struct{})}
	r.loading = call
	r.mu.Unlock()

	call.err = r.loadSteps(ctx)

	r.mu.Lock()
	r.loading = nil
	r.mu.Unlock()
	close(call.done)
	return call.err
}

func (r *Runner) loadSteps(ctx context.Context) error {
	var (
		g            errgroup.Group
		source       Step
		transformers = make([]Step, len(r.cfg.Transformers))
		loader       Step
	)

	g.Go(func() error {
		s, err := r.LoadStep(ctx, RoleSource, r.cfg.Source)
		source = s
		return err
	})
	for i, spec := range r.cfg.Transformers {
		g.Go(func() error {
			s, err := r.LoadStep(ctx, RoleTransformer, spec)
			transformers[i] = s
			return err
		})
	}
	g.Go(func() error {
		s, err := r.LoadStep(ctx, RoleLoader, r.cfg.Loader)
		loader = s
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = source.(Source)
	r.transformers = make([]Transformer, len(transformers))
	for i, t := range transformers {
		r.transformers[i] = t.(Transformer)
	}
	r.loader = loader.(Loader)
	r.names = make([]string, 0, len(transformers)+2)
	r.names = append(r.names, r.cfg.Source.Name())
	for _, spec := range r.cfg.Transformers {
		r.names = append(r.names, spec.Name())
	}
	r.names = append(r.names, r.cfg.Loader.Name())
	r.state = StateLoaded
	return nil
}
