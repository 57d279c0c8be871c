package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// fanOut calls fn on every step at once and waits for all of them. A failure
// does not cancel the siblings; the first failure observed is returned as a
// *PhaseError naming the step.
func fanOut(phase Phase, steps []Step, names []string, fn func(Step) error) error {
	var g errgroup.Group
	for i, s := range steps {
		g.Go(func() error {
			if err := safeCall(func() error { return fn(s) }); err != nil {
				return &PhaseError{Phase: phase, Step: names[i], Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

// fanOutAll is fanOut for the abort phase: every error is reported to
// onErr and all of them are joined.
func fanOutAll(steps []Step, names []string, fn func(Step) error, onErr func(step string, err error)) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i, s := range steps {
		wg.Go(func() {
			if err := safeCall(func() error { return fn(s) }); err != nil {
				onErr(names[i], err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", names[i], err))
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// safeCall runs fn and converts a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("step panicked: %v", p)
		}
	}()
	return fn()
}

// stepCall binds a lifecycle method to ctx.
func stepCall(ctx context.Context, m func(Step, context.Context) error) func(Step) error {
	return func(s Step) error { return m(s, ctx) }
}
