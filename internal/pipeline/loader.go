package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// LoadStep resolves spec, checks that its type fulfils the expected role,
// validates its configuration and creates a live instance. Every failure is
// logged before it is returned.
func (r *Runner) LoadStep(ctx context.Context, expected Role, spec StepSpec) (Step, error) {
	if !expected.Valid() {
		r.logger.Error("expected role needs to be a step role contract", "role", expected.String())
		return nil, ErrInvalidRole
	}
	if (spec.Module == "") == (spec.Type == nil) {
		r.logger.Error("invalid type for module parameter", "module", spec.Module, "type", spec.Type.String())
		return nil, ErrInvalidSpecifier
	}

	name := spec.Name()
	t := spec.Type
	if t == nil {
		resolved, err := r.resolver.Resolve(ctx, spec.Module, r.cfg.SearchPaths)
		if err == nil && resolved == nil {
			err = fmt.Errorf("%w: %s", ErrUnknownStep, spec.Module)
		}
		if err != nil {
			r.logger.Error(fmt.Sprintf("could not load step, %s.", name), "error", err, "search_paths", r.cfg.SearchPaths)
			return nil, &StepError{Kind: ErrStepLoad, Step: name, Err: err}
		}
		t = resolved
	}
	r.logger.Debug("resolved step", "step", name, "type", t.Name, "role", t.Role.String())

	if !t.Role.satisfies(expected) {
		err := &StepError{Kind: ErrTypeMismatch, Step: name, Expected: expected}
		r.logger.Error(err.Error(), "declared_role", t.Role.String())
		return nil, err
	}

	if errs := validateConfig(t, spec.Config); len(errs) > 0 {
		r.logger.Error(fmt.Sprintf("step %s configuration errors detected", name), "count", len(errs))
		for _, e := range errs {
			r.logger.Error("configuration error", "step", name, "error", e)
		}
		return nil, &StepError{Kind: ErrInvalidConfiguration, Step: name, Err: errors.Join(errs...)}
	}

	inst, err := getInstance(ctx, t, r.logger, spec.Config)
	if err == nil && inst == nil {
		err = errors.New("factory returned no instance")
	}
	if err == nil && !t.Role.implements(inst) {
		err = fmt.Errorf("instance %T does not implement %s", inst, t.Role)
	}
	if err != nil {
		r.logger.Error(fmt.Sprintf("could not create instance of step, %s.", name), "error", err)
		return nil, &StepError{Kind: ErrInstantiation, Step: name, Err: err}
	}
	return inst, nil
}

// validateConfig runs t.ValidateConfig, turning a panic into an error.
func validateConfig(t *StepType, config map[string]any) (errs []error) {
	if t.ValidateConfig == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			errs = []error{fmt.Errorf("validation panicked: %v", p)}
		}
	}()
	for _, e := range t.ValidateConfig(config) {
		if e != nil {
			errs = append(errs, e)
		}
	}
	return errs
}

func getInstance(ctx context.Context, t *StepType, logger Logger, config map[string]any) (step Step, err error) {
	if t.GetInstance == nil {
		return nil, errors.New("step type has no factory")
	}
	defer func() {
		if p := recover(); p != nil {
			step, err = nil, fmt.Errorf("factory panicked: %v", p)
		}
	}()
	return t.GetInstance(ctx, logger, config)
}
