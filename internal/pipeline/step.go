package pipeline

import (
	"context"
	"fmt"
)

// Record is an opaque payload moved from the source, through the
// transformers, to the loader. The runner never looks inside it.
type Record = any

// Logger is the leveled logging surface the runner and the steps rely on.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Step is the lifecycle every pipeline component shares. The runner calls
// Begin once, then zero or more role operations, then exactly one of End or
// Abort.
type Step interface {
	// Begin prepares the step before any record is handled.
	Begin(ctx context.Context) error
	// End is called after every record was processed successfully.
	End(ctx context.Context) error
	// Abort is called instead of End when any phase after loading failed.
	Abort(ctx context.Context) error
}

// Source produces the full record set for a run.
type Source interface {
	Step
	GetRecords(ctx context.Context) ([]Record, error)
}

// Transformer converts one record into another. It must not mutate its input.
type Transformer interface {
	Step
	Transform(ctx context.Context, record Record) (Record, error)
}

// Loader stores a fully transformed record.
type Loader interface {
	Step
	LoadRecord(ctx context.Context, record Record) error
}

// Role names the contract a step type fulfils.
type Role int

const (
	roleInvalid Role = iota
	// RoleStep accepts any step type regardless of its role operation.
	RoleStep
	RoleSource
	RoleTransformer
	RoleLoader
)

func (r Role) String() string {
	switch r {
	case RoleStep:
		return "PipelineStep"
	case RoleSource:
		return "RecordSource"
	case RoleTransformer:
		return "RecordTransformer"
	case RoleLoader:
		return "RecordLoader"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r denotes a role contract.
func (r Role) Valid() bool {
	return r >= RoleStep && r <= RoleLoader
}

// satisfies reports whether a type declared with role r may fill a slot
// expecting role expected.
func (r Role) satisfies(expected Role) bool {
	if !r.Valid() {
		return false
	}
	return expected == RoleStep || r == expected
}

// implements reports whether the live instance exposes the operation of role.
func (r Role) implements(step Step) bool {
	switch r {
	case RoleStep:
		return step != nil
	case RoleSource:
		_, ok := step.(Source)
		return ok
	case RoleTransformer:
		_, ok := step.(Transformer)
		return ok
	case RoleLoader:
		_, ok := step.(Loader)
		return ok
	}
	return false
}

// ValidateFunc checks a step configuration and returns every problem found.
// It must not have side effects.
type ValidateFunc func(config map[string]any) []error

// FactoryFunc builds a live, unbegun step instance.
type FactoryFunc func(ctx context.Context, logger Logger, config map[string]any) (Step, error)

// StepType is a resolved step component: the static half of the contract.
type StepType struct {
	// Name identifies the type in diagnostics.
	Name string
	// Role is the contract the type declares it fulfils.
	Role Role
	// ValidateConfig is optional; nil accepts every configuration.
	ValidateConfig ValidateFunc
	// GetInstance creates a new instance owned by a single runner.
	GetInstance FactoryFunc
}

func (t *StepType) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

// DeclareSource binds a typed source factory to a StepType.
func DeclareSource(name string, validate ValidateFunc, factory func(ctx context.Context, logger Logger, config map[string]any) (Source, error)) *StepType {
	return &StepType{
		Name:           name,
		Role:           RoleSource,
		ValidateConfig: validate,
		GetInstance: func(ctx context.Context, logger Logger, config map[string]any) (Step, error) {
			s, err := factory(ctx, logger, config)
			if err != nil || s == nil {
				return nil, err
			}
			return s, nil
		},
	}
}

// DeclareTransformer binds a typed transformer factory to a StepType.
func DeclareTransformer(name string, validate ValidateFunc, factory func(ctx context.Context, logger Logger, config map[string]any) (Transformer, error)) *StepType {
	return &StepType{
		Name:           name,
		Role:           RoleTransformer,
		ValidateConfig: validate,
		GetInstance: func(ctx context.Context, logger Logger, config map[string]any) (Step, error) {
			t, err := factory(ctx, logger, config)
			if err != nil || t == nil {
				return nil, err
			}
			return t, nil
		},
	}
}

// DeclareLoader binds a typed loader factory to a StepType.
func DeclareLoader(name string, validate ValidateFunc, factory func(ctx context.Context, logger Logger, config map[string]any) (Loader, error)) *StepType {
	return &StepType{
		Name:           name,
		Role:           RoleLoader,
		ValidateConfig: validate,
		GetInstance: func(ctx context.Context, logger Logger, config map[string]any) (Step, error) {
			l, err := factory(ctx, logger, config)
			if err != nil || l == nil {
				return nil, err
			}
			return l, nil
		},
	}
}
