package pipeline

import (
	"errors"
	"fmt"
)

// ConfigError reports a structurally invalid pipeline configuration. Its
// message is fixed per offending section.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

var (
	ErrSearchPaths        = &ConfigError{msg: "searchPaths must be an array"}
	ErrSourceConfig       = &ConfigError{msg: "The source configuration is not valid"}
	ErrTransformersConfig = &ConfigError{msg: "The transformers configuration is not valid"}
	ErrLoaderConfig       = &ConfigError{msg: "The loader configuration is not valid"}
)

var (
	ErrInvalidRole          = errors.New("expected role needs to be a step role contract")
	ErrInvalidSpecifier     = errors.New("invalid type for module parameter")
	ErrStepLoad             = errors.New("could not load step")
	ErrTypeMismatch         = errors.New("step type mismatch")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInstantiation        = errors.New("could not create step instance")
	ErrRunnerDone           = errors.New("pipeline runner has already run")
)

// StepError is returned by the step loader. Kind is one of ErrStepLoad,
// ErrTypeMismatch, ErrInvalidConfiguration or ErrInstantiation.
type StepError struct {
	Kind     error
	Step     string
	Expected Role
	Err      error
}

func (e *StepError) Error() string {
	switch e.Kind {
	case ErrStepLoad:
		return fmt.Sprintf("could not load step, %s.", e.Step)
	case ErrTypeMismatch:
		return fmt.Sprintf("%s does not match expected type of %s", e.Step, e.Expected)
	case ErrInvalidConfiguration:
		return fmt.Sprintf("invalid configuration for step %s", e.Step)
	case ErrInstantiation:
		if e.Err != nil {
			return fmt.Sprintf("could not create instance of step, %s: %v", e.Step, e.Err)
		}
		return fmt.Sprintf("could not create instance of step, %s", e.Step)
	}
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// PhaseError is the single error a failed Run reports for a lifecycle phase.
// It unwraps to the step's own error.
type PhaseError struct {
	Phase Phase
	Step  string
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s phase failed at step %s: %v", e.Phase, e.Step, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
