package script

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/GoCodeAlone/yaegi/interp"
	"github.com/GoCodeAlone/yaegi/stdlib"

	"go-etl-pipeline/internal/pipeline"
)

// exports holds the functions a step script defines. Role functions are
// mutually exclusive; the lifecycle hooks are optional.
type exports struct {
	getRecords func(context.Context) ([]any, error)
	transform  func(context.Context, any) (any, error)
	loadRecord func(context.Context, any) error

	begin func(context.Context) error
	end   func(context.Context) error
	abort func(context.Context) error

	validateConfig func(map[string]any) []error
	configure      func(map[string]any) error
}

// role reports the contract implied by the role functions the script
// defines.
func (e *exports) role() (pipeline.Role, error) {
	var roles []pipeline.Role
	if e.getRecords != nil {
		roles = append(roles, pipeline.RoleSource)
	}
	if e.transform != nil {
		roles = append(roles, pipeline.RoleTransformer)
	}
	if e.loadRecord != nil {
		roles = append(roles, pipeline.RoleLoader)
	}
	switch len(roles) {
	case 0:
		return 0, fmt.Errorf("script defines none of GetRecords, Transform or LoadRecord")
	case 1:
		return roles[0], nil
	default:
		return 0, fmt.Errorf("script defines more than one of GetRecords, Transform or LoadRecord")
	}
}

// evaluate runs src in a fresh interpreter and binds its exported functions.
func evaluate(src string) (*exports, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib symbols: %w", err)
	}
	if err := safeEval(i, src); err != nil {
		return nil, fmt.Errorf("failed to evaluate source: %w", err)
	}

	e := &exports{}
	var errs []error
	bind(i, "GetRecords", &e.getRecords, &errs)
	bind(i, "Transform", &e.transform, &errs)
	bind(i, "LoadRecord", &e.loadRecord, &errs)
	bind(i, "Begin", &e.begin, &errs)
	bind(i, "End", &e.end, &errs)
	bind(i, "Abort", &e.abort, &errs)
	bind(i, "ValidateConfig", &e.validateConfig, &errs)
	bind(i, "Configure", &e.configure, &errs)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return e, nil
}

func safeEval(i *interp.Interpreter, src string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, err = i.Eval(src)
	return err
}

// bind looks up step.<name> and stores it in dst when it has the expected
// signature. An undefined symbol leaves dst nil; a wrong signature is
// reported.
func bind[F any](i *interp.Interpreter, name string, dst *F, errs *[]error) {
	v, err := lookup(i, PackageName+"."+name)
	if err != nil || !v.IsValid() || v.Kind() != reflect.Func {
		return
	}
	fn, ok := v.Interface().(F)
	if !ok {
		*errs = append(*errs, fmt.Errorf("%s has signature %s, want %T", name, v.Type(), *dst))
		return
	}
	*dst = fn
}

func lookup(i *interp.Interpreter, sym string) (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return i.Eval(sym)
}

// scriptStep adapts an evaluated script to pipeline.Step. Calls into one
// interpreter are serialized and panics become errors.
type scriptStep struct {
	name string
	fns  *exports
	mu   sync.Mutex
}

func (s *scriptStep) call(op string, fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("script %s: %s panicked: %v", s.name, op, r)
		}
	}()
	return fn()
}

func (s *scriptStep) hook(ctx context.Context, op string, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return s.call(op, func() error { return fn(ctx) })
}

func (s *scriptStep) Begin(ctx context.Context) error { return s.hook(ctx, "Begin", s.fns.begin) }
func (s *scriptStep) End(ctx context.Context) error   { return s.hook(ctx, "End", s.fns.end) }
func (s *scriptStep) Abort(ctx context.Context) error { return s.hook(ctx, "Abort", s.fns.abort) }

type scriptSource struct{ *scriptStep }

func (s scriptSource) GetRecords(ctx context.Context) (records []pipeline.Record, err error) {
	err = s.call("GetRecords", func() error {
		records, err = s.fns.getRecords(ctx)
		return err
	})
	return records, err
}

type scriptTransformer struct{ *scriptStep }

func (s scriptTransformer) Transform(ctx context.Context, rec pipeline.Record) (out pipeline.Record, err error) {
	err = s.call("Transform", func() error {
		out, err = s.fns.transform(ctx, rec)
		return err
	})
	return out, err
}

type scriptLoader struct{ *scriptStep }

func (s scriptLoader) LoadRecord(ctx context.Context, rec pipeline.Record) error {
	return s.call("LoadRecord", func() error { return s.fns.loadRecord(ctx, rec) })
}

// newStep wraps fns in the adapter for role.
func newStep(name string, role pipeline.Role, fns *exports) pipeline.Step {
	base := &scriptStep{name: name, fns: fns}
	switch role {
	case pipeline.RoleSource:
		return scriptSource{base}
	case pipeline.RoleTransformer:
		return scriptTransformer{base}
	case pipeline.RoleLoader:
		return scriptLoader{base}
	}
	return base
}
