// Package script resolves pipeline steps from Go source files interpreted at
// run time.
//
// A step script declares package step and exports exactly one of
//
//	func GetRecords(ctx context.Context) ([]any, error)
//	func Transform(ctx context.Context, record any) (any, error)
//	func LoadRecord(ctx context.Context, record any) error
//
// and optionally Begin, End and Abort (func(context.Context) error),
// ValidateConfig (func(map[string]any) []error) and Configure
// (func(map[string]any) error).
package script

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go-etl-pipeline/internal/pipeline"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithAllowedPackages overrides the default import allow-list.
func WithAllowedPackages(pkgs map[string]bool) Option {
	return func(r *Resolver) {
		r.allowed = pkgs
	}
}

// WithRoot resolves relative identifiers against dir instead of the working
// directory.
func WithRoot(dir string) Option {
	return func(r *Resolver) {
		r.root = dir
	}
}

// Resolver implements pipeline.Resolver for step scripts on disk.
type Resolver struct {
	allowed map[string]bool
	root    string
}

// NewResolver creates a Resolver with optional configuration.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{allowed: AllowedPackages}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the StepType of the first candidate file for identifier
// that validates and evaluates. A candidate that exists but fails is skipped;
// if no candidate succeeds, the failures are joined.
func (r *Resolver) Resolve(ctx context.Context, identifier string, searchPaths []string) (*pipeline.StepType, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var errs []error
	for _, candidate := range pipeline.Candidates(identifier, searchPaths) {
		file := r.file(candidate)
		src, err := os.ReadFile(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", file, err))
			continue
		}
		t, err := r.compile(identifier, string(src))
		if err != nil {
			errs = append(errs, fmt.Errorf("script %s: %w", file, err))
			continue
		}
		return t, nil
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, fmt.Errorf("%w: no script found for %s", pipeline.ErrUnknownStep, identifier)
}

func (r *Resolver) file(candidate string) string {
	p := filepath.FromSlash(candidate)
	if !strings.HasSuffix(p, ".go") {
		p += ".go"
	}
	if r.root != "" && !filepath.IsAbs(p) {
		p = filepath.Join(r.root, p)
	}
	return p
}

// compile checks src and evaluates it once to learn its role. The probe
// interpreter also serves ValidateConfig; every instance gets its own.
func (r *Resolver) compile(name, src string) (*pipeline.StepType, error) {
	if err := ValidateSource(src, r.allowed); err != nil {
		return nil, err
	}
	probe, err := evaluate(src)
	if err != nil {
		return nil, err
	}
	role, err := probe.role()
	if err != nil {
		return nil, err
	}

	t := &pipeline.StepType{
		Name: name,
		Role: role,
		GetInstance: func(_ context.Context, _ pipeline.Logger, config map[string]any) (pipeline.Step, error) {
			fns, err := evaluate(src)
			if err != nil {
				return nil, err
			}
			if fns.configure != nil {
				if err := fns.configure(config); err != nil {
					return nil, fmt.Errorf("configure: %w", err)
				}
			}
			return newStep(name, role, fns), nil
		},
	}
	if probe.validateConfig != nil {
		var mu sync.Mutex
		t.ValidateConfig = func(config map[string]any) []error {
			mu.Lock()
			defer mu.Unlock()
			return probe.validateConfig(config)
		}
	}
	return t, nil
}
