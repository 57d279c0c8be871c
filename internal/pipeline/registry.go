package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
)

// ErrUnknownStep is returned by Registry.Resolve when no candidate matches.
var ErrUnknownStep = errors.New("unknown step type")

// Resolver turns a step identifier into a StepType. The identifier is tried
// directly first, then against each search path in order; the first match
// wins.
type Resolver interface {
	Resolve(ctx context.Context, identifier string, searchPaths []string) (*StepType, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, identifier string, searchPaths []string) (*StepType, error)

func (f ResolverFunc) Resolve(ctx context.Context, identifier string, searchPaths []string) (*StepType, error) {
	return f(ctx, identifier, searchPaths)
}

// Registry is an in-memory Resolver. Search paths act as namespaces: with
// search path "sources", the identifier "csv" resolves to "sources/csv".
type Registry struct {
	mu    sync.RWMutex
	types map[string]*StepType
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*StepType)}
}

// DefaultRegistry is the resolver a Runner uses when none is configured.
var DefaultRegistry = NewRegistry()

// Register binds identifier to t, replacing any previous binding.
func (r *Registry) Register(identifier string, t *StepType) {
	if t == nil {
		panic("pipeline: Register of nil step type " + identifier)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[path.Clean(identifier)] = t
}

// Resolve implements Resolver.
func (r *Registry) Resolve(ctx context.Context, identifier string, searchPaths []string) (*StepType, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, candidate := range Candidates(identifier, searchPaths) {
		if t, ok := r.types[path.Clean(candidate)]; ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStep, identifier)
}

// Types returns every registered identifier with its role, sorted by
// identifier.
func (r *Registry) Types() []TypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TypeInfo, 0, len(r.types))
	for id, t := range r.types {
		out = append(out, TypeInfo{Identifier: id, Name: t.Name, Role: t.Role.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// TypeInfo describes one registered step type.
type TypeInfo struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Role       string `json:"role"`
}

// Candidates lists the identifiers a resolver should try, in order: the
// identifier itself, then the identifier under each search path.
func Candidates(identifier string, searchPaths []string) []string {
	out := make([]string, 0, len(searchPaths)+1)
	out = append(out, identifier)
	if path.IsAbs(identifier) {
		return out
	}
	for _, sp := range searchPaths {
		out = append(out, path.Join(sp, identifier))
	}
	return out
}

// ChainResolver tries each resolver in order and returns the first match. If
// none match, the errors of all resolvers are joined.
type ChainResolver []Resolver

func (c ChainResolver) Resolve(ctx context.Context, identifier string, searchPaths []string) (*StepType, error) {
	var errs []error
	for _, r := range c {
		t, err := r.Resolve(ctx, identifier, searchPaths)
		if err == nil {
			return t, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, identifier)
	}
	return nil, errors.Join(errs...)
}
