// Package steps holds the built-in sources, transformers and loaders.
//
// Every step acquires its resources in Begin and releases them in End or
// Abort, so validating and instantiating a step has no side effects.
package steps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go-etl-pipeline/internal/pipeline"
	"go-etl-pipeline/pkg/utils"
)

// Register binds every built-in step type into reg under a path-like
// identifier, so a pipeline using searchPaths [sources] may name "csv".
func Register(reg *pipeline.Registry) {
	reg.Register("sources/static", StaticSource)
	reg.Register("sources/csv", CSVSource)
	reg.Register("sources/json", JSONSource)
	reg.Register("sources/sqlite", SQLiteSource)

	reg.Register("transformers/fields", FieldsTransformer)
	reg.Register("transformers/validate", ValidateTransformer)
	reg.Register("transformers/jq", JQTransformer)
	reg.Register("transformers/expr", ExprTransformer)

	reg.Register("loaders/file", FileLoader)
	reg.Register("loaders/sqlite", SQLiteLoader)
	reg.Register("loaders/redis", RedisLoader)
	reg.Register("loaders/aggregate", AggregateLoader)
	reg.Register("loaders/log", LogLoader)
}

// NewRegistry returns a registry holding every built-in step.
func NewRegistry() *pipeline.Registry {
	reg := pipeline.NewRegistry()
	Register(reg)
	return reg
}

// lifecycle gives a step no-op Begin, End and Abort.
type lifecycle struct{}

func (lifecycle) Begin(context.Context) error { return nil }
func (lifecycle) End(context.Context) error   { return nil }
func (lifecycle) Abort(context.Context) error { return nil }

// ErrNotObject is returned when a step needs a record to be a JSON-style
// object.
var ErrNotObject = errors.New("record is not an object")

// asObject returns rec as a map.
func asObject(rec pipeline.Record) (map[string]any, error) {
	m, ok := rec.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotObject, rec)
	}
	return m, nil
}

// copyObject returns a shallow copy of m. Transformers use it so they never
// mutate their input.
func copyObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ------------------- config helpers -------------------

func stringOpt(cfg map[string]any, key, def string) string {
	if s, ok := cfg[key].(string); ok && s != "" {
		return s
	}
	return def
}

func boolOpt(cfg map[string]any, key string, def bool) bool {
	if b, ok := cfg[key].(bool); ok {
		return b
	}
	return def
}

func requireString(cfg map[string]any, key string) error {
	v, ok := cfg[key]
	if !ok {
		return fmt.Errorf("%s is required", key)
	}
	if s, ok := v.(string); !ok || strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s must be a non-empty string", key)
	}
	return nil
}

// stringList accepts a YAML/JSON list of strings.
func stringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func checkStringList(cfg map[string]any, key string) error {
	if _, ok := stringList(cfg[key]); !ok {
		return fmt.Errorf("%s must be a list of strings", key)
	}
	return nil
}

// numberMap accepts a mapping of field name to number.
func numberMap(v any) (map[string]float64, bool) {
	if v == nil {
		return nil, true
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]float64, len(m))
	for k, e := range m {
		f, ok := utils.ToFloat(e)
		if !ok {
			return nil, false
		}
		out[k] = f
	}
	return out, true
}

func intOpt(cfg map[string]any, key string, def int) int {
	if f, ok := utils.ToFloat(cfg[key]); ok {
		return int(f)
	}
	return def
}
