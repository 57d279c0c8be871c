package steps

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go-etl-pipeline/internal/pipeline"
	"go-etl-pipeline/pkg/utils"
)

// ErrRecordInvalid is returned for a record that breaks a validation rule.
// It fails the run.
var ErrRecordInvalid = errors.New("record failed validation")

// ValidateTransformer checks every record against a rule set and passes it
// through unchanged.
//
//	config:
//	  required_fields: [id, name]
//	  numeric_fields: [age]
//	  min_values: {age: 0}
//	  max_values: {age: 130}
var ValidateTransformer = pipeline.DeclareTransformer("transformers/validate", validateRules, newValidateTransformer)

type rules struct {
	required []string
	numeric  []string
	min      map[string]float64
	max      map[string]float64
}

type validateTransformer struct {
	lifecycle
	rules rules
}

func validateRules(cfg map[string]any) []error {
	var errs []error
	for _, key := range []string{"required_fields", "numeric_fields"} {
		if err := checkStringList(cfg, key); err != nil {
			errs = append(errs, err)
		}
	}
	for _, key := range []string{"min_values", "max_values"} {
		if _, ok := numberMap(cfg[key]); !ok {
			errs = append(errs, fmt.Errorf("%s must map field names to numbers", key))
		}
	}
	return errs
}

func newValidateTransformer(_ context.Context, _ pipeline.Logger, cfg map[string]any) (pipeline.Transformer, error) {
	var r rules
	r.required, _ = stringList(cfg["required_fields"])
	r.numeric, _ = stringList(cfg["numeric_fields"])
	r.min, _ = numberMap(cfg["min_values"])
	r.max, _ = numberMap(cfg["max_values"])
	return &validateTransformer{rules: r}, nil
}

func (v *validateTransformer) Transform(_ context.Context, rec pipeline.Record) (pipeline.Record, error) {
	obj, err := asObject(rec)
	if err != nil {
		return nil, err
	}
	if err := v.rules.check(obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecordInvalid, err)
	}
	return rec, nil
}

func (r rules) check(rec map[string]any) error {
	for _, field := range r.required {
		if _, ok := rec[field]; !ok {
			return fmt.Errorf("missing required field: %s", field)
		}
	}

	for _, field := range r.numeric {
		val, ok := rec[field]
		if !ok {
			continue
		}
		if !utils.IsNumber(val) {
			return fmt.Errorf("field %s must be numeric, got %T", field, val)
		}
	}

	for _, field := range sortedFields(r.min) {
		if val, ok := rec[field]; ok && utils.Numeric(val) < r.min[field] {
			return fmt.Errorf("field %s below minimum: got %v, want >= %v", field, val, r.min[field])
		}
	}

	for _, field := range sortedFields(r.max) {
		if val, ok := rec[field]; ok && utils.Numeric(val) > r.max[field] {
			return fmt.Errorf("field %s above maximum: got %v, want <= %v", field, val, r.max[field])
		}
	}

	return nil
}

func sortedFields(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
