package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"

	"go-etl-pipeline/internal/pipeline"
)

// JQTransformer replaces every record with the result of a jq expression.
// An expression that yields several values produces a list; one that yields
// nothing is an error.
//
//	config:
//	  expression: '{id: .id, full_name: "\(.first) \(.last)"}'
var JQTransformer = pipeline.DeclareTransformer("transformers/jq", validateJQ, newJQTransformer)

type jqTransformer struct {
	lifecycle
	expression string
	code       *gojq.Code
}

func compileJQ(cfg map[string]any) (*gojq.Code, error) {
	expression, _ := cfg["expression"].(string)
	if expression == "" {
		return nil, errors.New("expression is required")
	}
	parsed, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expression, err)
	}
	return code, nil
}

func validateJQ(cfg map[string]any) []error {
	if _, err := compileJQ(cfg); err != nil {
		return []error{err}
	}
	return nil
}

func newJQTransformer(_ context.Context, _ pipeline.Logger, cfg map[string]any) (pipeline.Transformer, error) {
	code, err := compileJQ(cfg)
	if err != nil {
		return nil, err
	}
	return &jqTransformer{expression: cfg["expression"].(string), code: code}, nil
}

func (t *jqTransformer) Transform(ctx context.Context, rec pipeline.Record) (pipeline.Record, error) {
	input, err := normalizeJSON(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize input: %w", err)
	}

	var results []any
	iter := t.code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("expression error: %w", err)
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, fmt.Errorf("expression %q produced no output", t.expression)
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// normalizeJSON converts v into the plain JSON types gojq accepts. It also
// gives the expression a private copy of the record.
func normalizeJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
