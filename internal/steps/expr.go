package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"go-etl-pipeline/internal/pipeline"
)

// ExprTransformer sets computed fields on every record. Each expression sees
// the incoming record's fields as variables.
//
//	config:
//	  fields:
//	    bmi: weight / (height * height)
//	    adult: age >= 18
//	  drop: [height, weight]
var ExprTransformer = pipeline.DeclareTransformer("transformers/expr", validateExpr, newExprTransformer)

type computedField struct {
	name    string
	program *vm.Program
}

type exprTransformer struct {
	lifecycle
	fields []computedField
	drop   []string
}

func compileExprFields(cfg map[string]any) ([]computedField, []error) {
	raw, ok := cfg["fields"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, []error{errors.New("fields must map field names to expressions")}
	}
	var (
		fields []computedField
		errs   []error
	)
	for _, name := range sortedKeys(raw) {
		src, ok := raw[name].(string)
		if !ok {
			errs = append(errs, fmt.Errorf("field %s: expression must be a string", name))
			continue
		}
		program, err := expr.Compile(src, expr.AllowUndefinedVariables())
		if err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", name, err))
			continue
		}
		fields = append(fields, computedField{name: name, program: program})
	}
	return fields, errs
}

func validateExpr(cfg map[string]any) []error {
	_, errs := compileExprFields(cfg)
	if err := checkStringList(cfg, "drop"); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func newExprTransformer(_ context.Context, _ pipeline.Logger, cfg map[string]any) (pipeline.Transformer, error) {
	fields, errs := compileExprFields(cfg)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	drop, _ := stringList(cfg["drop"])
	return &exprTransformer{fields: fields, drop: drop}, nil
}

func (t *exprTransformer) Transform(_ context.Context, rec pipeline.Record) (pipeline.Record, error) {
	in, err := asObject(rec)
	if err != nil {
		return nil, err
	}
	env := copyObject(in)
	out := copyObject(in)
	for _, f := range t.fields {
		v, err := expr.Run(f.program, env)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.name, err)
		}
		out[f.name] = v
	}
	for _, d := range t.drop {
		delete(out, d)
	}
	return out, nil
}
