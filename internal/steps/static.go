package steps

import (
	"context"
	"errors"

	"go-etl-pipeline/internal/pipeline"
)

// StaticSource emits the records listed inline in its configuration.
//
//	config:
//	  records: [{id: 1}, {id: 2}]
var StaticSource = pipeline.DeclareSource("sources/static", validateStatic, newStaticSource)

type staticSource struct {
	lifecycle
	records []any
}

func validateStatic(cfg map[string]any) []error {
	if _, ok := cfg["records"].([]any); !ok {
		return []error{errors.New("records must be a list")}
	}
	return nil
}

func newStaticSource(_ context.Context, _ pipeline.Logger, cfg map[string]any) (pipeline.Source, error) {
	records, _ := cfg["records"].([]any)
	return &staticSource{records: records}, nil
}

func (s *staticSource) GetRecords(context.Context) ([]pipeline.Record, error) {
	out := make([]pipeline.Record, len(s.records))
	for i, r := range s.records {
		if m, ok := r.(map[string]any); ok {
			out[i] = copyObject(m)
			continue
		}
		out[i] = r
	}
	return out, nil
}
