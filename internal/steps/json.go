package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go-etl-pipeline/internal/pipeline"
)

// JSONSource reads a JSON document from a file or an http(s) URL. An array
// yields one record per element; an object yields a single record. When
// field is set the records are taken from that key of a top-level object.
//
//	config:
//	  path: https://example.com/api/people
//	  field: items
var JSONSource = pipeline.DeclareSource("sources/json", validateJSON, newJSONSource)

type jsonSource struct {
	logger      pipeline.Logger
	path        string
	field       string
	sourceField string
	client      *http.Client
}

func validateJSON(cfg map[string]any) []error {
	var errs []error
	if err := requireString(cfg, "path"); err != nil {
		errs = append(errs, err)
	}
	if f, ok := cfg["field"]; ok {
		if _, isString := f.(string); !isString {
			errs = append(errs, errors.New("field must be a string"))
		}
	}
	return errs
}

func newJSONSource(_ context.Context, logger pipeline.Logger, cfg map[string]any) (pipeline.Source, error) {
	return &jsonSource{
		logger:      logger,
		path:        stringOpt(cfg, "path", ""),
		field:       stringOpt(cfg, "field", ""),
		sourceField: stringOpt(cfg, "source_field", ""),
		client:      http.DefaultClient,
	}, nil
}

func (s *jsonSource) Begin(context.Context) error { return nil }
func (s *jsonSource) End(context.Context) error   { return nil }
func (s *jsonSource) Abort(context.Context) error { return nil }

func (s *jsonSource) GetRecords(ctx context.Context) ([]pipeline.Record, error) {
	body, err := openPath(ctx, s.client, s.path)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON body: %w", err)
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	if s.field != "" {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q requires a top-level object", s.field)
		}
		if raw, ok = obj[s.field]; !ok {
			return nil, fmt.Errorf("field %q not found", s.field)
		}
	}

	var records []pipeline.Record
	switch v := raw.(type) {
	case []any:
		records = make([]pipeline.Record, 0, len(v))
		for _, item := range v {
			records = append(records, s.tag(item))
		}
	case map[string]any:
		records = []pipeline.Record{s.tag(v)}
	default:
		return nil, errors.New("unexpected JSON structure")
	}

	s.logger.Debug("json ingestion done", "path", s.path, "records", len(records))
	return records, nil
}

func (s *jsonSource) tag(item any) pipeline.Record {
	if m, ok := item.(map[string]any); ok && s.sourceField != "" {
		m[s.sourceField] = s.path
	}
	return item
}
