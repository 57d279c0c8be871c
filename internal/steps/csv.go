package steps

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"unicode/utf8"

	"go-etl-pipeline/internal/pipeline"
	"go-etl-pipeline/pkg/utils"
)

// CSVSource reads a CSV file or URL. The first row is the header; cells are
// typed with utils.ParseValue unless raw is set.
//
//	config:
//	  path: data/people.csv   # or http(s) URL
//	  delimiter: ","
//	  raw: false
//	  source_field: SourceURL # optional, adds the path to every record
var CSVSource = pipeline.DeclareSource("sources/csv", validateCSV, newCSVSource)

type csvSource struct {
	logger      pipeline.Logger
	path        string
	delimiter   rune
	raw         bool
	sourceField string
	client      *http.Client

	body io.ReadCloser
}

func validateCSV(cfg map[string]any) []error {
	var errs []error
	if err := requireString(cfg, "path"); err != nil {
		errs = append(errs, err)
	}
	if d, ok := cfg["delimiter"]; ok {
		s, isString := d.(string)
		if !isString || utf8.RuneCountInString(s) != 1 {
			errs = append(errs, errors.New("delimiter must be a single character"))
		}
	}
	return errs
}

func newCSVSource(_ context.Context, logger pipeline.Logger, cfg map[string]any) (pipeline.Source, error) {
	delim := ','
	if d := stringOpt(cfg, "delimiter", ""); d != "" {
		delim, _ = utf8.DecodeRuneInString(d)
	}
	return &csvSource{
		logger:      logger,
		path:        stringOpt(cfg, "path", ""),
		delimiter:   delim,
		raw:         boolOpt(cfg, "raw", false),
		sourceField: stringOpt(cfg, "source_field", ""),
		client:      http.DefaultClient,
	}, nil
}

func isURL(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// openPath opens a local file or performs a GET for an http(s) URL.
func openPath(ctx context.Context, client *http.Client, p string) (io.ReadCloser, error) {
	if !isURL(p) {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		return f, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to GET %s: %w", p, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to GET %s: status %d", p, resp.StatusCode)
	}
	return resp.Body, nil
}

func (s *csvSource) Begin(ctx context.Context) error {
	body, err := openPath(ctx, s.client, s.path)
	if err != nil {
		return err
	}
	s.body = body
	return nil
}

func (s *csvSource) GetRecords(ctx context.Context) ([]pipeline.Record, error) {
	if s.body == nil {
		return nil, errors.New("csv source used before Begin")
	}
	r := csv.NewReader(s.body)
	r.Comma = s.delimiter
	r.LazyQuotes = true

	headers, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
	}

	var records []pipeline.Record
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil && !errors.Is(err, csv.ErrFieldCount) {
			return nil, fmt.Errorf("CSV read error: %w", err)
		}

		rec := make(map[string]any, len(headers)+1)
		for i, h := range headers {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			if s.raw {
				rec[h] = cell
			} else {
				rec[h] = utils.ParseValue(cell)
			}
		}
		if s.sourceField != "" {
			rec[s.sourceField] = s.path
		}
		records = append(records, rec)
	}

	s.logger.Debug("csv ingestion done", "path", s.path, "records", len(records))
	return records, nil
}

func (s *csvSource) close() error {
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}

func (s *csvSource) End(context.Context) error   { return s.close() }
func (s *csvSource) Abort(context.Context) error { return s.close() }
