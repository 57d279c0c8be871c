package steps

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go-etl-pipeline/internal/pipeline"
)

// FileLoader writes records to a CSV, JSON or JSON-lines file. Output goes
// to a ".partial" file that is renamed into place on End and removed on
// Abort.
//
//	config:
//	  path: out/people.csv
//	  format: csv          # csv, json or jsonl; defaults from the extension
//	  columns: [id, name]  # csv only; defaults to the first record's keys
var FileLoader = pipeline.DeclareLoader("loaders/file", validateFile, newFileLoader)

var fileFormats = map[string]bool{"csv": true, "json": true, "jsonl": true}

type fileLoader struct {
	logger  pipeline.Logger
	path    string
	format  string
	columns []string

	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	csv     *csv.Writer
	written int
}

func formatFor(cfg map[string]any) string {
	if f := stringOpt(cfg, "format", ""); f != "" {
		return strings.ToLower(f)
	}
	switch strings.ToLower(filepath.Ext(stringOpt(cfg, "path", ""))) {
	case ".json":
		return "json"
	case ".jsonl", ".ndjson":
		return "jsonl"
	default:
		return "csv"
	}
}

func validateFile(cfg map[string]any) []error {
	var errs []error
	if err := requireString(cfg, "path"); err != nil {
		errs = append(errs, err)
	}
	if f := formatFor(cfg); !fileFormats[f] {
		errs = append(errs, fmt.Errorf("unsupported format %q", f))
	}
	if err := checkStringList(cfg, "columns"); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func newFileLoader(_ context.Context, logger pipeline.Logger, cfg map[string]any) (pipeline.Loader, error) {
	cols, _ := stringList(cfg["columns"])
	return &fileLoader{
		logger:  logger,
		path:    stringOpt(cfg, "path", ""),
		format:  formatFor(cfg),
		columns: cols,
	}, nil
}

func (l *fileLoader) partial() string { return l.path + ".partial" }

func (l *fileLoader) Begin(context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(l.partial())
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.file = f
	l.buf = bufio.NewWriter(f)
	switch l.format {
	case "csv":
		l.csv = csv.NewWriter(l.buf)
		if len(l.columns) > 0 {
			if err := l.csv.Write(l.columns); err != nil {
				return fmt.Errorf("failed to write header: %w", err)
			}
		}
	case "json":
		if _, err := l.buf.WriteString("["); err != nil {
			return err
		}
	}
	return nil
}

func (l *fileLoader) LoadRecord(_ context.Context, rec pipeline.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("file loader used before Begin")
	}

	switch l.format {
	case "csv":
		obj, err := asObject(rec)
		if err != nil {
			return err
		}
		if l.columns == nil {
			l.columns = sortedKeys(obj)
			if err := l.csv.Write(l.columns); err != nil {
				return fmt.Errorf("failed to write header: %w", err)
			}
		}
		row := make([]string, len(l.columns))
		for i, c := range l.columns {
			if v, ok := obj[c]; ok && v != nil {
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		if err := l.csv.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	case "json", "jsonl":
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		if l.format == "json" {
			sep := "\n  "
			if l.written > 0 {
				sep = ",\n  "
			}
			l.buf.WriteString(sep)
		} else {
			b = append(b, '\n')
		}
		if _, err := l.buf.Write(b); err != nil {
			return err
		}
	}
	l.written++
	return nil
}

func (l *fileLoader) End(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}

	var err error
	switch l.format {
	case "csv":
		l.csv.Flush()
		err = l.csv.Error()
	case "json":
		_, err = l.buf.WriteString("\n]\n")
	}
	if err == nil {
		err = l.buf.Flush()
	}
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	if err != nil {
		os.Remove(l.partial())
		return fmt.Errorf("failed to finish %s: %w", l.path, err)
	}
	if err := os.Rename(l.partial(), l.path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	l.logger.Info("export to file successful", "path", l.path, "records", l.written)
	return nil
}

func (l *fileLoader) Abort(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.file.Close()
	l.file = nil
	if err := os.Remove(l.partial()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
