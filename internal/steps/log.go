package steps

import (
	"context"
	"errors"
	"sync/atomic"

	"go-etl-pipeline/internal/pipeline"
)

// LogLoader writes every record to the pipeline logger.
//
//	config:
//	  message: record loaded
//	  level: info   # debug or info
var LogLoader = pipeline.DeclareLoader("loaders/log", validateLog, newLogLoader)

type logLoader struct {
	lifecycle
	logger  pipeline.Logger
	message string
	debug   bool
	count   atomic.Int64
}

func validateLog(cfg map[string]any) []error {
	switch stringOpt(cfg, "level", "info") {
	case "info", "debug":
		return nil
	}
	return []error{errLogLevel}
}

var errLogLevel = errors.New("level must be debug or info")

func newLogLoader(_ context.Context, logger pipeline.Logger, cfg map[string]any) (pipeline.Loader, error) {
	return &logLoader{
		logger:  logger,
		message: stringOpt(cfg, "message", "record loaded"),
		debug:   stringOpt(cfg, "level", "info") == "debug",
	}, nil
}

func (l *logLoader) LoadRecord(_ context.Context, rec pipeline.Record) error {
	n := l.count.Add(1)
	if l.debug {
		l.logger.Debug(l.message, "n", n, "record", rec)
	} else {
		l.logger.Info(l.message, "n", n, "record", rec)
	}
	return nil
}

func (l *logLoader) End(context.Context) error {
	l.logger.Info("log loader finished", "records", l.count.Load())
	return nil
}
