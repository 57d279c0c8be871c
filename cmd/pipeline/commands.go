package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"

	"go-etl-pipeline/internal/config"
	"go-etl-pipeline/internal/engine"
	"go-etl-pipeline/internal/model"
	"go-etl-pipeline/internal/pipeline"
	"go-etl-pipeline/internal/steps"
	"go-etl-pipeline/internal/store"
)

type commonFlags struct {
	settings string
	logLevel string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.settings, "config", "", "Settings file (YAML)")
	fs.StringVar(&c.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
}

func (c *commonFlags) load() (config.Settings, error) {
	s, err := config.LoadSettings(c.settings)
	if err != nil {
		return s, err
	}
	if c.logLevel != "" {
		s.Log.Level = c.logLevel
	}
	return s, nil
}

func newEngine(s config.Settings, opts ...engine.Option) (*engine.Engine, error) {
	logger, err := config.NewLogger(s.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	opts = append(opts, engine.WithSearchPaths(s.SearchPaths))
	return engine.New(logger, engine.NewResolver(steps.NewRegistry(), s.ScriptRoot), opts...), nil
}

func runRun(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	record := fs.Bool("record", false, "Record the run in the store")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pipeline run [options] <pipeline.yaml>\n\nRun a pipeline definition file.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("pipeline file path is required")
	}

	settings, err := common.load()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to read pipeline file: %w", err)
	}
	raw, err := config.ParsePipeline(data)
	if err != nil {
		return err
	}
	cfg, err := pipeline.DecodeConfig(raw)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	var opts []engine.Option
	if *record {
		st, err := store.Open(ctx, settings.Store.Path, nil)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveRun(ctx, runID, model.PipelineJobSpec{Name: fs.Arg(0), Pipeline: raw}); err != nil {
			return err
		}
		opts = append(opts, engine.WithStore(st))
	}

	e, err := newEngine(settings, opts...)
	if err != nil {
		return err
	}
	stats, err := e.Execute(ctx, runID, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "run %s complete: %d fetched, %d processed\n", runID, stats.RecordsFetched, stats.RecordsProcessed)
	return nil
}

func runValidate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pipeline validate [options] <pipeline.yaml>\n\nResolve, validate and instantiate every step without running it.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("pipeline file path is required")
	}

	settings, err := common.load()
	if err != nil {
		return err
	}
	cfg, err := config.LoadPipelineFile(fs.Arg(0))
	if err != nil {
		return err
	}
	e, err := newEngine(settings)
	if err != nil {
		return err
	}
	if err := e.Validate(context.Background(), cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s is valid: %s\n", fs.Arg(0), cfg)
	return nil
}

func runSteps(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("steps", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	types := steps.NewRegistry().Types()
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(types)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTIFIER\tROLE")
	for _, t := range types {
		fmt.Fprintf(tw, "%s\t%s\n", t.Identifier, t.Role)
	}
	return tw.Flush()
}
