// @title ETL Pipeline API
// @version 1.0
// @description Submit pluggable ETL pipelines and inspect their run history.
// @host localhost:8080
// @BasePath /api/v1
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-etl-pipeline/internal/api"
	"go-etl-pipeline/internal/api/handler"
	"go-etl-pipeline/internal/config"
	"go-etl-pipeline/internal/engine"
	"go-etl-pipeline/internal/metrics"
	"go-etl-pipeline/internal/steps"
	"go-etl-pipeline/internal/store"
	"go-etl-pipeline/pkg/router"
)

func main() {
	settingsPath := flag.String("config", "", "Settings file (YAML)")
	flag.Parse()

	if err := run(*settingsPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(settingsPath string) error {
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(settings.Log, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	st, err := store.Open(ctx, settings.Store.Path, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := steps.NewRegistry()
	collector := metrics.NewCollector(settings.Metrics.Namespace)
	e := engine.New(logger, engine.NewResolver(registry, settings.ScriptRoot),
		engine.WithStore(st),
		engine.WithMetrics(collector),
		engine.WithSearchPaths(settings.SearchPaths),
	)

	r := router.New(logger)
	api.RegisterRoutes(r, handler.NewPipelineHandler(logger, e, st, registry), collector)

	err = r.Start(ctx, settings.Server.Address)
	logger.Info("waiting for running pipelines")
	e.Wait()
	return err
}
