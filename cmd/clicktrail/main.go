package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alexanderramin/clicktrail/internal/analysis"
	"github.com/alexanderramin/clicktrail/internal/capture"
	"github.com/alexanderramin/clicktrail/internal/cli"
	"github.com/alexanderramin/clicktrail/internal/config"
	"github.com/alexanderramin/clicktrail/internal/db"
	"github.com/alexanderramin/clicktrail/internal/llm"
	"github.com/alexanderramin/clicktrail/internal/logging"
	"github.com/alexanderramin/clicktrail/internal/metrics"
	"github.com/alexanderramin/clicktrail/internal/platform"
	"github.com/alexanderramin/clicktrail/internal/repository"
	"github.com/alexanderramin/clicktrail/internal/service"
	"github.com/alexanderramin/clicktrail/internal/store"
	"github.com/mattn/go-isatty"
)

func main() {
	app := &cli.App{
		Setup: setup,
		IsInteractive: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		},
	}
	err := cli.NewRootCmd(app).Execute()
	if cerr := app.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(_ context.Context, path string) (*cli.Runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: os.Stderr})
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DataDir, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	uow := db.NewSQLiteUnitOfWork(database)
	m := metrics.New()
	useCases := service.NewLogUseCaseObserver(logger)

	return &cli.Runtime{
		Config:  cfg,
		Logger:  logger,
		Store:   st,
		Reports: service.NewReportService(repository.NewSQLiteReportRepo(database)),
		Metrics: m,
		Analysis: func(llmCfg llm.Config) (service.AnalysisService, error) {
			observers := llm.MultiObserver{m}
			if llmCfg.LogCalls {
				observers = append(observers, llm.NewLogObserver(logger))
			}
			client, err := llm.NewClient(llmCfg, observers)
			if err != nil {
				return nil, err
			}
			orch := analysis.NewOrchestrator(st, client, analysis.WithLogger(logger))
			return service.NewAnalysisService(orch, uow, useCases, m), nil
		},
		Capture: func() (capture.ScreenshotSource, capture.ContextProvider) {
			timeout := cfg.HelperTimeout()
			return platform.NewCommandScreenshotSource(cfg.Platform.ScreenshotCommand, timeout),
				platform.NewCommandContextProvider(cfg.Platform.ContextHelper, timeout)
		},
		Close: database.Close,
	}, nil
}
