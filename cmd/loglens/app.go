package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/loglens-go/internal/adapters/corpus"
	"github.com/0xcro3dile/loglens-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/loglens-go/internal/adapters/llm"
	"github.com/0xcro3dile/loglens-go/internal/adapters/loader"
	"github.com/0xcro3dile/loglens-go/internal/config"
	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
	"github.com/0xcro3dile/loglens-go/internal/domain/ports"
	"github.com/0xcro3dile/loglens-go/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/loglens-go/internal/infrastructure/http"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	loader *loader.CSVLoader
	store  *corpus.InMemoryStore
	ingest *usecases.IngestUseCase
	query  *usecases.QueryUseCase
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	metric, ok := entities.ParseMetricKind(cfg.Engine.DefaultMetric)
	if !ok {
		return nil, fmt.Errorf("unknown engine.default_metric %q", cfg.Engine.DefaultMetric)
	}
	schema := entities.Schema{EntityFields: entities.NormalizeColumns(cfg.Corpus.EntityFields)}

	processor := usecases.NewLogProcessor(schema,
		usecases.WithSharding(cfg.Engine.ParallelShards, cfg.Engine.ShardThreshold))
	executor := usecases.NewPlanExecutor(schema, logger,
		usecases.WithProcessor(processor),
		usecases.WithDefaultMetric(metric))

	planner := llm.NewOllamaPlanSource(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLMTimeout(), cfg.LLM.Attempts, logger)

	csvLoader := loader.NewCSVLoader()
	store := corpus.NewInMemoryStore()
	opts := ports.LoadOptions{
		EntityFields: cfg.Corpus.EntityFields,
		Required:     cfg.Corpus.Required,
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		loader: csvLoader,
		store:  store,
		ingest: usecases.NewIngestUseCase(csvLoader, store, opts, logger),
		query:  usecases.NewQueryUseCase(planner, store, executor, schema.EntityFields, logger),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// loadCorpus ingests the --corpus flag, or corpus.path from config.
func (a *app) loadCorpus(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("corpus")
	if path == "" {
		path = a.cfg.Corpus.Path
	}
	if path == "" {
		return fmt.Errorf("no corpus: pass --corpus or set corpus.path")
	}
	a.cfg.Corpus.Path = path
	_, err := a.ingest.Ingest(cmd.Context(), a.cfg.Corpus.Name, path)
	return err
}

// serve loads the configured corpus, optionally watches it for changes, and
// runs the HTTP API until ctx is done.
func (a *app) serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if path := a.cfg.Corpus.Path; path != "" {
		if _, err := a.ingest.Ingest(ctx, a.cfg.Corpus.Name, path); err != nil {
			return err
		}

		if a.cfg.Corpus.Watch {
			watcher, err := filewatcher.NewFSNotifyWatcher(a.loader.SupportedExtensions(), a.logger)
			if err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}
			defer watcher.Stop()

			g.Go(func() error {
				return a.ingest.Watch(ctx, watcher, a.cfg.Corpus.Name, path)
			})
		}
	} else {
		a.logger.Warn("no corpus.path configured; load one via POST /api/corpus")
	}

	server := httpserver.NewServer(a.query, a.ingest, a.store, a.cfg.Corpus.Name, a.cfg.Server.Addr, a.logger)
	g.Go(func() error {
		return server.Start(ctx)
	})
	return g.Wait()
}
