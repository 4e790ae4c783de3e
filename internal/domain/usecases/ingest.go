// Package usecases contains application business rules: the log processor,
// entity manager, chunker and plan executor, plus the ingest and query flows
// that wire them to ports.
package usecases

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
	"github.com/0xcro3dile/loglens-go/internal/domain/ports"
	"github.com/0xcro3dile/loglens-go/internal/logging"
)

// IngestUseCase loads corpora and publishes them to the corpus store.
type IngestUseCase struct {
	loader ports.RecordLoader
	store  ports.CorpusStore
	opts   ports.LoadOptions
	logger *zap.Logger
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	loader ports.RecordLoader,
	store ports.CorpusStore,
	opts ports.LoadOptions,
	logger *zap.Logger,
) *IngestUseCase {
	if len(opts.EntityFields) == 0 {
		opts.EntityFields = entities.DefaultEntityFields
	}
	return &IngestUseCase{
		loader: loader,
		store:  store,
		opts:   opts,
		logger: logging.Default(logger).Named("ingest"),
	}
}

// Ingest loads path and publishes it as name. A failed load leaves any
// previously published snapshot in place.
func (uc *IngestUseCase) Ingest(ctx context.Context, name, path string) (*entities.Corpus, error) {
	corpus, err := uc.loader.Load(ctx, path, uc.opts)
	if err != nil {
		uc.logger.Warn("corpus load failed", zap.String("corpus", name), zap.String("path", path), zap.Error(err))
		return nil, err
	}
	corpus.Name = name

	if err := uc.store.Put(ctx, corpus); err != nil {
		return nil, err
	}
	uc.logger.Info("corpus loaded",
		zap.String("corpus", name),
		zap.String("path", path),
		zap.Int("records", len(corpus.Records)),
		zap.Strings("columns", corpus.Schema.Columns))
	return corpus, nil
}

// Delete removes a corpus from the store.
func (uc *IngestUseCase) Delete(ctx context.Context, name string) error {
	return uc.store.Delete(ctx, name)
}

// Watch reloads path into name whenever it is created or modified, until
// ctx is done. Deleting the file keeps the last good snapshot.
func (uc *IngestUseCase) Watch(ctx context.Context, watcher ports.FileWatcher, name, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	events, err := watcher.Watch(ctx, filepath.Dir(abs))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			evPath, err := filepath.Abs(ev.Path)
			if err != nil || evPath != abs {
				continue
			}
			switch ev.Operation {
			case ports.FileCreated, ports.FileModified:
				// Load errors are logged by Ingest; keep watching.
				_, _ = uc.Ingest(ctx, name, path)
			case ports.FileDeleted:
				uc.logger.Warn("corpus file removed, keeping last snapshot", zap.String("corpus", name), zap.String("path", path))
			}
		}
	}
}
