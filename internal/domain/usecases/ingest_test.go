package usecases

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
	"github.com/0xcro3dile/loglens-go/internal/domain/ports"
)

func TestIngestUseCase_Ingest(t *testing.T) {
	loader := &mockLoader{records: tenRows()}
	store := newMockStore()
	uc := NewIngestUseCase(loader, store, ports.LoadOptions{Required: []string{"md_id"}}, nil)

	corpus, err := uc.Ingest(context.Background(), "cmts", "/data/cmts.csv")
	require.NoError(t, err)
	assert.Equal(t, "cmts", corpus.Name)

	got, err := store.Get(context.Background(), "cmts")
	require.NoError(t, err)
	assert.Same(t, corpus, got)

	assert.Equal(t, entities.DefaultEntityFields, loader.opts.EntityFields, "entity fields default when unset")
	assert.Equal(t, []string{"md_id"}, loader.opts.Required)
}

func TestIngestUseCase_FailedLoadKeepsSnapshot(t *testing.T) {
	previous := &entities.Corpus{Name: "cmts", Records: telemetry()}
	store := newMockStore(previous)
	schemaErr := &entities.SchemaError{Source: "/data/cmts.csv", Line: 4, Column: "severity", Message: "unknown severity"}
	uc := NewIngestUseCase(&mockLoader{err: schemaErr}, store, ports.LoadOptions{}, nil)

	_, err := uc.Ingest(context.Background(), "cmts", "/data/cmts.csv")
	assert.True(t, errors.Is(err, entities.CodeSchema))

	got, _ := store.Get(context.Background(), "cmts")
	assert.Same(t, previous, got)
}

func TestIngestUseCase_Delete(t *testing.T) {
	store := newMockStore(&entities.Corpus{Name: "cmts"})
	uc := NewIngestUseCase(&mockLoader{}, store, ports.LoadOptions{}, nil)

	require.NoError(t, uc.Delete(context.Background(), "cmts"))
	_, err := store.Get(context.Background(), "cmts")
	assert.True(t, errors.Is(err, entities.ErrCorpusNotFound))
}

func TestIngestUseCase_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cmts.csv")

	loader := &mockLoader{records: tenRows(), loaded: make(chan string, 4)}
	store := newMockStore()
	watcher := &mockWatcher{events: make(chan ports.FileEvent, 4)}
	uc := NewIngestUseCase(loader, store, ports.LoadOptions{}, nil)

	done := make(chan error, 1)
	go func() {
		done <- uc.Watch(context.Background(), watcher, "cmts", path)
	}()

	watcher.events <- ports.FileEvent{Path: path, Operation: ports.FileDeleted}
	watcher.events <- ports.FileEvent{Path: filepath.Join(dir, "other.csv"), Operation: ports.FileModified}
	watcher.events <- ports.FileEvent{Path: path, Operation: ports.FileModified}

	select {
	case got := <-loader.loaded:
		assert.Equal(t, path, got)
	case <-time.After(2 * time.Second):
		t.Fatal("corpus was not reloaded")
	}

	close(watcher.events)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after events closed")
	}

	assert.Empty(t, loader.loaded, "only the matching modify event reloads")
	assert.Equal(t, dir, watcher.dir)
	_, err := store.Get(context.Background(), "cmts")
	assert.NoError(t, err)
}

func TestIngestUseCase_WatchStopsOnCancel(t *testing.T) {
	watcher := &mockWatcher{events: make(chan ports.FileEvent)}
	uc := NewIngestUseCase(&mockLoader{}, newMockStore(), ports.LoadOptions{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- uc.Watch(ctx, watcher, "cmts", filepath.Join(t.TempDir(), "cmts.csv"))
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop on cancel")
	}
}
