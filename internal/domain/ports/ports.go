// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
)

// PlanSource translates a natural-language question into a raw plan payload.
// It is called once per request and holds no state about earlier plans.
type PlanSource interface {
	Plan(ctx context.Context, req entities.PlanRequest) ([]byte, error)
}

// LoadOptions shapes a corpus load.
type LoadOptions struct {
	// EntityFields are the recognized entity columns.
	EntityFields []string

	// Required columns beyond the base set; a header missing any is rejected.
	Required []string
}

// RecordLoader reads a corpus from a record source.
type RecordLoader interface {
	// Load reads the corpus at path. It honors ctx between records.
	Load(ctx context.Context, path string, opts LoadOptions) (*entities.Corpus, error)

	// SupportedExtensions returns file suffixes this loader handles.
	SupportedExtensions() []string
}

// CorpusStore holds loaded corpora as immutable snapshots.
type CorpusStore interface {
	// Put publishes a corpus, replacing any previous one with the same name.
	Put(ctx context.Context, corpus *entities.Corpus) error

	// Get returns the current snapshot or entities.ErrCorpusNotFound.
	Get(ctx context.Context, name string) (*entities.Corpus, error)

	// List returns every loaded corpus ordered by name.
	List(ctx context.Context) ([]*entities.Corpus, error)

	// Delete drops a corpus.
	Delete(ctx context.Context, name string) error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (o FileOperation) String() string {
	switch o {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
