// Package corpus provides corpus store adapters.
// The in-memory store keeps each corpus as an immutable snapshot; readers get
// the snapshot pointer and never block a concurrent reload.
package corpus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
)

// InMemoryStore implements ports.CorpusStore.
type InMemoryStore struct {
	mu      sync.RWMutex
	corpora map[string]*entities.Corpus // name -> snapshot
}

// NewInMemoryStore creates a new in-memory corpus store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		corpora: make(map[string]*entities.Corpus),
	}
}

// Put publishes corpus, replacing any previous snapshot with the same name.
func (s *InMemoryStore) Put(ctx context.Context, corpus *entities.Corpus) error {
	if corpus == nil || corpus.Name == "" {
		return fmt.Errorf("corpus must have a name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.corpora[corpus.Name] = corpus
	return nil
}

// Get returns the current snapshot for name.
func (s *InMemoryStore) Get(ctx context.Context, name string) (*entities.Corpus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.corpora[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", entities.ErrCorpusNotFound, name)
	}
	return c, nil
}

// List returns every snapshot ordered by name.
func (s *InMemoryStore) List(ctx context.Context) ([]*entities.Corpus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.Corpus, 0, len(s.corpora))
	for _, c := range s.corpora {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Delete drops the snapshot for name.
func (s *InMemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.corpora, name)
	return nil
}
