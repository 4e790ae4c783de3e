package usecases

import (
	"context"
	"fmt"
	"sync"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
	"github.com/0xcro3dile/loglens-go/internal/domain/ports"
)

// mockPlanner implements ports.PlanSource for testing
type mockPlanner struct {
	plan  string
	err   error
	calls int
	last  entities.PlanRequest
}

func (m *mockPlanner) Plan(ctx context.Context, req entities.PlanRequest) ([]byte, error) {
	m.calls++
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return []byte(m.plan), nil
}

// mockStore implements ports.CorpusStore for testing
type mockStore struct {
	mu      sync.Mutex
	corpora map[string]*entities.Corpus
}

func newMockStore(corpora ...*entities.Corpus) *mockStore {
	s := &mockStore{corpora: map[string]*entities.Corpus{}}
	for _, c := range corpora {
		s.corpora[c.Name] = c
	}
	return s
}

func (s *mockStore) Put(ctx context.Context, c *entities.Corpus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpora[c.Name] = c
	return nil
}

func (s *mockStore) Get(ctx context.Context, name string) (*entities.Corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.corpora[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entities.ErrCorpusNotFound, name)
	}
	return c, nil
}

func (s *mockStore) List(ctx context.Context) ([]*entities.Corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Corpus
	for _, c := range s.corpora {
		out = append(out, c)
	}
	return out, nil
}

func (s *mockStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.corpora, name)
	return nil
}

// mockLoader implements ports.RecordLoader for testing
type mockLoader struct {
	records entities.RecordSet
	err     error
	loaded  chan string // receives each loaded path
	opts    ports.LoadOptions
}

func (l *mockLoader) Load(ctx context.Context, path string, opts ports.LoadOptions) (*entities.Corpus, error) {
	l.opts = opts
	if l.loaded != nil {
		defer func() { l.loaded <- path }()
	}
	if l.err != nil {
		return nil, l.err
	}
	return &entities.Corpus{
		Source:  path,
		Schema:  testSchema,
		Records: l.records,
	}, nil
}

func (l *mockLoader) SupportedExtensions() []string {
	return []string{".csv"}
}

// mockWatcher implements ports.FileWatcher for testing
type mockWatcher struct {
	events chan ports.FileEvent
	dir    string
}

func (w *mockWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	w.dir = dir
	return w.events, nil
}

func (w *mockWatcher) Stop() error {
	return nil
}
