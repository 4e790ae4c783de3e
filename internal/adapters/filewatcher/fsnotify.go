// Package filewatcher provides file system monitoring adapters.
// Clean Architecture: Adapter implementing ports.FileWatcher.
package filewatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/0xcro3dile/loglens-go/internal/domain/ports"
	"github.com/0xcro3dile/loglens-go/internal/logging"
)

// DefaultExtensions are watched when none are given.
var DefaultExtensions = []string{".csv", ".tsv", ".csv.gz", ".csv.zst"}

// DefaultDebounce is how long the directory must stay quiet before pending
// corpus events are delivered.
const DefaultDebounce = 250 * time.Millisecond

// FSNotifyWatcher implements ports.FileWatcher using fsnotify. Log writers
// and copy tools touch a file many times per save; events for one path are
// merged until the directory goes quiet, so a reload sees a finished file.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string // corpus file suffixes (e.g. ".csv", ".csv.gz")
	debounce   time.Duration
	logger     *zap.Logger
}

// Option configures an FSNotifyWatcher.
type Option func(*FSNotifyWatcher)

// WithDebounce sets the quiet period. Zero delivers events as they arrive.
func WithDebounce(d time.Duration) Option {
	return func(w *FSNotifyWatcher) { w.debounce = max(d, 0) }
}

// NewFSNotifyWatcher creates a new file watcher.
func NewFSNotifyWatcher(extensions []string, logger *zap.Logger, opts ...Option) (*FSNotifyWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	w := &FSNotifyWatcher{
		watcher:    fw,
		extensions: extensions,
		debounce:   DefaultDebounce,
		logger:     logging.Default(logger).Named("watcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts monitoring dir. The returned channel is closed when ctx is
// done or the watcher is stopped.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	out := make(chan ports.FileEvent, 16)
	go w.run(ctx, dir, out)
	return out, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *FSNotifyWatcher) run(ctx context.Context, dir string, out chan<- ports.FileEvent) {
	defer close(out)

	var batch pendingEvents
	quiet := time.NewTimer(w.debounce)
	quiet.Stop()
	defer quiet.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			op, known := translate(ev)
			if !known || !w.isWatchedExtension(ev.Name) {
				continue
			}
			batch.add(ev.Name, op)
			quiet.Reset(w.debounce)

		case <-quiet.C:
			for _, fe := range batch.drain() {
				w.logger.Debug("corpus file changed", zap.String("path", fe.Path), zap.Stringer("op", fe.Operation))
				select {
				case out <- fe:
				case <-ctx.Done():
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.String("dir", dir), zap.Error(err))
		}
	}
}

// translate maps an fsnotify event onto a corpus file operation. A rename
// moves the corpus away, so it counts as a delete.
func translate(ev fsnotify.Event) (ports.FileOperation, bool) {
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	case ev.Has(fsnotify.Create):
		return ports.FileCreated, true
	case ev.Has(fsnotify.Write):
		return ports.FileModified, true
	}
	return 0, false
}

// coalesce merges the next operation on a path into the pending one.
func coalesce(prev, next ports.FileOperation) ports.FileOperation {
	switch {
	case next == ports.FileDeleted:
		return ports.FileDeleted
	case prev == ports.FileDeleted:
		// deleted then recreated: the file was replaced
		return ports.FileModified
	case prev == ports.FileCreated:
		return ports.FileCreated
	}
	return next
}

// pendingEvents holds one merged operation per path, in first-seen order.
type pendingEvents struct {
	ops   map[string]ports.FileOperation
	order []string
}

func (p *pendingEvents) add(path string, op ports.FileOperation) {
	if p.ops == nil {
		p.ops = make(map[string]ports.FileOperation)
	}
	if prev, ok := p.ops[path]; ok {
		p.ops[path] = coalesce(prev, op)
		return
	}
	p.ops[path] = op
	p.order = append(p.order, path)
}

func (p *pendingEvents) drain() []ports.FileEvent {
	events := make([]ports.FileEvent, len(p.order))
	for i, path := range p.order {
		events[i] = ports.FileEvent{Path: path, Operation: p.ops[path]}
	}
	clear(p.ops)
	p.order = p.order[:0]
	return events
}

// isWatchedExtension reports whether path ends in a watched suffix.
func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, e := range w.extensions {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}
