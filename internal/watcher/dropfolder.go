package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DropWatcher watches a single drop folder with fsnotify and emits
// debounced batches of document events.
type DropWatcher struct {
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	opts      Options
	logger    *slog.Logger
	mu        sync.Mutex
	stopped   bool
}

// NewDropWatcher creates a watcher for one folder.
func NewDropWatcher(opts Options, logger *slog.Logger) (*DropWatcher, error) {
	opts = opts.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &DropWatcher{
		fsWatcher: fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
		logger:    logger,
	}, nil
}

// Start watches the folder until the context is done. It blocks; run
// it in its own goroutine.
func (w *DropWatcher) Start(ctx context.Context, path string) error {
	if err := w.fsWatcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	w.logger.Info("watching drop folder", slog.String("path", path))

	go w.forward(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *DropWatcher) handle(event fsnotify.Event) {
	if !w.opts.wantsFile(event.Name) {
		return
	}

	var op Operation
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      event.Name,
		Operation: op,
		Timestamp: time.Now(),
	})
}

// forward moves debounced batches to the public events channel.
func (w *DropWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			select {
			case w.events <- batch:
			default:
				w.logger.Warn("event buffer full, dropping batch",
					slog.Int("batch_size", len(batch)))
			}
		}
	}
}

func (w *DropWatcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// Events returns debounced event batches.
func (w *DropWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns watcher errors.
func (w *DropWatcher) Errors() <-chan error {
	return w.errors
}

// Stop stops watching. Safe to call more than once.
func (w *DropWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	return w.fsWatcher.Close()
}
