package timeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultReloadDebounce = 250 * time.Millisecond

// Logger is the logging surface the watcher needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Watcher reloads a mapping file into a MappingStore when it changes.
//
// The containing directory is watched rather than the file so editors
// that replace the file by rename are still picked up. A file that fails
// to parse or validate leaves the previous mapping in effect.
type Watcher struct {
	path     string
	store    *MappingStore
	debounce time.Duration

	watcher  *fsnotify.Watcher
	logger   Logger
	onReload func(Mapping)

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWatcher creates a watcher for path feeding store.
func NewWatcher(path string, store *MappingStore) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving mapping path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	return &Watcher{
		path:     absPath,
		store:    store,
		debounce: defaultReloadDebounce,
		watcher:  fw,
		logger:   noopLogger{},
		done:     make(chan struct{}),
	}, nil
}

// SetLogger sets the logger. Call before Start.
func (w *Watcher) SetLogger(logger Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// SetDebounce sets how long the watcher waits for writes to settle.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// SetOnReload registers a callback fired after each successful reload.
func (w *Watcher) SetOnReload(fn func(Mapping)) {
	w.onReload = fn
}

// Start begins watching. It returns once the watch is registered.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching mapping directory %s: %w", dir, err)
	}

	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("mapping watcher started", "path", w.path)
	return nil
}

// Stop ends watching and waits for the loop to exit. Safe to call twice.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn("closing mapping watcher", "error", err)
		}
		w.wg.Wait()
	})
}

// Reload loads the file now and swaps it in if valid.
func (w *Watcher) Reload() error {
	m, err := LoadMapping(w.path)
	if err != nil {
		return err
	}
	w.store.Set(m)
	w.logger.Info("mapping reloaded", "path", w.path, "layers", len(m))
	if w.onReload != nil {
		w.onReload(m)
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	base := filepath.Base(w.path)
	var timer *time.Timer
	var fire <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("mapping file changed", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := w.Reload(); err != nil {
				w.logger.Error("mapping reload failed, keeping previous mapping", "path", w.path, "error", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("mapping watcher error", "error", err)
		}
	}
}
