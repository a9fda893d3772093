// Package watch re-runs a batch whenever its targets file changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of editor writes into one change.
const DefaultDebounce = time.Second

// ChangeFunc is invoked after the watched file settles.
type ChangeFunc func(ctx context.Context, path string) error

// Watcher watches a single file for changes.
type Watcher struct {
	path     string
	onChange ChangeFunc
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	running bool
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period required before onChange fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for path.
func New(path string, onChange ChangeFunc, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		path:     abs,
		onChange: onChange,
		logger:   logger,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run watches until ctx is done. Callbacks run on the watcher goroutine, one at
// a time; changes that arrive during a callback are coalesced into the next one.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher for %s already running", w.path)
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	// The directory is watched because editors often replace files by rename.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("targets watcher started", "path", w.path, "debounce", w.debounce)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.matches(event) {
				continue
			}
			w.logger.Debug("targets file event", "event", event.Op.String(), "file", event.Name)
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.trigger(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("targets watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Info("targets watcher stopped")
			return nil
		}
	}
}

func (w *Watcher) matches(event fsnotify.Event) bool {
	p, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return p == w.path
}

func (w *Watcher) trigger(ctx context.Context) {
	w.logger.Info("targets file changed, re-running batch", "path", w.path)

	start := time.Now()
	if err := w.onChange(ctx, w.path); err != nil {
		w.logger.Error("batch re-run failed", "error", err, "duration", time.Since(start))
		return
	}
	w.logger.Info("batch re-run completed", "duration", time.Since(start))
}
