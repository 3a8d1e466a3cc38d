package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow is how long a Watcher waits for further writes
// before reloading.
const DefaultDebounceWindow = 100 * time.Millisecond

// Watcher reloads a File when it changes on disk and then calls onChange.
//
// The parent directory is watched rather than the file itself, because
// editors commonly replace files by rename, which drops a direct watch.
// Bursts of events (truncate then write, rename then create) are collapsed
// into one reload once the debounce window passes without further events.
type Watcher struct {
	file     *File
	onChange func(context.Context)
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceWindow sets how long to wait for more changes before
// reloading. Non-positive values keep the default.
func WithDebounceWindow(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for file. onChange may be nil.
func NewWatcher(file *File, onChange func(context.Context), logger *slog.Logger, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create catalog watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(file.Path())); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", file.Path(), err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		file:     file,
		onChange: onChange,
		watcher:  fw,
		debounce: DefaultDebounceWindow,
		logger:   logger.With("component", "catalog", "path", file.Path()),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run processes file events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Debug("watching catalog", "debounce", w.debounce)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watcher error", "error", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// relevant reports whether event may have changed the watched file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.file.Path()) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func (w *Watcher) reload(ctx context.Context) {
	if err := w.file.Reload(); err != nil {
		w.logger.Warn("catalog reload failed, keeping previous items", "error", err)
		return
	}
	w.logger.Info("catalog reloaded", "items", len(w.file.List()))

	if w.onChange != nil {
		w.onChange(ctx)
	}
}

// Close stops the watcher. Run returns once the event channel drains.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
