package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher uses fsnotify to watch the single config file backing a Loader
// and calls Reload on write events, the same pattern internal/mdloader uses
// for policy and playbook Markdown.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	loader    *Loader
	done      chan struct{}
	logger    *slog.Logger
}

// NewWatcher creates a Watcher for the file loader.FilePath() currently
// points at. Load must be called before NewWatcher. Call Start() to begin
// processing events.
func NewWatcher(loader *Loader, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	// fsnotify watches the containing directory rather than the file
	// itself, so editors that replace-via-rename are still caught.
	dir := filepath.Dir(loader.FilePath())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsw,
		loader:    loader,
		done:      make(chan struct{}),
		logger:    logger.With("component", "config.Watcher"),
	}, nil
}

// Start begins watching for filesystem events in a background goroutine
// and returns immediately. Call Stop() to shut down.
func (w *Watcher) Start() error {
	go w.loop()
	return nil
}

// Stop shuts down the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	target := w.loader.FilePath()
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Name != target || !event.Op.Has(fsnotify.Write) {
				continue
			}
			if err := w.loader.Reload(); err != nil {
				w.logger.Error("config reload failed", "path", target, "error", err)
				continue
			}
			w.logger.Info("config reloaded", "path", target)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}
