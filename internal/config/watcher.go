package config

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file and reloads it when it changes.
// Invalid files are reported through the error callback and the previous
// config stays current.
type Watcher struct {
	mu     sync.RWMutex
	logger *slog.Logger

	watcher *fsnotify.Watcher
	path    string
	current *Config

	onReload func(cfg *Config)
	onError  func(err error)

	done    chan struct{}
	stopped chan struct{}
	running bool
}

// NewWatcher creates a Watcher for the config file at path.
// If path is empty, uses the default config path.
func NewWatcher(path string, initial *Config, logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		path = ConfigPath()
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		logger:  logger,
		watcher: fw,
		path:    path,
		current: initial,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// SetReloadCallback sets the callback invoked with each successfully reloaded config.
func (w *Watcher) SetReloadCallback(cb func(cfg *Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = cb
}

// SetErrorCallback sets the callback invoked when a changed file fails to load.
func (w *Watcher) SetErrorCallback(cb func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = cb
}

// Current returns the last valid configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching. The containing directory is watched so editors that
// replace the file on save are picked up.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		_ = w.watcher.Close()
		return err
	}

	go w.watch()

	w.logger.Debug("config watcher started", "path", w.path)
	return nil
}

// Stop stops the watcher and waits for the watch loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.done)
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.stopped
	w.logger.Debug("config watcher stopped")
	return err
}

func (w *Watcher) watch() {
	defer close(w.stopped)
	filename := filepath.Base(w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// reload loads and validates the file, then notifies callbacks.
func (w *Watcher) reload() {
	w.mu.RLock()
	onReload := w.onReload
	onError := w.onError
	w.mu.RUnlock()

	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Warn("config file changed but failed to load", "path", w.path, "error", err)
		if onError != nil {
			onError(err)
		}
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path)
	if onReload != nil {
		onReload(cfg)
	}
}
