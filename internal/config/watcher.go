package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/CursedScorpio/fleetdeck/internal/logging"
)

var cfgLog = logging.ForComponent(logging.CompConfig)

// debounceDelay coalesces the editor write/rename event bursts into one
// reload.
const debounceDelay = 250 * time.Millisecond

// Watcher watches the config file for edits and pushes freshly loaded
// configs on its channel. The directory is watched rather than the file
// so atomic rename saves keep working.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	reloadCh chan *Config

	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		path:     path,
		watcher:  fw,
		reloadCh: make(chan *Config, 1),
		closeCh:  make(chan struct{}),
	}, nil
}

// Start begins watching (non-blocking).
func (w *Watcher) Start() {
	go w.loop()
}

// Reloads returns the channel carrying freshly loaded configs.
func (w *Watcher) Reloads() <-chan *Config {
	return w.reloadCh
}

func (w *Watcher) loop() {
	var debounce *time.Timer
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			cfgLog.Debug("config_watch_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		cfgLog.Warn("config_reload_failed", slog.String("error", err.Error()))
		return
	}
	cfgLog.Info("config_reloaded", slog.String("path", w.path))

	// Non-blocking send; an unconsumed older config is superseded.
	select {
	case <-w.reloadCh:
	default:
	}
	select {
	case w.reloadCh <- cfg:
	default:
	}
}

// Close stops the watcher. Safe to call multiple times.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}
