package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/mobilecore/internal/daemon/control"
	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
)

// DefaultDebounce is how long the config file must stay quiet before a
// change is reported.
const DefaultDebounce = 2 * time.Second

// ConfigWatcher reports settled changes to one configuration file as
// control.ConfigChanged messages.
type ConfigWatcher struct {
	path     string
	debounce time.Duration
	bus      *control.Bus
	logger   *slog.Logger
}

// NewConfigWatcher resolves path and prepares a watcher publishing to bus.
func NewConfigWatcher(path string, bus *control.Bus, debounce time.Duration, logger *slog.Logger) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to resolve config path").
			WithContext("path", path).
			Build()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigWatcher{path: abs, debounce: debounce, bus: bus, logger: logger}, nil
}

// Path returns the absolute path being watched.
func (w *ConfigWatcher) Path() string { return w.path }

// Run watches until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are still seen.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to create file watcher").Build()
	}
	defer func() { _ = fw.Close() }()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to watch config directory").
			WithContext("dir", dir).
			Build()
	}
	w.logger.Info("Watching configuration file", logfields.Path(w.path))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	pending := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create), ev.Has(fsnotify.Rename):
				w.logger.Debug("Configuration file changed", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
				pending++
				timer.Reset(w.debounce)
			case ev.Has(fsnotify.Remove):
				w.logger.Warn("Configuration file removed", logfields.Path(ev.Name))
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Configuration watcher error", logfields.Error(err))
		case <-timer.C:
			msg := control.ConfigChanged{Path: w.path, Events: pending, SettledAt: time.Now()}
			pending = 0
			if err := w.bus.Publish(ctx, msg); err != nil && ctx.Err() == nil {
				w.logger.Warn("Configuration change not delivered", logfields.Error(err))
			}
		}
	}
}
