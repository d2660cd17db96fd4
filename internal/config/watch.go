package config

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce absorbs the burst of events editors emit for one save.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the configuration whenever a config file is written and
// sends every result that validates. Invalid edits are logged and skipped.
// The channel is closed when ctx is done.
func Watch(ctx context.Context, overrides FlagOverrides, logger *zap.Logger) (<-chan *Config, error) {
	dirs := []string{GlobalConfigDir()}
	for _, f := range Files() {
		dirs = append(dirs, filepath.Dir(f.Path))
	}
	slices.Sort(dirs)
	dirs = slices.Compact(dirs)

	return watchDirs(ctx, dirs, func() (*Config, error) { return Load(overrides) }, reloadDebounce, logger)
}

func watchDirs(ctx context.Context, dirs []string, load func() (*Config, error), debounce time.Duration, logger *zap.Logger) (<-chan *Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		// Watch the directory: editors replace files by rename.
		if err := w.Add(dir); err != nil {
			logger.Warn("cannot watch config directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	out := make(chan *Config)
	go func() {
		defer close(out)
		defer w.Close()

		timer := time.NewTimer(debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !slices.Contains(configNames, filepath.Base(ev.Name)) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				logger.Debug("config file changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
				timer.Reset(debounce)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", zap.Error(err))

			case <-timer.C:
				cfg, err := load()
				if err != nil {
					logger.Warn("ignoring invalid config change", zap.Error(err))
					continue
				}
				select {
				case out <- cfg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
