package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"go.viam.com/flightcontrol/logging"
)

// Watch rereads the file at path whenever it is written and passes every valid result to
// onChange. Files that fail to load are logged and skipped. Watch returns when ctx is done.
func Watch(ctx context.Context, path string, logger logging.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating config watcher")
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Debugw("closing config watcher", "error", err)
		}
	}()

	// editors often replace the file rather than write it, so watch the directory
	name := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(name)); err != nil {
		return errors.Wrapf(err, "watching %q", path)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Read(path)
			if err != nil {
				logger.Warnw("ignoring config change", "path", path, "error", err)
				continue
			}
			logger.Infow("config changed", "path", path)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("config watcher error", "error", err)
		}
	}
}
