package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// PolicyWatcher watches the policy file for on-disk changes. The loaded
// policy is frozen for the process lifetime, so the watcher only warns the
// operator that a restart is required to apply the new file. It never
// reloads.
type PolicyWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// NewPolicyWatcher creates a watcher for the given policy file.
func NewPolicyWatcher(path string, logger *zap.Logger) (*PolicyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors replace files on save, which would
	// otherwise drop the watch on the inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &PolicyWatcher{
		path:    path,
		watcher: watcher,
		logger:  logger.With(zap.String("component", "policy-watcher")),
	}, nil
}

// Run blocks processing events until the context is cancelled.
func (w *PolicyWatcher) Run(ctx context.Context) {
	w.logger.Info("Policy watcher started", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Policy watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.logger.Warn("Policy file changed on disk; running policy is frozen, restart to apply",
					zap.String("path", w.path),
					zap.String("op", event.Op.String()),
				)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Policy watcher error", zap.Error(err))
		}
	}
}

// Close releases the underlying watcher.
func (w *PolicyWatcher) Close() error {
	return w.watcher.Close()
}
