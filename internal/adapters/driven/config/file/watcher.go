package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/memquery/internal/logger"
)

// reloadDelay coalesces the burst of events an editor produces on save.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the store when the config file changes on disk. Each
// successful reload sends on the returned channel; a send is dropped when
// the previous one is still pending. The channel closes when ctx is done.
//
// The directory is watched rather than the file so that editors which
// save by rename are still seen.
func (s *ConfigStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.filePath)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(s.filePath), err)
	}

	reloaded := make(chan struct{}, 1)
	go func() {
		defer close(reloaded)
		defer w.Close()

		timer := time.NewTimer(reloadDelay)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if s.isConfigEvent(event) {
					timer.Reset(reloadDelay)
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher: %v", err)

			case <-timer.C:
				if err := s.Load(); err != nil {
					logger.Warn("config reload failed, keeping previous values: %v", err)
					continue
				}
				logger.Info("config reloaded from %s", s.filePath)
				select {
				case reloaded <- struct{}{}:
				default:
				}
			}
		}
	}()

	return reloaded, nil
}

// isConfigEvent reports whether event touches the config file contents.
func (s *ConfigStore) isConfigEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(s.filePath) {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0
}
