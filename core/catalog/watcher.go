package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"basemusic/logger"
)

// DefaultWatchDelay groups bursts of file events, e.g. a large copy.
const DefaultWatchDelay = 500 * time.Millisecond

// Watch calls fn after .mp3 files in dir are created, written, removed or
// renamed. Bursts of events within delay trigger a single call. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, dir string, delay time.Duration, fn func()) error {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Info("watching audio directory", logger.String("dir", dir))

	debounced := debounce.New(delay)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".mp3") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("audio directory changed",
					logger.String("file", event.Name),
					logger.String("op", event.Op.String()))
				debounced(fn)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("audio watcher error", logger.ErrorField(err))
		}
	}
}
