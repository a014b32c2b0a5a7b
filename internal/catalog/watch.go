package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/voyagen/castvault/internal/log"
)

// DefaultDebounce is the quiet period Watch waits for after the last change.
const DefaultDebounce = 500 * time.Millisecond

// Watch rebuilds the cache from ref whenever file changes on disk, until ctx
// is done. The parent directory is watched so editors that replace the file
// are picked up. onRebuild, if set, is called after every rebuild with the
// number of descriptors produced.
func (c *Cache) Watch(ctx context.Context, ref, file string, debounce time.Duration, onRebuild func(int)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	file = filepath.Clean(file)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(file)); err != nil {
		return fmt.Errorf("watch %s: %w", file, err)
	}
	c.logger.Info().
		Str(log.FieldEvent, "catalog.watch_started").
		Str(log.FieldPath, file).
		Msg("watching catalog asset for changes")

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str(log.FieldEvent, "catalog.watch_stopped").Msg("catalog watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != file {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				c.logger.Debug().Str("op", event.Op.String()).Msg("catalog asset changed")
				timer.Reset(debounce)
			}

		case <-timer.C:
			c.Reset()
			n := len(c.Load(ctx, ref))
			if onRebuild != nil {
				onRebuild(n)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Error().Err(err).Str(log.FieldEvent, "catalog.watch_error").Msg("catalog watcher error")
		}
	}
}
