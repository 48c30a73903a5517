package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the catalog when definition documents change on disk.
// A change rebuilds the whole catalog from every watched directory, so a
// removed definition disappears on reload.
type Watcher struct {
	logger  zerolog.Logger
	loader  *Loader
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher over the given loader.
func NewWatcher(logger zerolog.Logger, loader *Loader) *Watcher {
	return &Watcher{
		logger: logger.With().Str("component", "catalog-watcher").Logger(),
		loader: loader,
	}
}

// Watch starts watching definition directories, invoking reloadFn with a
// freshly built catalog after each change. Reloads are debounced; a
// reload that fails is logged and the previous catalog stays in effect.
func (w *Watcher) Watch(ctx context.Context, dirs []string,
	reloadFn func(*DataCatalog) error) error {

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	w.watcher = watcher

	for _, dir := range dirs {
		if err := w.watchDirectory(dir); err != nil {
			w.logger.Warn().Err(err).Str("path", dir).
				Msg("Failed to watch definition directory")
		}
	}

	go w.processEvents(ctx, dirs, reloadFn)

	w.logger.Info().
		Int("paths", len(dirs)).
		Msg("Started watching catalog definition directories")

	return nil
}

func (w *Watcher) watchDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context, dirs []string,
	reloadFn func(*DataCatalog) error) {

	var reloadTimer *time.Timer
	reloadDelay := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if w.watcher != nil {
				_ = w.watcher.Close()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}

			ext := strings.ToLower(filepath.Ext(event.Name))
			if ext != ".yaml" && ext != ".yml" {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Definition file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				if err := w.triggerReload(dirs, reloadFn); err != nil {
					w.logger.Error().Err(err).Msg("Failed to reload catalog")
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) triggerReload(dirs []string,
	reloadFn func(*DataCatalog) error) error {

	w.logger.Info().Msg("Reloading catalog...")

	rebuilt := NewDataCatalog()
	if err := w.loader.LoadDirectories(rebuilt, dirs); err != nil {
		return fmt.Errorf("failed to reload definitions: %w", err)
	}

	if err := reloadFn(rebuilt); err != nil {
		return fmt.Errorf("failed to apply reloaded catalog: %w", err)
	}

	w.logger.Info().
		Int("variables", rebuilt.Len()).
		Msg("Catalog reloaded successfully")

	return nil
}

// Stop stops watching for changes.
func (w *Watcher) Stop() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
