package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the bursts of events editors emit on save.
const reloadDebounce = 300 * time.Millisecond

// watchFile calls reload after each write to path until ctx is done. The
// parent directory is watched so editors that replace the file on save are
// still seen.
func watchFile(ctx context.Context, path string, reload func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("unable to get absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("error watching %s: %w", dir, err)
	}
	log.Info("Watching passage", "file", abs)

	timer := time.NewTimer(reloadDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != abs || (!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create)) {
				continue
			}
			log.Debug("Passage changed", "file", event.Name, "event", event.Op)
			timer.Reset(reloadDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("Watcher error", "dir", dir, "error", err)
		case <-timer.C:
			reload()
		}
	}
}
