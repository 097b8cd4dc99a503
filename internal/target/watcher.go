package target

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch keeps the registry in sync with dir until ctx is cancelled: created
// or modified definitions are (re)registered, removed ones unregistered.
// The directory is loaded once before watching starts.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	if _, err := r.LoadDir(dir); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				r.handleEvent(event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("targets watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (r *Registry) handleEvent(event fsnotify.Event) {
	if !isDefinition(event.Name) {
		return
	}
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		name := strings.TrimSuffix(filepath.Base(event.Name), filepath.Ext(event.Name))
		if r.Unregister(name) {
			r.logger.Info("unloaded target", "target", name, "path", event.Name)
		}
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if err := r.loadFile(event.Name); err != nil {
			r.logger.Error("reload target definition", "path", event.Name, "error", err)
		}
	}
}
