// pkg/connectors/watch.go
package connectors

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 500 * time.Millisecond

// Watch hot-reloads the registry whenever the registry file changes. The
// parent directory is watched because editors and configmap mounts replace
// files instead of writing them in place. Events are debounced; a reload
// that fails to parse keeps the previous registry.
func Watch(ctx context.Context, path string, reg *Registry, log *zap.SugaredLogger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}

	var mu sync.Mutex
	var pending *time.Timer
	reload := func() {
		conns, err := Load(path)
		if err != nil {
			log.Warnw("connector registry reload failed", "path", path, "err", err)
			return
		}
		reg.Replace(conns)
		log.Infow("connector registry reloaded", "path", path, "sources", reg.Names())
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				mu.Lock()
				if pending != nil {
					pending.Stop()
				}
				mu.Unlock()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				mu.Lock()
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(watchDebounce, reload)
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnw("connector registry watcher error", "err", err)
			}
		}
	}()
	return nil
}
