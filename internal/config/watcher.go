package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// fallbackReload bounds how stale a snapshot can get when file events are
// lost (editors that rename over the file, network mounts).
const fallbackReload = 30 * time.Second

// Watch reloads the settings file on filesystem events, with a periodic
// fallback reload. Blocks until ctx is done.
func (st *SettingsStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: saves via rename replace the inode.
	if err := watcher.Add(filepath.Dir(st.path)); err != nil {
		return err
	}

	ticker := time.NewTicker(fallbackReload)
	defer ticker.Stop()

	reload := func(reason string) {
		if err := st.Reload(); err != nil {
			log.Warn().Err(err).Str("reason", reason).Msg("settings reload failed, keeping previous snapshot")
			return
		}
		log.Debug().Str("reason", reason).Msg("settings snapshot refreshed")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(st.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			reload("fsnotify")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("settings watcher error")
		case <-ticker.C:
			reload("periodic")
		}
	}
}
