package keys

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const reloadDebounce = 500 * time.Millisecond

// WatchFile reloads the provider from path whenever the file changes. The
// parent directory is watched so editors that replace files by rename are
// picked up. Returns after the watcher is installed; it stops with ctx.
func WatchFile(ctx context.Context, path string, p *Provider) error {
	return watchFile(ctx, path, reloadDebounce, func() {
		if err := p.LoadFile(path); err != nil {
			log.Err(err).Str("path", path).Msg("signing key reload failed, keeping current key")
		}
	})
}

func watchFile(ctx context.Context, path string, debounce time.Duration, reload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return err
	}

	changed := make(chan struct{}, 1)
	go scheduleReload(ctx, changed, debounce, reload)
	go handleWatcher(ctx, watcher, target, changed)
	return nil
}

func handleWatcher(ctx context.Context, watcher *fsnotify.Watcher, target string, changed chan<- struct{}) {
	defer watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				select {
				case changed <- struct{}{}:
				default:
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Err(err).Msg("key file watcher error")
		}
	}
}

func scheduleReload(ctx context.Context, changed <-chan struct{}, debounce time.Duration, reload func()) {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-changed:
			if timer != nil {
				timer.Reset(debounce)
			} else {
				timer = time.NewTimer(debounce)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			timer = nil
			reload()
		}
	}
}
