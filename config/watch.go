package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads params when the governance file changes on disk.
// A reload that fails validation is dropped; the engine keeps the previous
// epoch. Updates are delivered between engine calls only; the callback
// receives a whole new Params value and must swap it atomically.
type Watcher struct {
	Path     string
	Cooldown time.Duration // minimum gap between applied reloads
}

// Start blocks until ctx is done, invoking onUpdate for each accepted reload.
func (w Watcher) Start(ctx context.Context, onUpdate func(Params)) error {
	if w.Cooldown <= 0 {
		w.Cooldown = 5 * time.Second
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.Path); err != nil {
		return fmt.Errorf("watch %s: %w", w.Path, err)
	}

	var lastApply time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if time.Since(lastApply) < w.Cooldown {
				continue
			}
			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				// Bad epochs never reach the engine.
				continue
			}
			lastApply = time.Now()
			if onUpdate != nil {
				onUpdate(cfg)
			}
		case _, ok := <-fw.Errors:
			if !ok {
				return nil
			}
		}
	}
}
