// Copyright ModelGate Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package registry

import (
	"context"
	"log/slog"
	"os"
	"time"
)

type configWatcher struct {
	lastMod time.Time
	path    string
	reg     *Registry
	l       *slog.Logger
}

// StartConfigWatcher polls the models file and reloads the registry when its
// mtime moves forward. The registry already holds the initial load, so the
// watcher seeds its clock from the file as it is now.
func StartConfigWatcher(ctx context.Context, path string, reg *Registry, l *slog.Logger, tick time.Duration) {
	w := &configWatcher{path: path, reg: reg, l: l}
	if stat, err := os.Stat(path); err == nil {
		w.lastMod = stat.ModTime()
	}
	l.Info("start watching the models file",
		slog.String("path", path), slog.String("interval", tick.String()))
	go w.watch(ctx, tick)
}

func (w *configWatcher) watch(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.l.Info("stop watching the models file", slog.String("path", w.path))
			return
		case <-ticker.C:
			if err := w.reloadIfChanged(); err != nil {
				w.l.Error("failed to reload models file", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *configWatcher) reloadIfChanged() error {
	stat, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	if stat.ModTime().Sub(w.lastMod) <= 0 {
		return nil
	}
	w.l.Info("models file changed, reloading", slog.String("path", w.path))
	w.lastMod = stat.ModTime()
	return w.reg.Reload()
}
