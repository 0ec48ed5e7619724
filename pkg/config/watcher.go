// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads configuration when files it depends on change. Events
// arriving within the debounce window are batched into one reload, and a
// reload whose result equals the config last delivered is dropped, so
// onChange only sees real changes.
type Watcher struct {
	dir      string
	load     func() (*Config, error)
	match    func(name string) bool
	onChange func(cfg *Config, changed []string)
	logger   *zap.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]struct{}
	timer     *time.Timer

	reloadMu sync.Mutex
	current  *Config

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewWatcher watches a config directory read with LoadDir. onChange gets
// the merged config and the base names of the files that changed.
func NewWatcher(dir string, onChange func(*Config, []string), logger *zap.Logger) *Watcher {
	return newWatcher(dir, func() (*Config, error) { return LoadDir(dir) }, isConfigFile, onChange, logger)
}

// NewFileWatcher watches a single file read with Load. The parent directory
// is watched so editors that replace the file by rename are seen.
func NewFileWatcher(path string, onChange func(*Config, []string), logger *zap.Logger) *Watcher {
	base := filepath.Base(path)
	return newWatcher(filepath.Dir(path),
		func() (*Config, error) { return Load(path) },
		func(name string) bool { return filepath.Base(name) == base },
		onChange, logger)
}

func newWatcher(dir string, load func() (*Config, error), match func(string) bool,
	onChange func(*Config, []string), logger *zap.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		load:     load,
		match:    match,
		onChange: onChange,
		logger:   logger,
		debounce: defaultDebounce,
		pending:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
	}
}

// Start records the current config as the baseline and begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	if cfg, err := w.load(); err != nil {
		w.logger.Warn("config watcher has no baseline", zap.Error(err))
	} else {
		w.current = cfg
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}
	w.watcher = fsw

	go w.loop(ctx)
	w.logger.Info("config watcher started", zap.String("dir", w.dir))
	return nil
}

// Stop shuts down the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.pendingMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.pendingMu.Unlock()
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

// Current returns the config last loaded successfully.
func (w *Watcher) Current() *Config {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	return w.current
}

func isConfigFile(name string) bool {
	base := filepath.Base(name)
	return base == ".env" || strings.HasSuffix(base, ".yaml") || strings.HasSuffix(base, ".yml")
}

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&relevantOps == 0 || !w.match(event.Name) {
				continue
			}
			w.logger.Debug("config file changed",
				zap.String("file", filepath.Base(event.Name)),
				zap.Stringer("op", event.Op),
			)
			w.schedule(filepath.Base(event.Name))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))

		case <-ctx.Done():
			w.Stop()
			return

		case <-w.stopCh:
			return
		}
	}
}

// schedule adds name to the pending batch and restarts the debounce timer.
func (w *Watcher) schedule(name string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.pending[name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	changed := make([]string, 0, len(w.pending))
	for name := range w.pending {
		changed = append(changed, name)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()
	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)

	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	cfg, err := w.load()
	if err != nil {
		w.logger.Error("config reload failed", zap.Strings("files", changed), zap.Error(err))
		return
	}
	if w.current != nil && *cfg == *w.current {
		w.logger.Debug("config unchanged", zap.Strings("files", changed))
		return
	}
	w.current = cfg

	w.logger.Info("config reloaded", zap.Strings("trigger", changed))
	w.onChange(cfg, changed)
}
