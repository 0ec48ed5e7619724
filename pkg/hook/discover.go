// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package hook

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mbeema/perfhook/pkg/config"
	"go.uber.org/zap"
)

// Discover locates a hook engine among the registered providers and returns
// a Bridge over it.
//
// A provider named by cfg.Hook.Engine is tried first. Otherwise every
// provider is loaded in registration order and the last one that loads
// wins. When nothing loads, the bridge runs on a StubEngine.
func Discover(cfg *config.Config, logger *zap.Logger) *Bridge {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("hook")

	names := Providers()
	logger.Info("hook bridge init",
		zap.Bool("has_instance", len(names) > 0),
		zap.Strings("providers", names),
	)

	if preferred := cfg.Hook.Engine; preferred != "" {
		if p, ok := lookupProvider(preferred); !ok {
			logger.Warn("preferred hook engine not registered", zap.String("engine", preferred))
		} else if e, err := load(p, cfg, logger); err != nil {
			logger.Warn("preferred hook engine failed to load, scanning providers",
				zap.String("engine", preferred), zap.Error(err))
		} else {
			logger.Info("hook engine selected", zap.String("engine", e.Name()), zap.Stringer("kind", e.Kind()))
			return NewBridge(e, logger)
		}
	}

	var selected Engine
	for _, p := range snapshotProviders() {
		if p.name == cfg.Hook.Engine {
			continue
		}
		e, err := load(p, cfg, logger)
		if err != nil {
			logger.Warn("hook engine failed to load", zap.String("engine", p.name), zap.Error(err))
			continue
		}
		logger.Info("hook engine found", zap.String("engine", e.Name()), zap.Stringer("kind", e.Kind()))
		if selected != nil {
			closeEngine(selected, logger)
		}
		selected = e
	}

	if selected == nil {
		logger.Error("hook bridge has no engine", zap.Error(ErrNoEngine))
		return NewBridge(NewStubEngine("no hook engine registered or loadable", logger), logger)
	}
	logger.Info("hook engine selected", zap.String("engine", selected.Name()), zap.Stringer("kind", selected.Kind()))
	return NewBridge(selected, logger)
}

// load runs a provider's factory, retrying transient failures until
// cfg.Hook.DiscoveryTimeout elapses.
func load(p provider, cfg *config.Config, logger *zap.Logger) (Engine, error) {
	// A zero MaxElapsedTime means retry forever, so no timeout means a
	// single attempt.
	var b backoff.BackOff = &backoff.StopBackOff{}
	if cfg.Hook.DiscoveryTimeout > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 20 * time.Millisecond
		eb.MaxInterval = 500 * time.Millisecond
		eb.MaxElapsedTime = cfg.Hook.DiscoveryTimeout
		eb.RandomizationFactor = 0.1
		b = eb
	}

	var e Engine
	err := backoff.Retry(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = backoff.Permanent(fmt.Errorf("factory panicked: %v", r))
			}
		}()
		e, err = p.factory(cfg, logger.With(zap.String("engine", p.name)))
		if err == nil && e == nil {
			return backoff.Permanent(fmt.Errorf("%w: factory returned nil engine", ErrUnavailable))
		}
		if err != nil && errors.Is(err, ErrUnavailable) {
			return backoff.Permanent(err)
		}
		if err != nil {
			logger.Debug("hook engine load failed, retrying", zap.String("engine", p.name), zap.Error(err))
		}
		return err
	}, b)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func closeEngine(e Engine, logger *zap.Logger) {
	c, ok := e.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("close unselected hook engine", zap.String("engine", e.Name()), zap.Error(err))
	}
}

var (
	std     atomic.Pointer[Bridge]
	stdOnce sync.Once
)

// Init discovers an engine with cfg and installs the result as the default
// bridge. Call it once at process start.
func Init(cfg *config.Config, logger *zap.Logger) *Bridge {
	b := Discover(cfg, logger)
	SetDefault(b)
	return b
}

// SetDefault replaces the default bridge.
func SetDefault(b *Bridge) {
	stdOnce.Do(func() {})
	std.Store(b)
}

// Default returns the default bridge, discovering an engine with the
// default config and zap.L() on first use if Init was not called.
func Default() *Bridge {
	stdOnce.Do(func() {
		if std.Load() == nil {
			std.Store(Discover(config.DefaultConfig(), zap.L()))
		}
	})
	return std.Load()
}
