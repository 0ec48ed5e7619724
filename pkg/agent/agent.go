// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mbeema/perfhook/pkg/config"
	"github.com/mbeema/perfhook/pkg/hook"
	"github.com/mbeema/perfhook/pkg/monitor"
	"github.com/mbeema/perfhook/pkg/status"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	monitorCostTime = "cost_time"
	monitorThread   = "thread"
)

// Agent wires the hook bridge, the monitors and the status server together.
// Config is stored as an atomic pointer, safe for concurrent access.
type Agent struct {
	cfg    atomic.Pointer[config.Config]
	logger *zap.Logger
	level  *zap.AtomicLevel

	version  string
	bridge   *hook.Bridge
	costTime *monitor.CostTime
	thread   *monitor.Thread
	process  atomic.Pointer[monitor.Process]
	status   atomic.Pointer[status.Server]

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	targets []target
	handles map[string][]*hook.Handle
}

// target is a watched method or constructor set, kept so monitors enabled
// by a reload can be installed on everything already watched.
type target struct {
	class  *hook.Class
	name   string
	params []any
	ctors  bool
}

// Option customizes an Agent.
type Option func(*Agent)

// WithBridge uses b instead of discovering an engine.
func WithBridge(b *hook.Bridge) Option {
	return func(a *Agent) { a.bridge = b }
}

// WithLevel lets Reload change the log level.
func WithLevel(lvl zap.AtomicLevel) Option {
	return func(a *Agent) { a.level = &lvl }
}

// WithVersion sets the version reported by the status server.
func WithVersion(v string) Option {
	return func(a *Agent) { a.version = v }
}

// New creates an agent. Unless WithBridge is given it runs engine discovery
// and installs the result as the process default bridge.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &Agent{
		logger:  logger,
		version: "dev",
		handles: make(map[string][]*hook.Handle),
	}
	a.cfg.Store(cfg)
	for _, opt := range opts {
		opt(a)
	}

	if a.bridge == nil {
		a.bridge = hook.Init(cfg, logger)
	}

	a.costTime = monitor.NewCostTime(cfg.Monitor.CostTime.Threshold, logger.Named("cost_time"))
	th, err := monitor.NewThread(logger.Named("thread"))
	if err != nil {
		logger.Warn("thread monitor unavailable", zap.Error(err))
	} else {
		a.thread = th
	}

	a.status.Store(status.NewServer(cfg.Status.Addr, a.version, a.bridge, a, logger.Named("status")))
	return a, nil
}

// Bridge returns the bridge hooks are installed through.
func (a *Agent) Bridge() *hook.Bridge { return a.bridge }

// Status returns the current status server. Reload may replace it.
func (a *Agent) Status() *status.Server { return a.status.Load() }

// Start starts the process sampler and the status server when enabled.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ctx, a.cancel = context.WithCancel(ctx)
	cfg := a.cfg.Load()
	if cfg.Monitor.Process.Enabled {
		a.startProcess(cfg)
	}
	if cfg.Status.Enabled {
		if err := a.status.Load().Start(a.ctx); err != nil {
			return fmt.Errorf("start status server: %w", err)
		}
	}
	a.status.Load().SetReady(true)

	a.logger.Info("agent started",
		zap.String("service", cfg.ServiceName),
		zap.String("engine", a.bridge.Stats().Engine),
		zap.Bool("cost_time", cfg.Monitor.CostTime.Enabled),
		zap.Bool("thread", a.threadEnabled(cfg)),
		zap.Bool("process", a.process.Load() != nil),
		zap.Bool("status", cfg.Status.Enabled),
	)
	return nil
}

// startProcess starts the process sampler. Caller holds a.mu.
func (a *Agent) startProcess(cfg *config.Config) {
	if a.process.Load() != nil {
		return
	}
	pm, err := monitor.NewProcess(a.logger.Named("process"))
	if err != nil {
		a.logger.Warn("process sampler unavailable", zap.Error(err))
		return
	}
	if err := pm.Start(a.ctx, cfg.Monitor.Process.Interval); err != nil {
		a.logger.Warn("process sampler failed to start", zap.Error(err))
		return
	}
	a.process.Store(pm)
}

// stopProcess stops the process sampler. Caller holds a.mu.
func (a *Agent) stopProcess() {
	if pm := a.process.Swap(nil); pm != nil {
		pm.Stop()
	}
}

// Watch installs every enabled monitor on the methods of class called name.
// paramTypes narrow the match the same way FindAndHookMethod does. It
// returns the installed handles.
func (a *Agent) Watch(class *hook.Class, name string, paramTypes ...any) []*hook.Handle {
	return a.watch(target{class: class, name: name, params: paramTypes})
}

// WatchConstructors installs every enabled monitor on the constructors of
// class.
func (a *Agent) WatchConstructors(class *hook.Class) []*hook.Handle {
	return a.watch(target{class: class, ctors: true})
}

func (a *Agent) watch(t target) []*hook.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.targets = append(a.targets, t)
	cfg := a.cfg.Load()

	var out []*hook.Handle
	if cfg.Monitor.CostTime.Enabled {
		out = append(out, a.install(monitorCostTime, t)...)
	}
	if a.threadEnabled(cfg) {
		out = append(out, a.install(monitorThread, t)...)
	}
	return out
}

func (a *Agent) threadEnabled(cfg *config.Config) bool {
	return cfg.Monitor.Thread.Enabled && a.thread != nil
}

// install hooks one monitor onto one target. Caller holds a.mu.
func (a *Agent) install(name string, t target) []*hook.Handle {
	var cb *hook.MethodHook
	switch name {
	case monitorCostTime:
		cb = a.costTime.Hook()
	case monitorThread:
		cb = a.thread.Hook()
	}

	var hs []*hook.Handle
	if t.ctors {
		hs = a.bridge.HookAllConstructors(t.class, cb)
	} else {
		args := append(append([]any(nil), t.params...), cb)
		hs = a.bridge.FindAndHookMethod(t.class, t.name, args...)
	}
	a.handles[name] = append(a.handles[name], hs...)
	return hs
}

// uninstall removes every hook one monitor installed. Caller holds a.mu.
func (a *Agent) uninstall(name string) {
	hs := a.handles[name]
	for i := len(hs) - 1; i >= 0; i-- {
		a.bridge.Unhook(hs[i])
	}
	delete(a.handles, name)
}

// Reload applies new configuration. The slow call threshold and log level
// change in place. Monitors switched on are installed on every watched
// target and monitors switched off are unhooked. The status server starts
// or stops to follow status.enabled. hook settings only apply at startup.
func (a *Agent) Reload(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	oldCfg := a.cfg.Load()
	a.cfg.Store(cfg)

	a.costTime.SetThreshold(cfg.Monitor.CostTime.Threshold)

	if a.level != nil {
		if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
			a.level.SetLevel(lvl)
		}
	}

	a.toggle(monitorCostTime, oldCfg.Monitor.CostTime.Enabled, cfg.Monitor.CostTime.Enabled)
	a.toggle(monitorThread, a.threadEnabled(oldCfg), a.threadEnabled(cfg))

	if a.ctx != nil {
		switch {
		case !cfg.Monitor.Process.Enabled:
			a.stopProcess()
		case !oldCfg.Monitor.Process.Enabled:
			a.startProcess(cfg)
		case oldCfg.Monitor.Process.Interval != cfg.Monitor.Process.Interval:
			a.stopProcess()
			a.startProcess(cfg)
		}
	}

	if !oldCfg.Status.Enabled && cfg.Status.Enabled && a.ctx != nil {
		srv := status.NewServer(cfg.Status.Addr, a.version, a.bridge, a, a.logger.Named("status"))
		if err := srv.Start(a.ctx); err != nil {
			a.logger.Error("failed to start status server", zap.Error(err))
		}
		srv.SetReady(true)
		a.status.Store(srv)
	} else if oldCfg.Status.Enabled && !cfg.Status.Enabled {
		a.status.Load().Stop()
	}

	if oldCfg.Hook != cfg.Hook {
		a.logger.Warn("hook settings changed, restart to apply",
			zap.String("engine", cfg.Hook.Engine),
		)
	}

	a.logger.Info("configuration reloaded",
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("cost_time", cfg.Monitor.CostTime.Enabled),
		zap.Duration("threshold", cfg.Monitor.CostTime.Threshold),
		zap.Bool("thread", cfg.Monitor.Thread.Enabled),
		zap.Bool("process", cfg.Monitor.Process.Enabled),
		zap.Bool("status", cfg.Status.Enabled),
	)
	return nil
}

func (a *Agent) toggle(name string, was, now bool) {
	switch {
	case !was && now:
		for _, t := range a.targets {
			a.install(name, t)
		}
	case was && !now:
		a.uninstall(name)
	}
}

// Stop removes every hook installed through the bridge and shuts down the
// status server.
func (a *Agent) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}

	a.stopProcess()

	srv := a.status.Load()
	srv.SetReady(false)
	var err error
	if a.cfg.Load().Status.Enabled {
		err = srv.Stop()
	}

	removed := a.bridge.UnhookAll()
	a.handles = make(map[string][]*hook.Handle)

	stats := a.bridge.Stats()
	ct := a.costTime.Snapshot()
	a.logger.Info("agent stopped",
		zap.Int("unhooked", removed),
		zap.Int("still_active", stats.Active),
		zap.Int64("installed", stats.Installed),
		zap.Int64("failed", stats.Failed),
		zap.Int64("calls", ct.Calls),
		zap.Int64("slow_calls", ct.Slow),
	)
	return err
}

// CostTime implements status.Monitors.
func (a *Agent) CostTime() (monitor.CostTimeSnapshot, bool) {
	if !a.cfg.Load().Monitor.CostTime.Enabled {
		return monitor.CostTimeSnapshot{}, false
	}
	return a.costTime.Snapshot(), true
}

// Thread implements status.Monitors.
func (a *Agent) Thread() (monitor.ThreadSnapshot, bool) {
	if !a.threadEnabled(a.cfg.Load()) {
		return monitor.ThreadSnapshot{}, false
	}
	return a.thread.Snapshot(), true
}

// Process implements status.Monitors.
func (a *Agent) Process() (monitor.ProcessSnapshot, bool) {
	pm := a.process.Load()
	if pm == nil {
		return monitor.ProcessSnapshot{}, false
	}
	return pm.Snapshot(), true
}
