// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mbeema/perfhook/pkg/agent"
	"github.com/mbeema/perfhook/pkg/config"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"
)

type runOptions struct {
	interval      time.Duration
	statsInterval time.Duration
	duration      time.Duration
	maxLag        time.Duration
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo workload with monitors attached",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.interval, "interval", 100*time.Millisecond, "delay between workload calls")
	cmd.Flags().DurationVar(&opts.statsInterval, "stats-interval", 5*time.Second, "how often to log hook statistics")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().DurationVar(&opts.maxLag, "max-lag", 400*time.Millisecond, "upper bound of simulated work per call")
	return cmd
}

func (o runOptions) validate() error {
	if o.interval <= 0 {
		return fmt.Errorf("--interval must be positive (got %s)", o.interval)
	}
	if o.statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive (got %s)", o.statsInterval)
	}
	if o.duration < 0 {
		return fmt.Errorf("--duration must not be negative (got %s)", o.duration)
	}
	if o.maxLag < 0 {
		return fmt.Errorf("--max-lag must not be negative (got %s)", o.maxLag)
	}
	return nil
}

func run(ctx context.Context, flags *globalFlags, opts runOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}

	cfg, err := flags.load()
	if err != nil {
		return err
	}

	logger, level, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	atexit.Register(func() { logger.Sync() })

	logger.Info("starting perfhook",
		zap.String("version", version),
		zap.String("commit", commit),
	)

	a, err := agent.New(cfg, logger, agent.WithLevel(level), agent.WithVersion(version))
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}

	// Hooks must be removed even when the process exits through atexit.Exit
	// or Fatal.
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			if err := a.Stop(); err != nil {
				logger.Error("error during shutdown", zap.Error(err))
			}
		})
	}
	atexit.Register(stop)

	a.WatchConstructors(ordersType)
	a.Watch(ordersType, "Place", "", 0)
	a.Watch(ordersType, "Restock")
	o := newOrders(opts.maxLag)

	onChange := func(newCfg *config.Config, changed []string) {
		if flags.logLevel != "" {
			newCfg.LogLevel = flags.logLevel
		}
		if err := a.Reload(newCfg); err != nil {
			logger.Error("failed to apply reloaded config",
				zap.Strings("files", changed),
				zap.Error(err),
			)
		}
	}
	var watcher *config.Watcher
	switch {
	case flags.configDir != "":
		watcher = config.NewWatcher(flags.configDir, onChange, logger)
	case flags.configPath != "":
		watcher = config.NewFileWatcher(flags.configPath, onChange, logger)
	}
	if watcher != nil {
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	defer signal.Stop(hupCh)

	var deadline <-chan time.Time
	if opts.duration > 0 {
		deadline = time.After(opts.duration)
	}
	work := time.NewTicker(opts.interval)
	defer work.Stop()
	report := time.NewTicker(opts.statsInterval)
	defer report.Stop()

	for i := 0; ; i++ {
		select {
		case <-work.C:
			o.step(i)

		case <-report.C:
			logStats(logger, a)

		case <-deadline:
			logger.Info("run duration elapsed")
			logStats(logger, a)
			return shutdown(logger, stop)

		case sig := <-sigCh:
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
			return shutdown(logger, stop)

		case <-hupCh:
			logger.Info("received SIGHUP, reloading configuration")
			newCfg, err := flags.load()
			if err != nil {
				logger.Error("failed to reload config", zap.Error(err))
				continue
			}
			if err := a.Reload(newCfg); err != nil {
				logger.Error("failed to apply new config", zap.Error(err))
			}
		}
	}
}

func logStats(logger *zap.Logger, a *agent.Agent) {
	s := a.Bridge().Stats()
	fields := []zap.Field{
		zap.String("engine", s.Engine),
		zap.Int("active", s.Active),
		zap.Int64("installed", s.Installed),
		zap.Int64("failed", s.Failed),
	}
	if ct, ok := a.CostTime(); ok {
		fields = append(fields,
			zap.Int64("calls", ct.Calls),
			zap.Int64("slow", ct.Slow),
			zap.Duration("max", ct.Max),
		)
	}
	if th, ok := a.Thread(); ok {
		fields = append(fields,
			zap.Int64("threads", th.Threads),
			zap.Int64("peak_goroutines", th.PeakGoroutines),
		)
	}
	logger.Info("hook stats", fields...)
}

// shutdown stops the agent with a 30s limit.
func shutdown(logger *zap.Logger, stop func()) error {
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("perfhook stopped")
	case <-time.After(30 * time.Second):
		logger.Error("shutdown timed out after 30s, forcing exit")
		atexit.Exit(1)
	}
	return nil
}
