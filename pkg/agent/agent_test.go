// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/mbeema/perfhook/pkg/config"
	"github.com/mbeema/perfhook/pkg/engine/probe"
	"github.com/mbeema/perfhook/pkg/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type queue struct{ items []string }

var (
	pushSite, newQueueSite *probe.Site
	queueType              = hook.MustClassOf(queue{}, hook.WithConstructors(newQueue))
)

func init() {
	pushSite = probe.NewSite((*queue).Push)
	newQueueSite = probe.NewSite(newQueue)
}

func newQueue() *queue {
	res := newQueueSite.Run(nil, nil, func([]any) []any { return []any{&queue{}} })
	return probe.Out[*queue](res, 0)
}

func (q *queue) Push(item string) int {
	res := pushSite.Run(q, []any{item}, func(args []any) []any {
		q.items = append(q.items, args[0].(string))
		return []any{len(q.items)}
	})
	return probe.Out[int](res, 0)
}

func newTestAgent(t *testing.T, cfg *config.Config, opts ...Option) *Agent {
	t.Helper()
	logger := zap.NewNop()
	b := hook.NewBridge(probe.New(false, logger), logger)
	a, err := New(cfg, logger, append([]Option{WithBridge(b)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Stop() })
	return a
}

// monitors returns how many monitors the agent installs per target.
func monitors(a *Agent) int {
	n := 0
	cfg := a.cfg.Load()
	if cfg.Monitor.CostTime.Enabled {
		n++
	}
	if a.threadEnabled(cfg) {
		n++
	}
	return n
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogLevel = "verbose"
	_, err := New(cfg, zap.NewNop(), WithBridge(hook.NewBridge(nil, nil)))
	assert.Error(t, err)
}

func TestWatchInstallsMonitors(t *testing.T) {
	a := newTestAgent(t, config.DefaultConfig())

	hs := a.Watch(queueType, "Push")
	assert.Len(t, hs, monitors(a))
	assert.Equal(t, monitors(a), pushSite.Attached())

	q := &queue{}
	assert.Equal(t, 1, q.Push("a"))
	assert.Equal(t, 2, q.Push("b"))

	ct, ok := a.CostTime()
	require.True(t, ok)
	assert.Equal(t, int64(2), ct.Calls)
	assert.Equal(t, int64(0), ct.Slow)

	if th, ok := a.Thread(); ok {
		assert.Equal(t, int64(2), th.Calls)
	}
}

func TestWatchWithParamTypes(t *testing.T) {
	a := newTestAgent(t, config.DefaultConfig())
	assert.Len(t, a.Watch(queueType, "Push", ""), monitors(a))
	assert.Empty(t, a.Watch(queueType, "Push", 0))
}

func TestWatchConstructors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Monitor.Thread.Enabled = false
	a := newTestAgent(t, cfg)

	hs := a.WatchConstructors(queueType)
	require.Len(t, hs, 1)
	newQueue()

	ct, _ := a.CostTime()
	assert.Equal(t, int64(1), ct.Calls)
}

func TestReloadThresholdAndLevel(t *testing.T) {
	lvl := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	a := newTestAgent(t, config.DefaultConfig(), WithLevel(lvl))

	cfg := config.DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.Monitor.CostTime.Threshold = time.Nanosecond
	require.NoError(t, a.Reload(cfg))

	assert.Equal(t, zapcore.DebugLevel, lvl.Level())
	ct, _ := a.CostTime()
	assert.Equal(t, time.Nanosecond, ct.Threshold)

	a.Watch(queueType, "Push")
	(&queue{}).Push("x")
	ct, _ = a.CostTime()
	assert.Equal(t, int64(1), ct.Slow)
}

func TestReloadTogglesMonitors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Monitor.Thread.Enabled = false
	a := newTestAgent(t, cfg)

	a.Watch(queueType, "Push")
	require.Equal(t, 1, pushSite.Attached())

	off := config.DefaultConfig()
	off.Monitor.Thread.Enabled = false
	off.Monitor.CostTime.Enabled = false
	require.NoError(t, a.Reload(off))
	assert.Equal(t, 0, pushSite.Attached())
	_, ok := a.CostTime()
	assert.False(t, ok)

	on := config.DefaultConfig()
	on.Monitor.Thread.Enabled = false
	require.NoError(t, a.Reload(on))
	assert.Equal(t, 1, pushSite.Attached())
}

func TestReloadRejectsInvalidConfig(t *testing.T) {
	a := newTestAgent(t, config.DefaultConfig())
	bad := config.DefaultConfig()
	bad.LogLevel = "loud"
	assert.Error(t, a.Reload(bad))
	assert.Equal(t, "info", a.cfg.Load().LogLevel)
}

func TestStopUnhooksEverything(t *testing.T) {
	a := newTestAgent(t, config.DefaultConfig())
	a.Watch(queueType, "Push")
	a.WatchConstructors(queueType)
	require.NotZero(t, pushSite.Attached())

	require.NoError(t, a.Stop())
	assert.Equal(t, 0, pushSite.Attached())
	assert.Equal(t, 0, newQueueSite.Attached())
	assert.Empty(t, a.Bridge().Handles())
}

func TestStartServesStatus(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Status.Enabled = true
	cfg.Status.Addr = "127.0.0.1:0"
	a := newTestAgent(t, cfg)
	require.NoError(t, a.Start(context.Background()))

	a.Watch(queueType, "Push")

	resp, err := http.Get("http://" + a.Status().Addr() + "/hooks")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	assert.Len(t, views, monitors(a))
}

func TestProcessSamplerFollowsConfig(t *testing.T) {
	a := newTestAgent(t, config.DefaultConfig())
	_, ok := a.Process()
	assert.False(t, ok, "sampler starts with the agent")

	require.NoError(t, a.Start(context.Background()))
	assert.Eventually(t, func() bool {
		ps, ok := a.Process()
		return ok && !ps.SampledAt.IsZero()
	}, time.Second, 10*time.Millisecond)

	off := config.DefaultConfig()
	off.Monitor.Process.Enabled = false
	require.NoError(t, a.Reload(off))
	_, ok = a.Process()
	assert.False(t, ok)
}

func TestStatusServerSwapDuringReload(t *testing.T) {
	a := newTestAgent(t, config.DefaultConfig())
	require.NoError(t, a.Start(context.Background()))
	first := a.Status()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = a.Status().Addr()
		}
	}()

	on := config.DefaultConfig()
	on.Status.Enabled = true
	on.Status.Addr = "127.0.0.1:0"
	require.NoError(t, a.Reload(on))
	<-done

	assert.NotSame(t, first, a.Status())
	resp, err := http.Get("http://" + a.Status().Addr() + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
