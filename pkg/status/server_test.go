// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mbeema/perfhook/pkg/hook"
	"github.com/mbeema/perfhook/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ledger struct{ total int }

func (l *ledger) Post(n int) int { l.total += n; return l.total }

var ledgerType = hook.MustClassOf(ledger{})

type fakeBridge struct {
	handles []*hook.Handle
	refuse  bool
}

func (f *fakeBridge) Handles() []*hook.Handle { return f.handles }

func (f *fakeBridge) Stats() hook.StatsSnapshot {
	return hook.StatsSnapshot{Engine: "probe", Kind: "probe", Installed: 3, Failed: 1, Active: len(f.handles)}
}

func (f *fakeBridge) Unhook(h *hook.Handle) bool {
	if f.refuse {
		return false
	}
	for i, cur := range f.handles {
		if cur == h {
			f.handles = append(f.handles[:i], f.handles[i+1:]...)
			return true
		}
	}
	return false
}

type fakeMonitors struct{}

func (fakeMonitors) CostTime() (monitor.CostTimeSnapshot, bool) {
	return monitor.CostTimeSnapshot{Calls: 10, Slow: 2, Max: 1500 * time.Millisecond, Threshold: 200 * time.Millisecond}, true
}

func (fakeMonitors) Thread() (monitor.ThreadSnapshot, bool) {
	return monitor.ThreadSnapshot{}, false
}

func (fakeMonitors) Process() (monitor.ProcessSnapshot, bool) {
	return monitor.ProcessSnapshot{RSSBytes: 1024, Threads: 6}, true
}

func newBridge() *fakeBridge {
	post := ledgerType.MethodsNamed("Post")[0]
	return &fakeBridge{handles: []*hook.Handle{
		{ID: "h1", Member: post, Callback: &hook.MethodHook{Name: "cost-time", Priority: 5}, Engine: "probe", InstalledAt: time.Unix(100, 0)},
		{ID: "h2", Member: post, Callback: &hook.MethodHook{Name: "thread"}, Engine: "probe", InstalledAt: time.Unix(200, 0)},
	}}
}

func serve(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(":0", "1.0.0-test", newBridge(), nil, zap.NewNop())

	w := serve(t, srv, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var hr healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hr))
	assert.Equal(t, "healthy", hr.Status)
	assert.Equal(t, "1.0.0-test", hr.Version)
	assert.Equal(t, "probe", hr.Engine)
}

func TestReadyEndpoint(t *testing.T) {
	srv := NewServer(":0", "test", newBridge(), nil, zap.NewNop())
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, srv, http.MethodGet, "/ready").Code)

	srv.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(t, srv, http.MethodGet, "/ready").Code)
}

func TestHooksEndpoint(t *testing.T) {
	srv := NewServer(":0", "test", newBridge(), nil, zap.NewNop())

	w := serve(t, srv, http.MethodGet, "/hooks")
	require.Equal(t, http.StatusOK, w.Code)

	var views []hookView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "h1", views[0].ID)
	assert.Equal(t, "cost-time", views[0].Callback)
	assert.Equal(t, 5, views[0].Priority)
	assert.Contains(t, views[0].Member, "ledger.Post")
	assert.Contains(t, views[0].Symbol, "ledger.Post")
}

func TestHookByID(t *testing.T) {
	srv := NewServer(":0", "test", newBridge(), nil, zap.NewNop())

	w := serve(t, srv, http.MethodGet, "/hooks/h2")
	require.Equal(t, http.StatusOK, w.Code)
	var v hookView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "thread", v.Callback)

	assert.Equal(t, http.StatusNotFound, serve(t, srv, http.MethodGet, "/hooks/nope").Code)
}

func TestUnhookEndpoint(t *testing.T) {
	b := newBridge()
	srv := NewServer(":0", "test", b, nil, zap.NewNop())

	assert.Equal(t, http.StatusNoContent, serve(t, srv, http.MethodDelete, "/hooks/h1").Code)
	assert.Len(t, b.handles, 1)
	assert.Equal(t, http.StatusNotFound, serve(t, srv, http.MethodDelete, "/hooks/h1").Code)

	b.refuse = true
	assert.Equal(t, http.StatusConflict, serve(t, srv, http.MethodDelete, "/hooks/h2").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := NewServer(":0", "test", newBridge(), nil, zap.NewNop())
	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, srv, http.MethodPost, "/hooks").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := NewServer(":0", "test", newBridge(), fakeMonitors{}, zap.NewNop())

	w := serve(t, srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))

	body := w.Body.String()
	for _, want := range []string{
		`perfhook_engine_info{engine="probe",kind="probe"} 1`,
		"perfhook_hooks_installed_total 3",
		"perfhook_hooks_failed_total 1",
		"perfhook_hooks_active 2",
		"perfhook_calls_total 10",
		"perfhook_slow_calls_total 2",
		"perfhook_call_max_seconds 1.5",
		"perfhook_slow_threshold_seconds 0.2",
		"# TYPE perfhook_hooks_active gauge",
		"perfhook_process_rss_bytes 1024",
		"perfhook_process_threads 6",
	} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, "perfhook_threads_peak")
}

func TestStatsEndpoint(t *testing.T) {
	srv := NewServer(":0", "test", newBridge(), fakeMonitors{}, zap.NewNop())

	w := serve(t, srv, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, int64(3), snap.Hooks.Installed)
	require.NotNil(t, snap.CostTime)
	assert.Equal(t, int64(2), snap.CostTime.Slow)
	assert.Nil(t, snap.Thread)
	require.NotNil(t, snap.Process)
	assert.Equal(t, int32(6), snap.Process.Threads)
}

func TestServerLifecycle(t *testing.T) {
	srv := NewServer("127.0.0.1:0", "test", newBridge(), nil, zap.NewNop())
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")
}

func TestStopBeforeStart(t *testing.T) {
	srv := NewServer(":0", "test", newBridge(), nil, zap.NewNop())
	assert.NoError(t, srv.Stop())
}
