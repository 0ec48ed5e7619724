// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package status

import (
	"runtime"
	"strconv"
	"time"

	"github.com/mbeema/perfhook/pkg/hook"
	"github.com/mbeema/perfhook/pkg/monitor"
)

// Monitors exposes the optional monitor counters. Either accessor may
// report false when that monitor is disabled.
type Monitors interface {
	CostTime() (monitor.CostTimeSnapshot, bool)
	Thread() (monitor.ThreadSnapshot, bool)
	Process() (monitor.ProcessSnapshot, bool)
}

// Snapshot is a point-in-time copy of every exposed counter.
type Snapshot struct {
	UptimeSeconds  float64                   `json:"uptime_seconds"`
	Goroutines     int                       `json:"goroutines"`
	MemorySysBytes uint64                    `json:"memory_sys_bytes"`
	Hooks          hook.StatsSnapshot        `json:"hooks"`
	CostTime       *monitor.CostTimeSnapshot `json:"cost_time,omitempty"`
	Thread         *monitor.ThreadSnapshot   `json:"thread,omitempty"`
	Process        *monitor.ProcessSnapshot  `json:"process,omitempty"`
}

func (s *Server) snapshot() Snapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snap := Snapshot{
		UptimeSeconds:  time.Since(s.startTime).Seconds(),
		Goroutines:     runtime.NumGoroutine(),
		MemorySysBytes: memStats.Sys,
		Hooks:          s.bridge.Stats(),
	}
	if s.monitors != nil {
		if ct, ok := s.monitors.CostTime(); ok {
			snap.CostTime = &ct
		}
		if th, ok := s.monitors.Thread(); ok {
			snap.Thread = &th
		}
		if ps, ok := s.monitors.Process(); ok {
			snap.Process = &ps
		}
	}
	return snap
}

func prometheusFormat(snap Snapshot) string {
	var b []byte
	b = appendInfo(b, "perfhook_engine_info", "Selected hook engine",
		"engine", snap.Hooks.Engine, "kind", snap.Hooks.Kind)
	b = appendMetric(b, "perfhook_uptime_seconds", "gauge", "Uptime in seconds", snap.UptimeSeconds)
	b = appendMetric(b, "perfhook_goroutines", "gauge", "Number of goroutines", float64(snap.Goroutines))
	b = appendMetric(b, "perfhook_memory_sys_bytes", "gauge", "Memory obtained from the OS in bytes", float64(snap.MemorySysBytes))
	b = appendMetric(b, "perfhook_hooks_installed_total", "counter", "Hooks accepted by the engine", float64(snap.Hooks.Installed))
	b = appendMetric(b, "perfhook_hooks_failed_total", "counter", "Hooks the engine refused", float64(snap.Hooks.Failed))
	b = appendMetric(b, "perfhook_hooks_unhooked_total", "counter", "Hooks removed", float64(snap.Hooks.Unhooked))
	b = appendMetric(b, "perfhook_hooks_active", "gauge", "Hooks currently installed", float64(snap.Hooks.Active))
	if ct := snap.CostTime; ct != nil {
		b = appendMetric(b, "perfhook_calls_total", "counter", "Hooked calls timed", float64(ct.Calls))
		b = appendMetric(b, "perfhook_slow_calls_total", "counter", "Hooked calls over the threshold", float64(ct.Slow))
		b = appendMetric(b, "perfhook_call_max_seconds", "gauge", "Longest hooked call", ct.Max.Seconds())
		b = appendMetric(b, "perfhook_slow_threshold_seconds", "gauge", "Slow call threshold", ct.Threshold.Seconds())
	}
	if th := snap.Thread; th != nil {
		b = appendMetric(b, "perfhook_threads", "gauge", "OS threads at the last sample", float64(th.Threads))
		b = appendMetric(b, "perfhook_threads_peak", "gauge", "Peak OS threads", float64(th.PeakThreads))
		b = appendMetric(b, "perfhook_goroutines_peak", "gauge", "Peak goroutines after a hooked call", float64(th.PeakGoroutines))
	}
	if ps := snap.Process; ps != nil {
		b = appendMetric(b, "perfhook_process_cpu_percent", "gauge", "Process CPU usage percent", ps.CPUPercent)
		b = appendMetric(b, "perfhook_process_rss_bytes", "gauge", "Resident set size in bytes", float64(ps.RSSBytes))
		b = appendMetric(b, "perfhook_process_vms_bytes", "gauge", "Virtual memory size in bytes", float64(ps.VMSBytes))
		b = appendMetric(b, "perfhook_process_threads", "gauge", "OS threads at the last sample", float64(ps.Threads))
		b = appendMetric(b, "perfhook_process_fds", "gauge", "Open file descriptors", float64(ps.FDs))
		b = appendMetric(b, "perfhook_process_ctx_switches_voluntary_total", "counter", "Voluntary context switches", float64(ps.CtxVoluntary))
		b = appendMetric(b, "perfhook_process_ctx_switches_involuntary_total", "counter", "Involuntary context switches", float64(ps.CtxInvol))
	}
	return string(b)
}

func appendHeader(b []byte, name, typ, help string) []byte {
	b = append(b, "# HELP "...)
	b = append(b, name...)
	b = append(b, ' ')
	b = append(b, help...)
	b = append(b, '\n')
	b = append(b, "# TYPE "...)
	b = append(b, name...)
	b = append(b, ' ')
	b = append(b, typ...)
	b = append(b, '\n')
	return b
}

func appendMetric(b []byte, name, typ, help string, value float64) []byte {
	b = appendHeader(b, name, typ, help)
	b = append(b, name...)
	b = append(b, ' ')
	b = strconv.AppendFloat(b, value, 'g', -1, 64)
	b = append(b, '\n')
	return b
}

// appendInfo writes a gauge fixed at 1 whose labels carry the value.
// labels alternate name and value.
func appendInfo(b []byte, name, help string, labels ...string) []byte {
	b = appendHeader(b, name, "gauge", help)
	b = append(b, name...)
	b = append(b, '{')
	for i := 0; i+1 < len(labels); i += 2 {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, labels[i]...)
		b = append(b, '=')
		b = strconv.AppendQuote(b, labels[i+1])
	}
	b = append(b, "} 1\n"...)
	return b
}
