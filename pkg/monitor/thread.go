// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package monitor

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/mbeema/perfhook/pkg/hook"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// Thread samples OS thread and goroutine counts after each hooked call and
// logs the call that pushed either to a new peak.
type Thread struct {
	logger       *zap.Logger
	numThreads   func() (int32, error)
	numGoroutine func() int

	calls          atomic.Int64
	threads        atomic.Int64
	peakThreads    atomic.Int64
	goroutines     atomic.Int64
	peakGoroutines atomic.Int64
}

// ThreadSnapshot is a point-in-time copy of Thread counters.
type ThreadSnapshot struct {
	Calls          int64 `json:"calls"`
	Threads        int64 `json:"threads"`
	PeakThreads    int64 `json:"peak_threads"`
	Goroutines     int64 `json:"goroutines"`
	PeakGoroutines int64 `json:"peak_goroutines"`
}

// NewThread creates a thread monitor for the current process.
func NewThread(logger *zap.Logger) (*Thread, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("open self process: %w", err)
	}
	return &Thread{
		logger:       logger,
		numThreads:   p.NumThreads,
		numGoroutine: runtime.NumGoroutine,
	}, nil
}

// Hook returns the callback descriptor.
func (m *Thread) Hook() *hook.MethodHook {
	return &hook.MethodHook{
		Name:  "thread",
		After: m.after,
	}
}

func (m *Thread) after(c *hook.Call) {
	m.calls.Add(1)

	g := int64(m.numGoroutine())
	m.goroutines.Store(g)
	if raisePeak(&m.peakGoroutines, g) {
		m.logger.Debug("goroutine peak",
			zap.Stringer("member", c.Member),
			zap.Int64("goroutines", g),
		)
	}

	n, err := m.numThreads()
	if err != nil {
		m.logger.Debug("thread count unavailable", zap.Error(err))
		return
	}
	m.threads.Store(int64(n))
	if raisePeak(&m.peakThreads, int64(n)) {
		m.logger.Info("thread peak",
			zap.Stringer("member", c.Member),
			zap.Int32("threads", n),
		)
	}
}

// raisePeak stores v if it exceeds the current peak and reports whether it
// did.
func raisePeak(peak *atomic.Int64, v int64) bool {
	for {
		cur := peak.Load()
		if v <= cur {
			return false
		}
		if peak.CompareAndSwap(cur, v) {
			return true
		}
	}
}

// Snapshot returns current counters.
func (m *Thread) Snapshot() ThreadSnapshot {
	return ThreadSnapshot{
		Calls:          m.calls.Load(),
		Threads:        m.threads.Load(),
		PeakThreads:    m.peakThreads.Load(),
		Goroutines:     m.goroutines.Load(),
		PeakGoroutines: m.peakGoroutines.Load(),
	}
}
