// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package monitor builds method hooks that watch the hooked code rather than
// change it: slow call detection and thread growth tracking.
package monitor

import (
	"sync/atomic"
	"time"

	"github.com/mbeema/perfhook/pkg/hook"
	"go.uber.org/zap"
)

const startKey = "monitor.cost_time.start"

// CostTime reports hooked calls that take longer than a threshold.
type CostTime struct {
	logger *zap.Logger
	now    func() time.Time

	threshold atomic.Int64 // nanoseconds
	calls     atomic.Int64
	slow      atomic.Int64
	maxNanos  atomic.Int64
}

// CostTimeSnapshot is a point-in-time copy of CostTime counters.
type CostTimeSnapshot struct {
	Calls     int64         `json:"calls"`
	Slow      int64         `json:"slow"`
	Max       time.Duration `json:"max_ns"`
	Threshold time.Duration `json:"threshold_ns"`
}

// NewCostTime creates a cost-time monitor.
func NewCostTime(threshold time.Duration, logger *zap.Logger) *CostTime {
	m := &CostTime{logger: logger, now: time.Now}
	m.threshold.Store(int64(threshold))
	return m
}

// SetThreshold changes the threshold for calls that start afterwards.
func (m *CostTime) SetThreshold(d time.Duration) {
	m.threshold.Store(int64(d))
}

// Hook returns the callback descriptor. It runs with the highest priority so
// its timing covers every other callback on the same target.
func (m *CostTime) Hook() *hook.MethodHook {
	return &hook.MethodHook{
		Name:     "cost-time",
		Priority: 1 << 20,
		Before: func(c *hook.Call) {
			c.Set(startKey, m.now())
		},
		After: m.after,
	}
}

func (m *CostTime) after(c *hook.Call) {
	v, ok := c.Get(startKey)
	if !ok {
		return
	}
	elapsed := m.now().Sub(v.(time.Time))
	m.calls.Add(1)

	for {
		cur := m.maxNanos.Load()
		if int64(elapsed) <= cur || m.maxNanos.CompareAndSwap(cur, int64(elapsed)) {
			break
		}
	}

	threshold := time.Duration(m.threshold.Load())
	if elapsed < threshold {
		return
	}
	m.slow.Add(1)
	m.logger.Warn("slow call",
		zap.Stringer("member", c.Member),
		zap.Duration("elapsed", elapsed),
		zap.Duration("threshold", threshold),
	)
}

// Snapshot returns current counters.
func (m *CostTime) Snapshot() CostTimeSnapshot {
	return CostTimeSnapshot{
		Calls:     m.calls.Load(),
		Slow:      m.slow.Load(),
		Max:       time.Duration(m.maxNanos.Load()),
		Threshold: time.Duration(m.threshold.Load()),
	}
}
