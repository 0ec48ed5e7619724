// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package monitor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// ProcessSnapshot is the latest resource sample of the host process.
type ProcessSnapshot struct {
	SampledAt    time.Time `json:"sampled_at"`
	CPUPercent   float64   `json:"cpu_percent"`
	RSSBytes     uint64    `json:"rss_bytes"`
	VMSBytes     uint64    `json:"vms_bytes"`
	Threads      int32     `json:"threads"`
	FDs          int32     `json:"fds"`
	CtxVoluntary int64     `json:"ctx_switches_voluntary"`
	CtxInvol     int64     `json:"ctx_switches_involuntary"`
}

// sampler is the subset of *process.Process the collector reads.
type sampler interface {
	CPUPercent() (float64, error)
	MemoryInfo() (*process.MemoryInfoStat, error)
	NumThreads() (int32, error)
	NumFDs() (int32, error)
	NumCtxSwitches() (*process.NumCtxSwitchesStat, error)
}

// Process periodically samples CPU, memory, threads and descriptors of the
// host process. It complements the per-call hooks with a background view.
type Process struct {
	logger *zap.Logger
	proc   sampler

	mu   sync.RWMutex
	last ProcessSnapshot

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewProcess creates a sampler for the current process.
func NewProcess(logger *zap.Logger) (*Process, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("open self process: %w", err)
	}
	return newProcess(p, logger), nil
}

func newProcess(p sampler, logger *zap.Logger) *Process {
	return &Process{
		logger: logger,
		proc:   p,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic sampling.
func (pm *Process) Start(ctx context.Context, interval time.Duration) error {
	if interval == 0 {
		interval = 15 * time.Second
	}

	pm.wg.Add(1)
	go func() {
		defer pm.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Collect once immediately
		pm.collect()

		for {
			select {
			case <-ticker.C:
				pm.collect()
			case <-pm.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	pm.logger.Info("process sampler started", zap.Duration("interval", interval))
	return nil
}

// Stop halts sampling.
func (pm *Process) Stop() error {
	pm.stopOnce.Do(func() { close(pm.stopCh) })
	pm.wg.Wait()
	return nil
}

// Snapshot returns the latest sample.
func (pm *Process) Snapshot() ProcessSnapshot {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.last
}

func (pm *Process) collect() {
	snap := ProcessSnapshot{SampledAt: time.Now()}

	if cpu, err := pm.proc.CPUPercent(); err == nil {
		snap.CPUPercent = cpu
	}
	if mem, err := pm.proc.MemoryInfo(); err == nil {
		snap.RSSBytes = mem.RSS
		snap.VMSBytes = mem.VMS
	}
	if n, err := pm.proc.NumThreads(); err == nil {
		snap.Threads = n
	}
	if n, err := pm.proc.NumFDs(); err == nil {
		snap.FDs = n
	} else {
		pm.logger.Debug("fd count unavailable", zap.Error(err))
	}
	if cs, err := pm.proc.NumCtxSwitches(); err == nil {
		snap.CtxVoluntary = cs.Voluntary
		snap.CtxInvol = cs.Involuntary
	}

	pm.mu.Lock()
	pm.last = snap
	pm.mu.Unlock()
}
