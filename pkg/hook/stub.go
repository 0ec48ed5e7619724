// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package hook

import (
	"fmt"

	"go.uber.org/zap"
)

// StubEngine is the Engine used when discovery finds no provider. The
// process runs normally; every hook request fails with the reason.
type StubEngine struct {
	reason string
	logger *zap.Logger
}

var _ Engine = (*StubEngine)(nil)

// NewStubEngine creates a stub engine that logs why hooking is unavailable.
func NewStubEngine(reason string, logger *zap.Logger) *StubEngine {
	logger.Warn("method hooking unavailable, running in stub mode",
		zap.String("reason", reason),
	)
	return &StubEngine{reason: reason, logger: logger}
}

func (s *StubEngine) Hook(target *Member, _ *MethodHook) error {
	return fmt.Errorf("%w: %s (target %s)", ErrUnavailable, s.reason, target)
}

func (s *StubEngine) Name() string {
	return "stub"
}

func (s *StubEngine) Kind() Kind {
	return KindStub
}

// Reason returns why no real engine was selected.
func (s *StubEngine) Reason() string {
	return s.reason
}
