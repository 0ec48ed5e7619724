// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package gohook adapts github.com/brahma-adshonor/gohook, which rewrites
// function prologues with jumps, to the hook.Engine interface. It can hook
// any non-inlined function or method but only with compiled replacements.
//
//	import _ "github.com/mbeema/perfhook/pkg/engine/gohook"
package gohook

import (
	"fmt"

	"github.com/mbeema/perfhook/pkg/config"
	"github.com/mbeema/perfhook/pkg/hook"
	"go.uber.org/zap"
)

// Name is the provider name registered with hook.Register.
const Name = "gohook"

func init() {
	hook.Register(Name, NewEngine)
}

// NewEngine is the provider factory. It fails with hook.ErrUnavailable on
// platforms gohook cannot patch.
func NewEngine(cfg *config.Config, logger *zap.Logger) (hook.Engine, error) {
	support := Detect()
	if !support.Available {
		return nil, fmt.Errorf("%w: %s", hook.ErrUnavailable, support.Reason)
	}
	logger.Debug("gohook engine available",
		zap.String("os", support.OS),
		zap.String("arch", support.Arch),
		zap.String("kernel", support.Kernel),
	)
	return newEngine(cfg, logger), nil
}
