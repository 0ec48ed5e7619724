// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package hook

import (
	"github.com/mbeema/perfhook/pkg/config"
	"go.uber.org/zap"
)

// Kind identifies the interception technique behind an Engine.
type Kind int

const (
	KindUnknown Kind = iota
	KindEpic
	KindSandHook
	KindFastHook
	KindGoHook
	KindProbe
	KindStub
)

func (k Kind) String() string {
	switch k {
	case KindEpic:
		return "epic"
	case KindSandHook:
		return "sandhook"
	case KindFastHook:
		return "fasthook"
	case KindGoHook:
		return "gohook"
	case KindProbe:
		return "probe"
	case KindStub:
		return "stub"
	default:
		return "unknown"
	}
}

// Engine is the interface for method interception back ends.
// Implementations include the cooperative probe engine, the gohook
// code-patching engine and the stub used when nothing else loads. The
// facade never looks inside an engine; it only forwards resolved targets.
type Engine interface {
	// Name returns the provider name (e.g., "probe", "gohook", "stub").
	Name() string

	// Kind returns the interception technique.
	Kind() Kind

	// Hook installs cb on target. Engines may reject callback shapes they
	// cannot serve with ErrUnsupportedCallback.
	Hook(target *Member, cb *MethodHook) error
}

// Unhooker is an optional interface for engines that can remove a hook
// they installed earlier.
//
//	if u, ok := engine.(Unhooker); ok {
//	    u.Unhook(target, cb)
//	}
type Unhooker interface {
	Unhook(target *Member, cb *MethodHook) error
}

// Factory builds an Engine. Returning an error that wraps ErrUnavailable
// tells discovery not to retry.
type Factory func(cfg *config.Config, logger *zap.Logger) (Engine, error)
