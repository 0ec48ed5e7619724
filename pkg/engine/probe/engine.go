// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package probe is a pure-Go hook engine for code that declares its own
// interception sites. It patches no machine code, so it works on every
// platform Go supports, but only functions that call Site.Run can be hooked.
//
// Import it for its side effect to make it discoverable:
//
//	import _ "github.com/mbeema/perfhook/pkg/engine/probe"
package probe

import (
	"fmt"

	"github.com/mbeema/perfhook/pkg/config"
	"github.com/mbeema/perfhook/pkg/hook"
	"go.uber.org/zap"
)

// Name is the provider name registered with hook.Register.
const Name = "probe"

func init() {
	hook.Register(Name, func(cfg *config.Config, logger *zap.Logger) (hook.Engine, error) {
		return New(cfg.Hook.Debug, logger), nil
	})
}

// Engine attaches MethodHook callbacks to declared sites.
type Engine struct {
	debug  bool
	logger *zap.Logger
}

var (
	_ hook.Engine   = (*Engine)(nil)
	_ hook.Unhooker = (*Engine)(nil)
)

// New creates a probe engine.
func New(debug bool, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{debug: debug, logger: logger}
}

func (e *Engine) Name() string    { return Name }
func (e *Engine) Kind() hook.Kind { return hook.KindProbe }

// Hook attaches cb to the site declared for target.
func (e *Engine) Hook(target *hook.Member, cb *hook.MethodHook) error {
	if !cb.HasCallbacks() {
		if cb != nil && cb.Replacement != nil {
			return fmt.Errorf("%w: probe runs Before/After callbacks, not replacements", hook.ErrUnsupportedCallback)
		}
		return hook.ErrEmptyCallback
	}
	sym := target.Symbol()
	site, ok := Lookup(sym)
	if !ok {
		return fmt.Errorf("%w: no probe site declared for %s", hook.ErrNotInstrumented, sym)
	}
	site.attach(target, cb, e.logger)
	if e.debug {
		e.logger.Info("probe attached",
			zap.String("symbol", sym),
			zap.String("callback", cb.Name),
			zap.Int("attached", site.Attached()),
		)
	}
	return nil
}

// Unhook detaches cb from the site declared for target.
func (e *Engine) Unhook(target *hook.Member, cb *hook.MethodHook) error {
	sym := target.Symbol()
	site, ok := Lookup(sym)
	if !ok {
		return fmt.Errorf("%w: no probe site declared for %s", hook.ErrNotInstrumented, sym)
	}
	if !site.detach(cb) {
		return fmt.Errorf("%w: callback not attached to %s", hook.ErrNotFound, sym)
	}
	return nil
}
