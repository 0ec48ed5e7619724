// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

//go:build amd64 || 386

package gohook

import (
	"fmt"
	"reflect"
	"sync"

	gh "github.com/brahma-adshonor/gohook"
	"github.com/mbeema/perfhook/pkg/config"
	"github.com/mbeema/perfhook/pkg/hook"
	"go.uber.org/zap"
)

// Engine patches target prologues with a jump to the replacement. A target
// can carry one replacement at a time.
type Engine struct {
	debug  bool
	logger *zap.Logger

	mu     sync.Mutex
	hooked map[string]patch // symbol -> installed patch
}

type patch struct {
	target *hook.Member
	cb     *hook.MethodHook
}

var (
	_ hook.Engine   = (*Engine)(nil)
	_ hook.Unhooker = (*Engine)(nil)
)

func newEngine(cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		debug:  cfg.Hook.Debug,
		logger: logger,
		hooked: make(map[string]patch),
	}
}

func (e *Engine) Name() string    { return Name }
func (e *Engine) Kind() hook.Kind { return hook.KindGoHook }

// Hook patches target to jump to cb.Replacement. If cb.Trampoline is set,
// gohook rewrites it so calling it runs the original code.
func (e *Engine) Hook(target *hook.Member, cb *hook.MethodHook) error {
	if err := validate(target, cb); err != nil {
		return err
	}
	sym := target.Symbol()

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.hooked[sym]; dup {
		return fmt.Errorf("gohook: %s already patched", sym)
	}

	var err error
	if target.Kind == hook.MemberMethod {
		err = gh.HookMethod(receiverOf(target), target.Name, cb.Replacement, cb.Trampoline)
	} else {
		err = gh.Hook(target.Func.Interface(), cb.Replacement, cb.Trampoline)
	}
	if err != nil {
		return fmt.Errorf("gohook: patch %s: %w", sym, err)
	}
	e.hooked[sym] = patch{target: target, cb: cb}

	if e.debug {
		e.logger.Debug("gohook patched", zap.String("symbol", sym), zap.String("info", gh.ShowDebugInfo()))
	}
	return nil
}

// Unhook restores the original prologue of target.
func (e *Engine) Unhook(target *hook.Member, cb *hook.MethodHook) error {
	sym := target.Symbol()

	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.hooked[sym]
	if !ok || p.cb != cb {
		return fmt.Errorf("%w: %s not patched with this callback", hook.ErrNotFound, sym)
	}
	if err := restore(p.target); err != nil {
		return err
	}
	delete(e.hooked, sym)
	return nil
}

// Close restores every patched target.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for sym, p := range e.hooked {
		if err := restore(p.target); err != nil {
			e.logger.Warn("gohook restore failed", zap.String("symbol", sym), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delete(e.hooked, sym)
	}
	return firstErr
}

func restore(target *hook.Member) error {
	var err error
	if target.Kind == hook.MemberMethod {
		err = gh.UnHookMethod(receiverOf(target), target.Name)
	} else {
		err = gh.UnHook(target.Func.Interface())
	}
	if err != nil {
		return fmt.Errorf("gohook: restore %s: %w", target.Symbol(), err)
	}
	return nil
}

// receiverOf returns a zero value of the method's receiver type; gohook only
// needs its type to find the method.
func receiverOf(target *hook.Member) any {
	return reflect.Zero(target.Receiver).Interface()
}
