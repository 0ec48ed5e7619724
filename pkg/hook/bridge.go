// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package hook

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Bridge resolves hook targets and forwards them to the selected Engine.
// No Bridge method returns an engine error or lets an engine panic escape;
// failures are logged and counted.
type Bridge struct {
	engine Engine
	logger *zap.Logger
	stats  Stats

	mu      sync.Mutex
	handles []*Handle
}

// NewBridge creates a bridge over engine. A nil engine is allowed; every
// hook request then fails with ErrNoEngine.
func NewBridge(engine Engine, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{engine: engine, logger: logger}
}

// Engine returns the selected engine, or nil.
func (b *Bridge) Engine() Engine { return b.engine }

// Kind returns the selected engine's kind.
func (b *Bridge) Kind() Kind {
	if b.engine == nil {
		return KindUnknown
	}
	return b.engine.Kind()
}

// Is reports whether the selected engine is of kind k.
func (b *Bridge) Is(k Kind) bool { return b.engine != nil && b.engine.Kind() == k }

func (b *Bridge) IsEpic() bool     { return b.Is(KindEpic) }
func (b *Bridge) IsSandHook() bool { return b.Is(KindSandHook) }
func (b *Bridge) IsFastHook() bool { return b.Is(KindFastHook) }

// HookAllConstructors hooks every constructor declared on class.
func (b *Bridge) HookAllConstructors(class *Class, cb *MethodHook) []*Handle {
	if class == nil {
		b.logMissing("HookAllConstructors", errors.New("nil class"))
		return nil
	}
	ctors := class.DeclaredConstructors()
	if len(ctors) == 0 {
		b.logMissing("HookAllConstructors", fmt.Errorf("%w: %s declares no constructors", ErrNotFound, class.Name()))
	}
	return b.hookAll(ctors, cb)
}

// FindAllAndHookMethod hooks every declared member of class named name,
// regardless of signature.
func (b *Bridge) FindAllAndHookMethod(class *Class, name string, cb *MethodHook) []*Handle {
	if class == nil {
		b.logMissing("FindAllAndHookMethod", errors.New("nil class"))
		return nil
	}
	members := class.MethodsNamed(name)
	if len(members) == 0 {
		b.logMissing("FindAllAndHookMethod", fmt.Errorf("%w: %s.%s", ErrNotFound, class.Name(), name))
	}
	return b.hookAll(members, cb)
}

// FindAndHookMethod hooks the method of class named name. The last element
// of paramTypesAndCallback is the callback (*MethodHook or MethodHook); any
// elements before it are parameter types, given as reflect.Type or as sample
// values whose dynamic type is used. Without parameter types every member
// with that name is hooked.
func (b *Bridge) FindAndHookMethod(class *Class, name string, paramTypesAndCallback ...any) []*Handle {
	params, cb, err := splitParamsAndCallback(paramTypesAndCallback)
	if err != nil {
		b.logMissing("FindAndHookMethod", err)
		return nil
	}
	if class == nil {
		b.logMissing("FindAndHookMethod", errors.New("nil class"))
		return nil
	}

	var members []*Member
	if len(params) == 0 {
		members = class.MethodsNamed(name)
	} else if m, err := class.DeclaredMethod(name, params...); err != nil {
		b.logger.Error("findMethodList", zap.String("class", class.Name()), zap.Error(err))
	} else {
		members = append(members, m)
	}
	if len(members) == 0 {
		b.logMissing("FindAndHookMethod", fmt.Errorf("%w: %s.%s", ErrNotFound, class.Name(), name))
	}
	return b.hookAll(members, cb)
}

// HookMethod forwards one target to the engine. It returns the handle of the
// installed hook, or nil if anything failed.
func (b *Bridge) HookMethod(member *Member, cb *MethodHook) (h *Handle) {
	if member == nil {
		b.fail(member, cb, errors.New("nil member"))
		return nil
	}
	b.logger.Debug("hookMethod target", zap.Stringer("member", member))

	if b.engine == nil {
		b.fail(member, cb, ErrNoEngine)
		return nil
	}
	if cb == nil {
		b.fail(member, cb, ErrEmptyCallback)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			b.fail(member, cb, fmt.Errorf("engine %s panicked: %v", b.engine.Name(), r))
			h = nil
		}
	}()

	if err := b.engine.Hook(member, cb); err != nil {
		b.fail(member, cb, err)
		return nil
	}

	h = newHandle(member, cb, b.engine.Name())
	b.mu.Lock()
	b.handles = append(b.handles, h)
	b.mu.Unlock()
	b.stats.Installed.Add(1)
	return h
}

// Unhook removes an installed hook if the engine supports it. It reports
// whether the hook was removed.
func (b *Bridge) Unhook(h *Handle) bool {
	if h == nil || b.engine == nil {
		return false
	}
	u, ok := b.engine.(Unhooker)
	if !ok {
		b.logger.Warn("engine cannot unhook", zap.String("engine", b.engine.Name()))
		return false
	}

	if err := b.safeUnhook(u, h); err != nil {
		b.logger.Error("unhook", zap.Stringer("member", h.Member), zap.String("id", h.ID), zap.Error(err))
		return false
	}

	b.mu.Lock()
	for i, cur := range b.handles {
		if cur == h {
			b.handles = append(b.handles[:i], b.handles[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	b.stats.Unhooked.Add(1)
	return true
}

func (b *Bridge) safeUnhook(u Unhooker, h *Handle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine %s panicked: %v", b.engine.Name(), r)
		}
	}()
	return u.Unhook(h.Member, h.Callback)
}

// UnhookAll removes every hook installed through this bridge, newest first,
// and returns how many were removed.
func (b *Bridge) UnhookAll() int {
	handles := b.Handles()
	n := 0
	for i := len(handles) - 1; i >= 0; i-- {
		if b.Unhook(handles[i]) {
			n++
		}
	}
	return n
}

// Handles returns the installed hooks in installation order.
func (b *Bridge) Handles() []*Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Handle(nil), b.handles...)
}

// Stats returns current counters.
func (b *Bridge) Stats() StatsSnapshot {
	snap := StatsSnapshot{
		Kind:      b.Kind().String(),
		Installed: b.stats.Installed.Load(),
		Failed:    b.stats.Failed.Load(),
		Unhooked:  b.stats.Unhooked.Load(),
	}
	if b.engine != nil {
		snap.Engine = b.engine.Name()
	}
	b.mu.Lock()
	snap.Active = len(b.handles)
	b.mu.Unlock()
	return snap
}

func (b *Bridge) hookAll(members []*Member, cb *MethodHook) []*Handle {
	var out []*Handle
	for _, m := range members {
		if h := b.HookMethod(m, cb); h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (b *Bridge) fail(member *Member, cb *MethodHook, err error) {
	b.stats.Failed.Add(1)
	b.logger.Error("hookMethod",
		zap.Stringer("member", member),
		zap.String("callback", cb.label()),
		zap.Error(err),
	)
}

func (b *Bridge) logMissing(op string, err error) {
	b.logger.Error("no hook targets", zap.String("op", op), zap.Error(err))
}

func splitParamsAndCallback(args []any) ([]reflect.Type, *MethodHook, error) {
	if len(args) == 0 {
		return nil, nil, errors.New("missing callback")
	}

	var cb *MethodHook
	switch v := args[len(args)-1].(type) {
	case *MethodHook:
		cb = v
	case MethodHook:
		cb = &v
	default:
		return nil, nil, fmt.Errorf("last argument is %T, want *hook.MethodHook", v)
	}
	if cb == nil {
		return nil, nil, errors.New("nil callback")
	}

	params := make([]reflect.Type, 0, len(args)-1)
	for i, a := range args[:len(args)-1] {
		switch v := a.(type) {
		case nil:
			return nil, nil, fmt.Errorf("parameter type %d is nil", i)
		case reflect.Type:
			params = append(params, v)
		default:
			params = append(params, reflect.TypeOf(v))
		}
	}
	return params, cb, nil
}
