// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package gohook

import (
	"fmt"
	"reflect"

	"github.com/mbeema/perfhook/pkg/hook"
)

// validate checks that cb carries a compiled replacement (and optional
// trampoline) with exactly the target's signature. Closures built at run
// time cannot be spliced in, so Before/After alone are rejected.
func validate(target *hook.Member, cb *hook.MethodHook) error {
	if cb == nil {
		return hook.ErrEmptyCallback
	}
	if cb.Replacement == nil {
		if cb.HasCallbacks() {
			return fmt.Errorf("%w: gohook needs a compiled Replacement, not Before/After", hook.ErrUnsupportedCallback)
		}
		return hook.ErrEmptyCallback
	}

	want := target.Func.Type()
	if err := checkFunc("replacement", cb.Replacement, want); err != nil {
		return err
	}
	if cb.Trampoline != nil {
		if err := checkFunc("trampoline", cb.Trampoline, want); err != nil {
			return err
		}
	}
	return nil
}

func checkFunc(role string, fn any, want reflect.Type) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Errorf("%w: %s is %T, not a function", hook.ErrUnsupportedCallback, role, fn)
	}
	if v.Type() != want {
		return fmt.Errorf("%w: %s has type %s, target needs %s", hook.ErrUnsupportedCallback, role, v.Type(), want)
	}
	return nil
}
