// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package hook

// Package-level shorthands for the default bridge.

func IsEpic() bool     { return Default().IsEpic() }
func IsSandHook() bool { return Default().IsSandHook() }
func IsFastHook() bool { return Default().IsFastHook() }

func HookAllConstructors(class *Class, cb *MethodHook) []*Handle {
	return Default().HookAllConstructors(class, cb)
}

func FindAllAndHookMethod(class *Class, name string, cb *MethodHook) []*Handle {
	return Default().FindAllAndHookMethod(class, name, cb)
}

func FindAndHookMethod(class *Class, name string, paramTypesAndCallback ...any) []*Handle {
	return Default().FindAndHookMethod(class, name, paramTypesAndCallback...)
}

func HookMethod(member *Member, cb *MethodHook) *Handle {
	return Default().HookMethod(member, cb)
}

func Unhook(h *Handle) bool { return Default().Unhook(h) }

func UnhookAll() int { return Default().UnhookAll() }
