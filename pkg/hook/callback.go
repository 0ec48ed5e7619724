// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package hook

import "sync"

// MethodHook is the callback descriptor handed to an engine.
//
// Cooperative engines run Before and After around the original call.
// Code-patching engines that cannot build closures at runtime use
// Replacement, a compiled function with the target's signature (receiver
// first for methods), and optionally Trampoline, a function of the same
// signature that the engine turns into a call path to the original.
type MethodHook struct {
	Name     string
	Priority int

	Before func(*Call)
	After  func(*Call)

	Replacement any
	Trampoline  any
}

func (h *MethodHook) label() string {
	if h == nil {
		return ""
	}
	return h.Name
}

// HasCallbacks reports whether Before or After is set.
func (h *MethodHook) HasCallbacks() bool {
	return h != nil && (h.Before != nil || h.After != nil)
}

// Call carries one intercepted invocation through the callbacks.
type Call struct {
	Member   *Member
	Receiver any
	Args     []any

	results     []any
	returnEarly bool

	mu     sync.Mutex
	extras map[string]any
}

// NewCall is used by engines to start an invocation.
func NewCall(member *Member, receiver any, args []any) *Call {
	return &Call{Member: member, Receiver: receiver, Args: args}
}

// Result returns the current results. Before the original runs it is nil
// unless a Before callback set one.
func (c *Call) Result() []any { return c.results }

// SetResult replaces the results. Called from Before, it also skips the
// original call.
func (c *Call) SetResult(values ...any) {
	c.results = values
	c.returnEarly = true
}

// ReturnEarly reports whether a callback has supplied the results.
func (c *Call) ReturnEarly() bool { return c.returnEarly }

// CompleteOriginal records what the original returned. Engines call it after
// invoking the original so After callbacks see the real results.
func (c *Call) CompleteOriginal(results []any) {
	c.results = results
	c.returnEarly = false
}

// Set stores a value shared between Before and After of the same call.
func (c *Call) Set(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.extras == nil {
		c.extras = make(map[string]any)
	}
	c.extras[key] = v
}

// Get returns a value stored with Set.
func (c *Call) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.extras[key]
	return v, ok
}
