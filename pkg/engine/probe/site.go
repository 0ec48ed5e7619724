// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package probe

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mbeema/perfhook/pkg/hook"
	"go.uber.org/zap"
)

// Site is an interception point compiled into a function body. The function
// declares its site once and routes every call through Run. Sites are
// created from init because a package-level initializer referring to the
// function it instruments would be an initialization cycle:
//
//	var greetSite *probe.Site
//
//	func init() { greetSite = probe.NewSite((*Greeter).Greet) }
//
//	func (g *Greeter) Greet(name string) string {
//	    res := greetSite.Run(g, []any{name}, func(args []any) []any {
//	        return []any{g.greet(args[0].(string))}
//	    })
//	    return probe.Out[string](res, 0)
//	}
type Site struct {
	symbol string

	mu    sync.Mutex // serialises writers; readers use hooks
	hooks atomic.Pointer[[]attached]
}

type attached struct {
	member *hook.Member
	cb     *hook.MethodHook
	logger *zap.Logger
	seq    uint64
}

var (
	sites sync.Map // symbol -> *Site
	seq   atomic.Uint64
)

// NewSite returns the site for fn, creating it on first use. Every call with
// the same function (in value or pointer receiver form) shares one site.
// It panics if fn is not a function.
func NewSite(fn any) *Site {
	sym := hook.SymbolOf(fn)
	if sym == "" {
		panic(fmt.Sprintf("probe: NewSite(%T) needs a non-nil function", fn))
	}
	s, _ := sites.LoadOrStore(sym, &Site{symbol: sym})
	return s.(*Site)
}

// Lookup finds the site declared for symbol.
func Lookup(symbol string) (*Site, bool) {
	s, ok := sites.Load(symbol)
	if !ok {
		return nil, false
	}
	return s.(*Site), true
}

// Symbol returns the normalised symbol the site was declared for.
func (s *Site) Symbol() string { return s.symbol }

// Attached returns the number of callbacks on the site.
func (s *Site) Attached() int {
	if p := s.hooks.Load(); p != nil {
		return len(*p)
	}
	return 0
}

func (s *Site) attach(member *hook.Member, cb *hook.MethodHook, logger *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next []attached
	if p := s.hooks.Load(); p != nil {
		next = append(next, (*p)...)
	}
	next = append(next, attached{member: member, cb: cb, logger: logger, seq: seq.Add(1)})
	sort.SliceStable(next, func(i, j int) bool {
		if next[i].cb.Priority != next[j].cb.Priority {
			return next[i].cb.Priority > next[j].cb.Priority
		}
		return next[i].seq < next[j].seq
	})
	s.hooks.Store(&next)
}

func (s *Site) detach(cb *hook.MethodHook) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.hooks.Load()
	if p == nil {
		return false
	}
	next := make([]attached, 0, len(*p))
	found := false
	for _, a := range *p {
		if a.cb == cb && !found {
			found = true
			continue
		}
		next = append(next, a)
	}
	if found {
		s.hooks.Store(&next)
	}
	return found
}

// Run invokes original through the attached callbacks and returns the
// results the caller should return.
//
// Before callbacks run by descending priority. A Before that sets a result
// skips the original and the remaining Before callbacks. After callbacks
// run in reverse for every hook whose Before ran. A panicking callback is
// logged and skipped.
func (s *Site) Run(receiver any, args []any, original func(args []any) []any) []any {
	p := s.hooks.Load()
	if p == nil || len(*p) == 0 {
		return original(args)
	}
	list := *p

	call := hook.NewCall(list[0].member, receiver, args)
	ran := 0
	for _, a := range list {
		ran++
		if a.cb.Before != nil {
			a.invoke(a.cb.Before, call, "before")
		}
		if call.ReturnEarly() {
			break
		}
	}

	if !call.ReturnEarly() {
		call.CompleteOriginal(original(call.Args))
	}

	for i := ran - 1; i >= 0; i-- {
		a := list[i]
		if a.cb.After != nil {
			a.invoke(a.cb.After, call, "after")
		}
	}
	return call.Result()
}

func (a attached) invoke(fn func(*hook.Call), call *hook.Call, phase string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("probe callback panicked",
				zap.String("phase", phase),
				zap.String("callback", a.cb.Name),
				zap.Stringer("member", a.member),
				zap.Any("panic", r),
			)
		}
	}()
	fn(call)
}

// Out returns results[i] as T, or T's zero value if it is missing, nil or
// of another type.
func Out[T any](results []any, i int) T {
	var zero T
	if i < 0 || i >= len(results) || results[i] == nil {
		return zero
	}
	v, ok := results[i].(T)
	if !ok {
		return zero
	}
	return v
}

// Arg returns call.Args[i] as T, with the same zero-value rules as Out.
func Arg[T any](call *hook.Call, i int) T {
	return Out[T](call.Args, i)
}
