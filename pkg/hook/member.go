// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package hook

import (
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

// MemberKind tells methods, constructors and plain functions apart.
type MemberKind int

const (
	MemberMethod MemberKind = iota
	MemberConstructor
	MemberFunc
)

func (k MemberKind) String() string {
	switch k {
	case MemberMethod:
		return "method"
	case MemberConstructor:
		return "constructor"
	case MemberFunc:
		return "func"
	default:
		return "unknown"
	}
}

// Member is a resolved hook target.
//
// For methods Func is the method expression, so its first parameter is the
// receiver. Constructors and functions are the function values themselves.
type Member struct {
	Class    *Class
	Name     string
	Kind     MemberKind
	Func     reflect.Value
	Receiver reflect.Type // nil unless Kind is MemberMethod
}

// Params returns the parameter types, receiver excluded.
func (m *Member) Params() []reflect.Type {
	ft := m.Func.Type()
	start := 0
	if m.Kind == MemberMethod {
		start = 1
	}
	params := make([]reflect.Type, 0, ft.NumIn()-start)
	for i := start; i < ft.NumIn(); i++ {
		params = append(params, ft.In(i))
	}
	return params
}

// Results returns the result types.
func (m *Member) Results() []reflect.Type {
	ft := m.Func.Type()
	out := make([]reflect.Type, ft.NumOut())
	for i := range out {
		out[i] = ft.Out(i)
	}
	return out
}

func (m *Member) matches(params []reflect.Type) bool {
	have := m.Params()
	if len(have) != len(params) {
		return false
	}
	for i := range have {
		if have[i] != params[i] {
			return false
		}
	}
	return true
}

// Symbol returns the runtime symbol of the member's code, normalised so
// that value and pointer receiver forms of the same method agree.
func (m *Member) Symbol() string {
	if m == nil || !m.Func.IsValid() {
		return ""
	}
	return symbolOfValue(m.Func)
}

// String renders the member as "pkg.T.Method(int, string) (int, error)".
func (m *Member) String() string {
	if m == nil {
		return "<nil>"
	}
	var b strings.Builder
	name := m.Symbol()
	if name == "" {
		if m.Class != nil {
			name = m.Class.Name() + "." + m.Name
		} else {
			name = m.Name
		}
	}
	b.WriteString(name)
	if !m.Func.IsValid() {
		return b.String()
	}

	variadic := m.Func.Type().IsVariadic()
	params := m.Params()
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		if variadic && i == len(params)-1 {
			b.WriteString("..." + p.Elem().String())
			continue
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')

	results := m.Results()
	switch len(results) {
	case 0:
	case 1:
		b.WriteString(" " + results[0].String())
	default:
		b.WriteString(" (")
		for i, r := range results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

// SymbolOf returns the normalised runtime symbol of a function value, or ""
// if fn is not a function.
func SymbolOf(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	return symbolOfValue(v)
}

func symbolOfValue(v reflect.Value) string {
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	return normalizeSymbol(f.Name())
}

var ptrRecv = regexp.MustCompile(`\(\*([^()]+)\)`)

// normalizeSymbol maps "pkg.(*T).M" and "pkg.T.M-fm" to "pkg.T.M".
func normalizeSymbol(name string) string {
	name = strings.TrimSuffix(name, "-fm")
	return ptrRecv.ReplaceAllString(name, "$1")
}

func shortName(symbol string) string {
	if i := strings.LastIndexByte(symbol, '.'); i >= 0 {
		return symbol[i+1:]
	}
	return symbol
}
