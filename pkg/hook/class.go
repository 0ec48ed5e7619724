// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package hook

import (
	"fmt"
	"reflect"
)

// Class describes a hookable type: its method set plus the constructor and
// package-level functions that belong to it. Go has no reflective access to
// package functions, so those are supplied explicitly.
type Class struct {
	typ     reflect.Type
	methods []*Member
	ctors   []*Member
	statics []*Member
}

// ClassOption configures a Class.
type ClassOption func(*Class) error

// WithConstructors declares constructor functions. Each must return T or *T
// as its first result.
func WithConstructors(fns ...any) ClassOption {
	return func(c *Class) error {
		for _, fn := range fns {
			v := reflect.ValueOf(fn)
			if v.Kind() != reflect.Func || v.IsNil() {
				return fmt.Errorf("constructor for %s: %T is not a function", c.Name(), fn)
			}
			ft := v.Type()
			if ft.NumOut() == 0 {
				return fmt.Errorf("constructor %s returns nothing", SymbolOf(fn))
			}
			if out := ft.Out(0); out != c.typ && out != reflect.PointerTo(c.typ) {
				return fmt.Errorf("constructor %s returns %s, want %s or *%s",
					SymbolOf(fn), out, c.typ, c.typ)
			}
			c.ctors = append(c.ctors, &Member{
				Class: c,
				Name:  shortName(SymbolOf(fn)),
				Kind:  MemberConstructor,
				Func:  v,
			})
		}
		return nil
	}
}

// WithStatic declares a package-level function that name scans on the
// class should find.
func WithStatic(name string, fn any) ClassOption {
	return func(c *Class) error {
		v := reflect.ValueOf(fn)
		if v.Kind() != reflect.Func || v.IsNil() {
			return fmt.Errorf("static %s.%s: %T is not a function", c.Name(), name, fn)
		}
		c.statics = append(c.statics, &Member{
			Class: c,
			Name:  name,
			Kind:  MemberFunc,
			Func:  v,
		})
		return nil
	}
}

// ClassOf builds a Class from a sample value, a pointer to one, or a
// reflect.Type.
func ClassOf(sample any, opts ...ClassOption) (*Class, error) {
	var t reflect.Type
	switch s := sample.(type) {
	case nil:
		return nil, fmt.Errorf("class of nil")
	case reflect.Type:
		t = s
	default:
		t = reflect.TypeOf(sample)
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Interface {
		return nil, fmt.Errorf("class of interface %s: interface methods have no bodies", t)
	}

	c := &Class{typ: t}
	c.methods = c.collectMethods()
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustClassOf is like ClassOf but panics on error. It is meant for
// package-level variables.
func MustClassOf(sample any, opts ...ClassOption) *Class {
	c, err := ClassOf(sample, opts...)
	if err != nil {
		panic("hook: " + err.Error())
	}
	return c
}

func (c *Class) collectMethods() []*Member {
	var out []*Member
	vt := c.typ
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		out = append(out, &Member{Class: c, Name: m.Name, Kind: MemberMethod, Func: m.Func, Receiver: vt})
	}
	pt := reflect.PointerTo(vt)
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if _, ok := vt.MethodByName(m.Name); ok {
			continue
		}
		out = append(out, &Member{Class: c, Name: m.Name, Kind: MemberMethod, Func: m.Func, Receiver: pt})
	}
	return out
}

// Type returns the underlying non-pointer type.
func (c *Class) Type() reflect.Type { return c.typ }

// Name returns the qualified type name, e.g. "bytes.Buffer".
func (c *Class) Name() string { return c.typ.String() }

// DeclaredMethods returns exported methods (value receivers first, then
// pointer-only ones) followed by declared statics.
func (c *Class) DeclaredMethods() []*Member {
	out := make([]*Member, 0, len(c.methods)+len(c.statics))
	out = append(out, c.methods...)
	return append(out, c.statics...)
}

// DeclaredConstructors returns constructors in declaration order.
func (c *Class) DeclaredConstructors() []*Member {
	return append([]*Member(nil), c.ctors...)
}

// MethodsNamed scans declared methods for an exact name match.
func (c *Class) MethodsNamed(name string) []*Member {
	var out []*Member
	for _, m := range c.DeclaredMethods() {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// DeclaredMethod finds the method with the given name and exact parameter
// types, receiver excluded.
func (c *Class) DeclaredMethod(name string, params ...reflect.Type) (*Member, error) {
	for _, m := range c.MethodsNamed(name) {
		if m.matches(params) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s%v", ErrNotFound, c.Name(), name, params)
}
