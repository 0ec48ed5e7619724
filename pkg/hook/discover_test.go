// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package hook

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mbeema/perfhook/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeEngine struct {
	name   string
	kind   Kind
	closed bool
}

func (f *fakeEngine) Name() string                    { return f.name }
func (f *fakeEngine) Kind() Kind                      { return f.kind }
func (f *fakeEngine) Hook(*Member, *MethodHook) error { return nil }
func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

// registerTemp registers a provider for the duration of the test.
func registerTemp(t *testing.T, name string, factory Factory) {
	t.Helper()
	Register(name, factory)
	t.Cleanup(func() { Unregister(name) })
}

func staticFactory(e Engine) Factory {
	return func(*config.Config, *zap.Logger) (Engine, error) { return e, nil }
}

func TestRegisterDuplicatePanics(t *testing.T) {
	registerTemp(t, "dup", staticFactory(&fakeEngine{name: "dup"}))
	assert.Panics(t, func() { Register("dup", staticFactory(&fakeEngine{})) })
	assert.Panics(t, func() { Register("nil-factory", nil) })
}

func TestProvidersOrder(t *testing.T) {
	registerTemp(t, "first", staticFactory(&fakeEngine{name: "first"}))
	registerTemp(t, "second", staticFactory(&fakeEngine{name: "second"}))
	assert.Equal(t, []string{"first", "second"}, Providers())

	Unregister("first")
	assert.Equal(t, []string{"second"}, Providers())
	Register("first", staticFactory(&fakeEngine{name: "first"}))
}

func TestDiscoverKeepsLastLoaded(t *testing.T) {
	epic := &fakeEngine{name: "epic", kind: KindEpic}
	sand := &fakeEngine{name: "sandhook", kind: KindSandHook}
	registerTemp(t, "epic", staticFactory(epic))
	registerTemp(t, "sandhook", staticFactory(sand))

	core, logs := observer.New(zapcore.InfoLevel)
	b := Discover(config.DefaultConfig(), zap.New(core))

	assert.True(t, b.IsSandHook())
	assert.False(t, b.IsEpic())
	assert.True(t, epic.closed, "unselected engine should be closed")
	assert.False(t, sand.closed)
	assert.Equal(t, 2, logs.FilterMessage("hook engine found").Len())
}

func TestDiscoverPreferredEngine(t *testing.T) {
	called := false
	registerTemp(t, "epic", staticFactory(&fakeEngine{name: "epic", kind: KindEpic}))
	registerTemp(t, "fasthook", func(*config.Config, *zap.Logger) (Engine, error) {
		called = true
		return &fakeEngine{name: "fasthook", kind: KindFastHook}, nil
	})

	cfg := config.DefaultConfig()
	cfg.Hook.Engine = "epic"
	b := Discover(cfg, zap.NewNop())

	assert.True(t, b.IsEpic())
	assert.False(t, called, "other providers should not load when the preferred one does")
}

func TestDiscoverPreferredFailsFallsBackToScan(t *testing.T) {
	registerTemp(t, "epic", func(*config.Config, *zap.Logger) (Engine, error) {
		return nil, fmt.Errorf("%w: art runtime missing", ErrUnavailable)
	})
	registerTemp(t, "fasthook", staticFactory(&fakeEngine{name: "fasthook", kind: KindFastHook}))

	cfg := config.DefaultConfig()
	cfg.Hook.Engine = "epic"
	b := Discover(cfg, zap.NewNop())
	assert.True(t, b.IsFastHook())
}

func TestDiscoverUnavailableIsNotRetried(t *testing.T) {
	calls := 0
	registerTemp(t, "never", func(*config.Config, *zap.Logger) (Engine, error) {
		calls++
		return nil, fmt.Errorf("%w: wrong arch", ErrUnavailable)
	})

	cfg := config.DefaultConfig()
	cfg.Hook.DiscoveryTimeout = time.Second
	b := Discover(cfg, zap.NewNop())

	assert.Equal(t, 1, calls)
	assert.Equal(t, KindStub, b.Kind())
}

func TestDiscoverRetriesTransientErrors(t *testing.T) {
	calls := 0
	registerTemp(t, "flaky", func(*config.Config, *zap.Logger) (Engine, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("engine still initialising")
		}
		return &fakeEngine{name: "flaky", kind: KindGoHook}, nil
	})

	cfg := config.DefaultConfig()
	cfg.Hook.DiscoveryTimeout = 5 * time.Second
	b := Discover(cfg, zap.NewNop())

	assert.Equal(t, 3, calls)
	assert.Equal(t, KindGoHook, b.Kind())
}

func TestDiscoverWithoutTimeoutTriesOnce(t *testing.T) {
	calls := 0
	registerTemp(t, "flaky", func(*config.Config, *zap.Logger) (Engine, error) {
		calls++
		return nil, errors.New("busy")
	})

	cfg := config.DefaultConfig()
	cfg.Hook.DiscoveryTimeout = 0
	Discover(cfg, zap.NewNop())
	assert.Equal(t, 1, calls)
}

func TestDiscoverRecoversFactoryPanic(t *testing.T) {
	registerTemp(t, "boom", func(*config.Config, *zap.Logger) (Engine, error) {
		panic("bad init")
	})
	var b *Bridge
	require.NotPanics(t, func() { b = Discover(config.DefaultConfig(), zap.NewNop()) })
	assert.Equal(t, KindStub, b.Kind())
}

func TestDiscoverNothingUsesStub(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	b := Discover(nil, zap.New(core))

	require.IsType(t, &StubEngine{}, b.Engine())
	assert.Equal(t, 1, logs.FilterMessage("hook bridge has no engine").Len())

	c := MustClassOf(widget{})
	assert.Nil(t, b.HookMethod(c.MethodsNamed("Grow")[0], &MethodHook{Before: func(*Call) {}}))
	assert.Equal(t, int64(1), b.Stats().Failed)
}

func TestDefaultBridge(t *testing.T) {
	custom := NewBridge(&fakeEngine{name: "custom", kind: KindEpic}, zap.NewNop())
	prev := Default()
	SetDefault(custom)
	t.Cleanup(func() { SetDefault(prev) })

	assert.Same(t, custom, Default())
	assert.True(t, IsEpic())
	assert.False(t, IsSandHook())
	assert.False(t, IsFastHook())

	c := MustClassOf(widget{})
	h := HookMethod(c.MethodsNamed("Grow")[0], &MethodHook{Before: func(*Call) {}})
	require.NotNil(t, h)
	assert.Equal(t, "custom", h.Engine)
}
