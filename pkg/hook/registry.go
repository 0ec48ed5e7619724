// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package hook

import (
	"fmt"
	"sync"
)

type provider struct {
	name    string
	factory Factory
}

var (
	providersMu sync.RWMutex
	providers   []provider
)

// Register makes an engine provider available to discovery. Engine packages
// call it from init, so a blank import is enough to make an engine
// discoverable. It panics if factory is nil or name is already registered.
func Register(name string, factory Factory) {
	if factory == nil {
		panic("hook: Register factory is nil")
	}
	providersMu.Lock()
	defer providersMu.Unlock()
	for _, p := range providers {
		if p.name == name {
			panic(fmt.Sprintf("hook: Register called twice for provider %q", name))
		}
	}
	providers = append(providers, provider{name: name, factory: factory})
}

// Unregister removes a provider. Intended for tests.
func Unregister(name string) {
	providersMu.Lock()
	defer providersMu.Unlock()
	for i, p := range providers {
		if p.name == name {
			providers = append(providers[:i:i], providers[i+1:]...)
			return
		}
	}
}

// Providers returns the registered provider names in registration order.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.name
	}
	return names
}

func lookupProvider(name string) (provider, bool) {
	providersMu.RLock()
	defer providersMu.RUnlock()
	for _, p := range providers {
		if p.name == name {
			return p, true
		}
	}
	return provider{}, false
}

func snapshotProviders() []provider {
	providersMu.RLock()
	defer providersMu.RUnlock()
	return append([]provider(nil), providers...)
}
