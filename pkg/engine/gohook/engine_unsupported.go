// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

//go:build !(amd64 || 386)

package gohook

import (
	"github.com/mbeema/perfhook/pkg/config"
	"github.com/mbeema/perfhook/pkg/hook"
	"go.uber.org/zap"
)

// Engine on non-x86 architectures refuses every hook. NewEngine never
// returns it because Detect reports the platform unavailable first.
type Engine struct{}

var _ hook.Engine = (*Engine)(nil)

func newEngine(*config.Config, *zap.Logger) *Engine { return &Engine{} }

func (e *Engine) Name() string    { return Name }
func (e *Engine) Kind() hook.Kind { return hook.KindGoHook }

func (e *Engine) Hook(target *hook.Member, cb *hook.MethodHook) error {
	if err := validate(target, cb); err != nil {
		return err
	}
	return hook.ErrUnavailable
}
