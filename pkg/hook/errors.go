// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package hook

import "errors"

var (
	// ErrUnavailable reports that an engine cannot run on this platform or
	// process. Discovery treats it as permanent.
	ErrUnavailable = errors.New("hook engine unavailable")

	// ErrNoEngine is logged when a hook is requested and discovery found
	// nothing.
	ErrNoEngine = errors.New("no hook engine")

	// ErrNotFound reports a failed member lookup.
	ErrNotFound = errors.New("member not found")

	// ErrEmptyCallback reports a MethodHook with nothing to run.
	ErrEmptyCallback = errors.New("method hook has no callbacks")

	// ErrUnsupportedCallback reports a MethodHook shape the engine cannot serve.
	ErrUnsupportedCallback = errors.New("callback not supported by engine")

	// ErrNotInstrumented reports a target the engine has no way to intercept.
	ErrNotInstrumented = errors.New("target not instrumented")
)
