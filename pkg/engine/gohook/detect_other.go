// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

//go:build !linux

package gohook

import "runtime"

// Detect checks whether the running process can patch its own code.
func Detect() Support {
	ok, reason := checkPlatform(runtime.GOOS, runtime.GOARCH)
	return Support{
		Available: ok,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Kernel:    "unknown",
		Reason:    reason,
	}
}
