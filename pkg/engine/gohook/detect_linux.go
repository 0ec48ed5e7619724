// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

//go:build linux

package gohook

import (
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

// Detect checks whether the running process can patch its own code.
func Detect() Support {
	ok, reason := checkPlatform(runtime.GOOS, runtime.GOARCH)
	return Support{
		Available: ok,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Kernel:    kernelVersion(),
		Reason:    reason,
	}
}

// kernelVersion returns the running kernel version string.
func kernelVersion() string {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(uname.Release[:]), "\x00")
}
