// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package gohook

import "fmt"

// Support describes whether code patching can run here.
type Support struct {
	Available bool
	OS        string
	Arch      string
	Kernel    string
	Reason    string // non-empty when Available is false
}

// checkPlatform reports whether gohook can patch code on os/arch. It only
// emits x86 jump encodings and needs mprotect or VirtualProtect.
func checkPlatform(os, arch string) (bool, string) {
	switch arch {
	case "amd64", "386":
	default:
		return false, fmt.Sprintf("architecture %s unsupported (gohook emits x86 jumps only)", arch)
	}
	switch os {
	case "linux", "darwin", "windows", "freebsd":
	default:
		return false, fmt.Sprintf("os %s unsupported (cannot change page protection)", os)
	}
	return true, ""
}
