// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package hook

import (
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// Handle records one hook that an engine accepted.
type Handle struct {
	ID          string
	Member      *Member
	Callback    *MethodHook
	Engine      string
	InstalledAt time.Time
}

func newHandle(member *Member, cb *MethodHook, engine string) *Handle {
	return &Handle{
		ID:          xid.New().String(),
		Member:      member,
		Callback:    cb,
		Engine:      engine,
		InstalledAt: time.Now(),
	}
}

// Stats counts facade outcomes.
type Stats struct {
	Installed atomic.Int64
	Failed    atomic.Int64
	Unhooked  atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Engine    string `json:"engine"`
	Kind      string `json:"kind"`
	Installed int64  `json:"installed"`
	Failed    int64  `json:"failed"`
	Unhooked  int64  `json:"unhooked"`
	Active    int    `json:"active"`
}
