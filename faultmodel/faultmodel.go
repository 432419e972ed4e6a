// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package faultmodel implements enable_fault_model: a TTL-based
// (router, port) down-state store RoutingUnit consults when enumerating
// candidate output ports, treating a down port as absent. Entries carry
// a down-until cycle rather than a wall-clock expiry, so the model stays
// deterministic under a cycle-driven scheduler.
package faultmodel

import (
	"fmt"

	"github.com/patrickmn/go-cache"

	"garnet/topology"
)

type faultEntry struct {
	downUntil int
}

// Model tracks which (router, port) pairs are currently faulted. A zero
// Model (via New) has nothing down and never interferes with routing.
type Model struct {
	store *cache.Cache
}

// New returns an empty Model. No expiration is attached to entries since
// faults expire against the simulator's own cycle counter, not wall
// time; the underlying cache is purely a keyed store here.
func New() *Model {
	return &Model{store: cache.New(cache.NoExpiration, cache.NoExpiration)}
}

func key(routerID int, port topology.PortDirection) string {
	return fmt.Sprintf("%d/%s", routerID, port)
}

// MarkDown faults (routerID, port) for the next durationCycles cycles,
// starting at now.
func (m *Model) MarkDown(routerID int, port topology.PortDirection, now, durationCycles int) {
	m.store.SetDefault(key(routerID, port), faultEntry{downUntil: now + durationCycles})
}

// IsDown reports whether (routerID, port) is currently faulted at cycle
// now. An expired entry is treated as up and lazily evicted.
func (m *Model) IsDown(routerID int, port topology.PortDirection, now int) bool {
	k := key(routerID, port)
	v, ok := m.store.Get(k)
	if !ok {
		return false
	}
	e := v.(faultEntry)
	if now >= e.downUntil {
		m.store.Delete(k)
		return false
	}
	return true
}

// Clear removes every fault, restoring a fully healthy network.
func (m *Model) Clear() {
	m.store.Flush()
}
