// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package topology

import "garnet/internal/randpool"

// TableEntry is one routing-table row: through Port, the set of reachable
// destinations Dest, at tie-break Weight.
type TableEntry struct {
	Port   PortDirection
	Dest   NodeSet
	Weight int
}

// RoutingTable implements the TABLE algorithm: per vnet, a list of
// entries consulted for a destination lookup.
type RoutingTable struct {
	entries map[int][]TableEntry // vnet -> entries
	ordered map[int]bool         // vnet -> whether vnet is ordered
	rng     *randpool.Pool
}

// NewRoutingTable builds an empty table drawing tie-break randomness from
// rng, the Network's centrally seeded generator.
func NewRoutingTable(rng *randpool.Pool) *RoutingTable {
	return &RoutingTable{
		entries: make(map[int][]TableEntry),
		ordered: make(map[int]bool),
		rng:     rng,
	}
}

// AddEntry registers a routing-table row for vnet.
func (t *RoutingTable) AddEntry(vnet int, e TableEntry) {
	t.entries[vnet] = append(t.entries[vnet], e)
}

// SetOrdered marks vnet as an ordered virtual network.
func (t *RoutingTable) SetOrdered(vnet int, ordered bool) {
	t.ordered[vnet] = ordered
}

// IsOrdered reports whether vnet requires in-order delivery.
func (t *RoutingTable) IsOrdered(vnet int) bool { return t.ordered[vnet] }

// Lookup returns the chosen port for (vnet, dest): gather the
// minimum-weight candidates whose destination set intersects dest; if
// vnet is ordered pick index 0, else pick uniformly. The bool return is
// false if no candidate exists.
func (t *RoutingTable) Lookup(vnet int, dest NodeSet) (PortDirection, bool) {
	rows := t.entries[vnet]
	var (
		candidates []TableEntry
		minWeight  = int(^uint(0) >> 1)
	)
	for _, r := range rows {
		if !r.Dest.Intersects(dest) {
			continue
		}
		switch {
		case r.Weight < minWeight:
			minWeight = r.Weight
			candidates = []TableEntry{r}
		case r.Weight == minWeight:
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return PortDirection{}, false
	}
	if t.ordered[vnet] {
		return candidates[0].Port, true
	}
	idx := 0
	if len(candidates) > 1 {
		idx = t.rng.Intn(len(candidates))
	}
	return candidates[idx].Port, true
}
