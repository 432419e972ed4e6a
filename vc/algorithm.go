// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package vc holds the per-downstream-VC bookkeeping (credit counters,
// waiting queues) and the VC-range arithmetic that both RoutingUnit and
// OutputUnit need to agree on, kept in its own package so neither of those
// higher-level components has to import the other's internals.
package vc

// Algorithm selects a RoutingUnit's port/VC-selection policy.
type Algorithm int

const (
	TABLE Algorithm = iota
	XY
	DETERMINISTIC
	STATIC_ADAPTIVE
	DYNAMIC_ADAPTIVE
)

func (a Algorithm) String() string {
	switch a {
	case TABLE:
		return "TABLE"
	case XY:
		return "XY"
	case DETERMINISTIC:
		return "DETERMINISTIC"
	case STATIC_ADAPTIVE:
		return "STATIC_ADAPTIVE"
	case DYNAMIC_ADAPTIVE:
		return "DYNAMIC_ADAPTIVE"
	default:
		return "UNKNOWN"
	}
}

// IsAdaptive reports whether a uses dr/misrouting-bounded adaptive classes.
func (a Algorithm) IsAdaptive() bool {
	return a == STATIC_ADAPTIVE || a == DYNAMIC_ADAPTIVE
}

// PickAlgorithm selects among adaptive candidates offering the same
// minimal-or-legal progress toward the destination.
type PickAlgorithm int

const (
	MINIMUM_CONGESTION PickAlgorithm = iota
	STRAIGHT_LINES
	RANDOM
)

func (p PickAlgorithm) String() string {
	switch p {
	case MINIMUM_CONGESTION:
		return "MINIMUM_CONGESTION"
	case STRAIGHT_LINES:
		return "STRAIGHT_LINES"
	case RANDOM:
		return "RANDOM"
	default:
		return "UNKNOWN"
	}
}
