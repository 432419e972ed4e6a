// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package topology builds k-ary n-cube (and mesh-reference) router
// topologies: coordinate decoding, port-direction naming, and the routing
// table used by the TABLE routing algorithm.
package topology

import "fmt"

// Sign is the wrap direction of an Axis port.
type Sign uint8

const (
	Lower Sign = iota
	Upper
)

func (s Sign) String() string {
	if s == Upper {
		return "upper"
	}
	return "lower"
}

// PortDirection is a tagged value standing in for string-encoded port
// names ("lower3", "upper2", "Local"): parsing such strings at routing
// time would be both slow and not compile-time safe, so Local and Axis
// are constructed once at topology-build time and carried as typed
// values from then on. String renders the name stats/topology reporting
// expects on the wire.
type PortDirection struct {
	isLocal bool
	Dim     int
	Sign    Sign
}

// LocalPort is the external, endpoint-facing port.
var LocalPort = PortDirection{isLocal: true}

// Axis constructs an internal k-ary n-cube port direction.
func Axis(dim int, sign Sign) PortDirection {
	return PortDirection{Dim: dim, Sign: sign}
}

// IsLocal reports whether this is the external "Local" port.
func (p PortDirection) IsLocal() bool { return p.isLocal }

func (p PortDirection) String() string {
	if p.isLocal {
		return "Local"
	}
	return fmt.Sprintf("%s%d", p.Sign, p.Dim)
}
