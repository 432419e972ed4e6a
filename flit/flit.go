// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package flit defines the fixed-size transmission unit that moves through
// the network every cycle, the credit that flows back in the opposite
// direction, and the ordered buffer that holds them at a VC.
package flit

import "garnet/topology"

// Type is a flit's position within its packet.
type Type int

const (
	HEAD Type = iota
	BODY
	TAIL
	HEADTAIL
)

func (t Type) String() string {
	switch t {
	case HEAD:
		return "HEAD"
	case BODY:
		return "BODY"
	case TAIL:
		return "TAIL"
	case HEADTAIL:
		return "HEAD_TAIL"
	default:
		return "UNKNOWN"
	}
}

// IsHead reports whether this flit carries routing responsibility.
func (t Type) IsHead() bool { return t == HEAD || t == HEADTAIL }

// IsTail reports whether this flit frees its VC on departure.
func (t Type) IsTail() bool { return t == TAIL || t == HEADTAIL }

// Stage is a flit's current position in the router pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageRC         // route compute
	StageSA         // switch allocation
	StageST         // switch traversal
	StageLT         // link traversal
)

func (s Stage) String() string {
	switch s {
	case StageRC:
		return "RC"
	case StageSA:
		return "SA"
	case StageST:
		return "ST"
	case StageLT:
		return "LT"
	default:
		return "IDLE"
	}
}

// Route is the route record carried by every flit of a packet: it names
// the endpoints and vnet and accumulates the dr/misrouting counters
// routing decisions consult and increment.
type Route struct {
	SrcRouter  int
	DestRouter int
	NetDest    topology.NodeSet
	Vnet       int
	DR         int // dimension-reversal count; only increases
	Misrouting int // misrouting count; only increases
}

// Flit is the atomic flow-control unit. A packet is a contiguous ordered
// sequence of flits sharing PacketID, Src, Dest, and Vnet.
type Flit struct {
	PacketID   int
	Type       Type
	Src        int
	Dest       int
	Vnet       int
	OutPort    topology.PortDirection
	HasOutPort bool
	OutVC      int // -1 until VC allocation
	Stage      Stage
	StageEntry int // cycle this flit entered Stage
	Enqueue    int // cycle this flit was enqueued into its VC buffer
	Route      Route
	Payload    any
}

// NewHead builds the head (or head-tail) flit of a new packet.
func NewHead(packetID, src, dest, vnet int, dest2 topology.NodeSet, srcRouter, destRouter int, tail bool) Flit {
	typ := HEAD
	if tail {
		typ = HEADTAIL
	}
	return Flit{
		PacketID: packetID,
		Type:     typ,
		Src:      src,
		Dest:     dest,
		Vnet:     vnet,
		OutVC:    -1,
		Stage:    StageIdle,
		Route: Route{
			SrcRouter:  srcRouter,
			DestRouter: destRouter,
			NetDest:    dest2,
			Vnet:       vnet,
		},
	}
}

// Credit carries a downstream VC index and the free signal: FreeSignal
// indicates the VC has just emptied (tail departed), permitting
// reallocation.
type Credit struct {
	VC         int
	FreeSignal bool
}
