// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package ni implements the NetworkInterface: packet/flit (de)serialization
// at a node's edge, where flits are created on injection and reassembled
// back into packets on arrival, the per-(node, vnet) message injection
// queues the host simulator feeds, and throttling_degree rate limiting.
package ni

import (
	"time"

	"golang.org/x/time/rate"

	"garnet/flit"
	"garnet/logger"
	"garnet/topology"
)

// Message is one injection request from the host simulator: a payload
// destined for Dest, queued at InsertCycle until NetworkInterface's
// throttling allows it onto the wire.
type Message struct {
	Vnet        int
	Dest        topology.NodeSet
	DestRouter  int
	FlitCount   int // packet length in flits; 1 means a single HEAD_TAIL flit
	InsertCycle int
	Payload     any
}

// Stats accumulates the per-NetworkInterface traffic and latency counters.
// Fields are exported for metrics collectors to read; NI only ever
// appends to them.
type Stats struct {
	PacketsInjected int
	PacketsReceived int
	FlitsInjected   int
	FlitsReceived   int

	NetworkLatencies  []int // cycles from injection to full reassembly
	QueueingLatencies []int // cycles from InsertCycle to actual injection
	Hops              []int
	DR                []int
	Misrouting        []int
}

type inFlightPacket struct {
	insertCycle int
	queuedAt    int
	flitsLeft   int
	srcRouter   int
	vnet        int
}

// NetworkInterface packetizes injected Messages into flits on one node's
// local inport, throttled by a token-bucket limiter (throttling_degree),
// and reassembles flits arriving on the local outport back into
// delivered packets.
type NetworkInterface struct {
	NodeID     int
	RouterID   int
	NumAry     int
	NumDim     int
	VcsPerVnet int
	NumVnets   int

	limiter *rate.Limiter
	clock   time.Time // synthetic epoch; advanced by cycle count, never wall-clock

	queues       map[int][]Message // vnet -> pending messages, FIFO
	vcCursor     map[int]int       // vnet -> next VC to try, round-robin
	nextPacketID int
	pending      map[int]*inFlightPacket // packetID -> in-flight send state
	reassembly   map[int]*inFlightPacket // packetID -> in-flight receive state

	Logf  logger.Logf
	Stats Stats
}

// New returns a NetworkInterface for node/router nodeID, throttled to
// inject at most one message every throttlingDegree cycles (a
// throttlingDegree of 0 or 1 disables throttling).
func New(nodeID, routerID, numAry, numDim, vcsPerVnet, numVnets, throttlingDegree int, logf logger.Logf) *NetworkInterface {
	if logf == nil {
		logf = logger.Discard
	}
	limit := rate.Inf
	burst := 1
	if throttlingDegree > 1 {
		limit = rate.Every(time.Duration(throttlingDegree) * time.Nanosecond)
	}
	return &NetworkInterface{
		NodeID:     nodeID,
		RouterID:   routerID,
		NumAry:     numAry,
		NumDim:     numDim,
		VcsPerVnet: vcsPerVnet,
		NumVnets:   numVnets,
		limiter:    rate.NewLimiter(limit, burst),
		clock:      time.Unix(0, 0),
		queues:     make(map[int][]Message),
		vcCursor:   make(map[int]int),
		pending:    make(map[int]*inFlightPacket),
		reassembly: make(map[int]*inFlightPacket),
		Logf:       logf,
	}
}

// Inject enqueues m for eventual injection onto m.Vnet's queue.
func (n *NetworkInterface) Inject(m Message) {
	n.queues[m.Vnet] = append(n.queues[m.Vnet], m)
}

// cycleTime maps a simulator cycle onto the limiter's synthetic clock:
// one nanosecond per cycle, deterministic and wall-clock-independent.
func (n *NetworkInterface) cycleTime(cycle int) time.Time {
	return time.Unix(0, int64(cycle))
}

// Tick drains each vnet's injection queue in FIFO order, subject to the
// shared throttling limiter, packetizing the head message into flits and
// handing them to send for delivery onto the router's Local inport.
func (n *NetworkInterface) Tick(cycle int, send func(vc int, f flit.Flit, at int)) {
	for vnet, q := range n.queues {
		for len(q) > 0 {
			if !n.limiter.AllowN(n.cycleTime(cycle), 1) {
				break
			}
			m := q[0]
			q = q[1:]
			n.injectOne(m, vnet, cycle, send)
		}
		if len(q) == 0 {
			delete(n.queues, vnet)
		} else {
			n.queues[vnet] = q
		}
	}
}

func (n *NetworkInterface) injectOne(m Message, vnet, cycle int, send func(vc int, f flit.Flit, at int)) {
	flitCount := m.FlitCount
	if flitCount < 1 {
		flitCount = 1
	}
	packetID := n.nextPacketID
	n.nextPacketID++

	vcBase := vnet * n.VcsPerVnet
	cursor := n.vcCursor[vnet]
	vc := vcBase + cursor%n.VcsPerVnet
	n.vcCursor[vnet] = cursor + 1

	n.Stats.PacketsInjected++
	n.Stats.QueueingLatencies = append(n.Stats.QueueingLatencies, cycle-m.InsertCycle)
	n.pending[packetID] = &inFlightPacket{insertCycle: m.InsertCycle, srcRouter: n.RouterID, vnet: vnet}

	for i := 0; i < flitCount; i++ {
		typ := flit.BODY
		switch {
		case flitCount == 1:
			typ = flit.HEADTAIL
		case i == 0:
			typ = flit.HEAD
		case i == flitCount-1:
			typ = flit.TAIL
		}
		f := flit.Flit{
			PacketID: packetID,
			Type:     typ,
			Src:      n.NodeID,
			Dest:     m.DestRouter,
			Vnet:     vnet,
			OutVC:    -1,
			Route: flit.Route{
				SrcRouter:  n.RouterID,
				DestRouter: m.DestRouter,
				NetDest:    m.Dest,
				Vnet:       vnet,
			},
			Payload: m.Payload,
		}
		n.Stats.FlitsInjected++
		send(vc, f, cycle)
	}
}

// AcceptFlit reassembles an arriving flit (this NI's router having
// resolved it to the Local outport) and, on the packet's tail, records
// the completed packet's stats.
func (n *NetworkInterface) AcceptFlit(_ int, f flit.Flit, at int) {
	n.Stats.FlitsReceived++
	p, ok := n.reassembly[f.PacketID]
	if !ok {
		p = &inFlightPacket{insertCycle: at, queuedAt: at}
		n.reassembly[f.PacketID] = p
	}
	if !f.Type.IsTail() {
		return
	}
	delete(n.reassembly, f.PacketID)
	n.Stats.PacketsReceived++
	n.Stats.NetworkLatencies = append(n.Stats.NetworkLatencies, at-p.insertCycle)
	n.Stats.Hops = append(n.Stats.Hops, hopsFromRoute(f.Route, n.NumAry, n.NumDim))
	n.Stats.DR = append(n.Stats.DR, f.Route.DR)
	n.Stats.Misrouting = append(n.Stats.Misrouting, f.Route.Misrouting)
}

// hopsFromRoute reports the Manhattan (per-dimension wrap-minimal) hop
// count between a route's endpoints, used only for the average-hops stat
// since the live dr/misrouting counters already capture routing detours.
func hopsFromRoute(r flit.Route, ary, dim int) int {
	src := topology.Decode(r.SrcRouter, ary, dim)
	dest := topology.Decode(r.DestRouter, ary, dim)
	hops := 0
	for i := 0; i < dim; i++ {
		delta := src.WrapDelta(i, dest)
		if delta < 0 {
			delta = -delta
		}
		hops += delta
	}
	return hops
}
