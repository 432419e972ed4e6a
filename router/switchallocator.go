// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package router

import (
	"sort"

	"garnet/flit"
	"garnet/topology"
	"garnet/vc"
)

// SwitchAllocator runs two-stage separable allocation: SA-I round-robins,
// per inport, among that inport's VCs ready to request a path; SA-II
// round-robins, per outport, among the inports that requested it, gating
// each candidate through send_allowed before granting a fresh outvc (or,
// for a VC already active from an earlier flit of the same packet,
// simply regranting crossbar access).
type SwitchAllocator struct {
	saI  map[topology.PortDirection]int // next VC to favor, per inport
	saII map[topology.PortDirection]int // next inport index to favor, per outport
}

// NewSwitchAllocator returns an allocator with all round-robin pointers
// at their zero position.
func NewSwitchAllocator() *SwitchAllocator {
	return &SwitchAllocator{
		saI:  make(map[topology.PortDirection]int),
		saII: make(map[topology.PortDirection]int),
	}
}

// saRequest is one inport's SA-I winner: the VC it wants to advance and
// the (outport, class) RoutingUnit assigned it.
type saRequest struct {
	inport    topology.PortDirection
	inportIdx int
	invc      int
	outport   topology.PortDirection
	class     int
}

// arbitrateInports is SA-I: for each inport, round-robin over its VCs and
// pick the first one (starting from the port's rotating pointer) that is
// in SA stage, ready, has a routed outport, and passes readyForOutport —
// a VC with no free or legal downstream resource loses its turn instead
// of winning it and blocking every other VC on the inport for the cycle.
func (sa *SwitchAllocator) arbitrateInports(r *Router, t int) []saRequest {
	var reqs []saRequest
	for idx, p := range r.Ports {
		in := r.Inputs[p]
		if in == nil || in.NumVCs == 0 {
			continue
		}
		n := in.NumVCs
		start := sa.saI[p] % n
		for off := 0; off < n; off++ {
			v := (start + off) % n
			if !in.NeedStage(v, flit.StageSA, t) {
				continue
			}
			outport, ok := in.GetOutport(v)
			if !ok {
				continue
			}
			rq := saRequest{
				inport:    p,
				inportIdx: idx,
				invc:      v,
				outport:   outport,
				class:     in.GetOutVCClass(v),
			}
			if !sa.readyForOutport(r, rq) {
				continue
			}
			reqs = append(reqs, rq)
			sa.saI[p] = (v + 1) % n
			break
		}
	}
	return reqs
}

// arbitrateOutports is SA-II: group requests by outport, then
// for each outport round-robin over its candidate inports (favoring the
// port's rotating pointer, which persists across cycles so every inport
// eventually wins) and grant the first one send_allowed accepts.
func (sa *SwitchAllocator) arbitrateOutports(r *Router, reqs []saRequest, t int) {
	byOutport := make(map[topology.PortDirection][]saRequest)
	for _, rq := range reqs {
		byOutport[rq.outport] = append(byOutport[rq.outport], rq)
	}
	numPorts := len(r.Ports)
	for outport, group := range byOutport {
		start := sa.saII[outport] % numPorts
		sort.Slice(group, func(i, j int) bool {
			return ((group[i].inportIdx-start)+numPorts)%numPorts < ((group[j].inportIdx-start)+numPorts)%numPorts
		})
		for _, rq := range group {
			if !sa.sendAllowed(r, group, rq) {
				continue
			}
			sa.grant(r, rq, t)
			sa.saII[outport] = (rq.inportIdx + 1) % numPorts
			break
		}
	}
}

// levelGateAllowed is send_allowed's adaptive level-gating condition: for
// STATIC_ADAPTIVE and DYNAMIC_ADAPTIVE, a fresh (not-yet-assigned) outvc
// grant on a non-Local outport must belong to the deterministic-fallback
// level — class/3 — or be refused outright, before availability is even
// checked. A VC already active from an earlier flit of the same packet
// keeps whatever level it was granted under and never re-enters this
// check. The deterministic level is the last one: drLim for
// STATIC_ADAPTIVE's drLim+1 levels, 2 for DYNAMIC_ADAPTIVE's fixed three.
func (sa *SwitchAllocator) levelGateAllowed(r *Router, rq saRequest) bool {
	algo := r.Routing.Algo
	if !algo.IsAdaptive() || rq.outport.IsLocal() {
		return true
	}
	deterLevel := 2
	if algo == vc.STATIC_ADAPTIVE {
		deterLevel = r.Routing.DrLim
	}
	return rq.class/3 == deterLevel
}

// readyForOutport is send_allowed's per-request conditions: VC/credit
// availability and adaptive level gating. Unlike ordering (condition 3,
// below), neither needs to know what any other inport is requesting this
// cycle, so SA-I calls this directly to decide whether a VC is even
// worth committing as its inport's winner.
func (sa *SwitchAllocator) readyForOutport(r *Router, rq saRequest) bool {
	in := r.Inputs[rq.inport]
	out := r.Outputs[rq.outport]
	if existing := in.GetOutVC(rq.invc); existing >= 0 {
		return out.State(existing) == vc.ACTIVE && out.Credits(existing) > 0
	}
	if !sa.levelGateAllowed(r, rq) {
		return false
	}
	f := in.GetTopFlit(rq.invc)
	if f == nil {
		return false
	}
	if out.HasFreeVC(f.Route.Vnet, rq.class) {
		return true
	}
	return out.HasLegalVC(f.Route.Vnet, rq.class, f.Route.DR, r.Routing.Algo)
}

// sendAllowed is SA-II's full gate: readyForOutport, plus, for a fresh
// grant in an ordered vnet, that rq is the oldest-enqueued contender for
// its (vnet, class) among the other candidates this outport is weighing
// this cycle.
func (sa *SwitchAllocator) sendAllowed(r *Router, group []saRequest, rq saRequest) bool {
	if !sa.readyForOutport(r, rq) {
		return false
	}
	in := r.Inputs[rq.inport]
	if existing := in.GetOutVC(rq.invc); existing >= 0 {
		return true
	}
	f := in.GetTopFlit(rq.invc)
	if f == nil {
		return false
	}
	vnet := f.Route.Vnet
	if vnet >= len(r.OrderedVnets) || !r.OrderedVnets[vnet] {
		return true
	}
	myTime := in.GetEnqueueTime(rq.invc)
	for _, other := range group {
		if other.inport == rq.inport || other.class != rq.class {
			continue
		}
		oin := r.Inputs[other.inport]
		of := oin.GetTopFlit(other.invc)
		if of == nil || of.Route.Vnet != vnet {
			continue
		}
		if oin.GetEnqueueTime(other.invc) < myTime {
			return false
		}
	}
	return true
}

// grant performs the allocation sendAllowed approved: for a VC already
// active, just regrant crossbar access; otherwise reserve a free
// downstream VC outright, or queue as a waiter on the best legal one.
func (sa *SwitchAllocator) grant(r *Router, rq saRequest, t int) {
	in := r.Inputs[rq.inport]
	out := r.Outputs[rq.outport]
	if existing := in.GetOutVC(rq.invc); existing >= 0 {
		in.SetStage(rq.invc, flit.StageST, t)
		return
	}
	f := in.GetTopFlit(rq.invc)
	vnet, dr := f.Route.Vnet, f.Route.DR
	if out.HasFreeVC(vnet, rq.class) {
		outvc := out.SelectFreeVC(vnet, rq.class, t)
		in.GrantOutVC(rq.invc, outvc)
		in.SetStage(rq.invc, flit.StageST, t)
		return
	}
	if outvc := out.SelectLegalVC(vnet, rq.class, dr, r.Routing.Algo); outvc >= 0 {
		out.EnqueueWaitingQueue(outvc, rq.inportIdx, rq.invc, dr)
	}
}
