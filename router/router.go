// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package router

import (
	"garnet/flit"
	"garnet/logger"
	"garnet/simerr"
	"garnet/topology"
)

// RouterConfig bundles the construction-time parameters a Router needs:
// a single value passed once, instead of a long positional argument
// list.
type RouterConfig struct {
	ID           int
	Coord        topology.Coord
	Ports        []topology.PortDirection
	VcsPerVnet   int
	NumVnets     int
	BufferDepth  int
	OrderedVnets []bool
	Routing      *RoutingUnit
	Logf         logger.Logf
}

// Router owns one k-ary n-cube switching node's InputUnits, OutputUnits,
// RoutingUnit, SwitchAllocator, and CrossbarSwitch and drives them
// through one cycle's RC/SA/ST pipeline each Wakeup.
type Router struct {
	ID           int
	Coord        topology.Coord
	Ports        []topology.PortDirection
	Inputs       map[topology.PortDirection]*InputUnit
	Outputs      map[topology.PortDirection]*OutputUnit
	Routing      *RoutingUnit
	SA           *SwitchAllocator
	Crossbar     *CrossbarSwitch
	OrderedVnets []bool
	Logf         logger.Logf

	// SendFlit hands a departing flit to the outbound NetworkLink (or, for
	// the Local port, the NetworkInterface) for delivery next cycle.
	SendFlit func(port topology.PortDirection, outvc int, f flit.Flit, t int)

	cycle int
}

// NewRouter builds a Router from cfg. sendCredit(p) must return the
// function InputUnit p should call to emit a credit upstream; sendFlit is
// shared by every OutputUnit to hand off departing flits.
func NewRouter(cfg RouterConfig, sendCredit func(p topology.PortDirection) func(flit.Credit), sendFlit func(p topology.PortDirection, outvc int, f flit.Flit, t int)) *Router {
	logf := cfg.Logf
	if logf == nil {
		logf = logger.Discard
	}
	if cfg.Routing != nil {
		cfg.Routing.RouterID = cfg.ID
	}
	r := &Router{
		ID:           cfg.ID,
		Coord:        cfg.Coord,
		Ports:        append([]topology.PortDirection(nil), cfg.Ports...),
		Inputs:       make(map[topology.PortDirection]*InputUnit, len(cfg.Ports)),
		Outputs:      make(map[topology.PortDirection]*OutputUnit, len(cfg.Ports)),
		Routing:      cfg.Routing,
		SA:           NewSwitchAllocator(),
		Crossbar:     NewCrossbarSwitch(),
		OrderedVnets: cfg.OrderedVnets,
		Logf:         logf,
		SendFlit:     sendFlit,
	}
	numVCs := cfg.VcsPerVnet * cfg.NumVnets
	for _, p := range r.Ports {
		r.Inputs[p] = NewInputUnit(p, numVCs, sendCredit(p))
		out := NewOutputUnit(p, cfg.VcsPerVnet, cfg.NumVnets, cfg.Routing.Algo, cfg.Routing.DrLim, cfg.BufferDepth)
		out.Reactivate = r.reactivate
		r.Outputs[p] = out
	}
	return r
}

// reactivate is OutputUnit's credit wake-up callback: it hands a
// deferred outvc grant back to the waiter's own InputUnit, identified by
// its router-local inport index rather than a direct pointer, so
// OutputUnit never needs to know about InputUnit.
func (r *Router) reactivate(evt ReactivateGrant) {
	if evt.Inport < 0 || evt.Inport >= len(r.Ports) {
		r.Logf("reactivate: inport index %d out of range", evt.Inport)
		return
	}
	in := r.Inputs[r.Ports[evt.Inport]]
	in.GrantOutVC(evt.InVC, evt.OutVC)
	in.SetStage(evt.InVC, flit.StageST, r.cycle)
}

// Arrive delivers an arriving flit to inport's VC invc (called by the
// inbound NetworkLink/Bridge at the cycle it lands).
func (r *Router) Arrive(inport topology.PortDirection, invc int, f flit.Flit, t int) {
	in, ok := r.Inputs[inport]
	if !ok {
		r.Logf("Arrive: no InputUnit for port %v", inport)
		return
	}
	in.Arrive(invc, f, t)
}

// CreditArrive delivers an arriving credit to outport's VC (called by the
// inbound CreditLink at the cycle it lands).
func (r *Router) CreditArrive(outport topology.PortDirection, c flit.Credit, t int) {
	out, ok := r.Outputs[outport]
	if !ok {
		r.Logf("CreditArrive: no OutputUnit for port %v", outport)
		return
	}
	out.CreditArrive(c.VC, c, t)
}

// Cycle returns the cycle most recently passed to Wakeup, used by the
// owning Network to timestamp credits whose emitting callback has no
// cycle parameter of its own.
func (r *Router) Cycle() int { return r.cycle }

// Wakeup advances this router by one cycle: route compute, the two-stage
// switch allocation, and switch traversal, in that order.
func (r *Router) Wakeup(t int) error {
	r.cycle = t
	if err := r.doRC(t); err != nil {
		return err
	}
	reqs := r.SA.arbitrateInports(r, t)
	r.SA.arbitrateOutports(r, reqs, t)
	r.Crossbar.Traverse(r, t)
	return nil
}

// doRC runs route compute on every VC whose head flit is ready to act:
// only head/head-tail flits ever sit in StageRC, since InputUnit.Arrive
// routes body/tail flits straight to StageSA.
func (r *Router) doRC(t int) error {
	for _, p := range r.Ports {
		in := r.Inputs[p]
		for v := 0; v < in.NumVCs; v++ {
			if !in.NeedStage(v, flit.StageRC, t) {
				continue
			}
			f := in.GetTopFlit(v)
			if f == nil {
				continue
			}
			port, class, err := r.Routing.Route(r.Coord, f, p, r.Outputs, t)
			if err != nil {
				return simerr.Invariant("router %d: route compute failed: %v", r.ID, err)
			}
			in.SetRoute(v, port, t)
			in.GrantOutVCClass(v, class)
		}
	}
	return nil
}
