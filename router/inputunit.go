// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package router implements the per-router micro-architecture: InputUnit,
// OutputUnit, RoutingUnit, SwitchAllocator, CrossbarSwitch, and the Router
// that orchestrates them every cycle.
package router

import (
	"garnet/flit"
	"garnet/topology"
)

// inputVC is the per-VC state an InputUnit tracks.
type inputVC struct {
	buf          flit.Buffer
	stage        flit.Stage
	outPort      topology.PortDirection
	hasOutPort   bool
	outVC        int
	outVCClass   int
	creditMirror int // local mirror of credits owed upstream
}

func newInputVC() inputVC {
	return inputVC{stage: flit.StageIdle, outVC: -1}
}

// InputUnit holds one inport's num_vcs VC lanes.
type InputUnit struct {
	Port       topology.PortDirection
	NumVCs     int
	vcs        []inputVC
	sendCredit func(flit.Credit)
}

// NewInputUnit constructs an InputUnit with numVCs idle lanes. sendCredit
// is invoked whenever a credit must be emitted upstream (on flit
// departure); it is wired to the inbound CreditLink's producer side by the
// owning Router/Network.
func NewInputUnit(port topology.PortDirection, numVCs int, sendCredit func(flit.Credit)) *InputUnit {
	vcs := make([]inputVC, numVCs)
	for i := range vcs {
		vcs[i] = newInputVC()
	}
	return &InputUnit{Port: port, NumVCs: numVCs, vcs: vcs, sendCredit: sendCredit}
}

// Arrive enqueues an arriving flit into its VC's buffer, stamping it with
// the enqueue cycle and (for heads) setting the stage to RC. A body/tail
// flit sets the VC's stage to SA only when it lands in an empty buffer;
// otherwise the stage of the flit already at the front is kept.
func (u *InputUnit) Arrive(invc int, f flit.Flit, t int) {
	f.Enqueue = t
	f.StageEntry = t
	v := &u.vcs[invc]
	if f.Type.IsHead() {
		f.Stage = flit.StageRC
		v.stage = flit.StageRC
	} else {
		f.Stage = flit.StageSA
		if v.buf.Empty() {
			v.stage = flit.StageSA
		}
	}
	v.buf.Push(f)
}

// NeedStage reports whether vc's front flit is in stage and ready to act
// at cycle t.
func (u *InputUnit) NeedStage(invc int, stage flit.Stage, t int) bool {
	v := &u.vcs[invc]
	if v.buf.Empty() || v.stage != stage {
		return false
	}
	return v.buf.Ready(t)
}

// IsReady reports whether vc's front flit is ready to act at cycle t,
// regardless of stage.
func (u *InputUnit) IsReady(invc int, t int) bool {
	return u.vcs[invc].buf.Ready(t)
}

// GetTopFlit returns a pointer to vc's front flit for in-place stamping,
// or nil if the VC is empty.
func (u *InputUnit) GetTopFlit(invc int) *flit.Flit {
	return u.vcs[invc].buf.FrontPtr()
}

// GetOutport returns the chosen outport for vc, and whether one has been
// chosen yet.
func (u *InputUnit) GetOutport(invc int) (topology.PortDirection, bool) {
	v := &u.vcs[invc]
	return v.outPort, v.hasOutPort
}

// GetOutVC returns vc's assigned downstream VC, or -1 if unassigned.
func (u *InputUnit) GetOutVC(invc int) int { return u.vcs[invc].outVC }

// GetOutVCClass returns vc's assigned outvc-class (adaptive routing replay
// state).
func (u *InputUnit) GetOutVCClass(invc int) int { return u.vcs[invc].outVCClass }

// SetRoute records the RoutingUnit's decision and advances vc to SA,
// eligible starting the cycle after t: a flit spends exactly one cycle
// per pipeline stage.
func (u *InputUnit) SetRoute(invc int, port topology.PortDirection, t int) {
	v := &u.vcs[invc]
	v.outPort = port
	v.hasOutPort = true
	v.stage = flit.StageSA
	if f := v.buf.FrontPtr(); f != nil {
		f.Stage = flit.StageSA
		f.StageEntry = t + 1
		f.HasOutPort = true
		f.OutPort = port
	}
}

// GrantOutVC assigns vc's downstream VC index (called by SA-II on
// allocation, or by OutputUnit credit wake-up on deferred reactivation).
func (u *InputUnit) GrantOutVC(invc, outvc int) {
	u.vcs[invc].outVC = outvc
	if f := u.vcs[invc].buf.FrontPtr(); f != nil {
		f.OutVC = outvc
	}
}

// GrantOutVCClass records the outvc-class RoutingUnit chose, for adaptive
// replay on the next credit-driven attempt.
func (u *InputUnit) GrantOutVCClass(invc, class int) {
	u.vcs[invc].outVCClass = class
}

// SetStage forces vc's pipeline stage, eligible starting the cycle after
// t: a flit spends exactly one cycle per pipeline stage.
func (u *InputUnit) SetStage(invc int, stage flit.Stage, t int) {
	v := &u.vcs[invc]
	v.stage = stage
	if f := v.buf.FrontPtr(); f != nil {
		f.Stage = stage
		f.StageEntry = t + 1
	}
}

// Stage returns vc's current pipeline stage.
func (u *InputUnit) Stage(invc int) flit.Stage { return u.vcs[invc].stage }

// SetVCIdle resets vc to the idle pipeline state after its tail departs.
func (u *InputUnit) SetVCIdle(invc int, t int) {
	v := &u.vcs[invc]
	v.stage = flit.StageIdle
	v.hasOutPort = false
	v.outVC = -1
	v.outVCClass = 0
}

// IncrementCredit advances vc's upstream-credit mirror and dispatches a
// credit onto the inbound credit link's reverse path in one call.
func (u *InputUnit) IncrementCredit(invc int, freeSignal bool, t int) {
	v := &u.vcs[invc]
	v.creditMirror++
	if u.sendCredit != nil {
		u.sendCredit(flit.Credit{VC: invc, FreeSignal: freeSignal})
	}
}

// PopFlit removes and returns vc's front flit; the VC's stage is left
// unchanged.
func (u *InputUnit) PopFlit(invc int) (flit.Flit, bool) {
	return u.vcs[invc].buf.Pop()
}

// GetEnqueueTime returns the cycle at which vc's current head-of-line flit
// was enqueued, used by send_allowed's ordered-vnet check.
func (u *InputUnit) GetEnqueueTime(invc int) int {
	if f, ok := u.vcs[invc].buf.Front(); ok {
		return f.Enqueue
	}
	return -1
}

// VCBufLen reports the number of flits currently buffered on vc (used for
// test assertions and stats, not part of the core contract).
func (u *InputUnit) VCBufLen(invc int) int { return u.vcs[invc].buf.Len() }
