// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package router

import (
	"garnet/flit"
	"garnet/topology"
	"garnet/vc"
)

// OutputUnit holds one outport's num_vcs OutVcStates and waiting queues,
// plus the callback that hands a deferred VC grant back to the waiting
// InputUnit of the same router once a credit frees the VC.
type OutputUnit struct {
	Port        topology.PortDirection
	NumVCs      int
	VcsPerVnet  int
	NumVnets    int
	Algo        vc.Algorithm
	DrLim       int
	states      []vc.OutVcState
	waiting     []vc.WaitingQueue
	bufferDepth int

	// Reactivate is called when a credit with FreeSignal frees a VC whose
	// waiting queue has a next waiter: it grants that waiter's outvc back
	// to the origin InputUnit of this router. Modeled as a narrow event
	// carrying a router-local inport index rather than a direct reference
	// to the InputUnit, so OutputUnit never needs to know about InputUnit.
	Reactivate func(evt ReactivateGrant)
}

// ReactivateGrant is the router-local event an OutputUnit's credit wake-up
// raises to hand a deferred VC allocation back to the waiter's InputUnit.
type ReactivateGrant struct {
	Inport int // origin inport index the waiter is queued at, router-local
	InVC   int
	OutVC  int
}

// NewOutputUnit constructs an OutputUnit with numVCs VCs, each initialized
// to bufferDepth credits.
func NewOutputUnit(port topology.PortDirection, vcsPerVnet, numVnets int, algo vc.Algorithm, drLim, bufferDepth int) *OutputUnit {
	n := vcsPerVnet * numVnets
	states := make([]vc.OutVcState, n)
	waiting := make([]vc.WaitingQueue, n)
	for i := range states {
		states[i] = vc.NewOutVcState(bufferDepth)
	}
	return &OutputUnit{
		Port:        port,
		NumVCs:      n,
		VcsPerVnet:  vcsPerVnet,
		NumVnets:    numVnets,
		Algo:        algo,
		DrLim:       drLim,
		states:      states,
		waiting:     waiting,
		bufferDepth: bufferDepth,
	}
}

// classRange returns [lo, hi) of the full VC index space owned by vnet,
// further narrowed to outvcClass by vc.ClassRange.
func (o *OutputUnit) classRange(vnet, outvcClass int) (int, int) {
	base := vnet * o.VcsPerVnet
	lo, hi := vc.ClassRange(o.Algo, o.VcsPerVnet, outvcClass, o.DrLim)
	return base + lo, base + hi
}

// HasFreeVC reports whether any VC in (vnet, outvcClass)'s range is IDLE
// with an empty waiting queue.
func (o *OutputUnit) HasFreeVC(vnet, outvcClass int) bool {
	lo, hi := o.classRange(vnet, outvcClass)
	for i := lo; i < hi; i++ {
		if o.states[i].State == vc.IDLE && o.waiting[i].Empty() {
			return true
		}
	}
	return false
}

// SelectFreeVC chooses the first free VC in range, marks it ACTIVE, and
// returns its index, or -1 if none is free.
func (o *OutputUnit) SelectFreeVC(vnet, outvcClass, t int) int {
	lo, hi := o.classRange(vnet, outvcClass)
	for i := lo; i < hi; i++ {
		if o.states[i].State == vc.IDLE && o.waiting[i].Empty() {
			o.states[i].SetActive(t)
			return i
		}
	}
	return -1
}

// GetFreeVCCount counts free VCs in range, used by the MINIMUM_CONGESTION
// pick algorithm.
func (o *OutputUnit) GetFreeVCCount(vnet, outvcClass int) int {
	lo, hi := o.classRange(vnet, outvcClass)
	n := 0
	for i := lo; i < hi; i++ {
		if o.states[i].State == vc.IDLE && o.waiting[i].Empty() {
			n++
		}
	}
	return n
}

// IsLegal reports whether vc index i (an absolute VC index, already within
// range) is a legal candidate to wait on for a flit carrying dr: for
// static algorithms, legal iff the waiting queue is empty; for
// DYNAMIC_ADAPTIVE, also legal if this waiter would outrank the queue's
// head (the head's recorded dr exceeds this flit's dr — youngest wins).
func (o *OutputUnit) IsLegal(i, dr int, algo vc.Algorithm) bool {
	if o.waiting[i].Empty() {
		return true
	}
	if algo == vc.DYNAMIC_ADAPTIVE {
		if head, ok := o.waiting[i].Head(); ok {
			return head.DR > dr
		}
	}
	return false
}

// HasLegalVC reports whether any VC in range is legal for dr under algo.
func (o *OutputUnit) HasLegalVC(vnet, outvcClass, dr int, algo vc.Algorithm) bool {
	lo, hi := o.classRange(vnet, outvcClass)
	for i := lo; i < hi; i++ {
		if o.IsLegal(i, dr, algo) {
			return true
		}
	}
	return false
}

// SelectLegalVC returns the legal VC in range with the minimum waiting-
// queue length, ties broken by first occurrence.
func (o *OutputUnit) SelectLegalVC(vnet, outvcClass, dr int, algo vc.Algorithm) int {
	lo, hi := o.classRange(vnet, outvcClass)
	best := -1
	bestLen := int(^uint(0) >> 1)
	for i := lo; i < hi; i++ {
		if !o.IsLegal(i, dr, algo) {
			continue
		}
		if o.waiting[i].Len() < bestLen {
			bestLen = o.waiting[i].Len()
			best = i
		}
	}
	return best
}

// GetMinWaitingLength returns the minimum waiting-queue length among legal
// VCs in range, used by the MINIMUM_CONGESTION pick algorithm when picking
// among legal (not free) candidates.
func (o *OutputUnit) GetMinWaitingLength(vnet, outvcClass, dr int, algo vc.Algorithm) int {
	lo, hi := o.classRange(vnet, outvcClass)
	best := int(^uint(0) >> 1)
	for i := lo; i < hi; i++ {
		if !o.IsLegal(i, dr, algo) {
			continue
		}
		if o.waiting[i].Len() < best {
			best = o.waiting[i].Len()
		}
	}
	return best
}

// EnqueueWaitingQueue records a waiter on VC i.
func (o *OutputUnit) EnqueueWaitingQueue(i, inport, invc, dr int) {
	o.waiting[i].Push(vc.Waiter{Inport: inport, InVC: invc, DR: dr})
}

// Credits returns i's current credit count (tests/stats only).
func (o *OutputUnit) Credits(i int) int { return o.states[i].Credits }

// State returns i's current lifecycle state.
func (o *OutputUnit) State(i int) vc.State { return o.states[i].State }

// Decrement consumes one credit on VC i, called by the crossbar when a
// flit traverses onto VC i.
func (o *OutputUnit) Decrement(i int) { o.states[i].Decrement() }

// CreditArrive processes an arriving credit for VC i at cycle t. If
// f.FreeSignal, the VC is set IDLE and its waiting queue's head (if any)
// is popped and reactivated: the queue becomes the new occupant, VC set
// ACTIVE, and the waiter's outvc granted back to its InputUnit via
// Reactivate.
func (o *OutputUnit) CreditArrive(i int, f flit.Credit, t int) {
	o.states[i].Increment()
	if !f.FreeSignal {
		return
	}
	o.states[i].SetIdle(t)
	w, ok := o.waiting[i].Pop()
	if !ok {
		return
	}
	o.states[i].SetActive(t)
	if o.Reactivate != nil {
		o.Reactivate(ReactivateGrant{Inport: w.Inport, InVC: w.InVC, OutVC: i})
	}
}
