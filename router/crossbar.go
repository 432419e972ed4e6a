// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package router

import "garnet/flit"

// CrossbarSwitch performs switch traversal: every VC SA-II granted an
// outvc to moves its front flit to that outport this cycle. It holds no
// state of its own and makes no arbitration decisions — by the time
// Traverse runs, SwitchAllocator has already resolved every contention,
// so this is pure movement.
type CrossbarSwitch struct{}

// NewCrossbarSwitch returns a stateless CrossbarSwitch.
func NewCrossbarSwitch() *CrossbarSwitch { return &CrossbarSwitch{} }

// Traverse pops every ST-stage VC's front flit, consumes one downstream
// credit for it, hands it to r.SendFlit, and either idles the VC (tail
// departed, freeing it for a new packet) or rearms it for SA (more of
// the same packet still buffered).
func (cb *CrossbarSwitch) Traverse(r *Router, t int) {
	for _, p := range r.Ports {
		in := r.Inputs[p]
		if in == nil {
			continue
		}
		for v := 0; v < in.NumVCs; v++ {
			if in.Stage(v) != flit.StageST || !in.IsReady(v, t) {
				continue
			}
			outport, ok := in.GetOutport(v)
			if !ok {
				continue
			}
			outvc := in.GetOutVC(v)
			if outvc < 0 {
				continue
			}
			f, ok := in.PopFlit(v)
			if !ok {
				continue
			}
			f.OutPort = outport
			f.OutVC = outvc
			f.Stage = flit.StageLT

			out := r.Outputs[outport]
			out.Decrement(outvc)

			freeSignal := f.Type.IsTail()
			in.IncrementCredit(v, freeSignal, t)
			if freeSignal {
				in.SetVCIdle(v, t)
			} else {
				in.SetStage(v, flit.StageSA, t)
			}

			if r.SendFlit != nil {
				r.SendFlit(outport, outvc, f, t)
			}
		}
	}
}
