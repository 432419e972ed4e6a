// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package flit

// Buffer is an ordered, time-stamped holding queue. A flit is
// "ready" at cycle t when its stage-entry time is <= t, modeling the
// pipeline-stage delay between a flit entering a stage and becoming
// eligible to act in it.
type Buffer struct {
	q []Flit
}

// Push appends f to the back of the buffer.
func (b *Buffer) Push(f Flit) {
	b.q = append(b.q, f)
}

// Front returns the first flit without removing it.
func (b *Buffer) Front() (Flit, bool) {
	if len(b.q) == 0 {
		return Flit{}, false
	}
	return b.q[0], true
}

// FrontPtr returns a pointer to the first flit for in-place mutation
// (stamping outport/outvc/stage), or nil if empty.
func (b *Buffer) FrontPtr() *Flit {
	if len(b.q) == 0 {
		return nil
	}
	return &b.q[0]
}

// Pop removes and returns the first flit.
func (b *Buffer) Pop() (Flit, bool) {
	if len(b.q) == 0 {
		return Flit{}, false
	}
	f := b.q[0]
	b.q = b.q[1:]
	return f, true
}

// Len reports the number of flits currently buffered.
func (b *Buffer) Len() int { return len(b.q) }

// Empty reports whether the buffer holds no flits.
func (b *Buffer) Empty() bool { return len(b.q) == 0 }

// Ready reports whether the front flit is ready to act at cycle t, i.e.
// its stage-entry time is <= t.
func (b *Buffer) Ready(t int) bool {
	f, ok := b.Front()
	return ok && f.StageEntry <= t
}
