// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package netlink

import (
	"testing"

	"garnet/flit"
)

type fakeFlitConsumer struct {
	got []int // cycles AcceptFlit was called at
}

func (c *fakeFlitConsumer) AcceptFlit(vc int, f flit.Flit, at int) {
	c.got = append(c.got, at)
}

func TestNetworkLinkDelaysByLatency(t *testing.T) {
	c := &fakeFlitConsumer{}
	l := NewNetworkLink(3, c)
	l.Send(0, flit.Flit{}, 10)

	for cycle := 10; cycle < 13; cycle++ {
		l.Tick(cycle)
		if len(c.got) != 0 {
			t.Fatalf("delivered at cycle %d, want cycle 13", cycle)
		}
	}
	l.Tick(13)
	if len(c.got) != 1 || c.got[0] != 13 {
		t.Fatalf("got = %v, want delivery at cycle 13", c.got)
	}
	if l.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0 after delivery", l.Pending())
	}
}

func TestNetworkLinkMinimumLatencyOneCycle(t *testing.T) {
	l := NewNetworkLink(0, &fakeFlitConsumer{})
	if l.Latency != 1 {
		t.Fatalf("Latency = %d, want clamped to 1", l.Latency)
	}
}

type fakeCreditConsumer struct {
	got []flit.Credit
}

func (c *fakeCreditConsumer) AcceptCredit(cr flit.Credit, at int) {
	c.got = append(c.got, cr)
}

func TestCreditLinkDelaysByLatency(t *testing.T) {
	c := &fakeCreditConsumer{}
	l := NewCreditLink(2, c)
	l.Send(flit.Credit{VC: 4, FreeSignal: true}, 5)
	l.Tick(6)
	if len(c.got) != 0 {
		t.Fatalf("delivered early at cycle 6")
	}
	l.Tick(7)
	if len(c.got) != 1 || c.got[0].VC != 4 || !c.got[0].FreeSignal {
		t.Fatalf("got = %+v, want one credit {VC:4 FreeSignal:true}", c.got)
	}
}
