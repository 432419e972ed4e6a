// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package netlink models the point-to-point links that carry flits
// downstream and credits back upstream between routers: a fixed per-hop
// latency, queued delivery, and a narrow consumer capability rather than
// a dependency on the concrete Router type, so a link never needs a
// cyclic owning reference back to the routers it connects.
package netlink

import "garnet/flit"

// FlitConsumer is the capability a NetworkLink's destination must
// satisfy: accept one flit into vc at cycle at.
type FlitConsumer interface {
	AcceptFlit(vc int, f flit.Flit, at int)
}

// CreditConsumer is the capability a CreditLink's destination must
// satisfy: accept one credit at cycle at.
type CreditConsumer interface {
	AcceptCredit(c flit.Credit, at int)
}

type pendingFlit struct {
	vc int
	f  flit.Flit
	at int
}

// NetworkLink carries flits from one router's OutputUnit to the next
// router's InputUnit (or a NetworkInterface, at the network's edges),
// delaying each by Latency cycles.
type NetworkLink struct {
	Latency  int
	Consumer FlitConsumer
	pending  []pendingFlit
	sent     int
}

// NewNetworkLink returns a link with the given per-hop Latency (clamped
// to at least 1 cycle: a flit can never arrive the same cycle it
// departs).
func NewNetworkLink(latency int, consumer FlitConsumer) *NetworkLink {
	if latency < 1 {
		latency = 1
	}
	return &NetworkLink{Latency: latency, Consumer: consumer}
}

// Send queues f for delivery Latency cycles after now.
func (l *NetworkLink) Send(vc int, f flit.Flit, now int) {
	l.pending = append(l.pending, pendingFlit{vc: vc, f: f, at: now + l.Latency})
	l.sent++
}

// Sent reports the cumulative number of flits ever handed to Send, used by
// link-utilization metrics.
func (l *NetworkLink) Sent() int { return l.sent }

// Tick delivers every flit whose arrival cycle has come due.
func (l *NetworkLink) Tick(now int) {
	remaining := l.pending[:0]
	for _, p := range l.pending {
		if p.at <= now {
			l.Consumer.AcceptFlit(p.vc, p.f, now)
		} else {
			remaining = append(remaining, p)
		}
	}
	l.pending = remaining
}

// Pending reports how many flits are in flight, used by stats/tests.
func (l *NetworkLink) Pending() int { return len(l.pending) }

type pendingCredit struct {
	c  flit.Credit
	at int
}

// CreditLink carries credits from a downstream InputUnit back to the
// upstream OutputUnit that fed it, on the same Latency as its paired
// NetworkLink.
type CreditLink struct {
	Latency  int
	Consumer CreditConsumer
	pending  []pendingCredit
}

// NewCreditLink returns a credit link with the given per-hop Latency.
func NewCreditLink(latency int, consumer CreditConsumer) *CreditLink {
	if latency < 1 {
		latency = 1
	}
	return &CreditLink{Latency: latency, Consumer: consumer}
}

// Send queues c for delivery Latency cycles after now.
func (l *CreditLink) Send(c flit.Credit, now int) {
	l.pending = append(l.pending, pendingCredit{c: c, at: now + l.Latency})
}

// Tick delivers every credit whose arrival cycle has come due.
func (l *CreditLink) Tick(now int) {
	remaining := l.pending[:0]
	for _, p := range l.pending {
		if p.at <= now {
			l.Consumer.AcceptCredit(p.c, now)
		} else {
			remaining = append(remaining, p)
		}
	}
	l.pending = remaining
}

// Pending reports how many credits are in flight, used by stats/tests.
func (l *CreditLink) Pending() int { return len(l.pending) }
