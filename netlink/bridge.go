// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package netlink

import (
	"garnet/flit"
	"garnet/router"
	"garnet/topology"
)

// RouterBridge adapts one (Router, port) pair to the FlitConsumer and
// CreditConsumer capabilities, so a NetworkLink/CreditLink never holds a
// direct reference to the Router type it happens to be wired to.
type RouterBridge struct {
	Router *router.Router
	Port   topology.PortDirection
}

// AcceptFlit delivers f into the bridged router's inport VC.
func (b RouterBridge) AcceptFlit(vc int, f flit.Flit, at int) {
	b.Router.Arrive(b.Port, vc, f, at)
}

// AcceptCredit delivers c into the bridged router's outport VC.
func (b RouterBridge) AcceptCredit(c flit.Credit, at int) {
	b.Router.CreditArrive(b.Port, c, at)
}
