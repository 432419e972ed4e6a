// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package network builds a complete garnet Network from a config.Config:
// every Router and NetworkInterface, the point-to-point links wiring them
// together, and the cycle-by-cycle scheduler that drives the whole thing
// through inject/route/deliver phases.
package network

import (
	"context"
	"strconv"

	"garnet/config"
	"garnet/faultmodel"
	"garnet/flit"
	"garnet/internal/randpool"
	"garnet/logger"
	"garnet/netlink"
	"garnet/ni"
	"garnet/router"
	"garnet/simclock"
	"garnet/simerr"
	"garnet/topology"
	"garnet/vc"
)

// linkLatency is the uniform per-hop delay charged by every inter-router
// and NI-edge link; Config carries no per-link override today.
const linkLatency = 1

// Network owns every Router and NetworkInterface in a built topology, the
// links wiring them together, and the shared facilities (fault model,
// RNG) they were built against.
type Network struct {
	Config  config.Config
	Routers map[int]*router.Router
	NIs     map[int]*ni.NetworkInterface
	Faults  *faultmodel.Model
	RNG     *randpool.Pool
	Logf    logger.Logf

	order int // number of routers, also the stable [0, order) id range

	flitLinks   map[int]map[topology.PortDirection]*netlink.NetworkLink
	creditLinks map[int]map[topology.PortDirection]*netlink.CreditLink

	allFlitLinks   []*netlink.NetworkLink
	allCreditLinks []*netlink.CreditLink
}

// niFlitSink adapts a NetworkInterface to the netlink.FlitConsumer
// capability and, since a NetworkInterface never returns real credits
// for flits it accepts (it isn't a bounded buffer that needs
// backpressure), synthesizes the credit return the Local OutputUnit
// needs to keep cycling its VCs.
type niFlitSink struct {
	ni         *ni.NetworkInterface
	creditBack *netlink.CreditLink
}

func (s niFlitSink) AcceptFlit(vc int, f flit.Flit, at int) {
	s.ni.AcceptFlit(vc, f, at)
	s.creditBack.Send(flit.Credit{VC: vc, FreeSignal: f.Type.IsTail()}, at)
}

// Build constructs a fully wired Network from cfg, validating it first.
// Mesh configurations are only supported when square (NumRows ==
// NumCols): the router/RoutingUnit machinery keys every dimension to a
// single radix, so a rectangular mesh has no coordinate representation
// in this core. TABLE routing is rejected for the same reason Config has
// no field to source a routing table from; wire one up by hand via
// router.RoutingUnit/topology.RoutingTable outside Build instead.
func Build(cfg config.Config, logf logger.Logf) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	algo, err := cfg.Algorithm()
	if err != nil {
		return nil, err
	}
	if algo == vc.TABLE {
		return nil, simerr.Config("network.Build: TABLE routing has no table source in Config; build its RoutingUnit directly")
	}
	pickAlgo, err := cfg.PickAlgo()
	if err != nil {
		return nil, err
	}
	if logf == nil {
		logf = logger.Discard
	}

	ary, dim, mesh, err := topologyShape(cfg)
	if err != nil {
		return nil, err
	}
	numRouters := 1
	for i := 0; i < dim; i++ {
		numRouters *= ary
	}

	var faults *faultmodel.Model
	if cfg.EnableFaultModel {
		faults = faultmodel.New()
	}

	net := &Network{
		Config:      cfg,
		Routers:     make(map[int]*router.Router, numRouters),
		NIs:         make(map[int]*ni.NetworkInterface, numRouters),
		Faults:      faults,
		RNG:         randpool.New(cfg.Seed),
		Logf:        logf,
		order:       numRouters,
		flitLinks:   make(map[int]map[topology.PortDirection]*netlink.NetworkLink, numRouters),
		creditLinks: make(map[int]map[topology.PortDirection]*netlink.CreditLink, numRouters),
	}
	for id := 0; id < numRouters; id++ {
		net.flitLinks[id] = make(map[topology.PortDirection]*netlink.NetworkLink)
		net.creditLinks[id] = make(map[topology.PortDirection]*netlink.CreditLink)
	}

	vcsPerVnet := cfg.VcsPerVnet()
	orderedVnets := make([]bool, cfg.NumVnets)

	for id := 0; id < numRouters; id++ {
		coord := topology.Decode(id, ary, dim)
		ports := []topology.PortDirection{topology.LocalPort}
		for d := 0; d < dim; d++ {
			if _, ok := neighborCoord(coord, d, topology.Upper, mesh); ok {
				ports = append(ports, topology.Axis(d, topology.Upper))
			}
			if _, ok := neighborCoord(coord, d, topology.Lower, mesh); ok {
				ports = append(ports, topology.Axis(d, topology.Lower))
			}
		}

		routing := &router.RoutingUnit{
			Algo:          algo,
			PickAlgo:      pickAlgo,
			NumAry:        ary,
			NumDim:        dim,
			DrLim:         cfg.DrLim,
			MisroutingLim: cfg.MisroutingLim,
			RNG:           net.RNG,
		}
		if faults != nil {
			routing.Faults = faults
		}

		r := router.NewRouter(router.RouterConfig{
			ID:           id,
			Coord:        coord,
			Ports:        ports,
			VcsPerVnet:   vcsPerVnet,
			NumVnets:     cfg.NumVnets,
			BufferDepth:  cfg.BuffersPerData,
			OrderedVnets: orderedVnets,
			Routing:      routing,
			Logf:         logger.WithPrefix(logf, routerLogPrefix(id)),
		}, net.creditSender(id), net.flitSender(id))
		net.Routers[id] = r

		net.NIs[id] = ni.New(id, id, ary, dim, vcsPerVnet, cfg.NumVnets, cfg.ThrottlingDegree, logf)
	}

	for id := 0; id < numRouters; id++ {
		coord := topology.Decode(id, ary, dim)
		for d := 0; d < dim; d++ {
			if nb, ok := neighborCoord(coord, d, topology.Upper, mesh); ok {
				net.wireAxisLink(id, nb.Encode(), d)
			}
		}
		net.wireLocalLink(id)
	}

	return net, nil
}

// topologyShape resolves cfg into (ary, dim, mesh): the torus radix/rank
// pair, or for a square mesh override, (NumRows, 2, true).
func topologyShape(cfg config.Config) (ary, dim int, mesh bool, err error) {
	if cfg.IsMesh() {
		if cfg.NumRows != cfg.NumCols {
			return 0, 0, false, simerr.Config("network.Build: only a square mesh (num_rows == num_cols) is supported; the core's Coord has a single radix per dimension")
		}
		return cfg.NumRows, 2, true, nil
	}
	return cfg.NumAry, cfg.NumDim, false, nil
}

// neighborCoord returns the coordinate one hop from coord along dim in
// the given direction. In torus mode the digit wraps; in mesh mode a
// boundary digit has no neighbor in the outward direction and ok is
// false.
func neighborCoord(coord topology.Coord, dim int, sign topology.Sign, mesh bool) (topology.Coord, bool) {
	d := coord.Digits[dim]
	ary := coord.Ary
	if sign == topology.Upper {
		if mesh && d == ary-1 {
			return topology.Coord{}, false
		}
		return coord.WithDigit(dim, (d+1)%ary), true
	}
	if mesh && d == 0 {
		return topology.Coord{}, false
	}
	return coord.WithDigit(dim, (d-1+ary)%ary), true
}

// wireAxisLink wires both directions of the physical link between router
// a's upper-dim-d port and router b's lower-dim-d port: two NetworkLinks
// carrying flits and two CreditLinks carrying the credits back.
func (net *Network) wireAxisLink(a, b, dim int) {
	upper := topology.Axis(dim, topology.Upper)
	lower := topology.Axis(dim, topology.Lower)

	aToB := netlink.NewNetworkLink(linkLatency, netlink.RouterBridge{Router: net.Routers[b], Port: lower})
	net.flitLinks[a][upper] = aToB
	net.allFlitLinks = append(net.allFlitLinks, aToB)

	bCreditsToA := netlink.NewCreditLink(linkLatency, netlink.RouterBridge{Router: net.Routers[a], Port: upper})
	net.creditLinks[b][lower] = bCreditsToA
	net.allCreditLinks = append(net.allCreditLinks, bCreditsToA)

	bToA := netlink.NewNetworkLink(linkLatency, netlink.RouterBridge{Router: net.Routers[a], Port: upper})
	net.flitLinks[b][lower] = bToA
	net.allFlitLinks = append(net.allFlitLinks, bToA)

	aCreditsToB := netlink.NewCreditLink(linkLatency, netlink.RouterBridge{Router: net.Routers[b], Port: lower})
	net.creditLinks[a][upper] = aCreditsToB
	net.allCreditLinks = append(net.allCreditLinks, aCreditsToB)
}

// wireLocalLink wires router id's Local output to its own NetworkInterface,
// including the synthetic credit return niFlitSink issues on acceptance.
// Credits emitted by the Local input are dropped: creditSender finds no
// CreditLink wired for the Local port, since a NetworkInterface never
// checks backpressure before injecting.
func (net *Network) wireLocalLink(id int) {
	creditBack := netlink.NewCreditLink(linkLatency, netlink.RouterBridge{Router: net.Routers[id], Port: topology.LocalPort})
	net.allCreditLinks = append(net.allCreditLinks, creditBack)

	sink := niFlitSink{ni: net.NIs[id], creditBack: creditBack}
	local := netlink.NewNetworkLink(linkLatency, sink)
	net.flitLinks[id][topology.LocalPort] = local
	net.allFlitLinks = append(net.allFlitLinks, local)
}

// creditSender returns the sendCredit constructor NewRouter needs for
// routerID: for each port, a function that forwards an emitted credit to
// the CreditLink wired for it, or discards it if none is wired (the
// Local port's inbound side).
func (net *Network) creditSender(routerID int) func(topology.PortDirection) func(flit.Credit) {
	return func(p topology.PortDirection) func(flit.Credit) {
		return func(c flit.Credit) {
			link := net.creditLinks[routerID][p]
			if link == nil {
				return
			}
			link.Send(c, net.Routers[routerID].Cycle())
		}
	}
}

// flitSender returns the sendFlit function NewRouter needs for routerID:
// hand a departing flit to whichever NetworkLink is wired for the
// chosen outport.
func (net *Network) flitSender(routerID int) func(topology.PortDirection, int, flit.Flit, int) {
	return func(port topology.PortDirection, outvc int, f flit.Flit, t int) {
		link := net.flitLinks[routerID][port]
		if link == nil {
			net.Logf("router %d: no outbound link wired for port %v", routerID, port)
			return
		}
		link.Send(outvc, f, t)
	}
}

// Inject hands a Message to routerID's NetworkInterface for eventual
// injection, subject to its throttling limiter.
func (net *Network) Inject(routerID int, m ni.Message) {
	net.NIs[routerID].Inject(m)
}

// Run drives the network for the given number of cycles starting at
// startCycle, fanning the inject/route/deliver-flits/deliver-credits
// phases for every router and link out across goroutines within each
// phase (a router's own pipeline only ever touches its own
// InputUnits/OutputUnits, the ports' inbound links feed disjoint port
// keys, and flits and credits land in separate phases, so per-router and
// per-link steppers never race against each other within a phase).
func (net *Network) Run(ctx context.Context, startCycle, cycles int) error {
	sched := simclock.New(startCycle, net.phases(), net.Logf)
	return sched.Run(ctx, cycles)
}

func (net *Network) phases() []simclock.Phase {
	inject := make([]simclock.Stepper, 0, net.order)
	route := make([]simclock.Stepper, 0, net.order)
	for id := 0; id < net.order; id++ {
		id := id
		inject = append(inject, simclock.Void(func(cycle int) {
			net.NIs[id].Tick(cycle, func(vc int, f flit.Flit, at int) {
				net.Routers[id].Arrive(topology.LocalPort, vc, f, at)
			})
		}))
		route = append(route, func(cycle int) error {
			return net.Routers[id].Wakeup(cycle)
		})
	}

	deliverFlits := make([]simclock.Stepper, 0, len(net.allFlitLinks))
	for _, l := range net.allFlitLinks {
		l := l
		deliverFlits = append(deliverFlits, simclock.Void(func(cycle int) { l.Tick(cycle) }))
	}
	deliverCredits := make([]simclock.Stepper, 0, len(net.allCreditLinks))
	for _, l := range net.allCreditLinks {
		l := l
		deliverCredits = append(deliverCredits, simclock.Void(func(cycle int) { l.Tick(cycle) }))
	}

	return []simclock.Phase{
		{Name: "inject", Steppers: inject},
		{Name: "route", Steppers: route},
		{Name: "deliver-flits", Steppers: deliverFlits},
		{Name: "deliver-credits", Steppers: deliverCredits},
	}
}

func routerLogPrefix(id int) string {
	return "router[" + strconv.Itoa(id) + "]: "
}
