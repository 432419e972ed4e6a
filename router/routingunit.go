// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package router

import (
	"garnet/flit"
	"garnet/internal/randpool"
	"garnet/simerr"
	"garnet/topology"
	"garnet/vc"
)

// FaultChecker reports whether a router's port is currently faulted,
// satisfied by *faultmodel.Model. A RoutingUnit with a nil FaultChecker
// never treats any port as down.
type FaultChecker interface {
	IsDown(routerID int, port topology.PortDirection, now int) bool
}

// RoutingUnit computes a head flit's outport and outvc-class: route
// compute only selects where a flit goes and which class of
// downstream VC it may use; actual VC reservation against that class
// happens later, at switch allocation, so that availability reflects the
// state of the network at grant time rather than at compute time.
type RoutingUnit struct {
	Algo          vc.Algorithm
	PickAlgo      vc.PickAlgorithm
	NumAry        int
	NumDim        int
	DrLim         int
	MisroutingLim int
	Table         *topology.RoutingTable
	RNG           *randpool.Pool

	// RouterID and Faults let adaptive candidate enumeration skip ports
	// the fault model has marked down, treating them as absent rather
	// than as congested. TABLE and DETERMINISTIC have no alternate
	// candidate to reroute onto and are left unaffected.
	RouterID int
	Faults   FaultChecker
}

// candidate is one viable (port, class) an adaptive algorithm could pick,
// tagged with the counter it would advance if chosen.
type candidate struct {
	port        topology.PortDirection
	class       int
	dimReversal bool
	misroute    bool
}

// classAlpha picks the low two bits of an adaptive outvc-class: 2
// ("from Local, or changing dimension") when the candidate's dimension
// isn't the one the flit arrived travelling along, else 0
// ("descending", digit already past or wrapped through 0) or 1
// ("ascending") by Dally's dateline rule.
func classAlpha(dim, curRouteDim int, arrivedFromLocal bool, myDigit, destDigit int) int {
	if arrivedFromLocal || dim != curRouteDim {
		return 2
	}
	if myDigit > destDigit || myDigit == 0 {
		return 0
	}
	return 1
}

// Route selects f's outport and outvc-class given it arrived on inport at
// myCoord. f.Route's dr/misrouting counters are advanced in-place when
// the chosen candidate required it; outputs is the routing
// router's own OutputUnits, consulted read-only to rank adaptive
// candidates by congestion — no VC is reserved here.
func (ru *RoutingUnit) Route(myCoord topology.Coord, f *flit.Flit, inport topology.PortDirection, outputs map[topology.PortDirection]*OutputUnit, now int) (topology.PortDirection, int, error) {
	destCoord := topology.Decode(f.Route.DestRouter, ru.NumAry, ru.NumDim)
	if myCoord.Equal(destCoord) {
		return topology.LocalPort, 0, nil
	}
	curRouteDim := 0
	if !inport.IsLocal() {
		curRouteDim = inport.Dim
	}
	switch ru.Algo {
	case vc.TABLE:
		return ru.routeTable(f)
	case vc.XY:
		return ru.routeXY(myCoord, destCoord, inport)
	case vc.DETERMINISTIC:
		return ru.routeDeterministic(myCoord, destCoord, curRouteDim)
	case vc.STATIC_ADAPTIVE, vc.DYNAMIC_ADAPTIVE:
		return ru.routeAdaptive(myCoord, destCoord, f, inport, curRouteDim, outputs, now)
	default:
		return topology.PortDirection{}, 0, simerr.Invariant("routing unit: unsupported algorithm %v", ru.Algo)
	}
}

// routeXY implements the mesh-reference algorithm: route dimension 0 (X)
// to completion before ever touching dimension 1 (Y), direction following
// the plain (non-wrapping) sign of the digit delta — a mesh has no
// dateline to wrap across, so unlike DETERMINISTIC no VC-class partition
// is needed to break a cycle. Selecting the same link a flit just arrived
// on (a direct U-turn back to the router it came from) is asserted
// unreachable under correct dimension-order convergence; tripping it
// indicates a bug upstream in candidate enumeration, not a reachable
// routing outcome.
func (ru *RoutingUnit) routeXY(myCoord, destCoord topology.Coord, inport topology.PortDirection) (topology.PortDirection, int, error) {
	curRouteDim := 0
	if !inport.IsLocal() {
		curRouteDim = inport.Dim
	}
	i := myCoord.FirstDifferingDim(curRouteDim, destCoord)
	if i == -1 {
		return topology.PortDirection{}, 0, simerr.Invariant("XY routing found no differing dimension >= %d between non-equal coordinates", curRouteDim)
	}
	sign := topology.Lower
	if destCoord.Digits[i] > myCoord.Digits[i] {
		sign = topology.Upper
	}
	if !inport.IsLocal() && i == inport.Dim && sign == inport.Sign {
		return topology.PortDirection{}, 0, simerr.Invariant("XY turn restriction violated: router arrived via dim %d/%v, cannot immediately send back out the same link", inport.Dim, inport.Sign)
	}
	return topology.Axis(i, sign), 0, nil
}

func (ru *RoutingUnit) routeTable(f *flit.Flit) (topology.PortDirection, int, error) {
	if ru.Table == nil {
		return topology.PortDirection{}, 0, simerr.Invariant("TABLE algorithm requires a routing table")
	}
	port, ok := ru.Table.Lookup(f.Route.Vnet, f.Route.NetDest)
	if !ok {
		return topology.PortDirection{}, 0, simerr.Invariant("no routing-table candidate reaches destination router %d", f.Route.DestRouter)
	}
	return port, 0, nil
}

// routeDeterministic implements dimension-order routing with the two-class
// dateline partition Dally's rule requires for deadlock freedom: resolve
// the lowest differing dimension at or above curRouteDim
// (packets never revisit a lower dimension once they've left it) and move
// one hop toward dest along it.
func (ru *RoutingUnit) routeDeterministic(myCoord, destCoord topology.Coord, curRouteDim int) (topology.PortDirection, int, error) {
	i := myCoord.FirstDifferingDim(curRouteDim, destCoord)
	if i == -1 {
		return topology.PortDirection{}, 0, simerr.Invariant("dimension-order routing found no differing dimension >= %d between non-equal coordinates", curRouteDim)
	}
	sign := myCoord.MinimalSign(i, destCoord)
	port := topology.Axis(i, sign)
	myDigit, destDigit := myCoord.Digits[i], destCoord.Digits[i]
	class := 0
	if myDigit > destDigit || myDigit == 0 {
		class = 0
	} else {
		class = 1
	}
	return port, class, nil
}

// routeAdaptive implements STATIC_ADAPTIVE and DYNAMIC_ADAPTIVE:
// enumerate minimal and misrouting candidates bounded by
// dr_lim/misrouting_lim, keep the ones with a legal outvc, prefer ones
// with a free outvc, rank survivors with the configured pick algorithm,
// and fall back to deterministic routing (no counter advance) if nothing
// survives or dr has already hit its limit.
func (ru *RoutingUnit) routeAdaptive(myCoord, destCoord topology.Coord, f *flit.Flit, inport topology.PortDirection, curRouteDim int, outputs map[topology.PortDirection]*OutputUnit, now int) (topology.PortDirection, int, error) {
	dr := f.Route.DR
	misrouting := f.Route.Misrouting
	arrivedFromLocal := inport.IsLocal()

	level := dr
	if ru.Algo == vc.DYNAMIC_ADAPTIVE {
		level = 0
		if dr > 0 {
			level = 1
		}
	}

	fallback := func() (topology.PortDirection, int, error) {
		port, _, err := ru.routeDeterministic(myCoord, destCoord, curRouteDim)
		if err != nil {
			return topology.PortDirection{}, 0, err
		}
		myDigit, destDigit := myCoord.Digits[port.Dim], destCoord.Digits[port.Dim]
		alpha := classAlpha(port.Dim, curRouteDim, arrivedFromLocal, myDigit, destDigit)
		fallbackLevel := ru.DrLim
		if ru.Algo == vc.DYNAMIC_ADAPTIVE {
			fallbackLevel = 2
		}
		return port, 3*fallbackLevel + alpha, nil
	}

	if dr >= ru.DrLim {
		return fallback()
	}

	cands := ru.enumerateAdaptive(myCoord, destCoord, curRouteDim, arrivedFromLocal, level, dr, misrouting)

	var legal []candidate
	for _, c := range cands {
		out, ok := outputs[c.port]
		if !ok {
			continue
		}
		if ru.Faults != nil && ru.Faults.IsDown(ru.RouterID, c.port, now) {
			continue
		}
		if !out.HasLegalVC(f.Route.Vnet, c.class, dr, ru.Algo) {
			continue
		}
		legal = append(legal, c)
	}
	if len(legal) == 0 {
		return fallback()
	}

	var free []candidate
	for _, c := range legal {
		if outputs[c.port].HasFreeVC(f.Route.Vnet, c.class) {
			free = append(free, c)
		}
	}

	var chosen candidate
	if len(free) > 0 {
		chosen = ru.pick(free, f.Route.Vnet, curRouteDim, dr, outputs, true)
	} else {
		chosen = ru.pick(legal, f.Route.Vnet, curRouteDim, dr, outputs, false)
	}

	if chosen.dimReversal {
		f.Route.DR++
	}
	if chosen.misroute {
		f.Route.Misrouting++
	}
	return chosen.port, chosen.class, nil
}

// enumerateAdaptive lists every port a packet at (myCoord, curRouteDim,
// dr, misrouting) could legally be sent through next: for
// each dimension whose digit still differs from dest, the minimal
// (wrap-shortest) direction, gated by dr_lim when it would mean returning
// to an earlier dimension; and, regardless of whether the digit differs,
// the misrouting candidate(s), gated by misrouting_lim.
func (ru *RoutingUnit) enumerateAdaptive(myCoord, destCoord topology.Coord, curRouteDim int, arrivedFromLocal bool, level, dr, misrouting int) []candidate {
	var out []candidate
	for i := 0; i < ru.NumDim; i++ {
		myDigit, destDigit := myCoord.Digits[i], destCoord.Digits[i]
		alpha := classAlpha(i, curRouteDim, arrivedFromLocal, myDigit, destDigit)
		class := 3*level + alpha
		if myDigit != destDigit {
			minSign := myCoord.MinimalSign(i, destCoord)
			reversal := i < curRouteDim
			if !reversal || dr+1 < ru.DrLim {
				out = append(out, candidate{port: topology.Axis(i, minSign), class: class, dimReversal: reversal})
			}
			if misrouting < ru.MisroutingLim && i != curRouteDim {
				antiSign := topology.Lower
				if minSign == topology.Lower {
					antiSign = topology.Upper
				}
				out = append(out, candidate{port: topology.Axis(i, antiSign), class: class, misroute: true})
			}
		} else if misrouting < ru.MisroutingLim && i != curRouteDim {
			out = append(out, candidate{port: topology.Axis(i, topology.Lower), class: class, misroute: true})
			out = append(out, candidate{port: topology.Axis(i, topology.Upper), class: class, misroute: true})
		}
	}
	return out
}

// pick ranks cands under the configured PickAlgorithm.
// MINIMUM_CONGESTION prefers the most free VCs (free pool) or the
// shortest waiting queue (legal-only pool); STRAIGHT_LINES prefers
// continuing along curRouteDim over turning; RANDOM draws uniformly.
// Ties within a strategy are broken by the shared RNG, never by
// dimension order, so no dimension is systematically favored.
func (ru *RoutingUnit) pick(cands []candidate, vnet, curRouteDim, dr int, outputs map[topology.PortDirection]*OutputUnit, free bool) candidate {
	if len(cands) == 1 {
		return cands[0]
	}
	switch ru.PickAlgo {
	case vc.STRAIGHT_LINES:
		var straight []candidate
		for _, c := range cands {
			if c.port.Dim == curRouteDim {
				straight = append(straight, c)
			}
		}
		if len(straight) > 0 {
			return straight[ru.RNG.Intn(len(straight))]
		}
		return cands[ru.RNG.Intn(len(cands))]
	case vc.RANDOM:
		return cands[ru.RNG.Intn(len(cands))]
	default: // MINIMUM_CONGESTION
		var best []candidate
		bestScore := -1
		for _, c := range cands {
			out := outputs[c.port]
			var score int
			if free {
				score = out.GetFreeVCCount(vnet, c.class)
			} else {
				// fewer waiters is less congested; invert so "higher is
				// better" matches the free-pool comparison below.
				score = -out.GetMinWaitingLength(vnet, c.class, dr, ru.Algo)
			}
			switch {
			case len(best) == 0 || score > bestScore:
				bestScore = score
				best = []candidate{c}
			case score == bestScore:
				best = append(best, c)
			}
		}
		return best[ru.RNG.Intn(len(best))]
	}
}
