// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package router

import (
	"testing"

	"garnet/flit"
	"garnet/internal/randpool"
	"garnet/simerr"
	"garnet/topology"
	"garnet/vc"
)

func headFlit(destRouter, srcRouter, vnet int) *flit.Flit {
	f := flit.NewHead(1, 0, destRouter, vnet, topology.NewNodeSet(destRouter), srcRouter, destRouter, false)
	return &f
}

func TestRoutingUnitDeterministicDimensionOrder(t *testing.T) {
	ru := &RoutingUnit{Algo: vc.DETERMINISTIC, NumAry: 4, NumDim: 2, DrLim: 1, MisroutingLim: 0}
	my := topology.Decode(0, 4, 2) // digits [0,0]
	f := headFlit(5, 0, 0)          // dest digits [1,1]

	port, class, err := ru.Route(my, f, topology.LocalPort, nil, 0)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if port.Dim != 0 || port.Sign != topology.Upper {
		t.Fatalf("port = %v, want upper0 (dimension-order starts at dim 0)", port)
	}
	if class != 0 {
		t.Fatalf("class = %d, want 0 (myDigit == 0 always takes the dateline class)", class)
	}
}

func TestRoutingUnitDeterministicSelfRoute(t *testing.T) {
	ru := &RoutingUnit{Algo: vc.DETERMINISTIC, NumAry: 4, NumDim: 2}
	my := topology.Decode(5, 4, 2)
	f := headFlit(5, 0, 0)
	port, _, err := ru.Route(my, f, topology.Axis(0, topology.Upper), nil, 0)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !port.IsLocal() {
		t.Fatalf("port = %v, want Local for a flit that has reached its destination", port)
	}
}

func TestRoutingUnitTableLookup(t *testing.T) {
	rng := randpool.New(1)
	tbl := topology.NewRoutingTable(rng)
	tbl.AddEntry(0, topology.TableEntry{Port: topology.Axis(0, topology.Upper), Dest: topology.NewNodeSet(5), Weight: 1})
	tbl.AddEntry(0, topology.TableEntry{Port: topology.Axis(1, topology.Lower), Dest: topology.NewNodeSet(9), Weight: 1})
	tbl.SetOrdered(0, true)

	ru := &RoutingUnit{Algo: vc.TABLE, NumAry: 4, NumDim: 2, Table: tbl}
	my := topology.Decode(0, 4, 2)
	f := headFlit(5, 0, 0)
	port, class, err := ru.Route(my, f, topology.LocalPort, nil, 0)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if port.Dim != 0 || port.Sign != topology.Upper {
		t.Fatalf("port = %v, want upper0", port)
	}
	if class != 0 {
		t.Fatalf("class = %d, want 0 (TABLE doesn't partition classes)", class)
	}
}

func TestRoutingUnitTableUnreachableIsInvariantError(t *testing.T) {
	rng := randpool.New(1)
	tbl := topology.NewRoutingTable(rng)
	ru := &RoutingUnit{Algo: vc.TABLE, NumAry: 4, NumDim: 2, Table: tbl}
	my := topology.Decode(0, 4, 2)
	f := headFlit(5, 0, 0)
	_, _, err := ru.Route(my, f, topology.LocalPort, nil, 0)
	if _, ok := simerr.AsInvariant(err); !ok {
		t.Fatalf("Route with no matching table entry: err = %v, want InvariantError", err)
	}
}

func TestRoutingUnitAdaptiveFallsBackWhenDrExhausted(t *testing.T) {
	ru := &RoutingUnit{Algo: vc.STATIC_ADAPTIVE, PickAlgo: vc.RANDOM, NumAry: 4, NumDim: 2, DrLim: 1, MisroutingLim: 0, RNG: randpool.New(1)}
	my := topology.Decode(0, 4, 2)
	f := headFlit(5, 0, 0)
	f.Route.DR = 1 // already at dr_lim

	port, class, err := ru.Route(my, f, topology.LocalPort, map[topology.PortDirection]*OutputUnit{}, 0)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if port.Dim != 0 || port.Sign != topology.Upper {
		t.Fatalf("port = %v, want upper0 (deterministic fallback)", port)
	}
	wantClass := 3*ru.DrLim + 2 // fallback level is dr_lim, alpha 2 (entering fresh from Local)
	if class != wantClass {
		t.Fatalf("class = %d, want %d", class, wantClass)
	}
	if f.Route.DR != 1 {
		t.Fatalf("DR = %d, want unchanged at 1 on fallback", f.Route.DR)
	}
}

func TestRoutingUnitAdaptivePicksFreeCandidate(t *testing.T) {
	ru := &RoutingUnit{Algo: vc.STATIC_ADAPTIVE, PickAlgo: vc.MINIMUM_CONGESTION, NumAry: 4, NumDim: 2, DrLim: 2, MisroutingLim: 0, RNG: randpool.New(1)}
	my := topology.Decode(0, 4, 2)
	dest := topology.Decode(5, 4, 2)
	f := headFlit(5, 0, 0)

	vcsPerVnet := vc.MinVCsPerVnet(vc.STATIC_ADAPTIVE, ru.DrLim)
	outputs := map[topology.PortDirection]*OutputUnit{
		topology.Axis(0, topology.Upper): NewOutputUnit(topology.Axis(0, topology.Upper), vcsPerVnet, 1, vc.STATIC_ADAPTIVE, ru.DrLim, 4),
		topology.Axis(1, topology.Upper): NewOutputUnit(topology.Axis(1, topology.Upper), vcsPerVnet, 1, vc.STATIC_ADAPTIVE, ru.DrLim, 4),
	}

	port, _, err := ru.Route(my, f, topology.LocalPort, outputs, 0)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if port.Sign != topology.Upper || (port.Dim != 0 && port.Dim != 1) {
		t.Fatalf("port = %v, want a minimal candidate toward %v", port, dest)
	}
}

func TestRoutingUnitXYRoutesXBeforeY(t *testing.T) {
	ru := &RoutingUnit{Algo: vc.XY, NumAry: 4, NumDim: 2}
	my := topology.Decode(0, 4, 2) // digits [0,0]
	f := headFlit(5, 0, 0)          // dest digits [1,1]: X differs first

	port, class, err := ru.Route(my, f, topology.LocalPort, nil, 0)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if port.Dim != 0 || port.Sign != topology.Upper {
		t.Fatalf("port = %v, want upper0 (X routes before Y, ascending)", port)
	}
	if class != 0 {
		t.Fatalf("class = %d, want 0 (XY has a single class)", class)
	}
}

func TestRoutingUnitXYContinuesInSameDirectionAcrossHops(t *testing.T) {
	ru := &RoutingUnit{Algo: vc.XY, NumAry: 4, NumDim: 2}
	my := topology.Decode(1, 4, 2) // digits [1,0]
	f := headFlit(3, 0, 0)          // dest digits [3,0]

	// Arrived via the link toward the lower-X neighbor (lower0): continuing
	// onward in +X means selecting upper0 next, not a bounce-back.
	port, _, err := ru.Route(my, f, topology.Axis(0, topology.Lower), nil, 0)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if port.Dim != 0 || port.Sign != topology.Upper {
		t.Fatalf("port = %v, want upper0", port)
	}
}

func TestRoutingUnitXYAssertsAgainstDirectBounceBack(t *testing.T) {
	ru := &RoutingUnit{Algo: vc.XY, NumAry: 4, NumDim: 2}
	// A malformed coordinate pair that would compute the same sign as the
	// inport: arrived via upper0 (from the higher-X neighbor) yet dest is
	// still higher in X than my digit, which a correctly wired topology
	// could never hand to Route (included to exercise the assertion).
	my := topology.Decode(1, 4, 2)
	f := headFlit(3, 0, 0)

	_, _, err := ru.Route(my, f, topology.Axis(0, topology.Upper), nil, 0)
	if _, ok := simerr.AsInvariant(err); !ok {
		t.Fatalf("Route: err = %v, want InvariantError for a direct bounce-back", err)
	}
}

type alwaysDown struct {
	port topology.PortDirection
}

func (f alwaysDown) IsDown(routerID int, port topology.PortDirection, now int) bool {
	return port == f.port
}

func TestRoutingUnitAdaptiveSkipsFaultedPort(t *testing.T) {
	ru := &RoutingUnit{
		Algo: vc.STATIC_ADAPTIVE, PickAlgo: vc.MINIMUM_CONGESTION,
		NumAry: 4, NumDim: 2, DrLim: 2, MisroutingLim: 0, RNG: randpool.New(1),
		Faults: alwaysDown{port: topology.Axis(0, topology.Upper)},
	}
	my := topology.Decode(0, 4, 2)
	f := headFlit(5, 0, 0)

	vcsPerVnet := vc.MinVCsPerVnet(vc.STATIC_ADAPTIVE, ru.DrLim)
	outputs := map[topology.PortDirection]*OutputUnit{
		topology.Axis(0, topology.Upper): NewOutputUnit(topology.Axis(0, topology.Upper), vcsPerVnet, 1, vc.STATIC_ADAPTIVE, ru.DrLim, 4),
		topology.Axis(1, topology.Upper): NewOutputUnit(topology.Axis(1, topology.Upper), vcsPerVnet, 1, vc.STATIC_ADAPTIVE, ru.DrLim, 4),
	}

	port, _, err := ru.Route(my, f, topology.LocalPort, outputs, 0)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if port == (topology.Axis(0, topology.Upper)) {
		t.Fatalf("port = %v, want routing to avoid the faulted port", port)
	}
	if port.Dim != 1 || port.Sign != topology.Upper {
		t.Fatalf("port = %v, want upper1 (the only remaining minimal candidate)", port)
	}
}
