// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package faultmodel

import (
	"testing"

	"garnet/topology"
)

func TestIsDownFalseForUnmarkedPort(t *testing.T) {
	m := New()
	if m.IsDown(0, topology.Axis(0, topology.Upper), 10) {
		t.Fatalf("IsDown = true for a port never marked down")
	}
}

func TestMarkDownExpiresAfterDuration(t *testing.T) {
	m := New()
	port := topology.Axis(1, topology.Lower)
	m.MarkDown(3, port, 10, 5) // down for cycles [10, 15)

	for cycle := 10; cycle < 15; cycle++ {
		if !m.IsDown(3, port, cycle) {
			t.Fatalf("IsDown(cycle=%d) = false, want true within the fault window", cycle)
		}
	}
	if m.IsDown(3, port, 15) {
		t.Fatalf("IsDown(cycle=15) = true, want false once the fault window elapses")
	}
}

func TestMarkDownIsPerRouterAndPort(t *testing.T) {
	m := New()
	port := topology.Axis(0, topology.Upper)
	m.MarkDown(1, port, 0, 100)

	if m.IsDown(2, port, 0) {
		t.Fatalf("fault on router 1 leaked to router 2")
	}
	otherPort := topology.Axis(1, topology.Upper)
	if m.IsDown(1, otherPort, 0) {
		t.Fatalf("fault on one port leaked to a different port on the same router")
	}
}

func TestClearRemovesAllFaults(t *testing.T) {
	m := New()
	port := topology.Axis(0, topology.Lower)
	m.MarkDown(0, port, 0, 1000)
	m.Clear()
	if m.IsDown(0, port, 0) {
		t.Fatalf("IsDown = true after Clear")
	}
}
