// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package simtest is a deterministic, strictly-sequential reference
// scheduler for tests that drive a handful of cycles without
// simclock's concurrent fan-out (only simtest's own tests use it; the
// router and network tests drive cycles directly): tests want a
// fixed, reproducible call order (and easy-to-read failures), not
// throughput.
package simtest

import (
	"context"

	"garnet/simclock"
)

// Run executes phases in order, every cycle, calling each phase's
// Steppers one at a time in slice order. It returns the first error any
// Stepper returns, tagged with the cycle and phase name by
// simclock.BarrierScheduler's own wrapping (simtest reuses it with a
// single-Stepper "phase" so there's exactly one call site for that
// formatting).
func Run(start, cycles int, phases []simclock.Phase) error {
	sched := simclock.New(start, sequential(phases), nil)
	return sched.Run(context.Background(), cycles)
}

// sequential flattens each phase's steppers into their own one-stepper
// phase, which forces BarrierScheduler's per-phase errgroup fan-out down
// to exactly one goroutine per step — i.e., serial execution in the
// original order, since BarrierScheduler doesn't guarantee order across
// steppers within a single phase but does run phases themselves in order.
func sequential(phases []simclock.Phase) []simclock.Phase {
	var out []simclock.Phase
	for _, p := range phases {
		for _, step := range p.Steppers {
			out = append(out, simclock.Phase{Name: p.Name, Steppers: []simclock.Stepper{step}})
		}
	}
	return out
}
