// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package simclock drives a simulation cycle by cycle: each cycle is a
// sequence of phases (link delivery, then route compute/switch
// allocation/crossbar traversal, ...), and within a phase every stepper
// only reads state latched by an earlier phase, so the steppers in a
// phase may be dispatched concurrently without changing the result. This
// is a fan-out barrier, not true concurrent simulation — the network
// model itself stays single-threaded discrete-event (see the core
// packages' own docs); simclock only parallelizes the otherwise-serial
// act of calling into independent routers/links on a multi-core host.
//
// Production hosts are expected to supply their own Scheduler; the
// BarrierScheduler here is the reference/demo implementation cmd/garnetsim
// uses, not a requirement every embedder must adopt.
package simclock

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"garnet/logger"
)

// Stepper advances one component by one cycle. Components whose native
// Tick/Wakeup method doesn't return an error are wrapped with Void.
type Stepper func(cycle int) error

// Void adapts an error-less tick function (e.g. *netlink.NetworkLink.Tick)
// into a Stepper.
func Void(f func(cycle int)) Stepper {
	return func(cycle int) error {
		f(cycle)
		return nil
	}
}

// Phase names a group of steppers that may run concurrently within a
// single cycle.
type Phase struct {
	Name     string
	Steppers []Stepper
}

// Scheduler runs a simulation for a number of cycles, starting from
// whatever cycle it was constructed with.
type Scheduler interface {
	Run(ctx context.Context, cycles int) error
}

// BarrierScheduler runs Phases in order each cycle, fanning each phase's
// Steppers out across goroutines and waiting for all of them (or the
// first error) before moving to the next phase or cycle.
type BarrierScheduler struct {
	Phases []Phase
	Start  int
	Logf   logger.Logf

	cycle int
}

// New returns a BarrierScheduler beginning at cycle start.
func New(start int, phases []Phase, logf logger.Logf) *BarrierScheduler {
	if logf == nil {
		logf = logger.Discard
	}
	return &BarrierScheduler{Phases: phases, Start: start, Logf: logf, cycle: start}
}

// Cycle reports the next cycle Run will execute.
func (s *BarrierScheduler) Cycle() int { return s.cycle }

// Run advances the simulation by cycles cycles, returning the first
// stepper error encountered (wrapped with its cycle and phase name), if
// any. A cancelled ctx aborts before the next cycle starts.
func (s *BarrierScheduler) Run(ctx context.Context, cycles int) error {
	for i := 0; i < cycles; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, phase := range s.Phases {
			g, _ := errgroup.WithContext(ctx)
			for _, step := range phase.Steppers {
				step := step
				cycle := s.cycle
				g.Go(func() error { return step(cycle) })
			}
			if err := g.Wait(); err != nil {
				return fmt.Errorf("cycle %d phase %q: %w", s.cycle, phase.Name, err)
			}
		}
		s.Logf("cycle %d complete", s.cycle)
		s.cycle++
	}
	return nil
}
