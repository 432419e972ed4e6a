// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package simtest

import (
	"testing"

	"garnet/simclock"
)

func TestRunCallsStepsInOrderEveryCycle(t *testing.T) {
	var order []string
	a := func(cycle int) error { order = append(order, "a"); return nil }
	b := func(cycle int) error { order = append(order, "b"); return nil }

	err := Run(0, 2, []simclock.Phase{
		{Name: "links", Steppers: []simclock.Stepper{a, b}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"a", "b", "a", "b"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRunPropagatesStepperError(t *testing.T) {
	failing := func(cycle int) error { return errBoom }
	err := Run(0, 1, []simclock.Phase{{Name: "p", Steppers: []simclock.Stepper{failing}}})
	if err == nil {
		t.Fatalf("Run returned nil, want an error")
	}
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
