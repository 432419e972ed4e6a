// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package randpool centralizes the single seeded random generator every
// pick algorithm and TABLE's unordered tie-break draws from, owned by the
// Network and shared so a run stays reproducible given its seed.
package randpool

import "math/rand"

// Pool wraps a *rand.Rand seeded once at Network-build time. It is not
// safe for concurrent use; the core runs single-threaded with no locks.
type Pool struct {
	r *rand.Rand
}

// New returns a Pool seeded deterministically from seed.
func New(seed int64) *Pool {
	return &Pool{r: rand.New(rand.NewSource(seed))}
}

// Intn draws a uniform int in [0, n).
func (p *Pool) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return p.r.Intn(n)
}

// CoinFlip draws a uniform boolean.
func (p *Pool) CoinFlip() bool {
	return p.r.Intn(2) == 0
}
