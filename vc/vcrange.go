// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package vc

// NumClasses reports how many outvc-classes algorithm a partitions a
// vnet's VCs into. TABLE and XY do not partition by class at all (one
// class, the whole vnet); DETERMINISTIC splits into the two dateline
// classes Dally's rule requires to break cyclic dependency. STATIC_ADAPTIVE
// has three classes for each dimension-reversal level 0..drLim-1 plus
// three for the deterministic fallback level drLim, 3*drLim+3 total. DYNAMIC_ADAPTIVE instead uses a fixed
// three coarse levels {adaptive-low, adaptive-high, deterministic}
// regardless of drLim — its deterministic level is always the constant 2,
// never dr_lim — so it always has 9 classes.
func NumClasses(a Algorithm, drLim int) int {
	switch a {
	case DETERMINISTIC:
		return 2
	case STATIC_ADAPTIVE:
		return 3*drLim + 3
	case DYNAMIC_ADAPTIVE:
		return 9
	default:
		return 1
	}
}

// MinVCsPerVnet reports the minimum vcs_per_vnet the algorithm needs to
// have at least one VC per class.
func MinVCsPerVnet(a Algorithm, drLim int) int {
	return NumClasses(a, drLim)
}

// ClassRange returns the half-open [lo, hi) slice of a vnet's
// vcsPerVnet VCs reserved for outvc-class class under algorithm a. Ranges
// partition the vnet's VCs evenly across NumClasses(a, drLim) classes;
// a vnet's VC block is indexed 0..vcsPerVnet within the vnet, the caller
// adds the vnet's base offset.
func ClassRange(a Algorithm, vcsPerVnet, class, drLim int) (lo, hi int) {
	n := NumClasses(a, drLim)
	if n <= 1 {
		return 0, vcsPerVnet
	}
	width := vcsPerVnet / n
	lo = class * width
	hi = lo + width
	if class == n-1 {
		hi = vcsPerVnet // last class absorbs any remainder
	}
	return lo, hi
}
