// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tron

const (
	// searchMu0 sufficient decrease constant of the projected search.
	searchMu0 = 1.0e-2
	// searchInterp backtracking factor.
	searchInterp = 0.5
	// searchMaxTrials bounds the backtracking loop.
	searchMaxTrials = 20
)

// Subroutine dprsrch
//
// This subroutine refines a computed direction w with a projected
// backtracking search on the quadratic
//
//	q(s) = gᵀs + ½sᵀAs
//
// Starting from ɑ = 1 the step s = 𝚙𝚛𝚘𝚓(x + ɑ·w) - x is halved until the
// sufficient decrease condition q(s) ≤ μ₀·gᵀs holds; the search never
// backtracks below the first breakpoint, so at least the feasible part of
// the direction is kept.
//
// On exit x is advanced to the accepted point and w is overwritten with
// the step actually taken. wa1, wa2 are scratch of length n.
func dprsrch(n int, x, xl, xu, a, g, w, wa1, wa2 []float64) {

	s := wa1

	// Breakpoints beyond the full step never constrain the search.
	_, brptmin, _ := dbreakpt(n, x, xl, xu, w)
	floor := zero
	if brptmin < one {
		floor = brptmin
	}

	alpha := one
	search := true
	for trial := 0; trial < searchMaxTrials; trial++ {
		dgpstep(n, x, xl, xu, alpha, w, s)
		dssyax(n, a, s, wa2)
		gts := ddot(n, g, s)
		q := half*ddot(n, s, wa2) + gts
		if q <= searchMu0*gts {
			search = false
			break
		}
		if alpha <= floor {
			break
		}
		alpha *= searchInterp
	}

	// Take at least the step to the first breakpoint.
	if search && alpha < floor {
		alpha = floor
	}

	dgpstep(n, x, xl, xu, alpha, w, s)
	daxpy(n, one, s, x)
	dmid(n, x, xl, xu)
	dcopy(n, s, w)
}
