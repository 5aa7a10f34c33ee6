// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tron

import "math"

// Subroutine dmid
//
// This subroutine projects x onto the box [xl,xu] in place:
//
//	𝚙𝚛𝚘𝚓 xᵢ = 𝚖𝚒𝚗(uᵢ, 𝚖𝚊𝚡(lᵢ, xᵢ))
//
// The projection is idempotent.
func dmid(n int, x, xl, xu []float64) {
	if n < 0 || n > len(x) || n > len(xl) || n > len(xu) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		x[i] = math.Min(xu[i], math.Max(xl[i], x[i]))
	}
}

// Subroutine dgpnorm
//
// This subroutine computes the infinity norm of the projected gradient:
// a component is blocked when its variable sits at a bound and the
// gradient sign points outward, so only the KKT violation remains.
//
//	𝚙𝚛𝚘𝚓 gᵢ = 𝚖𝚒𝚗(gᵢ, 𝟶)  if xᵢ = lᵢ
//	𝚙𝚛𝚘𝚓 gᵢ = 𝚖𝚊𝚡(gᵢ, 𝟶)  if xᵢ = uᵢ
//	𝚙𝚛𝚘𝚓 gᵢ = gᵢ          otherwise
//
// A variable fixed by xl = xu contributes nothing.
func dgpnorm(n int, x, xl, xu, g []float64) float64 {
	if n < 0 || n > len(x) || n > len(xl) || n > len(xu) || n > len(g) {
		panic("bound check error")
	}
	norm := zero
	for i := 0; i < n; i++ {
		if xl[i] == xu[i] {
			continue
		}
		v := g[i]
		if x[i] <= xl[i] {
			v = math.Min(v, zero)
		} else if x[i] >= xu[i] {
			v = math.Max(v, zero)
		}
		norm = math.Max(norm, math.Abs(v))
	}
	return norm
}

// Subroutine dbreakpt
//
// Along the path x + t·w each coordinate moving toward a finite bound
// hits it at the breakpoint
//
//	tᵢ = (uᵢ - xᵢ)/wᵢ  if wᵢ > 𝟶
//	tᵢ = (lᵢ - xᵢ)/wᵢ  if wᵢ < 𝟶
//
// and has no breakpoint otherwise. The subroutine returns the number of
// finite breakpoints together with their minimum and maximum (both zero
// when there are none).
func dbreakpt(n int, x, xl, xu, w []float64) (nbrpt int, brptmin, brptmax float64) {
	if n < 0 || n > len(x) || n > len(xl) || n > len(xu) || n > len(w) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		var brpt float64
		if w[i] > zero && !math.IsInf(xu[i], 1) {
			brpt = (xu[i] - x[i]) / w[i]
		} else if w[i] < zero && !math.IsInf(xl[i], -1) {
			brpt = (xl[i] - x[i]) / w[i]
		} else {
			continue
		}
		nbrpt++
		if nbrpt == 1 {
			brptmin, brptmax = brpt, brpt
		} else {
			brptmin = math.Min(brptmin, brpt)
			brptmax = math.Max(brptmax, brpt)
		}
	}
	return
}

// Subroutine dgpstep
//
// This subroutine computes the projected step
//
//	s = 𝚙𝚛𝚘𝚓(x + ɑ·w) - x
//
// which is the feasible step achievable from x in direction w scaled by ɑ.
func dgpstep(n int, x, xl, xu []float64, alpha float64, w, s []float64) {
	if n < 0 || n > len(x) || n > len(xl) || n > len(xu) || n > len(w) || n > len(s) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		v := x[i] + alpha*w[i]
		if v < xl[i] {
			s[i] = xl[i] - x[i]
		} else if v > xu[i] {
			s[i] = xu[i] - x[i]
		} else {
			s[i] = alpha * w[i]
		}
	}
}
