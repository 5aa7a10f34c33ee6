// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tron

// Subroutine dcauchy
//
// Given the quadratic model of f at x
//
//	q(s) = gᵀs + ½sᵀAs
//
// this subroutine computes the Cauchy step: a feasible s = 𝚙𝚛𝚘𝚓(x - ɑ·g) - x
// along the projected steepest-descent path such that ‖s‖ ≤ δ and the
// sufficient decrease condition
//
//	q(s) ≤ μ₀·gᵀs
//
// holds. Starting from the carried step length ɑ the subroutine either
// interpolates (ɑ ← 𝚒𝚗𝚝𝚎𝚛𝚙𝚏·ɑ, when the initial step is too long or does
// not decrease enough) or extrapolates (ɑ ← 𝚎𝚡𝚝𝚛𝚊𝚙𝚏·ɑ, capped by the
// largest breakpoint), each within a bounded number of trials.
//
// The step is left in ctx.s and the final ɑ is carried in ctx.alphac for
// the next outer iteration. The coordinates of x+s sitting exactly at a
// bound form the initial active-set estimate consumed by dspcg.
func dcauchy(loc *Location, spec *tronSpec, ctx *tronCtx, delta float64) {

	n := spec.n
	x, g, a := loc.X, loc.G, loc.A
	xl, xu := spec.xl, spec.xu

	cs := &spec.cauchy
	s, wa := ctx.s, ctx.aw
	alpha := ctx.alphac

	log := spec.logger
	if log.enable(LogTrace) {
		log.log("---------------- CAUCHY entered ------------------\n")
	}

	// Find the largest breakpoint along the steepest descent direction -g.
	_, _, brptmax := dbreakpt(n, x, xl, xu, ctx.negGrad(g))

	// q(s) for the initial alpha decides interpolation vs extrapolation.
	dgpstep(n, x, xl, xu, -alpha, g, s)
	interp := true
	if dnrm2(n, s) <= delta {
		dssyax(n, a, s, wa)
		gts := ddot(n, g, s)
		q := half*ddot(n, s, wa) + gts
		interp = q >= cs.Mu0*gts
	}

	if interp {
		// Reduce alpha until a successful step is found.
		for trial := 0; trial < cs.MaxSteps; trial++ {
			alpha *= cs.Interpf
			dgpstep(n, x, xl, xu, -alpha, g, s)
			if dnrm2(n, s) <= delta {
				dssyax(n, a, s, wa)
				gts := ddot(n, g, s)
				q := half*ddot(n, s, wa) + gts
				if q < cs.Mu0*gts {
					break
				}
			}
		}
	} else {
		// Increase alpha while the sufficient decrease condition holds,
		// never moving past the furthest breakpoint.
		alphas := alpha
		for trial := 0; trial < cs.MaxSteps && alpha <= brptmax; trial++ {
			alpha *= cs.Extrapf
			dgpstep(n, x, xl, xu, -alpha, g, s)
			if dnrm2(n, s) > delta {
				break
			}
			dssyax(n, a, s, wa)
			gts := ddot(n, g, s)
			q := half*ddot(n, s, wa) + gts
			if q >= cs.Mu0*gts {
				break
			}
			alphas = alpha
		}
		alpha = alphas
		dgpstep(n, x, xl, xu, -alpha, g, s)
	}

	ctx.alphac = alpha

	if log.enable(LogTrace) {
		log.log("Cauchy alpha = %12.5e  |s| = %12.5e\n", alpha, dnrm2(n, s))
		log.log("---------------- exit CAUCHY ---------------------\n")
	}
}

// negGrad mirrors g into a scratch buffer with flipped sign, so that
// breakpoints along the descent path can be queried with dbreakpt.
func (ctx *tronCtx) negGrad(g []float64) []float64 {
	w := ctx.wa1
	if len(g) > len(w) {
		panic("bound check error")
	}
	for i, v := range g {
		w[i] = -v
	}
	return w
}
