// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tron

// Subroutine dspcg
//
// This subroutine solves the trust-region quadratic subproblem over the
// box by an active-set loop around dtrpcg. On entry ctx.s holds the
// Cauchy step and ctx.xc the base point of the quadratic
//
//	q(s) = gᵀs + ½sᵀAs
//
// The iterate first moves to the projected Cauchy point; then, until the
// reduced subproblem is solved to tolerance:
//
//  1. gather the free variables (strictly inside their bounds),
//  2. extract the free submatrix and factor the preconditioner (dicfs),
//  3. run the trust-region CG on the free subspace (dtrpcg),
//  4. refine the direction with the projected search (dprsrch),
//
// and stop when the reduced gradient satisfies the relative tolerance,
// when the CG step reached the trust-region boundary, or when the CG
// iteration budget is spent. Any variable driven to a bound by step 4
// leaves the free set, which forces a refactorization on the next pass;
// at most n active-set passes can occur.
//
// On exit loc.X is the trial point and ctx.s = x - xc the trial step.
// The returned status is infoShiftBudget when some preconditioner
// factorization ran out of shift attempts, ok otherwise.
func dspcg(loc *Location, spec *tronSpec, ctx *tronCtx, delta float64) (info errInfo) {

	n := spec.n
	x, g, a := loc.X, loc.G, loc.A
	xl, xu := spec.xl, spec.xu
	xc, s, w := ctx.xc, ctx.s, ctx.aw

	log := spec.logger
	if log.enable(LogTrace) {
		log.log("---------------- SPCG entered --------------------\n")
	}

	// Move to the projected Cauchy point and set up the gradient
	// correction w = A·(x - xc) of the quadratic at the current point.
	daxpy(n, one, s, x)
	dmid(n, x, xl, xu)
	for i := 0; i < n; i++ {
		s[i] = x[i] - xc[i]
	}
	dssyax(n, a, s, w)

	rtol := spec.stop.CGTolerance
	budget := spec.stop.CGMaxIterations
	gfnorm0 := zero

	indfree := ctx.indfree
	gfree := ctx.gfree

	for nfaces := 0; nfaces < n && budget > 0; nfaces++ {

		// Index set of free variables at the current point.
		nfree := 0
		for i := 0; i < n; i++ {
			if xl[i] < x[i] && x[i] < xu[i] {
				indfree[nfree] = i
				nfree++
			}
		}
		if nfree == 0 {
			break
		}

		// Reduced gradient of q: (g + w) restricted to the free set.
		for j, k := range indfree[:nfree] {
			gfree[j] = g[k] + w[k]
		}
		if nfaces == 0 {
			gfnorm0 = dnrm2(nfree, gfree)
			if gfnorm0 == zero {
				break
			}
		}

		// Free submatrix and its guarded factorization.
		gatherSub(n, nfree, indfree, a, ctx.b)
		if dicfs(nfree, ctx.b, ctx.l, ctx.wa1) == infoShiftBudget {
			ctx.shifts++
			info = infoShiftBudget
		}

		iters, cginf := dtrpcg(nfree, ctx.b, gfree, delta, ctx.l,
			rtol*gfnorm0, budget, ctx.wfree, ctx.r, ctx.p, ctx.z, ctx.q)
		ctx.totalCG += iters
		budget -= iters

		// Refine the reduced direction on the projected path and push the
		// accepted coordinates back into x.
		for j, k := range indfree[:nfree] {
			ctx.xfree[j] = x[k]
			ctx.xlfree[j] = xl[k]
			ctx.xufree[j] = xu[k]
		}
		dprsrch(nfree, ctx.xfree, ctx.xlfree, ctx.xufree,
			ctx.b, gfree, ctx.wfree, ctx.wa1, ctx.wa2)
		for j, k := range indfree[:nfree] {
			x[k] = ctx.xfree[j]
		}

		// Refresh the gradient correction at the new point.
		for i := 0; i < n; i++ {
			s[i] = x[i] - xc[i]
		}
		dssyax(n, a, s, w)

		for j, k := range indfree[:nfree] {
			gfree[j] = g[k] + w[k]
		}
		gfnormf := dnrm2(nfree, gfree)

		if log.enable(LogTrace) {
			log.log("SPCG face %3d  free %3d  |r| %12.5e  cg %v\n",
				nfaces+1, nfree, gfnormf, cginf)
		}

		if gfnormf <= rtol*gfnorm0 {
			break // subspace solved to tolerance
		}
		if cginf == cgBoundary || cginf == cgNegCurve {
			break // step pinned to the trust-region boundary
		}
		// Otherwise the active set changed: refactor and resolve.
	}

	for i := 0; i < n; i++ {
		s[i] = x[i] - xc[i]
	}

	if log.enable(LogTrace) {
		log.log("---------------- exit SPCG -----------------------\n")
	}
	return
}

// gatherSub extracts the principal submatrix of a on the index set
// ind[:m] into b (m×m column-major, lower triangle filled).
func gatherSub(n, m int, ind []int, a, b []float64) {
	if m < 0 || m > len(ind) || n*n > len(a) || m*m > len(b) {
		panic("bound check error")
	}
	for j := 0; j < m; j++ {
		kj := ind[j]
		for i := j; i < m; i++ {
			b[i+j*m] = a[ind[i]+kj*n]
		}
	}
}
