// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tron

import "math"

// Subroutine dtrqsol
//
// This subroutine computes the largest σ ≥ 0 such that
//
//	‖w + σ·p‖ = δ
//
// i.e. the positive root of the trust-region boundary quadratic
//
//	σ²·pᵀp + 2σ·pᵀw + (wᵀw - δ²) = 0
//
// choosing the algebraic branch that avoids cancellation. The caller
// guarantees ‖w‖ ≤ δ, so a non-negative root exists; σ = 0 is returned
// for a degenerate direction.
func dtrqsol(n int, w, p []float64, delta float64) (sigma float64) {

	ptw := ddot(n, p, w)
	ptp := ddot(n, p, p)
	wtw := ddot(n, w, w)
	dsq := delta * delta

	rad := ptw*ptw + ptp*(dsq-wtw)
	rad = math.Sqrt(math.Max(rad, zero))

	switch {
	case ptp == zero:
		sigma = zero
	case ptw > zero:
		sigma = (dsq - wtw) / (ptw + rad)
	default:
		sigma = (rad - ptw) / ptp
	}
	return
}

// Subroutine dtrpcg
//
// Given a dense symmetric matrix A, a vector g and a Cholesky factor L of
// a preconditioner of A, this subroutine uses a preconditioned conjugate
// gradient method to find an approximate minimizer of the trust region
// subproblem
//
//	𝚖𝚒𝚗 { q(s) = ½sᵀAs + gᵀs : ‖Lᵀs‖ ≤ δ }
//
// The iteration runs on the transformed system Â = L⁻¹AL⁻ᵀ where the
// trust region is a plain Euclidean ball, and the returned step w is
// mapped back with a final triangular solve.
//
// The exit branches, in the order they are checked:
//
//	cgNegCurve  pᵀÂp ≤ 0: p is a direction of negative curvature; the
//	            step moves to the boundary along p.
//	cgBoundary  the CG step would leave the ball; the step moves to the
//	            boundary (root from dtrqsol).
//	cgResidual  ‖r‖ dropped below tol.
//	cgMaxIter   the iteration budget is exhausted; the best iterate so
//	            far is returned.
//
// Negative curvature and boundary crossing are deliberately tested before
// a plain CG update is accepted.
//
// The step is produced in w; r, p, z, t are scratch of length n.
func dtrpcg(n int, a, g []float64, delta float64, l []float64,
	tol float64, itermax int, w, r, p, z, t []float64) (iters int, info cgInfo) {

	// Initialize the iterate and the residual of the transformed system:
	// w = 0, r = -L⁻¹g.
	dzero(n, w)
	dcopy(n, g, r)
	dscal(n, -one, r)
	if dnsol(n, l, r) != ok {
		return 0, cgMaxIter
	}

	rho := ddot(n, r, r)
	if math.Sqrt(rho) <= tol {
		return 0, cgResidual
	}

	info = cgMaxIter
	dcopy(n, r, p)
	for iters = 1; iters <= itermax; iters++ {

		// q̂ = Âp = L⁻¹AL⁻ᵀp
		dcopy(n, p, z)
		if dtsol(n, l, z) != ok {
			break
		}
		dssyax(n, a, z, t)
		dcopy(n, t, z)
		if dnsol(n, l, z) != ok {
			break
		}

		ptq := ddot(n, p, z)
		alpha := zero
		if ptq > zero {
			alpha = rho / ptq
		}
		sigma := dtrqsol(n, w, p, delta)

		if ptq <= zero || alpha >= sigma {
			// Follow p to the trust-region boundary and stop.
			daxpy(n, sigma, p, w)
			if ptq <= zero {
				info = cgNegCurve
			} else {
				info = cgBoundary
			}
			break
		}

		daxpy(n, alpha, p, w)
		daxpy(n, -alpha, z, r)

		rhoOld := rho
		rho = ddot(n, r, r)
		if math.Sqrt(rho) <= tol {
			info = cgResidual
			break
		}

		// p = r + β·p
		beta := rho / rhoOld
		dscal(n, beta, p)
		daxpy(n, one, r, p)
	}
	if iters > itermax {
		iters = itermax
	}

	// Map the step back to the original space: solve Lᵀs = w.
	dtsol(n, l, w)
	return iters, info
}
