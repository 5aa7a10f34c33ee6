// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tron

import "math"

const (
	// icfAttempts bounds the shift-doubling retries of dicfs.
	icfAttempts = 5
	// icfAlphaFactor seeds the first non-zero shift from the matrix norm.
	icfAlphaFactor = 1.0e-3
)

// dicf factors a dense symmetric positive definite matrix in place,
// A = L·Lᵀ with L lower triangular.
//
// The matrix is stored column-major with leading dimension n; only the
// lower triangle is referenced or written, the strict upper triangle is
// left untouched. Columns are processed left to right: the factorization
// of column j needs every column k < j to be complete.
//
// On success info is 0. Otherwise info is j+1 where the leading minor of
// order j+1 is not positive definite, and columns j.. are not factored.
func dicf(n int, l []float64) (info int) {
	if n < 0 || n*n > len(l) {
		panic("bound check error")
	}
	for j := 0; j < n; j++ {
		s := l[j+j*n]
		for k := 0; k < j; k++ {
			s -= l[j+k*n] * l[j+k*n]
		}
		if s <= zero || math.IsNaN(s) {
			return j + 1
		}
		s = math.Sqrt(s)
		l[j+j*n] = s
		for i := j + 1; i < n; i++ {
			t := l[i+j*n]
			for k := 0; k < j; k++ {
				t -= l[i+k*n] * l[j+k*n]
			}
			l[i+j*n] = t / s
		}
	}
	return 0
}

// dnsol solves L·y = r in place by forward substitution,
// where L is the lower triangular factor produced by dicf.
func dnsol(n int, l, r []float64) errInfo {
	if n < 0 || n*n > len(l) || n > len(r) {
		panic("bound check error")
	}
	for j := 0; j < n; j++ {
		d := l[j+j*n]
		if d == zero {
			return infoSingular
		}
		t := r[j] / d
		r[j] = t
		for i := j + 1; i < n; i++ {
			r[i] -= l[i+j*n] * t
		}
	}
	return ok
}

// dtsol solves Lᵀ·x = y in place by back substitution.
func dtsol(n int, l, r []float64) errInfo {
	if n < 0 || n*n > len(l) || n > len(r) {
		panic("bound check error")
	}
	for j := n - 1; j >= 0; j-- {
		d := l[j+j*n]
		if d == zero {
			return infoSingular
		}
		t := r[j] / d
		r[j] = t
		for i := 0; i < j; i++ {
			r[i] -= l[j+i*n] * t
		}
	}
	return ok
}

// dicfs computes a guarded Cholesky factorization L·Lᵀ = A + αI suitable
// as a preconditioner, retrying with an increasing diagonal shift when the
// plain factorization fails.
//
// The shift starts at zero when the diagonal of A is positive, otherwise
// at a fraction of the infinity norm of A, and doubles on each failed
// attempt. After icfAttempts the matrix is accepted as indefinite-but-
// usable: the last shift is pushed past diagonal dominance and, should
// even that fail, the factor degrades to a positive diagonal so that the
// triangular solves stay well defined. That condition is reported as
// infoShiftBudget so the driver can surface a warning.
//
// a is read only; the factor is produced in l. wa is scratch of length n.
func dicfs(n int, a, l, wa []float64) errInfo {
	if n < 0 || n*n > len(a) || n*n > len(l) || n > len(wa) {
		panic("bound check error")
	}

	anorm := dcolnorms(n, a, wa)

	alpha := zero
	for j := 0; j < n; j++ {
		if a[j+j*n] <= zero {
			alpha = math.Max(icfAlphaFactor*anorm, icfAlphaFactor)
			break
		}
	}

	alphas := math.Max(icfAlphaFactor*anorm, icfAlphaFactor)
	for nb := 0; nb < icfAttempts; nb++ {
		shiftCopy(n, a, l, alpha)
		if dicf(n, l) == 0 {
			return ok
		}
		if alpha == zero {
			alpha = alphas
		} else {
			alpha *= two
		}
	}

	// Push the shift past strict diagonal dominance. This succeeds for any
	// finite symmetric matrix.
	alpha = math.Max(alpha, anorm+one)
	shiftCopy(n, a, l, alpha)
	if dicf(n, l) != 0 {
		// Non-finite input. Fall back to an identity-like factor.
		dzero(n*n, l)
		for j := 0; j < n; j++ {
			l[j+j*n] = one
		}
	}
	return infoShiftBudget
}

// shiftCopy copies the lower triangle of a into l and adds alpha to the
// diagonal, leaving the strict upper triangle of l untouched.
func shiftCopy(n int, a, l []float64, alpha float64) {
	for j := 0; j < n; j++ {
		l[j+j*n] = a[j+j*n] + alpha
		for i := j + 1; i < n; i++ {
			l[i+j*n] = a[i+j*n]
		}
	}
}
