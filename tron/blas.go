// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tron

import "math"

// Level-1 kernels for the dense TRON core. All vectors are contiguous and
// only the first n entries participate, so buffers allocated with capacity
// larger than the active dimension are safe to pass.

// ddot computes the dot product of two vectors.
func ddot(n int, x, y []float64) (dot float64) {
	if n <= 0 {
		return zero
	}
	if n > len(x) || n > len(y) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		dot += x[i] * y[i]
	}
	return dot
}

// daxpy performs constant times a vector plus a vector operation.
func daxpy(n int, a float64, x, y []float64) {
	if n <= 0 || a == zero {
		return
	}
	if n > len(x) || n > len(y) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		y[i] += a * x[i]
	}
}

// dcopy copies a vector x to a vector y.
func dcopy(n int, x, y []float64) {
	if n <= 0 {
		return
	}
	copy(y[:n], x[:n])
}

// dscal scales a vector by a constant.
func dscal(n int, a float64, x []float64) {
	if n <= 0 {
		return
	}
	if n > len(x) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		x[i] *= a
	}
}

// dzero fills the first n entries of x with zero.
func dzero(n int, x []float64) {
	if n <= 0 {
		return
	}
	for i := range x[:n] {
		x[i] = zero
	}
}

// dnrm2 computes the Euclidean norm of a vector.
// A running scale factor keeps the sum of squares in range, so extreme
// magnitudes neither overflow nor underflow.
func dnrm2(n int, x []float64) float64 {
	if n < 1 {
		return zero
	}
	if n > len(x) {
		panic("bound check error")
	}
	if n == 1 {
		return math.Abs(x[0])
	}
	scale := zero
	ssq := one
	for _, v := range x[:n] {
		if absxi := math.Abs(v); absxi > 0 {
			if scale < absxi {
				sxi := scale / absxi
				ssq = 1 + ssq*sxi*sxi
				scale = absxi
			} else {
				sxi := absxi / scale
				ssq += sxi * sxi
			}
		}
	}
	return scale * math.Sqrt(ssq)
}

// dssyax computes y = A·x for a dense symmetric n×n matrix stored
// column-major with the lower triangle authoritative.
func dssyax(n int, a, x, y []float64) {
	if n <= 0 {
		return
	}
	if n*n > len(a) || n > len(x) || n > len(y) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		y[i] = a[i+i*n] * x[i]
	}
	for j := 0; j < n; j++ {
		col := a[j*n:]
		for i := j + 1; i < n; i++ {
			y[i] += col[i] * x[j]
			y[j] += col[i] * x[i]
		}
	}
}

// dcolnorms stores the 1-norm of each column of a symmetric matrix in wa
// and returns the largest, i.e. the infinity norm of A. The per-column
// sums double as a diagonal preconditioner estimate and seed the shift of
// the guarded factorization.
func dcolnorms(n int, a, wa []float64) float64 {
	if n <= 0 {
		return zero
	}
	if n*n > len(a) || n > len(wa) {
		panic("bound check error")
	}
	for j := 0; j < n; j++ {
		wa[j] = math.Abs(a[j+j*n])
	}
	for j := 0; j < n; j++ {
		col := a[j*n:]
		for i := j + 1; i < n; i++ {
			v := math.Abs(col[i])
			wa[j] += v
			wa[i] += v
		}
	}
	norm := zero
	for _, v := range wa[:n] {
		norm = math.Max(norm, v)
	}
	return norm
}
