// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tron

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestBasic(t *testing.T) {

	// min (x-3)² + (y+1)² inside [0,1]×[0,1]
	p := Problem{
		N: 2,
		Eval: func(x []float64) float64 {
			return (x[0]-3)*(x[0]-3) + (x[1]+1)*(x[1]+1)
		},
		Grad: func(x, g []float64) {
			g[0] = 2 * (x[0] - 3)
			g[1] = 2 * (x[1] + 1)
		},
		Hess: func(x, a []float64) {
			a[0], a[1], a[2], a[3] = 2, 0, 0, 2
		},
		Bounds: []Bound{{Lower: 0, Upper: 1}, {Lower: 0, Upper: 1}},
		Stop: Termination{
			MaxIterations: 50,
			GradTolerance: 1e-8,
		},
	}

	s, e := p.New(nil)
	if e != nil {
		panic(e)
	}

	r := s.Fit([]float64{0.5, 0.5}, s.Init())
	switch {
	case !r.OK:
		t.Fatal("TestBasic: Not Converge")
	case !almostEqual(r.X, []float64{1, 0}, 1e-8):
		t.Fatal("TestBasic: Wrong Solution", r.X)
	case !almostEqual(r.F, 5, 1e-8):
		t.Fatal("TestBasic: Wrong Objective", r.F)
	}
}

func TestRosenbrock(t *testing.T) {

	eval := func(x []float64) float64 {
		t1 := x[1] - x[0]*x[0]
		return 100*t1*t1 + (1-x[0])*(1-x[0])
	}
	grad := func(x, g []float64) {
		t1 := x[1] - x[0]*x[0]
		g[0] = -400*x[0]*t1 - 2*(1-x[0])
		g[1] = 200 * t1
	}
	hess := func(x, a []float64) {
		a[0] = 1200*x[0]*x[0] - 400*x[1] + 2
		a[1] = -400 * x[0]
		a[2] = -400 * x[0]
		a[3] = 200
	}

	p := Problem{
		N:    2,
		Eval: eval, Grad: grad, Hess: hess,
		Bounds: []Bound{{Lower: -2, Upper: 2}, {Lower: -2, Upper: 2}},
		Stop: Termination{
			MaxIterations:  100,
			MaxEvaluations: 500,
			GradTolerance:  1e-8,
		},
	}

	s, e := p.New(nil)
	if e != nil {
		panic(e)
	}

	r := s.Fit([]float64{-1.2, 1}, s.Init())
	switch {
	case !r.OK:
		t.Fatal("TestRosenbrock: Not Converge:", r.Status)
	case !almostEqual(r.X, []float64{1, 1}, 1e-6):
		t.Fatal("TestRosenbrock: Wrong Solution", r.X)
	case r.NumIter > 60:
		t.Fatal("TestRosenbrock: Too Many Iterations", r.NumIter)
	}
}

func TestHessFallback(t *testing.T) {

	// same problem without an analytic Hessian
	p := Problem{
		N: 2,
		Eval: func(x []float64) float64 {
			t1 := x[1] - x[0]*x[0]
			return 100*t1*t1 + (1-x[0])*(1-x[0])
		},
		Grad: func(x, g []float64) {
			t1 := x[1] - x[0]*x[0]
			g[0] = -400*x[0]*t1 - 2*(1-x[0])
			g[1] = 200 * t1
		},
		Bounds: []Bound{{Lower: -2, Upper: 2}, {Lower: -2, Upper: 2}},
		Stop: Termination{
			MaxIterations: 200,
			GradTolerance: 1e-6,
		},
	}

	s, e := p.New(nil)
	if e != nil {
		panic(e)
	}

	r := s.Fit([]float64{-1.2, 1}, s.Init())
	switch {
	case !r.OK:
		t.Fatal("TestHessFallback: Not Converge:", r.Status)
	case !almostEqual(r.X, []float64{1, 1}, 1e-4):
		t.Fatal("TestHessFallback: Wrong Solution", r.X)
	}
}

func TestGradFallback(t *testing.T) {

	// objective only: gradient and Hessian both come from differencing
	p := Problem{
		N: 2,
		Eval: func(x []float64) float64 {
			return (x[0]-3)*(x[0]-3) + 2*(x[1]+1)*(x[1]+1) + x[0]*x[1]
		},
		Bounds: []Bound{{Lower: -5, Upper: 5}, {Lower: -5, Upper: 5}},
		Stop: Termination{
			MaxIterations: 100,
			GradTolerance: 1e-6,
		},
	}

	s, e := p.New(nil)
	if e != nil {
		panic(e)
	}

	// stationary point of the quadratic: 2x+y = 6, x+4y = -4
	r := s.Fit([]float64{0, 0}, s.Init())
	switch {
	case !r.OK:
		t.Fatal("TestGradFallback: Not Converge:", r.Status)
	case !almostEqual(r.X, []float64{4, -2}, 1e-5):
		t.Fatal("TestGradFallback: Wrong Solution", r.X)
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test_slsqp.py (test_bounds_clipping)
func TestBoundClip(t *testing.T) {

	eval := func(x []float64) float64 {
		return (x[0] - 1) * (x[0] - 1)
	}
	grad := func(x, g []float64) {
		g[0] = 2*x[0] - 2
	}
	hess := func(x, a []float64) {
		a[0] = 2
	}

	tests := []struct {
		init    float64
		bnd     []Bound
		desired float64
	}{
		{10, []Bound{{Lower: math.NaN(), Upper: 0}}, 0},
		{-10, []Bound{{Lower: 2, Upper: math.NaN()}}, 2},
		{-10, []Bound{{Lower: math.NaN(), Upper: 0}}, 0},
		{10, []Bound{{Lower: 2, Upper: math.NaN()}}, 2},
		{-0.5, []Bound{{Lower: -1, Upper: 0}}, 0},
		{10, []Bound{{Lower: -1, Upper: 0}}, 0},
	}

	for _, tt := range tests {
		p := Problem{
			N:    1,
			Eval: eval, Grad: grad, Hess: hess,
			Bounds: tt.bnd,
			Stop: Termination{
				MaxIterations: 50,
				GradTolerance: 1e-10,
			},
		}
		s, e := p.New(nil)
		if e != nil {
			panic(e)
		}
		r := s.Fit([]float64{tt.init}, s.Init())
		switch {
		case !r.OK:
			t.Fatal("TestBoundClip: Not Converge:", r.Status)
		case !almostEqual(r.X[0], tt.desired, 1e-8):
			t.Fatal("TestBoundClip: Wrong Solution", r.X[0])
		}
	}
}

func TestValidate(t *testing.T) {

	eval := func(x []float64) float64 { return 0 }
	grad := func(x, g []float64) {}
	stop := Termination{MaxIterations: 10}

	bad := []Problem{
		{N: 0, Eval: eval, Grad: grad, Stop: stop},
		{N: MaxDim + 1, Eval: eval, Grad: grad, Stop: stop},
		{N: 2, Grad: grad, Stop: stop},
		{N: 2, Eval: eval, Grad: grad},
		{N: 2, Eval: eval, Grad: grad, Stop: stop, Bounds: []Bound{{}}},
		{N: 1, Eval: eval, Grad: grad, Stop: stop, Bounds: []Bound{{Lower: 1, Upper: -1}}},
		{N: 1, Eval: eval, Grad: grad, Stop: stop, Region: &RegionParams{Eta0: 0.5, Eta1: 0.25, Eta2: 0.75, Sigma1: 0.25, Sigma2: 0.5, Sigma3: 4}},
		{N: 1, Eval: eval, Grad: grad, Stop: stop, Cauchy: &CauchySearch{Mu0: 2, Interpf: 0.1, Extrapf: 10, MaxSteps: 20}},
	}
	for i, p := range bad {
		if _, e := p.New(nil); e == nil {
			t.Fatal("TestValidate: Invalid problem accepted at case", i)
		}
	}

	// a valid spec with defaults filled in
	ok := Problem{N: 2, Eval: eval, Grad: grad, Stop: stop}
	s, e := ok.New(nil)
	if e != nil || s == nil {
		t.Fatal("TestValidate: Valid problem rejected:", e)
	}
}

func TestPanicCapture(t *testing.T) {

	calls := 0
	p := Problem{
		N: 1,
		Eval: func(x []float64) float64 {
			if calls++; calls > 1 {
				panic("model blew up")
			}
			return x[0] * x[0]
		},
		Grad: func(x, g []float64) { g[0] = 2 * x[0] },
		Hess: func(x, a []float64) { a[0] = 2 },
		Stop: Termination{MaxIterations: 50, GradTolerance: 1e-10},
	}

	s, e := p.New(nil)
	if e != nil {
		panic(e)
	}
	r := s.Fit([]float64{5}, s.Init())
	if r.OK || r.Status != HaltEvalPanic {
		t.Fatal("TestPanicCapture: Expected halt Got:", r.Status)
	}
}

// qpReference solves min ½xᵀAx + bᵀx over [xl,xu] by enumerating every
// active set and checking the KKT conditions of each candidate, an
// independent (if exponential) oracle for small n.
func qpReference(n int, a, b, xl, xu []float64) []float64 {

	full := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		for i := j; i < n; i++ {
			full.Set(i, j, a[i+j*n])
			full.Set(j, i, a[i+j*n])
		}
	}

	const tol = 1e-9
	var best []float64
	bestF := math.Inf(1)

	state := make([]int, n) // 0 free, 1 at lower, 2 at upper
	for {
		x := make([]float64, n)
		var free []int
		valid := true
		for i, s := range state {
			switch s {
			case 0:
				free = append(free, i)
			case 1:
				if math.IsInf(xl[i], -1) {
					valid = false
				}
				x[i] = xl[i]
			case 2:
				if math.IsInf(xu[i], 1) {
					valid = false
				}
				x[i] = xu[i]
			}
		}

		if valid && len(free) > 0 {
			m := len(free)
			sub := mat.NewDense(m, m, nil)
			rhs := mat.NewVecDense(m, nil)
			for i, fi := range free {
				for j, fj := range free {
					sub.Set(i, j, full.At(fi, fj))
				}
				v := -b[fi]
				for k, s := range state {
					if s != 0 {
						v -= full.At(fi, k) * x[k]
					}
				}
				rhs.SetVec(i, v)
			}
			var sol mat.VecDense
			if err := sol.SolveVec(sub, rhs); err != nil {
				valid = false
			} else {
				for i, fi := range free {
					x[fi] = sol.AtVec(i)
				}
			}
		}

		if valid {
			// primal feasibility and multiplier signs
			g := make([]float64, n)
			dssyax(n, a, x, g)
			daxpy(n, one, b, g)
			for i, s := range state {
				switch s {
				case 0:
					if x[i] < xl[i]-tol || x[i] > xu[i]+tol {
						valid = false
					}
				case 1:
					if g[i] < -tol {
						valid = false
					}
				case 2:
					if g[i] > tol {
						valid = false
					}
				}
			}
			if valid {
				f := half*ddot(n, x, g) + half*ddot(n, b, x)
				if f < bestF {
					bestF, best = f, x
				}
			}
		}

		// next assignment
		k := 0
		for ; k < n; k++ {
			if state[k] < 2 {
				state[k]++
				break
			}
			state[k] = 0
		}
		if k == n {
			break
		}
	}
	return best
}

func TestQPAgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(59))

	n := 4
	for trial := 0; trial < 20; trial++ {
		a := randSPD(n, rng)
		b := make([]float64, n)
		xl := make([]float64, n)
		xu := make([]float64, n)
		for i := range b {
			b[i] = rng.NormFloat64() * 10
			xl[i] = -0.5
			xu[i] = 0.5
		}

		want := qpReference(n, a, b, xl, xu)
		if want == nil {
			t.Fatal("TestQP: Reference found no KKT point")
		}

		bounds := make([]Bound, n)
		for i := range bounds {
			bounds[i] = Bound{Lower: xl[i], Upper: xu[i]}
		}
		p := Problem{
			N: n,
			Eval: func(x []float64) float64 {
				w := make([]float64, n)
				dssyax(n, a, x, w)
				return half*ddot(n, x, w) + ddot(n, b, x)
			},
			Grad: func(x, g []float64) {
				dssyax(n, a, x, g)
				daxpy(n, one, b, g)
			},
			Hess: func(x, h []float64) {
				copy(h, a)
			},
			Bounds: bounds,
			Stop: Termination{
				MaxIterations: 200,
				GradTolerance: 1e-10,
			},
		}

		s, e := p.New(nil)
		if e != nil {
			panic(e)
		}
		r := s.Fit(make([]float64, n), s.Init())
		if !r.OK {
			t.Fatal("TestQP: Not Converge:", r.Status)
		}
		if !almostEqual(r.X, want, 1e-9) {
			t.Fatal("TestQP: Solution mismatch at trial", trial, "\nwant:", want, "\n got:", r.X)
		}
	}
}
