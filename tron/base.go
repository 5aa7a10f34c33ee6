// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tron

const (
	zero = 0.0
	half = 0.5
	one  = 1.0
	two  = 2.0
)

// Task is the driver's output signal: it tells the caller what must be
// computed before the next call to Minimizer.Iterate.
type Task int

const (
	// TaskStart must be set before the first call.
	TaskStart Task = 0
	// TaskEvalF asks the caller to evaluate f at Location.X.
	TaskEvalF Task = 1 << (4 + iota)
	// TaskEvalGH asks the caller to evaluate f, the gradient and the dense
	// Hessian at Location.X. It is issued once at the start of a solve,
	// after the initial point has been projected into the box.
	TaskEvalGH
	// TaskNewX reports an accepted iterate. The caller must evaluate the
	// gradient and the Hessian at the new Location.X before the next call.
	TaskNewX
	// TaskConv marks a converged solve.
	TaskConv
	// TaskWarn marks a solve stopped (or flagged) by a resource or
	// numerical limit. Only WarnCholShift is non-terminal.
	TaskWarn
	// TaskErr marks an invalid call sequence or invalid input.
	TaskErr
)

const (
	// ConvGradNorm the projected gradient norm dropped below tolerance.
	ConvGradNorm = TaskConv | (1 + iota)
	// ConvAbsFunc the actual and predicted reductions fell below FTolAbs.
	ConvAbsFunc
	// ConvRelFunc the actual reduction fell below FTolRel*|f|.
	ConvRelFunc
)

const (
	// WarnUnbounded the function value fell below the FMin floor.
	WarnUnbounded = TaskWarn | (1 + iota)
	// WarnSmallRadius the trust radius underflowed: the iteration stagnated.
	WarnSmallRadius
	// WarnOverEval the function evaluation budget is exhausted.
	WarnOverEval
	// WarnOverIter the outer iteration budget is exhausted.
	WarnOverIter
	// WarnCholShift the shifted factorization spent its retry budget and a
	// best-effort preconditioner is in use. The solve continues: this task
	// is reported once and the next call resumes the iteration.
	WarnCholShift
	// HaltEvalPanic a caller callback panicked during a blocking Fit.
	HaltEvalPanic
)

const (
	// ErrBadBounds some coordinate has xl > xu.
	ErrBadBounds = TaskErr | (1 + iota)
	// ErrBadTask Iterate was called again after a terminal task.
	ErrBadTask
)

// Terminal reports whether the driver must not be invoked again.
func (t Task) Terminal() bool {
	if t == WarnCholShift {
		return false
	}
	return t&(TaskConv|TaskWarn|TaskErr) > 0
}

// errInfo carries in-algorithm status between subroutines.
type errInfo int

const (
	ok errInfo = iota
	// infoShiftBudget the shifted factorization spent all attempts.
	infoShiftBudget
	// infoSingular a triangular system has a zero diagonal.
	infoSingular
)

// cgInfo distinguishes the exit branches of the trust-region CG solve.
type cgInfo int

const (
	// cgResidual the residual dropped below the relative tolerance.
	cgResidual cgInfo = 1 + iota
	// cgBoundary the iterate reached the trust-region boundary.
	cgBoundary
	// cgNegCurve a direction of negative curvature was followed to the boundary.
	cgNegCurve
	// cgMaxIter the iteration budget was exhausted.
	cgMaxIter
)

// workState records where the re-entrant driver resumes.
type workState int

const (
	workStart workState = iota
	workFirstGH
	workRatio
	workNewGH
	workShiftWarn
	workDone
)

// tronSpec is the immutable per-problem description shared by every
// workspace attached to one Optimizer.
type tronSpec struct {
	n       int
	epsilon float64
	xl, xu  []float64 // normalized bounds, ±Inf when absent
	stop    Termination
	region  RegionParams
	cauchy  CauchySearch
	eval    Objective
	grad    Gradient
	hess    Hessian
	logger  Logger
}

// Location holds the caller-evaluated quantities at the current iterate.
// X, G are length n; A is the dense symmetric n×n Hessian in column-major
// order with the lower triangle authoritative.
type Location struct {
	F float64
	X []float64
	G []float64
	A []float64
}

// tronCtx is the mutable per-instance state persisted across driver calls.
// One tronCtx belongs to exactly one problem instance; instances never
// share or alias any of these buffers.
type tronCtx struct {
	task Task
	work workState

	iter      int
	totalEval int
	totalCG   int
	shifts    int
	slow      int

	delta   float64 // trust radius
	alphac  float64 // Cauchy step length carried across iterations
	fc      float64 // f at the iteration base point
	gs      float64 // gᵀs for the pending trial step
	prered  float64 // predicted reduction of the pending trial step
	snorm   float64 // ‖s‖ of the pending trial step
	gpnorm  float64 // latest projected gradient norm
	gpnorm0 float64 // projected gradient norm at the initial point

	shiftWarned bool

	xc []float64 // iteration base point
	s  []float64 // trial step

	// subspace solve scratch
	indfree []int
	b       []float64 // free-variable submatrix, nfree×nfree column-major
	l       []float64 // Cholesky factor of the preconditioner
	gfree   []float64
	wfree   []float64
	xfree   []float64
	xlfree  []float64
	xufree  []float64
	aw      []float64 // A·(x - xc)

	// CG and line-search scratch
	p, q, r, z []float64
	wa1, wa2   []float64
}

func (ctx *tronCtx) init(n int) {
	ctx.xc = make([]float64, n)
	ctx.s = make([]float64, n)
	ctx.indfree = make([]int, n)
	ctx.b = make([]float64, n*n)
	ctx.l = make([]float64, n*n)
	ctx.gfree = make([]float64, n)
	ctx.wfree = make([]float64, n)
	ctx.xfree = make([]float64, n)
	ctx.xlfree = make([]float64, n)
	ctx.xufree = make([]float64, n)
	ctx.aw = make([]float64, n)
	ctx.p = make([]float64, n)
	ctx.q = make([]float64, n)
	ctx.r = make([]float64, n)
	ctx.z = make([]float64, n)
	ctx.wa1 = make([]float64, n)
	ctx.wa2 = make([]float64, n)
	ctx.reset()
}

func (ctx *tronCtx) reset() {
	ctx.task = TaskStart
	ctx.work = workStart
	ctx.iter = 0
	ctx.totalEval = 0
	ctx.totalCG = 0
	ctx.shifts = 0
	ctx.slow = 0
	ctx.delta = zero
	ctx.alphac = one
	ctx.shiftWarned = false
}
