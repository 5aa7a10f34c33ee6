// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tron

import "math"

// Minimizer is the re-entrant trust-region Newton driver for one problem
// instance. Each call to Iterate performs one bounded unit of work and
// returns a task telling the caller what to evaluate before the next
// call; all state lives in the attached Workspace, so thousands of
// independent instances can be advanced by one external loop, each
// supplying its own f, g and Hessian.
type Minimizer struct {
	o *Optimizer
	w *Workspace
}

// Minimizer binds a workspace to the optimizer and resets it for a fresh
// solve. One workspace must not be shared between concurrent solves.
func (o *Optimizer) Minimizer(w *Workspace) *Minimizer {
	if w.n != o.n {
		panic("workspace dimension not match spec")
	}
	w.reset()
	return &Minimizer{o: o, w: w}
}

// Iterate advances the solve by one unit of work.
//
// The caller must honor the returned task (TaskEvalF, TaskEvalGH,
// TaskNewX) by refreshing the corresponding Location fields, and must not
// call Iterate again once a terminal task has been returned. Calling
// Iterate twice with identical persisted state and identical
// caller-supplied values yields identical results.
func (m *Minimizer) Iterate(loc *Location) Task {

	o, ctx := m.o, &m.w.tronCtx
	spec := &o.tronSpec
	n := spec.n

	if ctx.task.Terminal() {
		ctx.task = ErrBadTask
		return ctx.task
	}

	if n > len(loc.X) || n > len(loc.G) || n*n > len(loc.A) {
		panic("location dimension not match spec")
	}

	switch ctx.work {

	case workStart:
		for i := 0; i < n; i++ {
			if spec.xl[i] > spec.xu[i] {
				ctx.work = workDone
				ctx.task = ErrBadBounds
				return ctx.task
			}
		}
		// Restart from the projection when the initial point is infeasible.
		dmid(n, loc.X, spec.xl, spec.xu)
		ctx.work = workFirstGH
		ctx.task = TaskEvalGH

	case workFirstGH:
		if ctx.delta <= zero {
			ctx.delta = dnrm2(n, loc.G)
		}
		ctx.gpnorm0 = dgpnorm(n, loc.X, spec.xl, spec.xu, loc.G)
		ctx.gpnorm = ctx.gpnorm0
		if conv := o.gradConverged(ctx); conv != 0 {
			ctx.work = workDone
			ctx.task = conv
		} else {
			m.printInit(loc)
			m.computeStep(loc)
		}

	case workRatio:
		m.ratioTest(loc)

	case workNewGH:
		ctx.gpnorm = dgpnorm(n, loc.X, spec.xl, spec.xu, loc.G)
		m.printIter(loc)
		if conv := o.gradConverged(ctx); conv != 0 {
			ctx.work = workDone
			ctx.task = conv
		} else if ctx.totalEval >= spec.stop.MaxEvaluations {
			ctx.work = workDone
			ctx.task = WarnOverEval
		} else {
			m.computeStep(loc)
		}

	case workShiftWarn:
		// The shift warning was delivered; resume with the pending trial.
		ctx.totalEval++
		ctx.work = workRatio
		ctx.task = TaskEvalF

	default:
		ctx.work = workDone
		ctx.task = ErrBadTask
	}

	if ctx.task.Terminal() {
		m.printExit(loc)
	}
	return ctx.task
}

// computeStep runs the Cauchy search and the subspace solve to produce a
// trial point, then asks the caller for f there.
func (m *Minimizer) computeStep(loc *Location) {

	o, ctx := m.o, &m.w.tronCtx
	spec := &o.tronSpec
	n := spec.n

	ctx.fc = loc.F
	dcopy(n, loc.X, ctx.xc)

	dcauchy(loc, spec, ctx, ctx.delta)
	info := dspcg(loc, spec, ctx, ctx.delta)

	// Model reduction of the trial step. dspcg leaves A·s in ctx.aw.
	ctx.gs = ddot(n, loc.G, ctx.s)
	ctx.prered = -(ctx.gs + half*ddot(n, ctx.s, ctx.aw))
	ctx.snorm = dnrm2(n, ctx.s)

	if info == infoShiftBudget && !ctx.shiftWarned {
		ctx.shiftWarned = true
		ctx.work = workShiftWarn
		ctx.task = WarnCholShift
		return
	}

	ctx.totalEval++
	ctx.work = workRatio
	ctx.task = TaskEvalF
}

// ratioTest compares the actual reduction of the trial point against the
// predicted reduction of the quadratic model, updates the trust radius,
// and either accepts the step or restores the base point and retries.
func (m *Minimizer) ratioTest(loc *Location) {

	o, ctx := m.o, &m.w.tronCtx
	spec := &o.tronSpec
	stop, rp := &spec.stop, &spec.region
	n := spec.n

	f := loc.F
	actred := ctx.fc - f
	prered := ctx.prered
	snorm := ctx.snorm

	// Step length estimate for the radius update.
	var alpha float64
	if denom := f - ctx.fc - ctx.gs; denom <= zero {
		alpha = rp.Sigma3
	} else {
		alpha = math.Max(rp.Sigma1, -half*ctx.gs/denom)
	}

	// On the very first trial the radius is at most the step length.
	if ctx.iter == 0 {
		ctx.delta = math.Min(ctx.delta, snorm)
	}

	switch delta := ctx.delta; {
	case actred < rp.Eta0*prered:
		ctx.delta = math.Min(math.Max(alpha, rp.Sigma1)*snorm, rp.Sigma2*delta)
	case actred < rp.Eta1*prered:
		ctx.delta = math.Max(rp.Sigma1*delta, math.Min(alpha*snorm, rp.Sigma2*delta))
	case actred < rp.Eta2*prered:
		ctx.delta = math.Max(rp.Sigma1*delta, math.Min(alpha*snorm, rp.Sigma3*delta))
	default:
		ctx.delta = math.Max(delta, math.Min(alpha*snorm, rp.Sigma3*delta))
	}

	if actred > rp.Eta0*prered {
		// Accept the trial point.
		ctx.iter++

		var slowConv Task
		if math.Abs(actred) <= stop.FTolAbs && prered <= stop.FTolAbs {
			slowConv = ConvAbsFunc
		} else if math.Abs(actred) <= stop.FTolRel*math.Abs(f) {
			slowConv = ConvRelFunc
		}
		if slowConv != 0 {
			ctx.slow++
		} else {
			ctx.slow = 0
		}

		switch {
		case f < stop.FMin:
			ctx.work = workDone
			ctx.task = WarnUnbounded
		case slowConv != 0 && ctx.slow >= stop.SlowSteps:
			ctx.work = workDone
			ctx.task = slowConv
		case ctx.iter > stop.MaxIterations:
			ctx.work = workDone
			ctx.task = WarnOverIter
		default:
			ctx.work = workNewGH
			ctx.task = TaskNewX
		}
		return
	}

	// Reject: restore the base point. The gradient and Hessian still
	// belong to xc, so no new evaluation is requested.
	dcopy(n, ctx.xc, loc.X)
	loc.F = ctx.fc

	if log := spec.logger; log.enable(LogTrace) {
		log.log("Step rejected: actred %12.5e  prered %12.5e  delta %12.5e\n",
			actred, prered, ctx.delta)
	}

	switch {
	case ctx.delta <= spec.epsilon*math.Max(one, dnrm2(n, loc.X)):
		ctx.work = workDone
		ctx.task = WarnSmallRadius
	case ctx.totalEval >= stop.MaxEvaluations:
		ctx.work = workDone
		ctx.task = WarnOverEval
	default:
		m.computeStep(loc)
	}
}

// gradConverged returns the convergence subcode implied by the latest
// projected gradient norm, or 0.
func (o *Optimizer) gradConverged(ctx *tronCtx) Task {
	stop := &o.stop
	if ctx.gpnorm <= stop.GradTolerance {
		return ConvGradNorm
	}
	if stop.GradTolRel > zero && ctx.gpnorm <= stop.GradTolRel*ctx.gpnorm0 {
		return ConvGradNorm
	}
	return 0
}

func (m *Minimizer) printInit(loc *Location) {
	o := m.o
	log := o.logger
	if !log.enable(LogLast) {
		return
	}
	log.log("RUNNING THE TRON CODE\n")
	log.log("           * * *\n")
	log.log("Machine precision = %10.3e\n", o.epsilon)
	log.log("N = %d\n", o.n)
	if log.enable(LogEval) {
		log.log("At iterate %5d    f= %12.5e    |proj g|= %12.5e\n",
			0, loc.F, m.w.gpnorm0)
	}
}

func (m *Minimizer) printIter(loc *Location) {
	o, ctx := m.o, &m.w.tronCtx
	log := o.logger
	if !log.enable(LogEval) {
		return
	}
	if ctx.iter%int(log.Level) == 0 || log.enable(LogTrace) {
		log.log("At iterate %5d    f= %12.5e    |proj g|= %12.5e    delta= %12.5e\n",
			ctx.iter, loc.F, ctx.gpnorm, ctx.delta)
	}
	if log.enable(LogVerbose) {
		log.log("\n X = ")
		for i := 0; i < o.n; i++ {
			log.log("%.2e ", loc.X[i])
			if (i+1)%6 == 0 {
				log.log("\n     ")
			}
		}
		log.log("\n G = ")
		for i := 0; i < o.n; i++ {
			log.log("%.2e ", loc.G[i])
			if (i+1)%6 == 0 {
				log.log("\n     ")
			}
		}
		log.log("\n")
	}
}

func (m *Minimizer) printExit(loc *Location) {
	o, ctx := m.o, &m.w.tronCtx
	log := o.logger
	if !log.enable(LogLast) {
		return
	}

	log.log("\n           * * *\n")
	log.log("%5d iterations, %d evaluations, %d CG iterations\n",
		ctx.iter, ctx.totalEval, ctx.totalCG)
	log.log("Projg = %.6e   F = %.9e\n", ctx.gpnorm, loc.F)

	var msg string
	switch ctx.task {
	case ConvGradNorm:
		msg = "CONVERGENCE: NORM OF PROJECTED GRADIENT <= GTOL"
	case ConvAbsFunc:
		msg = "CONVERGENCE: REDUCTION OF F <= FATOL"
	case ConvRelFunc:
		msg = "CONVERGENCE: RELATIVE REDUCTION OF F <= FRTOL"
	case WarnUnbounded:
		msg = "WARNING: F .LT. FMIN"
	case WarnSmallRadius:
		msg = "WARNING: TRUST REGION RADIUS UNDERFLOW"
	case WarnOverEval:
		msg = "WARNING: TOTAL NO. of f EVALUATIONS REACHED LIMIT"
	case WarnOverIter:
		msg = "WARNING: TOTAL NO. of ITERATIONS REACHED LIMIT"
	case HaltEvalPanic:
		msg = "STOP: CALLBACK REQUESTED HALT"
	case ErrBadBounds:
		msg = "ERROR: NO FEASIBLE SOLUTION"
	default:
		msg = "UNKNOWN TASK"
	}
	log.log("\n%s\n", msg)
}
