// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tron

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/curioloop/tron/numdiff"
)

// MaxDim is the largest supported problem dimension. The solver keeps
// the Hessian and every factorization dense, which only pays off for
// small systems solved in bulk.
const MaxDim = 32

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only one line at the last iteration
	LogLast LogLevel = 0
	// LogEval print also f and |proj g| every `level` iterations for any (0 < level < 99)
	LogEval LogLevel = 1
	// LogTrace print details of every iteration except n-vectors
	LogTrace LogLevel = 99
	// LogChange print also the final x
	LogChange LogLevel = 100
	// LogVerbose print details of every iteration including x and g (level > 100)
	LogVerbose LogLevel = 101
)

// Logger handles logging output for the optimizer.
// Note the writers must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
	Out   io.Writer // Writer for output data.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

func (l *Logger) out(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Out, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Out, format)
	}
}

// Bound represents the bounds for an optimization variable.
// A NaN value means the variable is free on that side.
type Bound struct {
	Lower, Upper float64
}

// Objective is a function type for evaluating the objective function.
type Objective func(x []float64) (f float64)

// Gradient is a function type for evaluating the gradient into g.
type Gradient func(x, g []float64)

// Hessian is a function type for evaluating the dense Hessian into the
// n×n column-major buffer a. Only the lower triangle is read.
type Hessian func(x, a []float64)

// Termination specifies the stopping criteria for the optimization algorithm.
type Termination struct {
	// The iteration stop when the number of iteration exceeds limit.
	MaxIterations int
	// The iteration stop when the total number of function evaluation exceeds limit.
	MaxEvaluations int
	// The total conjugate gradient budget of one trial step,
	// shared by all active-set passes (default n²).
	CGMaxIterations int
	// The relative residual tolerance of the conjugate gradient solve (default 0.1).
	CGTolerance float64
	// The iteration will stop when the projected gradient satisfied:
	//   ‖ 𝚙𝚛𝚘𝚓 g ‖∞ ≤ 𝚐𝚝𝚘𝚕
	GradTolerance float64
	// The iteration will stop when the projected gradient satisfied:
	//   ‖ 𝚙𝚛𝚘𝚓 gₖ ‖∞ ≤ 𝚐𝚛𝚝𝚘𝚕 × ‖ 𝚙𝚛𝚘𝚓 g₀ ‖∞
	// Defaults to 1e-8 when no gradient tolerance is given at all.
	GradTolRel float64
	// The iteration will stop when SlowSteps consecutive accepted steps satisfied:
	//   |𝚊𝚌𝚝𝚛𝚎𝚍| ≤ 𝚏𝚊𝚝𝚘𝚕 ∧ 𝚙𝚛𝚎𝚛𝚎𝚍 ≤ 𝚏𝚊𝚝𝚘𝚕
	FTolAbs float64
	// The iteration will stop when SlowSteps consecutive accepted steps satisfied:
	//   |𝚊𝚌𝚝𝚛𝚎𝚍| ≤ 𝚏𝚛𝚝𝚘𝚕 × |f|
	// (default 1e-12).
	FTolRel float64
	// The iteration stop with a warning when f drops below this floor
	// (default -MaxFloat64), a cheap unboundedness guard.
	FMin float64
	// Number of consecutive slow steps before the f-based tests fire (default 1).
	SlowSteps int
}

// RegionParams tunes the trust region ratio test and radius update.
// The zero value selects the classic defaults.
type RegionParams struct {
	// A step is accepted when 𝚊𝚌𝚝𝚛𝚎𝚍 > η₀·𝚙𝚛𝚎𝚛𝚎𝚍 (default 1e-4).
	Eta0 float64
	// Ratio thresholds of the radius update (defaults 0.25, 0.75).
	Eta1, Eta2 float64
	// Radius scaling factors (defaults 0.25, 0.5, 4).
	Sigma1, Sigma2, Sigma3 float64
}

// CauchySearch tunes the projected search for the Cauchy point.
// The zero value selects the classic defaults.
type CauchySearch struct {
	// Sufficient decrease constant (default 0.01).
	Mu0 float64
	// Interpolation and extrapolation factors (defaults 0.1, 10).
	Interpf, Extrapf float64
	// Bound on the number of interpolation or extrapolation trials (default 20).
	MaxSteps int
}

var (
	defRegion = RegionParams{
		Eta0: 1.0e-4, Eta1: 0.25, Eta2: 0.75,
		Sigma1: 0.25, Sigma2: 0.5, Sigma3: 4.0,
	}
	defCauchy = CauchySearch{
		Mu0: 1.0e-2, Interpf: 0.1, Extrapf: 10.0, MaxSteps: 20,
	}
)

// Problem specifies the problem for TRON optimizer.
type Problem struct {
	N      int           // The problem dimension
	Eval   Objective     // Objective function (optional for re-entrant use)
	Grad   Gradient      // Gradient; approximated from Eval when absent
	Hess   Hessian       // Dense Hessian; approximated from the gradient when absent
	Bounds []Bound       // Optional bounds
	Stop   Termination   // Stop condition
	Region *RegionParams // Optional trust region config
	Cauchy *CauchySearch // Optional Cauchy search config
}

// New creates a new TRON optimizer for given problem.
func (p *Problem) New(logger *Logger) (optimizer *Optimizer, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}
	if logger.Out == nil {
		logger.Out = os.Stderr
	}

	n := p.N
	stop, bounds := p.Stop, p.Bounds

	stop.MaxEvaluations = max(stop.MaxEvaluations, 0)
	if stop.MaxEvaluations == 0 {
		stop.MaxEvaluations = math.MaxInt
	}
	if stop.CGMaxIterations <= 0 {
		stop.CGMaxIterations = n * n
	}
	if stop.CGTolerance == 0 {
		stop.CGTolerance = 0.1
	}
	if stop.GradTolerance == 0 && stop.GradTolRel == 0 {
		stop.GradTolRel = 1.0e-8
	}
	if stop.FTolRel == 0 {
		stop.FTolRel = 1.0e-12
	}
	if stop.FMin == 0 {
		stop.FMin = -math.MaxFloat64
	}
	if stop.SlowSteps <= 0 {
		stop.SlowSteps = 1
	}

	region, cauchy := defRegion, defCauchy
	if p.Region != nil {
		region = *p.Region
	}
	if p.Cauchy != nil {
		cauchy = *p.Cauchy
	}

	switch {
	case n <= 0:
		err = errors.New("problem dimension must greater than 0")
	case n > MaxDim:
		err = errors.New("problem dimension over dense solver limit")
	case p.Eval == nil && (p.Grad != nil || p.Hess != nil):
		err = errors.New("derivative callbacks require an objective")
	case stop.MaxIterations <= 0:
		err = errors.New("max iteration must greater than 0")
	case stop.CGTolerance <= zero || stop.CGTolerance >= one:
		err = errors.New("cg tolerance must lie in (0,1)")
	case stop.GradTolerance < zero || stop.GradTolRel < zero:
		err = errors.New("gradient tolerance must not less than 0")
	case stop.FTolAbs < zero || stop.FTolRel < zero:
		err = errors.New("function tolerance must not less than 0")
	case !(zero < region.Eta0 && region.Eta0 < region.Eta1 &&
		region.Eta1 < region.Eta2 && region.Eta2 < one):
		err = errors.New("ratio thresholds must satisfy 0 < eta0 < eta1 < eta2 < 1")
	case !(zero < region.Sigma1 && region.Sigma1 < region.Sigma2 &&
		region.Sigma2 < one && region.Sigma3 > one):
		err = errors.New("radius factors must satisfy 0 < sigma1 < sigma2 < 1 < sigma3")
	case !(zero < cauchy.Mu0 && cauchy.Mu0 < one) ||
		!(zero < cauchy.Interpf && cauchy.Interpf < one) ||
		cauchy.Extrapf <= one || cauchy.MaxSteps <= 0:
		err = errors.New("invalid cauchy search config")
	case bounds != nil && len(bounds) != n:
		err = errors.New("bounds size must equal to n")
	}
	if err != nil {
		return
	}

	// Normalize the bounds so the kernels never branch on presence hints.
	xl := make([]float64, n)
	xu := make([]float64, n)
	for i := range xl {
		xl[i], xu[i] = math.Inf(-1), math.Inf(1)
	}
	for k, b := range bounds {
		if !math.IsNaN(b.Lower) {
			xl[k] = b.Lower
		}
		if !math.IsNaN(b.Upper) {
			xu[k] = b.Upper
		}
		if xl[k] > xu[k] {
			err = errors.New(fmt.Sprintf("bound range at %d has no feasible solution", k))
			return
		}
	}

	epsilon := math.Nextafter(1, 2) - 1
	optimizer = &Optimizer{
		tronSpec{
			n:       n,
			epsilon: epsilon,
			xl:      xl, xu: xu,
			stop:   stop,
			region: region,
			cauchy: cauchy,
			eval:   p.Eval,
			grad:   p.Grad,
			hess:   p.Hess,
			logger: *logger,
		},
	}
	return
}

// Optimizer implemented using the TRON algorithm.
type Optimizer struct {
	tronSpec
}

// Workspace contains the state and context of the optimization process.
// Given problem dimension n, total work space is approximately
// float64[2×n² + 14×n].
type Workspace struct {
	n int
	tronCtx
}

// Result contains the final result of the optimization process.
type Result struct {
	OK      bool      // Whether the optimization was converged.
	F       float64   // Final function value.
	X, G    []float64 // Final solution and gradient.
	Summary           // Optimization summary.
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status  Task // Final task status after optimization.
	NumIter int  // Number of iterations performed.
	NumEval int  // Number of function evaluations performed.
	NumCG   int  // Number of conjugate gradient iterations performed.
	Shifts  int  // Number of factorizations that exhausted the shift budget.
}

// Init allocate the workspace for TRON optimizer.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	w := new(Workspace)
	w.n = o.n
	w.init(w.n)
	return w
}

// Fit runs the optimization process using the initial guess x and workspace w.
func (o *Optimizer) Fit(x []float64, w *Workspace) *Result {

	if len(x) != o.n {
		panic("initial x dimension not match spec")
	}
	if o.eval == nil {
		panic("evaluation target is required")
	}

	n := o.n
	loc := Location{
		X: slices.Clone(x),
		G: make([]float64, n),
		A: make([]float64, n*n),
	}

	grad := o.grad
	if grad == nil {
		grad = o.fdGradient()
	}
	hess := o.hess
	if hess == nil {
		hess = o.fdHessian(grad)
	}

	m := o.Minimizer(w)
	task := o.evalLoop(m, &loc, grad, hess)

	if log := o.logger; log.enable(LogChange) {
		log.out("Final X = %v\n", loc.X[:n])
	}

	return &Result{
		OK: task&TaskConv > 0,
		X:  loc.X, F: loc.F, G: loc.G,
		Summary: Summary{
			Status:  task,
			NumIter: w.iter,
			NumEval: w.totalEval,
			NumCG:   w.totalCG,
			Shifts:  w.shifts,
		},
	}
}

// evalLoop drives the re-entrant minimizer with the problem callbacks
// until a terminal task. A panic raised by a callback is captured and
// reported as HaltEvalPanic instead of unwinding through the batch.
func (o *Optimizer) evalLoop(m *Minimizer, loc *Location, grad Gradient, hess Hessian) (task Task) {

	defer func() {
		if r := recover(); r != nil {
			task = HaltEvalPanic
			m.w.task = HaltEvalPanic
			if log := o.logger; log.enable(LogLast) {
				log.log("callback panic: %v\n", r)
			}
		}
	}()

	for {
		switch task = m.Iterate(loc); task {
		case TaskEvalF:
			loc.F = o.eval(loc.X[:o.n])
		case TaskEvalGH:
			loc.F = o.eval(loc.X[:o.n])
			grad(loc.X[:o.n], loc.G)
			hess(loc.X[:o.n], loc.A)
		case TaskNewX:
			grad(loc.X[:o.n], loc.G)
			hess(loc.X[:o.n], loc.A)
		case WarnCholShift:
			// Reported once, not terminal.
		default:
			return
		}
	}
}

// fdGradient builds a forward difference fallback over the objective.
// Each call allocates private scratch, so the returned callback must not
// be shared between goroutines but fresh ones are safe concurrently.
func (o *Optimizer) fdGradient() Gradient {
	gs := &numdiff.ApproxSpec{
		N: o.n, M: 1,
		Object: func(x, y []float64) { y[0] = o.eval(x) },
		Method: numdiff.Forward,
		Bounds: o.fdBounds(),
	}
	return func(x, g []float64) {
		if err := gs.Diff(x[:o.n], g[:o.n]); err != nil {
			panic(err)
		}
	}
}

// fdHessian builds a finite difference fallback over the gradient,
// analytic or itself a difference fallback. Same sharing rule as
// fdGradient.
func (o *Optimizer) fdHessian(grad Gradient) Hessian {
	hs := &numdiff.HessianSpec{N: o.n, Grad: grad, Bounds: o.fdBounds()}
	return func(x, a []float64) {
		if err := hs.Diff(x[:o.n], a[:o.n*o.n]); err != nil {
			panic(err)
		}
	}
}

func (o *Optimizer) fdBounds() []numdiff.Bound {
	bounds := make([]numdiff.Bound, o.n)
	for i := range bounds {
		bounds[i] = numdiff.Bound{o.xl[i], o.xu[i]}
	}
	return bounds
}
