package optimize

import (
	"math"

	lbfgsb "github.com/idavydov/go-lbfgsb"
)

// LBFGSB maximizes the likelihood with the bounded limited-memory
// BFGS method; gradients come from central finite differences.
type LBFGSB struct {
	BaseOptimizer
	dH   float64
	grad []float64
}

// NewLBFGSB creates an LBFGS-B optimizer.
func NewLBFGSB() (l *LBFGSB) {
	l = &LBFGSB{
		BaseOptimizer: BaseOptimizer{
			repPeriod: 10,
		},
		dH: 1e-6,
	}
	return
}

// Logger receives iteration reports from the solver.
func (l *LBFGSB) Logger(info *lbfgsb.OptimizationIterationInformation) {
	l.i = info.Iteration
	if l.repPeriod > 0 && l.i%l.repPeriod == 0 {
		l.parameters.SetValues(info.X)
		l.PrintLine(l.parameters, -info.F)
	}
}

// EvaluateFunction returns the negative log-likelihood at x.
func (l *LBFGSB) EvaluateFunction(x []float64) float64 {
	if !l.parameters.ValuesInRange(x) {
		return math.Inf(+1)
	}
	l.parameters.SetValues(x)
	L := l.Likelihood()
	l.calls++
	if L > l.maxL {
		l.maxL = L
		l.maxLPar = l.parameters.Values(l.maxLPar)
	}
	return -L
}

// EvaluateGradient returns the finite-difference gradient of the
// negative log-likelihood at x.
func (l *LBFGSB) EvaluateGradient(x []float64) (grad []float64) {
	if l.grad == nil {
		l.grad = make([]float64, len(x))
	}
	grad = l.grad
	point := l.Optimizable.Copy()
	parameters := point.GetFloatParameters()
	for i := range x {
		v := x[i]
		parameters.SetValues(x)
		parameters[i].Set(v - l.dH)
		l1 := -point.Likelihood()
		parameters[i].Set(v + l.dH)
		l2 := -point.Likelihood()
		l.calls += 2
		grad[i] = (l2 - l1) / 2 / l.dH
	}
	return
}

// Run starts the minimization. The iterations argument is not used:
// the solver stops on its own tolerances.
func (l *LBFGSB) Run(iterations int) {
	l.maxL = math.Inf(-1)
	bounds := make([][2]float64, len(l.parameters))
	for i, par := range l.parameters {
		bounds[i][0] = par.GetMin() + 1e-5
		bounds[i][1] = par.GetMax() - 1e-5
	}

	opt := new(lbfgsb.Lbfgsb)
	opt.SetApproximationSize(10)
	opt.SetFTolerance(1e-9)
	opt.SetGTolerance(1e-9)
	opt.SetBounds(bounds)
	opt.SetLogger(l.Logger)

	_, exitStatus := opt.Minimize(l, l.parameters.Values(nil))
	log.Infof("LBFGS-B finished: %v, %d likelihood calls", exitStatus, l.calls)

	if l.maxLPar != nil {
		l.parameters.SetValues(l.maxLPar)
	}
	l.PrintFinal(l.parameters)
}
