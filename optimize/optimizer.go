// Package optimize provides likelihood optimizers over a small set of
// bounded float parameters.
package optimize

import (
	"os"
	"os/signal"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("optimize")

// Optimizable is a model with parameters and a likelihood function.
type Optimizable interface {
	GetFloatParameters() FloatParameters
	Copy() Optimizable
	Likelihood() float64
}

// Optimizer maximizes the likelihood of an Optimizable.
type Optimizer interface {
	SetOptimizable(Optimizable)
	WatchSignals(...os.Signal)
	SetReportPeriod(period int)
	Run(iterations int)
	GetMaxL() float64
	GetMaxLParameters() []float64
}

// BaseOptimizer implements the bookkeeping shared by all optimizers.
type BaseOptimizer struct {
	Optimizable
	parameters FloatParameters
	i          int
	calls      int
	maxL       float64
	maxLPar    []float64
	repPeriod  int
	sig        chan os.Signal
}

// SetOptimizable sets the model to optimize.
func (o *BaseOptimizer) SetOptimizable(opt Optimizable) {
	o.Optimizable = opt
	o.parameters = opt.GetFloatParameters()
}

// WatchSignals makes the optimizer stop cleanly on the given signals.
func (o *BaseOptimizer) WatchSignals(sigs ...os.Signal) {
	o.sig = make(chan os.Signal, 1)
	signal.Notify(o.sig, sigs...)
}

// SetReportPeriod changes the number of iterations between progress
// lines.
func (o *BaseOptimizer) SetReportPeriod(period int) {
	o.repPeriod = period
}

// PrintLine logs one progress line.
func (o *BaseOptimizer) PrintLine(parameters FloatParameters, l float64) {
	log.Infof("%d\t%f\t%s", o.i, l, parameters.ValuesString())
}

// PrintFinal logs the final parameter values.
func (o *BaseOptimizer) PrintFinal(parameters FloatParameters) {
	for _, par := range parameters {
		log.Noticef("%s=%v", par.Name(), par.Get())
	}
}

// GetMaxL returns the largest likelihood seen.
func (o *BaseOptimizer) GetMaxL() float64 {
	return o.maxL
}

// GetMaxLParameters returns the parameter values at the largest
// likelihood seen.
func (o *BaseOptimizer) GetMaxLParameters() []float64 {
	return o.maxLPar
}
