package optimize

// None computes the starting likelihood and exits.
type None struct {
	BaseOptimizer
}

// NewNone creates an optimizer which computes the initial likelihood
// only.
func NewNone() *None {
	return &None{}
}

// Run computes the likelihood once.
func (o *None) Run(iterations int) {
	o.maxL = o.Likelihood()
	o.calls++
	o.maxLPar = o.parameters.Values(o.maxLPar)
	o.PrintLine(o.parameters, o.maxL)
}
