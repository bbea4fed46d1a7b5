package optimize

import (
	"math"
	"testing"

	"github.com/op/go-logging"
)

func init() {
	logging.SetLevel(logging.ERROR, "optimize")
}

func TestBasicFloatParameter(tst *testing.T) {
	v := 1.0
	changed := false
	par := NewBasicFloatParameter(&v, "x")
	par.SetMin(0)
	par.SetMax(2)
	par.SetOnChange(func() { changed = true })
	par.Set(1.5)
	if v != 1.5 || !changed {
		tst.Error("Set did not update the backing field")
	}
	if !par.InRange() || par.ValueInRange(3) {
		tst.Error("range checks wrong")
	}
}

// paraboloid has its likelihood maximum at (2, -1).
type paraboloid struct {
	x, y       float64
	parameters FloatParameters
}

func newParaboloid() *paraboloid {
	p := &paraboloid{x: 0.5, y: 0.5}
	p.setup()
	return p
}

func (p *paraboloid) setup() {
	p.parameters = nil
	for i, field := range []*float64{&p.x, &p.y} {
		par := NewBasicFloatParameter(field, []string{"x", "y"}[i])
		par.SetMin(-10)
		par.SetMax(10)
		p.parameters.Append(par)
	}
}

func (p *paraboloid) GetFloatParameters() FloatParameters {
	return p.parameters
}

func (p *paraboloid) Copy() Optimizable {
	c := &paraboloid{x: p.x, y: p.y}
	c.setup()
	return c
}

func (p *paraboloid) Likelihood() float64 {
	return -(p.x-2)*(p.x-2) - (p.y+1)*(p.y+1)
}

func TestSimplexFindsMaximum(tst *testing.T) {
	ds := NewDS()
	ds.SetReportPeriod(0)
	ds.SetOptimizable(newParaboloid())
	ds.Run(1000)
	if ds.GetMaxL() < -1e-4 {
		tst.Errorf("simplex stopped at likelihood %v", ds.GetMaxL())
	}
	best := ds.GetMaxLParameters()
	if math.Abs(best[0]-2) > 0.01 || math.Abs(best[1]+1) > 0.01 {
		tst.Errorf("simplex stopped at %v, expected (2, -1)", best)
	}
}

func TestNoneComputesLikelihood(tst *testing.T) {
	o := NewNone()
	o.SetOptimizable(newParaboloid())
	o.Run(1)
	ref := -(0.5-2)*(0.5-2) - (0.5+1)*(0.5+1)
	if o.GetMaxL() != ref {
		tst.Errorf("expected %v, got %v", ref, o.GetMaxL())
	}
}
