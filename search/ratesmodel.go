package search

import (
	"bitbucket.org/dkoshel/jrecon/optimize"
)

const (
	minRate = 1e-6
	maxRate = 10
)

// ratesModel exposes the global DTL rates as an optimizable over the
// reconciliation likelihood. Copies share the evaluator: likelihood
// calls are sequential within one optimizer, and every call installs
// its own rates before evaluating.
type ratesModel struct {
	jt         *JointTree
	dup        float64
	loss       float64
	trans      float64
	parameters optimize.FloatParameters
}

func newRatesModel(jt *JointTree) *ratesModel {
	m := &ratesModel{
		jt:    jt,
		dup:   jt.DupRate(),
		loss:  jt.LossRate(),
		trans: jt.TransferRate(),
	}
	if m.dup <= minRate {
		m.dup = 0.1
	}
	if m.loss <= minRate {
		m.loss = 0.1
	}
	if jt.Rec.AccountsForTransfers() && m.trans <= minRate {
		m.trans = 0.1
	}
	m.setupParameters()
	return m
}

func (m *ratesModel) setupParameters() {
	m.parameters = nil
	names := []string{"dup", "loss"}
	fields := []*float64{&m.dup, &m.loss}
	if m.jt.Rec.AccountsForTransfers() {
		names = append(names, "trans")
		fields = append(fields, &m.trans)
	}
	for i, field := range fields {
		par := optimize.NewBasicFloatParameter(field, names[i])
		par.SetMin(minRate)
		par.SetMax(maxRate)
		m.parameters.Append(par)
	}
}

func (m *ratesModel) GetFloatParameters() optimize.FloatParameters {
	return m.parameters
}

func (m *ratesModel) Copy() optimize.Optimizable {
	c := &ratesModel{
		jt:    m.jt,
		dup:   m.dup,
		loss:  m.loss,
		trans: m.trans,
	}
	c.setupParameters()
	return c
}

func (m *ratesModel) Likelihood() float64 {
	if err := m.jt.Rec.SetRates(m.dup, m.loss, m.trans); err != nil {
		log.Errorf("setting rates: %v", err)
		return -1e9
	}
	return m.jt.Rec.Evaluate()
}
