package recon

import (
	"fmt"
	"math"
)

// Rates holds the per-species-branch event probabilities. After
// normalization PD+PL+PS(+PT) is 1 on every branch.
type Rates struct {
	PD []float64
	PL []float64
	PS []float64
	PT []float64
}

func newRates(n int) *Rates {
	return &Rates{
		PD: make([]float64, n),
		PL: make([]float64, n),
		PS: make([]float64, n),
		PT: make([]float64, n),
	}
}

// GlobalRates builds per-branch rate vectors from one (dup, loss,
// transfer) triple. Speciation weight starts at 1 on every branch.
func GlobalRates(n int, dup, loss, trans float64) (*Rates, error) {
	if dup < 0 || loss < 0 || trans < 0 {
		return nil, fmt.Errorf("negative rate: dup=%g loss=%g trans=%g", dup, loss, trans)
	}
	r := newRates(n)
	for e := 0; e < n; e++ {
		r.PD[e] = dup
		r.PL[e] = loss
		r.PT[e] = trans
		r.PS[e] = 1
	}
	return r, nil
}

// PerBranchRates builds rate vectors from per-branch duplication,
// loss and transfer values; trans may be nil for DL models.
func PerBranchRates(n int, dup, loss, trans []float64) (*Rates, error) {
	if len(dup) != n || len(loss) != n {
		return nil, fmt.Errorf("rate vectors have length %d/%d, want %d", len(dup), len(loss), n)
	}
	if trans != nil && len(trans) != n {
		return nil, fmt.Errorf("transfer rate vector has length %d, want %d", len(trans), n)
	}
	r := newRates(n)
	for e := 0; e < n; e++ {
		if dup[e] < 0 || loss[e] < 0 || (trans != nil && trans[e] < 0) {
			return nil, fmt.Errorf("negative rate on branch %d", e)
		}
		r.PD[e] = dup[e]
		r.PL[e] = loss[e]
		if trans != nil {
			r.PT[e] = trans[e]
		}
		r.PS[e] = 1
	}
	return r, nil
}

// normalize rescales every branch so the probabilities sum to one.
// With noDup the duplication probability is zeroed first, so the
// remaining rates still sum to one afterwards.
func (r *Rates) normalize(noDup bool) {
	for e := range r.PS {
		if noDup {
			r.PD[e] = 0
		}
		sum := r.PD[e] + r.PL[e] + r.PS[e] + r.PT[e]
		r.PD[e] /= sum
		r.PL[e] /= sum
		r.PS[e] /= sum
		r.PT[e] /= sum
	}
}

// check verifies the branch-wise normalization invariant.
func (r *Rates) check() error {
	for e := range r.PS {
		sum := r.PD[e] + r.PL[e] + r.PS[e] + r.PT[e]
		if math.Abs(sum-1) > 1e-12 {
			return fmt.Errorf("rates on branch %d sum to %g", e, sum)
		}
	}
	return nil
}
