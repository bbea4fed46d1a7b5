package recon

import (
	"math"
	"testing"
)

/*** S4: transfer signal ***/

func TestTransferSignal(tst *testing.T) {
	st := speciesABCD(tst)
	gt := geneQuartet(tst, "a", "c", "b", "d")
	mapping := map[string]string{"a": "A", "b": "B", "c": "C", "d": "D"}
	ev := newTestEvaluator(tst, st, gt, mapping, Options{Model: UndatedDTL})
	if err := ev.SetRates(0.1, 0.1, 0.3); err != nil {
		tst.Fatal("Error: ", err)
	}
	withTransfers := ev.Evaluate()
	if math.IsNaN(withTransfers) || math.IsInf(withTransfers, 0) {
		tst.Fatal("expected finite log-likelihood, got ", withTransfers)
	}
	sc, err := ev.InferScenario()
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if sc.EventCount(EventT)+sc.EventCount(EventTL) < 1 {
		tst.Error("expected at least one transfer in a discordant family")
	}

	if err := ev.SetRates(0.1, 0.1, 0); err != nil {
		tst.Fatal("Error: ", err)
	}
	withoutTransfers := ev.Evaluate()
	if math.IsNaN(withoutTransfers) || math.IsInf(withoutTransfers, 0) {
		tst.Fatal("expected finite log-likelihood, got ", withoutTransfers)
	}
	scPure, err := ev.InferScenario()
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if scPure.EventCount(EventT)+scPure.EventCount(EventTL) != 0 {
		tst.Error("transfer events with zero transfer rate")
	}
	if withoutTransfers >= withTransfers {
		tst.Errorf("pure DL scenario should be less likely: %f >= %f", withoutTransfers, withTransfers)
	}
}

func TestTransferDestinations(tst *testing.T) {
	st := speciesABCD(tst)
	gt := geneQuartet(tst, "a", "c", "b", "d")
	mapping := map[string]string{"a": "A", "b": "B", "c": "C", "d": "D"}
	ev := newTestEvaluator(tst, st, gt, mapping, Options{Model: UndatedDTL})
	if err := ev.SetRates(0.05, 0.05, 0.4); err != nil {
		tst.Fatal("Error: ", err)
	}
	sc, err := ev.InferScenario()
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	for _, event := range sc.Events() {
		if event.Type != EventT && event.Type != EventTL {
			continue
		}
		if event.DestSpecies == invalidNode {
			tst.Error("transfer event without destination")
			continue
		}
		dest := st.Nodes()[event.DestSpecies]
		source := st.Nodes()[event.SpeciesNode]
		if st.IsAncestor(dest, source) {
			tst.Error("transfer to an ancestor of the donor branch")
		}
	}
}

/*** DTL numerical properties ***/

func TestDTLCLVBounds(tst *testing.T) {
	st := speciesABCD(tst)
	gt := geneQuartet(tst, "a", "c", "b", "d")
	mapping := map[string]string{"a": "A", "b": "B", "c": "C", "d": "D"}
	ev := newTestEvaluator(tst, st, gt, mapping, Options{Model: UndatedDTL, DTLIterations: 4})
	if err := ev.SetRates(0.2, 0.2, 0.2); err != nil {
		tst.Fatal("Error: ", err)
	}
	ev.Evaluate()
	dtl := ev.core.(*undatedDTL)
	for e, uE := range dtl.uE {
		if !uE.IsProba() {
			tst.Errorf("extinction probability %v out of range on branch %d", uE.Float64(), e)
		}
	}
	for g, row := range dtl.uq {
		for e, v := range row {
			if !v.IsProba() {
				tst.Errorf("uq[%d][%d] = %v is not a probability", g, e, v.Float64())
			}
		}
	}
}

func TestDTLFiniteness(tst *testing.T) {
	st := speciesABCD(tst)
	gt := geneQuartet(tst, "a", "b", "c", "d")
	mapping := map[string]string{"a": "A", "b": "B", "c": "C", "d": "D"}
	for _, rates := range [][3]float64{
		{0.01, 0.01, 0.01},
		{0.5, 0.5, 0.5},
		{1e-6, 1e-6, 1e-6},
		{2, 2, 2},
	} {
		ev := newTestEvaluator(tst, st, gt, mapping, Options{Model: UndatedDTL})
		if err := ev.SetRates(rates[0], rates[1], rates[2]); err != nil {
			tst.Fatal("Error: ", err)
		}
		L := ev.Evaluate()
		if math.IsNaN(L) || math.IsInf(L, 0) {
			tst.Errorf("rates %v: expected finite log-likelihood, got %v", rates, L)
		}
	}
}

func TestDTLIdempotence(tst *testing.T) {
	st := speciesABCD(tst)
	gt := geneQuartet(tst, "a", "c", "b", "d")
	mapping := map[string]string{"a": "A", "b": "B", "c": "C", "d": "D"}
	ev := newTestEvaluator(tst, st, gt, mapping, Options{Model: UndatedDTL})
	if err := ev.SetRates(0.1, 0.1, 0.2); err != nil {
		tst.Fatal("Error: ", err)
	}
	first := ev.Evaluate()
	for i := 0; i < 10; i++ {
		if L := ev.Evaluate(); L != first {
			tst.Fatalf("evaluation %d: %v != %v", i, L, first)
		}
	}
}

/*** SimpleDS ***/

func TestSimpleDSLikelihood(tst *testing.T) {
	st := speciesABC(tst)
	gt := geneTriplet(tst, "a", "b", "c")
	ev := newTestEvaluator(tst, st, gt,
		map[string]string{"a": "A", "b": "B", "c": "C"}, Options{Model: SimpleDS})
	if err := ev.SetRates(0.2, 0, 0); err != nil {
		tst.Fatal("Error: ", err)
	}
	L := ev.Evaluate()
	if math.IsNaN(L) || math.IsInf(L, 0) || L >= 0 {
		tst.Error("expected finite negative log-likelihood, got ", L)
	}
	if _, err := ev.InferScenario(); err == nil {
		tst.Error("SimpleDS should not support scenario extraction")
	}
}

func TestSimpleDSDuplicationPenalty(tst *testing.T) {
	st := speciesABC(tst)
	mapping := map[string]string{"a": "A", "b": "B", "c": "C", "a2": "A"}
	duplicated := geneQuartet(tst, "a", "a2", "b", "c")
	ev := newTestEvaluator(tst, st, duplicated, mapping, Options{Model: SimpleDS})
	if err := ev.SetRates(0.01, 0, 0); err != nil {
		tst.Fatal("Error: ", err)
	}
	lowDup := ev.Evaluate()
	if err := ev.SetRates(0.2, 0, 0); err != nil {
		tst.Fatal("Error: ", err)
	}
	highDup := ev.Evaluate()
	// the family contains one duplication, so some duplication mass
	// helps
	if math.IsNaN(lowDup) || math.IsNaN(highDup) {
		tst.Fatal("NaN likelihood")
	}
	if highDup <= lowDup {
		tst.Errorf("duplication-rich family should prefer a higher rate: %f <= %f", highDup, lowDup)
	}
}
