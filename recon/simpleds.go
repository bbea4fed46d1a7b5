package recon

import (
	"fmt"
	"math"

	"bitbucket.org/dkoshel/jrecon/scaled"
	"bitbucket.org/dkoshel/jrecon/tree"
)

// simpleDS implements the no-loss duplication-speciation model. Each
// CLV is a probability plus the species clade below the gene node;
// disjoint child clades mean a speciation, overlapping ones a
// duplication. Likelihood only, no scenario extraction.
type simpleDS struct {
	ev   *Evaluator
	PD   float64
	PS   float64
	clvs []dsCLV
}

type dsCLV struct {
	proba      scaled.Real
	clade      map[int]bool
	genesCount int
}

func newSimpleDS(ev *Evaluator) *simpleDS {
	ds := &simpleDS{ev: ev, clvs: make([]dsCLV, 2*(ev.genes.MaxID()+1))}
	return ds
}

func (ds *simpleDS) accountsForTransfers() bool { return false }
func (ds *simpleDS) canBacktrace() bool         { return false }

func (ds *simpleDS) setRates(r *Rates) {
	// only the duplication/speciation ratio matters here
	d := r.PD[0]
	s := r.PS[0]
	sum := d + s
	ds.PD = d / sum
	ds.PS = s / sum
}

func (ds *simpleDS) updateCLV(g *tree.GeneNode) {
	ds.computeDS(g, g.Index, false)
}

func (ds *simpleDS) computeRootCLV(v *tree.GeneNode) {
	ds.computeDS(v, v.Index, true)
}

func (ds *simpleDS) computeDS(g *tree.GeneNode, gid int, virtualRoot bool) {
	clv := &ds.clvs[gid]
	if clv.clade == nil {
		clv.clade = make(map[int]bool)
	} else {
		for k := range clv.clade {
			delete(clv.clade, k)
		}
	}
	if g.IsLeaf() {
		clv.proba = scaled.New(ds.PS)
		clv.clade[ds.ev.geneToSpecies[gid]] = true
		clv.genesCount = 1
		return
	}
	x := tree.Left(g, virtualRoot).Index
	y := tree.Right(g, virtualRoot).Index
	leftCLV := &ds.clvs[x]
	rightCLV := &ds.clvs[y]
	for k := range leftCLV.clade {
		clv.clade[k] = true
	}
	for k := range rightCLV.clade {
		clv.clade[k] = true
	}
	clv.genesCount = leftCLV.genesCount + rightCLV.genesCount
	clv.proba = leftCLV.proba.Mul(rightCLV.proba)
	if len(clv.clade) == len(leftCLV.clade)+len(rightCLV.clade) {
		// disjoint clades: speciation
		clv.proba = clv.proba.MulFloat(ds.PS)
		clv.proba = clv.proba.DivFloat(math.Pow(2, float64(len(clv.clade)-1)))
	} else {
		// overlapping clades: duplication
		clv.proba = clv.proba.MulFloat(ds.PD)
		clv.proba = clv.proba.DivFloat(
			math.Pow(2, float64(clv.genesCount-1)) - math.Pow(2, float64(len(clv.clade)-1)))
	}
}

func (ds *simpleDS) rootLikelihood(root *tree.GeneNode) scaled.Real {
	return ds.clvs[root.Index+ds.ev.genes.MaxID()+1].proba
}

func (ds *simpleDS) rootLikelihoodAt(root *tree.GeneNode, _ *tree.SpeciesNode) scaled.Real {
	return ds.rootLikelihood(root)
}

func (ds *simpleDS) backtrace(_ *tree.GeneNode, _ *tree.SpeciesNode, _ *Scenario, _ bool) error {
	return fmt.Errorf("the duplication-speciation model is likelihood only")
}
