package recon

import (
	"fmt"
	"math"

	"bitbucket.org/dkoshel/jrecon/scaled"
	"bitbucket.org/dkoshel/jrecon/tree"
)

// undatedDL implements the undated duplication-loss model. Without
// transfers the recurrence needs a single pass per CLV and the
// extinction probabilities have a closed form per branch.
type undatedDL struct {
	ev *Evaluator
	PD []float64
	PL []float64
	PS []float64
	uE []float64
	// uq[geneID][speciesID]: probability that the gene subtree is
	// produced by a reconciliation starting on the species branch.
	// The second half of the gene axis holds virtual roots.
	uq [][]scaled.Real
}

func newUndatedDL(ev *Evaluator) *undatedDL {
	n := ev.species.NNodes()
	dl := &undatedDL{ev: ev, uq: make([][]scaled.Real, 2*(ev.genes.MaxID()+1))}
	for i := range dl.uq {
		dl.uq[i] = make([]scaled.Real, n)
	}
	return dl
}

// solveSecondDegree returns the stable root of a*x^2 + b*x + c = 0.
func solveSecondDegree(a, b, c float64) float64 {
	return 2 * c / (-b + math.Sqrt(b*b-4*a*c))
}

func (dl *undatedDL) setRates(r *Rates) {
	dl.PD = r.PD
	dl.PL = r.PL
	dl.PS = r.PS
	dl.uE = make([]float64, dl.ev.species.NNodes())
	for _, node := range dl.ev.species.PostOrder() {
		e := node.Index
		a := dl.PD[e]
		b := -1.0
		c := dl.PL[e]
		if !node.IsLeaf() {
			c += dl.PS[e] * dl.uE[node.Left.Index] * dl.uE[node.Right.Index]
		}
		proba := solveSecondDegree(a, b, c)
		if proba < 0 || proba > 1 || math.IsNaN(proba) {
			panic(fmt.Sprintf("extinction probability %g out of range on branch %d", proba, e))
		}
		dl.uE[e] = proba
	}
}

func (dl *undatedDL) accountsForTransfers() bool { return false }
func (dl *undatedDL) canBacktrace() bool         { return true }

func (dl *undatedDL) updateCLV(g *tree.GeneNode) {
	for _, speciesNode := range dl.ev.species.PostOrder() {
		dl.uq[g.Index][speciesNode.Index] = dl.computeProbability(g, speciesNode, false)
	}
}

func (dl *undatedDL) computeRootCLV(v *tree.GeneNode) {
	for _, speciesNode := range dl.ev.species.PostOrder() {
		dl.uq[v.Index][speciesNode.Index] = dl.computeProbability(v, speciesNode, true)
	}
}

func (dl *undatedDL) computeProbability(g *tree.GeneNode, speciesNode *tree.SpeciesNode, virtualRoot bool) scaled.Real {
	gid := g.Index
	e := speciesNode.Index
	geneLeaf := g.IsLeaf()
	speciesLeaf := speciesNode.IsLeaf()
	if speciesLeaf && geneLeaf {
		if dl.ev.geneToSpecies[gid] == e {
			return scaled.New(dl.PS[e])
		}
		return scaled.Real{}
	}
	var proba scaled.Real
	var f, h int
	if !speciesLeaf {
		f = speciesNode.Left.Index
		h = speciesNode.Right.Index
	}
	if !geneLeaf {
		x := tree.Left(g, virtualRoot).Index
		y := tree.Right(g, virtualRoot).Index
		if !speciesLeaf {
			// S event
			proba = proba.Add(scaled.SuperMult1(
				dl.uq[x][f], dl.uq[y][h],
				dl.uq[x][h], dl.uq[y][f],
				dl.PS[e]))
		}
		// D event
		proba = proba.Add(dl.uq[x][e].Mul(dl.uq[y][e]).MulFloat(dl.PD[e]))
	}
	if !speciesLeaf {
		// SL event
		proba = proba.Add(scaled.SuperMult2(
			dl.uq[gid][f], dl.uE[h],
			dl.uq[gid][h], dl.uE[f],
			dl.PS[e]))
	}
	// fold the duplication-loss self term into a division
	return proba.DivFloat(1 - 2*dl.PD[e]*dl.uE[e])
}

func (dl *undatedDL) rootLikelihood(root *tree.GeneNode) scaled.Real {
	var sum scaled.Real
	u := root.Index + dl.ev.genes.MaxID() + 1
	for _, speciesNode := range dl.ev.species.PostOrder() {
		sum = sum.Add(dl.uq[u][speciesNode.Index])
	}
	return sum
}

func (dl *undatedDL) rootLikelihoodAt(root *tree.GeneNode, speciesNode *tree.SpeciesNode) scaled.Real {
	return dl.uq[root.Index+dl.ev.genes.MaxID()+1][speciesNode.Index]
}

func (dl *undatedDL) backtrace(g *tree.GeneNode, speciesNode *tree.SpeciesNode,
	sc *Scenario, virtualRoot bool) error {
	gid := g.Index
	e := speciesNode.Index
	geneLeaf := g.IsLeaf()
	speciesLeaf := speciesNode.IsLeaf()
	if speciesLeaf && geneLeaf && dl.ev.geneToSpecies[gid] == e {
		sc.AddEvent(EventNone, gid, e)
		return nil
	}
	var x, y *tree.GeneNode
	if !geneLeaf {
		x = tree.Left(g, virtualRoot)
		y = tree.Right(g, virtualRoot)
	}
	var values [5]scaled.Real
	if !geneLeaf {
		if !speciesLeaf {
			f := speciesNode.Left.Index
			h := speciesNode.Right.Index
			values[0] = dl.uq[x.Index][f].Mul(dl.uq[y.Index][h]).MulFloat(dl.PS[e])
			values[1] = dl.uq[x.Index][h].Mul(dl.uq[y.Index][f]).MulFloat(dl.PS[e])
		}
		values[2] = dl.uq[x.Index][e].Mul(dl.uq[y.Index][e]).MulFloat(dl.PD[e])
	}
	if !speciesLeaf {
		f := speciesNode.Left.Index
		h := speciesNode.Right.Index
		values[3] = dl.uq[gid][f].MulFloat(dl.uE[h] * dl.PS[e])
		values[4] = dl.uq[gid][h].MulFloat(dl.uE[f] * dl.PS[e])
	}
	best := 0
	for i := 1; i < len(values); i++ {
		if values[best].Less(values[i]) {
			best = i
		}
	}
	if values[best].IsZero() {
		return fmt.Errorf("backtrace dead end at gene %d, species %d", gid, e)
	}
	switch best {
	case 0:
		sc.AddEvent(EventS, gid, e)
		if err := dl.backtrace(x, speciesNode.Left, sc, false); err != nil {
			return err
		}
		return dl.backtrace(y, speciesNode.Right, sc, false)
	case 1:
		sc.AddEvent(EventS, gid, e)
		if err := dl.backtrace(x, speciesNode.Right, sc, false); err != nil {
			return err
		}
		return dl.backtrace(y, speciesNode.Left, sc, false)
	case 2:
		sc.AddEvent(EventD, gid, e)
		if err := dl.backtrace(x, speciesNode, sc, false); err != nil {
			return err
		}
		return dl.backtrace(y, speciesNode, sc, false)
	case 3:
		sc.AddEvent(EventSL, gid, e)
		return dl.backtrace(g, speciesNode.Left, sc, virtualRoot)
	default:
		sc.AddEvent(EventSL, gid, e)
		return dl.backtrace(g, speciesNode.Right, sc, virtualRoot)
	}
}
