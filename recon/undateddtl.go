package recon

import (
	"fmt"

	"bitbucket.org/dkoshel/jrecon/scaled"
	"bitbucket.org/dkoshel/jrecon/tree"
)

// undatedDTL implements the undated duplication-transfer-loss model.
// Transfers couple every species branch to every other through a mean
// transfer sum; the self-referential transfer-loss and
// duplication-loss terms make the per-gene-node update a fixed point,
// iterated a small number of sweeps.
type undatedDTL struct {
	ev *Evaluator
	PD []float64
	PL []float64
	PS []float64
	PT []float64

	uE                            []scaled.Real
	transferExtinctionSum         scaled.Real
	ancestralExtinctionCorrection []scaled.Real

	uq [][]scaled.Real
	// survivingTransferSums[g] is the mean donor sum over all
	// branches for gene node g; ancestralCorrection[g][e] removes
	// the contributions of e and its ancestors.
	survivingTransferSums []scaled.Real
	ancestralCorrection   [][]scaled.Real

	iterations int
}

func newUndatedDTL(ev *Evaluator) *undatedDTL {
	n := ev.species.NNodes()
	rows := 2 * (ev.genes.MaxID() + 1)
	dtl := &undatedDTL{
		ev:                    ev,
		uq:                    make([][]scaled.Real, rows),
		survivingTransferSums: make([]scaled.Real, rows),
		ancestralCorrection:   make([][]scaled.Real, rows),
		iterations:            ev.opts.DTLIterations,
	}
	for i := range dtl.uq {
		dtl.uq[i] = make([]scaled.Real, n)
		dtl.ancestralCorrection[i] = make([]scaled.Real, n)
	}
	return dtl
}

func (dtl *undatedDTL) accountsForTransfers() bool { return true }
func (dtl *undatedDTL) canBacktrace() bool         { return true }

// updateTransferSums recomputes the mean donor sum and the per-branch
// ancestral corrections from the given per-branch probabilities.
// Parents are processed before children so each correction accumulates
// the full ancestor chain.
func (dtl *undatedDTL) updateTransferSums(probabilities []scaled.Real) (scaled.Real, []scaled.Real) {
	postOrder := dtl.ev.species.PostOrder()
	n := float64(len(postOrder))
	correction := make([]scaled.Real, len(postOrder))
	for i := len(postOrder) - 1; i >= 0; i-- {
		node := postOrder[i]
		e := node.Index
		correction[e] = probabilities[e].MulFloat(dtl.PT[e])
		if node.Parent != nil {
			correction[e] = correction[e].Add(correction[node.Parent.Index])
		}
	}
	var sum scaled.Real
	for _, node := range postOrder {
		e := node.Index
		correction[e] = correction[e].DivFloat(n)
		sum = sum.Add(probabilities[e].MulFloat(dtl.PT[e]))
	}
	return sum.DivFloat(n), correction
}

func (dtl *undatedDTL) correctedTransferExtinctionSum(e int) scaled.Real {
	return dtl.transferExtinctionSum.Sub(dtl.ancestralExtinctionCorrection[e])
}

func (dtl *undatedDTL) correctedTransferSum(gid, e int) scaled.Real {
	return dtl.survivingTransferSums[gid].Sub(dtl.ancestralCorrection[gid][e])
}

func (dtl *undatedDTL) setRates(r *Rates) {
	dtl.PD = r.PD
	dtl.PL = r.PL
	dtl.PS = r.PS
	dtl.PT = r.PT
	n := dtl.ev.species.NNodes()
	dtl.uE = make([]scaled.Real, n)
	dtl.transferExtinctionSum = scaled.Real{}
	dtl.ancestralExtinctionCorrection = make([]scaled.Real, n)
	for it := 0; it < dtl.iterations; it++ {
		for _, node := range dtl.ev.species.PostOrder() {
			e := node.Index
			proba := scaled.New(dtl.PL[e])
			proba = proba.Add(dtl.uE[e].Mul(dtl.uE[e]).MulFloat(dtl.PD[e]))
			proba = proba.Add(dtl.correctedTransferExtinctionSum(e).Mul(dtl.uE[e]))
			if !node.IsLeaf() {
				proba = proba.Add(dtl.uE[node.Left.Index].Mul(dtl.uE[node.Right.Index]).MulFloat(dtl.PS[e]))
			}
			if !proba.IsProba() {
				panic(fmt.Sprintf("extinction probability out of range on branch %d", e))
			}
			dtl.uE[e] = proba
		}
		dtl.transferExtinctionSum, dtl.ancestralExtinctionCorrection = dtl.updateTransferSums(dtl.uE)
	}
}

func (dtl *undatedDTL) updateCLV(g *tree.GeneNode) {
	dtl.refreshCLV(g, g.Index, false)
}

func (dtl *undatedDTL) computeRootCLV(v *tree.GeneNode) {
	dtl.refreshCLV(v, v.Index, true)
}

func (dtl *undatedDTL) refreshCLV(g *tree.GeneNode, gid int, virtualRoot bool) {
	for e := range dtl.uq[gid] {
		dtl.uq[gid][e] = scaled.Real{}
	}
	dtl.survivingTransferSums[gid] = scaled.Real{}
	for e := range dtl.ancestralCorrection[gid] {
		dtl.ancestralCorrection[gid][e] = scaled.Real{}
	}
	for it := 0; it < dtl.iterations; it++ {
		for _, speciesNode := range dtl.ev.species.PostOrder() {
			dtl.uq[gid][speciesNode.Index] = dtl.computeProbability(g, gid, speciesNode, virtualRoot)
		}
		dtl.survivingTransferSums[gid], dtl.ancestralCorrection[gid] = dtl.updateTransferSums(dtl.uq[gid])
	}
}

func (dtl *undatedDTL) computeProbability(g *tree.GeneNode, gid int,
	speciesNode *tree.SpeciesNode, virtualRoot bool) scaled.Real {
	e := speciesNode.Index
	geneLeaf := g.IsLeaf()
	speciesLeaf := speciesNode.IsLeaf()
	if speciesLeaf && geneLeaf && dtl.ev.geneToSpecies[gid] == e {
		return scaled.New(dtl.PS[e])
	}
	oldProba := dtl.uq[gid][e]
	var proba scaled.Real
	if !geneLeaf {
		x := tree.Left(g, virtualRoot).Index
		y := tree.Right(g, virtualRoot).Index
		if !speciesLeaf {
			// S event
			proba = proba.Add(scaled.SuperMult1(
				dtl.uq[x][speciesNode.Left.Index], dtl.uq[y][speciesNode.Right.Index],
				dtl.uq[x][speciesNode.Right.Index], dtl.uq[y][speciesNode.Left.Index],
				dtl.PS[e]))
		}
		// D event
		proba = proba.Add(dtl.uq[x][e].Mul(dtl.uq[y][e]).MulFloat(dtl.PD[e]))
		// T events: one child stays, the other transfers out
		proba = proba.Add(dtl.correctedTransferSum(x, e).Mul(dtl.uq[y][e]))
		proba = proba.Add(dtl.correctedTransferSum(y, e).Mul(dtl.uq[x][e]))
	}
	if !speciesLeaf {
		// SL event
		proba = proba.Add(scaled.SuperMult1(
			dtl.uq[gid][speciesNode.Left.Index], dtl.uE[speciesNode.Right.Index],
			dtl.uq[gid][speciesNode.Right.Index], dtl.uE[speciesNode.Left.Index],
			dtl.PS[e]))
	}
	// TL events: the transferred copy dies, or the donor copy dies
	proba = proba.Add(oldProba.Mul(dtl.correctedTransferExtinctionSum(e)))
	proba = proba.Add(dtl.correctedTransferSum(gid, e).Mul(dtl.uE[e]))
	// DL event
	proba = proba.Add(oldProba.Mul(dtl.uE[e]).MulFloat(2 * dtl.PD[e]))
	return proba
}

func (dtl *undatedDTL) rootLikelihood(root *tree.GeneNode) scaled.Real {
	var sum scaled.Real
	u := root.Index + dtl.ev.genes.MaxID() + 1
	for _, speciesNode := range dtl.ev.species.PostOrder() {
		sum = sum.Add(dtl.uq[u][speciesNode.Index])
	}
	return sum
}

func (dtl *undatedDTL) rootLikelihoodAt(root *tree.GeneNode, speciesNode *tree.SpeciesNode) scaled.Real {
	return dtl.uq[root.Index+dtl.ev.genes.MaxID()+1][speciesNode.Index]
}

// bestTransfer returns the most likely receiving species for a
// transfer of gene node gid out of branch e: the corrected sum
// excludes e and its ancestors.
func (dtl *undatedDTL) bestTransfer(gid int, speciesNode *tree.SpeciesNode, sc *Scenario) *tree.SpeciesNode {
	var best *tree.SpeciesNode
	var max scaled.Real
	for _, candidate := range dtl.ev.species.PostOrder() {
		if dtl.ev.species.IsAncestor(candidate, speciesNode) {
			continue
		}
		if sc.IsBlacklisted(gid, candidate.Index) {
			continue
		}
		value := dtl.uq[gid][candidate.Index].MulFloat(dtl.PT[candidate.Index])
		if best == nil || max.Less(value) {
			best = candidate
			max = value
		}
	}
	if best == nil || max.IsZero() {
		return nil
	}
	return best
}

func (dtl *undatedDTL) backtrace(g *tree.GeneNode, speciesNode *tree.SpeciesNode,
	sc *Scenario, virtualRoot bool) error {
	gid := g.Index
	e := speciesNode.Index
	geneLeaf := g.IsLeaf()
	speciesLeaf := speciesNode.IsLeaf()
	if speciesLeaf && geneLeaf && dtl.ev.geneToSpecies[gid] == e {
		sc.AddEvent(EventNone, gid, e)
		return nil
	}
	sc.Blacklist(gid, e)
	var x, y *tree.GeneNode
	var destX, destY, destG *tree.SpeciesNode
	// event order: S-left, S-right, D, SL-left, SL-right, T-left,
	// T-right, TL
	var values [8]scaled.Real
	if !geneLeaf {
		x = tree.Left(g, virtualRoot)
		y = tree.Right(g, virtualRoot)
		if !speciesLeaf {
			f := speciesNode.Left.Index
			h := speciesNode.Right.Index
			values[0] = dtl.uq[x.Index][f].Mul(dtl.uq[y.Index][h]).MulFloat(dtl.PS[e])
			values[1] = dtl.uq[x.Index][h].Mul(dtl.uq[y.Index][f]).MulFloat(dtl.PS[e])
		}
		values[2] = dtl.uq[x.Index][e].Mul(dtl.uq[y.Index][e]).MulFloat(dtl.PD[e])
		if destX = dtl.bestTransfer(x.Index, speciesNode, sc); destX != nil {
			values[5] = dtl.uq[x.Index][destX.Index].MulFloat(dtl.PT[destX.Index]).Mul(dtl.uq[y.Index][e])
		}
		if destY = dtl.bestTransfer(y.Index, speciesNode, sc); destY != nil {
			values[6] = dtl.uq[y.Index][destY.Index].MulFloat(dtl.PT[destY.Index]).Mul(dtl.uq[x.Index][e])
		}
	}
	if !speciesLeaf {
		f := speciesNode.Left.Index
		h := speciesNode.Right.Index
		values[3] = dtl.uq[gid][f].Mul(dtl.uE[h]).MulFloat(dtl.PS[e])
		values[4] = dtl.uq[gid][h].Mul(dtl.uE[f]).MulFloat(dtl.PS[e])
	}
	if destG = dtl.bestTransfer(gid, speciesNode, sc); destG != nil {
		values[7] = dtl.uq[gid][destG.Index].MulFloat(dtl.PT[destG.Index]).Mul(dtl.uE[e])
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
		if err := dtl.backtrace(x, speciesNode.Left, sc, false); err != nil {
			return err
		}
		return dtl.backtrace(y, speciesNode.Right, sc, false)
	case 1:
		sc.AddEvent(EventS, gid, e)
		if err := dtl.backtrace(x, speciesNode.Right, sc, false); err != nil {
			return err
		}
		return dtl.backtrace(y, speciesNode.Left, sc, false)
	case 2:
		sc.AddEvent(EventD, gid, e)
		if err := dtl.backtrace(x, speciesNode, sc, false); err != nil {
			return err
		}
		return dtl.backtrace(y, speciesNode, sc, false)
	case 3:
		sc.AddEvent(EventSL, gid, e)
		return dtl.backtrace(g, speciesNode.Left, sc, virtualRoot)
	case 4:
		sc.AddEvent(EventSL, gid, e)
		return dtl.backtrace(g, speciesNode.Right, sc, virtualRoot)
	case 5:
		sc.AddTransfer(EventT, gid, e, destX.Index)
		if err := dtl.backtrace(x, destX, sc, false); err != nil {
			return err
		}
		return dtl.backtrace(y, speciesNode, sc, false)
	case 6:
		sc.AddTransfer(EventT, gid, e, destY.Index)
		if err := dtl.backtrace(y, destY, sc, false); err != nil {
			return err
		}
		return dtl.backtrace(x, speciesNode, sc, false)
	default:
		sc.AddTransfer(EventTL, gid, e, destG.Index)
		return dtl.backtrace(g, destG, sc, virtualRoot)
	}
}
