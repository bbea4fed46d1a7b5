package search

import (
	"math"

	"bitbucket.org/dkoshel/jrecon/tree"
)

// numericalTolerance flags disagreement between the predicted and the
// recomputed joint likelihood after a committed move, the symptom of
// a CLV invalidation bug.
const numericalTolerance = 0.01

// sprMoveDesc is a candidate move before validation.
type sprMoveDesc struct {
	pruneIndex   int
	regraftIndex int
	path         []int
}

// allPruneIndices returns every inner subnode index.
func allPruneIndices(genes *tree.GeneTree) (indices []int) {
	for _, node := range genes.Subnodes() {
		if !node.IsLeaf() {
			indices = append(indices, node.Index)
		}
	}
	return
}

func getRegraftsRec(pruneIndex int, regraft *tree.GeneNode, maxRadius int,
	supportThreshold float64, path []int, moves *[]sprMoveDesc) {
	if supportThreshold >= 0 && regraft.Support > supportThreshold {
		return
	}
	if len(path) > 0 {
		pathCopy := make([]int, len(path))
		copy(pathCopy, path)
		*moves = append(*moves, sprMoveDesc{pruneIndex, regraft.Index, pathCopy})
	}
	if len(path) < maxRadius && !regraft.IsLeaf() {
		path = append(path, regraft.Index)
		getRegraftsRec(pruneIndex, regraft.Next.Back, maxRadius, supportThreshold, path, moves)
		getRegraftsRec(pruneIndex, regraft.Next.Next.Back, maxRadius, supportThreshold, path, moves)
	}
}

func getRegrafts(jt *JointTree, pruneIndex, maxRadius int, moves *[]sprMoveDesc) {
	prune := jt.Genes.Subnodes()[pruneIndex]
	getRegraftsRec(pruneIndex, prune.Next.Back, maxRadius, jt.SupportThreshold, nil, moves)
	getRegraftsRec(pruneIndex, prune.Next.Next.Back, maxRadius, jt.SupportThreshold, nil, moves)
}

// collectMoves enumerates the valid SPR moves within the radius and
// de-duplicates radius-1 moves: the path enumerator emits every NNI
// twice, once per traversal direction.
func collectMoves(jt *JointTree, radius int) []*SPRMove {
	var potential []sprMoveDesc
	for _, pruneIndex := range allPruneIndices(jt.Genes) {
		getRegrafts(jt, pruneIndex, radius, &potential)
	}
	subnodes := jt.Genes.Subnodes()
	redundantNNI := make(map[[2]int]bool)
	var moves []*SPRMove
	for _, desc := range potential {
		prune := subnodes[desc.pruneIndex]
		regraft := subnodes[desc.regraftIndex]
		if tree.SPRYieldsSameTree(prune, regraft) {
			continue
		}
		if len(desc.path) == 1 {
			nniEdge := subnodes[desc.path[0]]
			isPruneNext := nniEdge.Back.Next.Index == desc.pruneIndex
			isRegraftNext := nniEdge.Next.Back.Index == desc.regraftIndex
			nniType := 0
			if isPruneNext == isRegraftNext {
				nniType = 1
			}
			nniBranchIndex := nniEdge.Index
			if nniEdge.Back.Index < nniBranchIndex {
				nniBranchIndex = nniEdge.Back.Index
			}
			key := [2]int{nniBranchIndex, nniType}
			if redundantNNI[key] {
				continue
			}
			redundantNNI[key] = true
		}
		moves = append(moves, &SPRMove{desc.pruneIndex, desc.regraftIndex, desc.path})
	}
	return moves
}

// findBestMove scores every candidate by applying it, evaluating the
// joint likelihood and rolling back. It returns the best strict
// improvement over bestLoglk, or nil.
func findBestMove(jt *JointTree, moves []*SPRMove, bestLoglk float64) (*SPRMove, float64, error) {
	var best *SPRMove
	bestLL := bestLoglk
	for _, move := range moves {
		if err := jt.ApplyMove(move); err != nil {
			return nil, 0, err
		}
		ll := jt.ComputeJointLoglk()
		if err := jt.RollbackLastMove(); err != nil {
			return nil, 0, err
		}
		if ll > bestLL {
			bestLL = ll
			best = move
		}
	}
	return best, bestLL, nil
}

// ApplySPRRound explores all moves within the radius and commits the
// best improving one. It returns the (possibly improved) likelihood
// and whether a move was committed.
func ApplySPRRound(jt *JointTree, radius int, bestLoglk float64) (float64, bool, error) {
	moves := collectMoves(jt, radius)
	log.Infof("SPR round (hash=%d, best ll=%f, radius=%d, possible moves: %d)",
		jt.Genes.UnrootedHash(), bestLoglk, radius, len(moves))
	best, predicted, err := findBestMove(jt, moves, bestLoglk)
	if err != nil {
		return bestLoglk, false, err
	}
	if best == nil {
		return bestLoglk, false, nil
	}
	if err := jt.ApplyMove(best); err != nil {
		return bestLoglk, false, err
	}
	ll := jt.ComputeJointLoglk()
	if math.Abs(ll-predicted) > numericalTolerance {
		log.Warningf("potential numerical issue: committed move predicted %f, recomputed %f", predicted, ll)
	}
	return ll, true, nil
}

// SPRSearch runs rounds of increasing radius, re-optimizing the DTL
// rates between radius changes, until no move improves the joint
// likelihood.
type SPRSearch struct {
	JointTree *JointTree
	// MaxRadius bounds the SPR path length; the schedule widens
	// the radius once the smaller one is exhausted.
	MaxRadius int
	// RatesMethod is lbfgsb, simplex or none.
	RatesMethod string
	// RatesIterations bounds each simplex rate optimization; the
	// LBFGS-B optimizer does not use it.
	RatesIterations int
	// OnImprovement is called after each committed move.
	OnImprovement func(ll float64)
}

func (s *SPRSearch) radiusSchedule() []int {
	schedule := []int{1, 1, 2, 3, 5}
	var out []int
	for _, r := range schedule {
		if r <= s.MaxRadius {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		out = []int{1}
	}
	return out
}

// Run performs the full search and returns the final joint
// log-likelihood.
func (s *SPRSearch) Run() (float64, error) {
	jt := s.JointTree
	bestLoglk := jt.ComputeJointLoglk()
	log.Noticef("starting SPR search, joint ll=%f", bestLoglk)
	for i, radius := range s.radiusSchedule() {
		if i > 0 && s.RatesMethod != "none" {
			if err := jt.OptimizeRates(s.RatesMethod, s.RatesIterations); err != nil {
				return bestLoglk, err
			}
			bestLoglk = jt.ComputeJointLoglk()
		}
		for {
			ll, improved, err := ApplySPRRound(jt, radius, bestLoglk)
			if err != nil {
				return bestLoglk, err
			}
			if !improved {
				break
			}
			bestLoglk = ll
			if s.OnImprovement != nil {
				s.OnImprovement(ll)
			}
		}
	}
	log.Noticef("SPR search finished, joint ll=%f", bestLoglk)
	return bestLoglk, nil
}
