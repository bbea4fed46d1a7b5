// Package seqlike computes the Felsenstein sequence log-likelihood of
// the gene tree under the JC69 substitution model. It keeps one
// conditional likelihood vector per directed half-edge with the same
// invalidation discipline as the reconciliation evaluator, so SPR
// moves refresh only the affected subtrees.
package seqlike

import (
	"fmt"
	"math"

	"github.com/evolbioinfo/goalign/align"
	"github.com/op/go-logging"

	"bitbucket.org/dkoshel/jrecon/tree"
)

var log = logging.MustGetLogger("seqlike")

const (
	nStates = 4
	gap     = byte(nStates)
	// clvScale rescues per-site partials from underflow on deep trees
	clvScale    = 1e-256
	logCLVScale = -256 * math.Ln10
)

var stateTable = map[rune]byte{
	'A': 0, 'a': 0,
	'C': 1, 'c': 1,
	'G': 2, 'g': 2,
	'T': 3, 't': 3,
	'U': 3, 'u': 3,
}

// JC69 evaluates the sequence likelihood of a gene tree.
type JC69 struct {
	genes  *tree.GeneTree
	seqs   map[string][]byte
	nSites int

	// clv[subnode][site*4+state], scales[subnode][site] counts the
	// clvScale multiplications applied below the subnode
	clv    [][]float64
	scales [][]int32

	isCLVUpdated []bool
	invalidated  map[int]bool
}

// New builds an evaluator for a gene tree and its alignment. Every
// gene leaf needs a sequence.
func New(genes *tree.GeneTree, alignment align.Alignment) (*JC69, error) {
	l := &JC69{
		genes:        genes,
		seqs:         make(map[string][]byte),
		nSites:       alignment.Length(),
		clv:          make([][]float64, genes.MaxID()+1),
		scales:       make([][]int32, genes.MaxID()+1),
		isCLVUpdated: make([]bool, genes.MaxID()+1),
		invalidated:  make(map[int]bool),
	}
	alignment.IterateChar(func(name string, sequence []uint8) bool {
		encoded := make([]byte, len(sequence))
		for i, c := range sequence {
			state, ok := stateTable[rune(c)]
			if !ok {
				state = gap
			}
			encoded[i] = state
		}
		l.seqs[name] = encoded
		return false
	})
	for _, leaf := range genes.Leaves() {
		if _, ok := l.seqs[leaf.Name]; !ok {
			return nil, fmt.Errorf("no sequence for gene leaf %q", leaf.Name)
		}
	}
	log.Debugf("alignment: %d sequences, %d sites", len(l.seqs), l.nSites)
	return l, nil
}

// InvalidateCLV marks one directed gene node stale.
func (l *JC69) InvalidateCLV(nodeIndex int) {
	l.invalidated[nodeIndex] = true
}

// InvalidateAll marks every CLV stale.
func (l *JC69) InvalidateAll() {
	for i := range l.isCLVUpdated {
		l.isCLVUpdated[i] = false
	}
	l.invalidated = make(map[int]bool)
}

func (l *JC69) markInvalidated() {
	subnodes := l.genes.Subnodes()
	for idx := range l.invalidated {
		l.markInvalidatedRec(subnodes[idx])
	}
	l.invalidated = make(map[int]bool)
}

func (l *JC69) markInvalidatedRec(node *tree.GeneNode) {
	l.isCLVUpdated[node.Index] = false
	if !node.Back.IsLeaf() {
		l.markInvalidatedRec(node.Back.Next)
		l.markInvalidatedRec(node.Back.Next.Next)
	}
}

// transitionProbability returns the JC69 probability of state change
// (or conservation) over branch length d.
func transitionProbability(same bool, d float64) float64 {
	e := math.Exp(-4 * d / 3)
	if same {
		return 0.25 + 0.75*e
	}
	return 0.25 - 0.25*e
}

func (l *JC69) updateCLVsRec(node *tree.GeneNode) {
	if l.isCLVUpdated[node.Index] {
		return
	}
	if !node.IsLeaf() {
		l.updateCLVsRec(node.Next.Back)
		l.updateCLVsRec(node.Next.Next.Back)
	}
	l.updateCLV(node)
	l.isCLVUpdated[node.Index] = true
}

func (l *JC69) updateCLV(node *tree.GeneNode) {
	if l.clv[node.Index] == nil {
		l.clv[node.Index] = make([]float64, l.nSites*nStates)
		l.scales[node.Index] = make([]int32, l.nSites)
	}
	clv := l.clv[node.Index]
	scales := l.scales[node.Index]
	if node.IsLeaf() {
		seq := l.seqs[node.Name]
		for site := 0; site < l.nSites; site++ {
			state := seq[site]
			for s := 0; s < nStates; s++ {
				if state == gap || byte(s) == state {
					clv[site*nStates+s] = 1
				} else {
					clv[site*nStates+s] = 0
				}
			}
			scales[site] = 0
		}
		return
	}
	left := node.Next.Back
	right := node.Next.Next.Back
	leftCLV := l.clv[left.Index]
	rightCLV := l.clv[right.Index]
	leftScales := l.scales[left.Index]
	rightScales := l.scales[right.Index]
	leftSame := transitionProbability(true, left.Length)
	leftDiff := transitionProbability(false, left.Length)
	rightSame := transitionProbability(true, right.Length)
	rightDiff := transitionProbability(false, right.Length)
	for site := 0; site < l.nSites; site++ {
		var leftSum, rightSum float64
		for s := 0; s < nStates; s++ {
			leftSum += leftCLV[site*nStates+s]
			rightSum += rightCLV[site*nStates+s]
		}
		maxPartial := 0.0
		for s := 0; s < nStates; s++ {
			lv := leftDiff*leftSum + (leftSame-leftDiff)*leftCLV[site*nStates+s]
			rv := rightDiff*rightSum + (rightSame-rightDiff)*rightCLV[site*nStates+s]
			p := lv * rv
			clv[site*nStates+s] = p
			if p > maxPartial {
				maxPartial = p
			}
		}
		scales[site] = leftScales[site] + rightScales[site]
		if maxPartial > 0 && maxPartial < clvScale {
			for s := 0; s < nStates; s++ {
				clv[site*nStates+s] /= clvScale
			}
			scales[site]++
		}
	}
}

// Loglk returns the sequence log-likelihood, recomputing only stale
// CLVs. The likelihood does not depend on the rooting under a
// reversible model; the first candidate root orients the traversal.
func (l *JC69) Loglk() float64 {
	l.markInvalidated()
	root := l.genes.CandidateRoots()[0]
	l.updateCLVsRec(root)
	l.updateCLVsRec(root.Back)
	same := transitionProbability(true, root.Length)
	diff := transitionProbability(false, root.Length)
	rootCLV := l.clv[root.Index]
	backCLV := l.clv[root.Back.Index]
	rootScales := l.scales[root.Index]
	backScales := l.scales[root.Back.Index]
	lnL := 0.0
	for site := 0; site < l.nSites; site++ {
		var backSum float64
		for s := 0; s < nStates; s++ {
			backSum += backCLV[site*nStates+s]
		}
		res := 0.0
		for s := 0; s < nStates; s++ {
			other := diff*backSum + (same-diff)*backCLV[site*nStates+s]
			res += 0.25 * rootCLV[site*nStates+s] * other
		}
		lnL += math.Log(res) + float64(rootScales[site]+backScales[site])*logCLVScale
	}
	if math.IsNaN(lnL) {
		lnL = math.Inf(-1)
	}
	return lnL
}
