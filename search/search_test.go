package search

import (
	"math"
	"testing"

	"github.com/op/go-logging"

	"bitbucket.org/dkoshel/jrecon/recon"
	"bitbucket.org/dkoshel/jrecon/tree"
)

const smallDiff = 1e-9

func init() {
	logging.SetLevel(logging.ERROR, "search")
	logging.SetLevel(logging.ERROR, "recon")
	logging.SetLevel(logging.ERROR, "optimize")
}

// balancedSpecies builds a balanced rooted species tree over the
// given labels (length a power of two).
func balancedSpecies(tst testing.TB, labels []string) *tree.SpeciesTree {
	st := tree.NewSpeciesTree()
	var build func(names []string) *tree.SpeciesNode
	build = func(names []string) *tree.SpeciesNode {
		if len(names) == 1 {
			return st.NewLeaf(names[0])
		}
		half := len(names) / 2
		return st.NewInner("", build(names[:half]), build(names[half:]))
	}
	if err := st.SetRoot(build(labels)); err != nil {
		tst.Fatal("Error: ", err)
	}
	return st
}

// balancedGene builds an unrooted gene tree matching a balanced
// species topology: the two halves joined by a central edge.
func balancedGene(tst testing.TB, labels []string) *tree.GeneTree {
	gt := tree.NewGeneTree()
	var build func(names []string) *tree.GeneNode
	build = func(names []string) *tree.GeneNode {
		if len(names) == 1 {
			return gt.NewTip(names[0])
		}
		half := len(names) / 2
		inner := gt.NewInner()
		tree.Connect(inner.Next, build(names[:half]), 0.1)
		tree.Connect(inner.Next.Next, build(names[half:]), 0.1)
		return inner
	}
	half := len(labels) / 2
	tree.Connect(build(labels[:half]), build(labels[half:]), 0.1)
	if err := gt.Validate(); err != nil {
		tst.Fatal("Error: ", err)
	}
	return gt
}

func labels(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = string(rune('A' + i))
	}
	return names
}

func identityMapping(names []string) map[string]string {
	m := make(map[string]string, len(names))
	for _, name := range names {
		m[name] = name
	}
	return m
}

func newTestJointTree(tst testing.TB, n int) *JointTree {
	names := labels(n)
	st := balancedSpecies(tst, names)
	gt := balancedGene(tst, names)
	ev, err := recon.NewEvaluator(st, gt, identityMapping(names), recon.Options{Model: recon.UndatedDL})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	jt := NewJointTree(gt, ev, nil, 1)
	if err = jt.SetRates(0.15, 0.1, 0); err != nil {
		tst.Fatal("Error: ", err)
	}
	return jt
}

/*** NNI de-duplication ***/

func TestNNIDeduplication(tst *testing.T) {
	jt := newTestJointTree(tst, 8)
	moves := collectMoves(jt, 1)
	// an unrooted binary tree with n tips has n-3 internal edges and
	// two distinct NNIs per internal edge
	expected := 2 * (8 - 3)
	if len(moves) != expected {
		tst.Errorf("expected %d radius-1 moves, got %d", expected, len(moves))
	}
}

/*** S6 and P7: rollback round trip ***/

func TestSPRRoundTrip(tst *testing.T) {
	jt := newTestJointTree(tst, 16)
	hashBefore := jt.Genes.UnrootedHash()
	llBefore := jt.ComputeJointLoglk()

	moves := collectMoves(jt, 1)
	if len(moves) == 0 {
		tst.Fatal("no NNI moves found")
	}
	move := moves[0]
	if err := jt.ApplyMove(move); err != nil {
		tst.Fatal("Error: ", err)
	}
	if jt.Genes.UnrootedHash() == hashBefore {
		tst.Error("move did not change the tree")
	}
	jt.ComputeJointLoglk()
	if err := jt.RollbackLastMove(); err != nil {
		tst.Fatal("Error: ", err)
	}
	if jt.Genes.UnrootedHash() != hashBefore {
		tst.Error("rollback did not restore the tree hash")
	}
	llAfter := jt.ComputeJointLoglk()
	if llAfter != llBefore {
		tst.Errorf("rollback changed the log-likelihood: %v != %v", llAfter, llBefore)
	}
}

func TestRollbackRoundTripAllMoves(tst *testing.T) {
	jt := newTestJointTree(tst, 8)
	llBefore := jt.ComputeJointLoglk()
	hashBefore := jt.Genes.UnrootedHash()
	for _, move := range collectMoves(jt, 2) {
		if err := jt.ApplyMove(move); err != nil {
			tst.Fatal("Error: ", err)
		}
		jt.ComputeJointLoglk()
		if err := jt.RollbackLastMove(); err != nil {
			tst.Fatal("Error: ", err)
		}
		if jt.Genes.UnrootedHash() != hashBefore {
			tst.Fatalf("move %v: hash not restored", move)
		}
		if ll := jt.ComputeJointLoglk(); math.Abs(ll-llBefore) > smallDiff {
			tst.Fatalf("move %v: log-likelihood drifted: %v != %v", move, ll, llBefore)
		}
	}
}

/*** P8: monotone improvement ***/

func TestMonotoneImprovement(tst *testing.T) {
	names := labels(8)
	st := balancedSpecies(tst, names)
	// a shuffled gene tree leaves room for improvement
	shuffled := []string{"A", "E", "C", "G", "B", "F", "D", "H"}
	gt := balancedGene(tst, shuffled)
	ev, err := recon.NewEvaluator(st, gt, identityMapping(names), recon.Options{Model: recon.UndatedDL})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	jt := NewJointTree(gt, ev, nil, 1)
	if err = jt.SetRates(0.15, 0.1, 0); err != nil {
		tst.Fatal("Error: ", err)
	}

	bestLoglk := jt.ComputeJointLoglk()
	for {
		ll, improved, err := ApplySPRRound(jt, 1, bestLoglk)
		if err != nil {
			tst.Fatal("Error: ", err)
		}
		if !improved {
			break
		}
		if ll <= bestLoglk {
			tst.Fatalf("accepted move did not improve: %v <= %v", ll, bestLoglk)
		}
		bestLoglk = ll
	}
}

/*** full search on a scrambled tree ***/

func TestSPRSearchImproves(tst *testing.T) {
	names := labels(8)
	st := balancedSpecies(tst, names)
	shuffled := []string{"A", "E", "C", "G", "B", "F", "D", "H"}
	gt := balancedGene(tst, shuffled)
	ev, err := recon.NewEvaluator(st, gt, identityMapping(names), recon.Options{Model: recon.UndatedDL})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	jt := NewJointTree(gt, ev, nil, 1)
	if err = jt.SetRates(0.15, 0.1, 0); err != nil {
		tst.Fatal("Error: ", err)
	}
	start := jt.ComputeJointLoglk()
	searcher := &SPRSearch{JointTree: jt, MaxRadius: 3, RatesMethod: "none"}
	final, err := searcher.Run()
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if final < start {
		tst.Errorf("search decreased the joint log-likelihood: %v -> %v", start, final)
	}
	if final <= start+smallDiff {
		tst.Error("search found no improvement on a scrambled tree")
	}
}

/*** rate optimization ***/

func TestOptimizeRatesSimplex(tst *testing.T) {
	jt := newTestJointTree(tst, 8)
	before := jt.Rec.Evaluate()
	if err := jt.OptimizeRates("simplex", 200); err != nil {
		tst.Fatal("Error: ", err)
	}
	after := jt.Rec.Evaluate()
	if after+smallDiff < before {
		tst.Errorf("rate optimization decreased the likelihood: %v -> %v", before, after)
	}
}
