package seqlike

import (
	"math"
	"strings"
	"testing"

	"github.com/evolbioinfo/goalign/align"
	"github.com/evolbioinfo/goalign/io/fasta"
	"github.com/op/go-logging"

	"bitbucket.org/dkoshel/jrecon/tree"
)

const smallDiff = 1e-9

func init() {
	logging.SetLevel(logging.ERROR, "seqlike")
}

func parseAlignment(tst *testing.T, fastaText string) align.Alignment {
	alignment, err := fasta.NewParser(strings.NewReader(fastaText)).Parse()
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	return alignment
}

func pairTree(tst *testing.T, length float64) *tree.GeneTree {
	gt := tree.NewGeneTree()
	tree.Connect(gt.NewTip("a"), gt.NewTip("b"), length)
	if err := gt.Validate(); err != nil {
		tst.Fatal("Error: ", err)
	}
	return gt
}

// pairSiteLikelihood is the closed-form JC69 likelihood of one site
// on a two-taxon tree.
func pairSiteLikelihood(match bool, d float64) float64 {
	e := math.Exp(-4 * d / 3)
	if match {
		return 0.25 * (0.25 + 0.75*e)
	}
	return 0.25 * (0.25 - 0.25*e)
}

func TestPairLikelihood(tst *testing.T) {
	d := 0.3
	gt := pairTree(tst, d)
	alignment := parseAlignment(tst, ">a\nACGTA\n>b\nACGTC\n")
	l, err := New(gt, alignment)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	L := l.Loglk()
	ref := 4*math.Log(pairSiteLikelihood(true, d)) + math.Log(pairSiteLikelihood(false, d))
	if math.Abs(L-ref) > smallDiff {
		tst.Errorf("expected %f, got %f", ref, L)
	}
}

func TestGapsAreNeutral(tst *testing.T) {
	d := 0.2
	gt := pairTree(tst, d)
	alignment := parseAlignment(tst, ">a\nA-\n>b\nAC\n")
	l, err := New(gt, alignment)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	L := l.Loglk()
	// a gap contributes a factor of 1/4 summed over states
	ref := math.Log(pairSiteLikelihood(true, d)) + math.Log(0.25)
	if math.Abs(L-ref) > smallDiff {
		tst.Errorf("expected %f, got %f", ref, L)
	}
}

func quartetTree(tst *testing.T) *tree.GeneTree {
	gt := tree.NewGeneTree()
	i1 := gt.NewInner()
	i2 := gt.NewInner()
	tree.Connect(i1.Next, gt.NewTip("a"), 0.1)
	tree.Connect(i1.Next.Next, gt.NewTip("b"), 0.2)
	tree.Connect(i2.Next, gt.NewTip("c"), 0.3)
	tree.Connect(i2.Next.Next, gt.NewTip("d"), 0.1)
	tree.Connect(i1, i2, 0.2)
	if err := gt.Validate(); err != nil {
		tst.Fatal("Error: ", err)
	}
	return gt
}

func TestIncrementalMatchesFull(tst *testing.T) {
	gt := quartetTree(tst)
	alignment := parseAlignment(tst, ">a\nACGTACGT\n>b\nACGTACGA\n>c\nACGAACGT\n>d\nACTTACGT\n")
	l, err := New(gt, alignment)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	first := l.Loglk()
	// partial invalidation must reproduce the full computation
	for _, node := range gt.Subnodes() {
		if !node.IsLeaf() {
			l.InvalidateCLV(node.Index)
			break
		}
	}
	if L := l.Loglk(); L != first {
		tst.Errorf("incremental recomputation drifted: %v != %v", L, first)
	}
	l.InvalidateAll()
	if L := l.Loglk(); L != first {
		tst.Errorf("full recomputation drifted: %v != %v", L, first)
	}
}

func TestMissingSequence(tst *testing.T) {
	gt := quartetTree(tst)
	alignment := parseAlignment(tst, ">a\nAC\n>b\nAC\n>c\nAC\n")
	if _, err := New(gt, alignment); err == nil {
		tst.Error("missing sequence accepted")
	}
}
