package phylio

import (
	"testing"

	"bitbucket.org/dkoshel/jrecon/tree"
)

func buildSpecies(tst *testing.T) *tree.SpeciesTree {
	st := tree.NewSpeciesTree()
	ab := st.NewInner("", st.NewLeaf("A"), st.NewLeaf("B"))
	cd := st.NewInner("", st.NewLeaf("C"), st.NewLeaf("D"))
	if err := st.SetRoot(st.NewInner("", ab, cd)); err != nil {
		tst.Fatal("Error: ", err)
	}
	return st
}

func TestPruneSpeciesTree(tst *testing.T) {
	st := buildSpecies(tst)
	pruned, err := PruneSpeciesTree(st, map[string]bool{"A": true, "C": true, "D": true})
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if pruned.NLeaves() != 3 {
		tst.Errorf("expected 3 leaves, got %d", pruned.NLeaves())
	}
	if _, ok := pruned.LeafID("B"); ok {
		tst.Error("pruned species still present")
	}
	// the unary ancestor of A is suppressed
	aID, _ := pruned.LeafID("A")
	a := pruned.Nodes()[aID]
	if !a.Parent.IsRoot() {
		tst.Error("expected A to attach directly under the root after pruning")
	}
}

func TestPruneSpeciesTreeTooSmall(tst *testing.T) {
	st := buildSpecies(tst)
	if _, err := PruneSpeciesTree(st, map[string]bool{"A": true}); err == nil {
		tst.Error("single-leaf pruning accepted")
	}
}
