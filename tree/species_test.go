package tree

import (
	"testing"
)

func buildSpeciesABC(tst *testing.T) *SpeciesTree {
	st := NewSpeciesTree()
	a := st.NewLeaf("A")
	b := st.NewLeaf("B")
	c := st.NewLeaf("C")
	ab := st.NewInner("", a, b)
	root := st.NewInner("", ab, c)
	if err := st.SetRoot(root); err != nil {
		tst.Fatal("Error: ", err)
	}
	return st
}

func TestSpeciesPostOrder(tst *testing.T) {
	st := buildSpeciesABC(tst)
	seen := make(map[int]bool)
	for _, node := range st.PostOrder() {
		if !node.IsLeaf() {
			if !seen[node.Left.Index] || !seen[node.Right.Index] {
				tst.Errorf("node %d visited before its children", node.Index)
			}
		}
		seen[node.Index] = true
	}
	if len(st.PostOrder()) != 5 {
		tst.Errorf("expected 5 nodes, got %d", len(st.PostOrder()))
	}
	if st.PostOrder()[len(st.PostOrder())-1] != st.Root() {
		tst.Error("post order does not end at the root")
	}
}

func TestSpeciesAutoLabels(tst *testing.T) {
	st := buildSpeciesABC(tst)
	for _, node := range st.Nodes() {
		if node.Name == "" {
			tst.Errorf("node %d has no label", node.Index)
		}
	}
	if _, ok := st.LeafID("A"); !ok {
		tst.Error("leaf A not found")
	}
	if _, ok := st.LeafID("species_0"); ok {
		tst.Error("inner label reported as leaf")
	}
}

func TestSpeciesDuplicateLabel(tst *testing.T) {
	st := NewSpeciesTree()
	a := st.NewLeaf("A")
	b := st.NewLeaf("A")
	root := st.NewInner("", a, b)
	if err := st.SetRoot(root); err == nil {
		tst.Error("duplicate leaf label accepted")
	}
}

func TestSpeciesIsAncestor(tst *testing.T) {
	st := buildSpeciesABC(tst)
	aID, _ := st.LeafID("A")
	cID, _ := st.LeafID("C")
	a := st.Nodes()[aID]
	c := st.Nodes()[cID]
	root := st.Root()
	if !st.IsAncestor(root, a) {
		tst.Error("root should be an ancestor of A")
	}
	if !st.IsAncestor(a, a) {
		tst.Error("a node is its own ancestor for transfer exclusion")
	}
	if st.IsAncestor(c, a) {
		tst.Error("C is not an ancestor of A")
	}
	if !st.IsAncestor(a.Parent, a) {
		tst.Error("parent should be an ancestor")
	}
}
