package tree

import (
	"testing"
)

// buildQuartet builds the unrooted tree ((a,b),(c,d)) with unit
// branch lengths.
func buildQuartet(tst *testing.T) *GeneTree {
	gt := NewGeneTree()
	i1 := gt.NewInner()
	i2 := gt.NewInner()
	a := gt.NewTip("a")
	b := gt.NewTip("b")
	c := gt.NewTip("c")
	d := gt.NewTip("d")
	Connect(i1.Next, a, 1)
	Connect(i1.Next.Next, b, 1)
	Connect(i2.Next, c, 1)
	Connect(i2.Next.Next, d, 1)
	Connect(i1, i2, 1)
	if err := gt.Validate(); err != nil {
		tst.Fatal("Error: ", err)
	}
	return gt
}

// buildSixTips builds ((a,b),(c,d),(e,f)) around a central inner
// node.
func buildSixTips(tst *testing.T) *GeneTree {
	gt := NewGeneTree()
	center := gt.NewInner()
	pairs := [][2]string{{"a", "b"}, {"c", "d"}, {"e", "f"}}
	sub := center
	for _, pair := range pairs {
		i := gt.NewInner()
		Connect(i.Next, gt.NewTip(pair[0]), 1)
		Connect(i.Next.Next, gt.NewTip(pair[1]), 1)
		Connect(sub, i, 1)
		sub = sub.Next
	}
	if err := gt.Validate(); err != nil {
		tst.Fatal("Error: ", err)
	}
	return gt
}

func TestGeneCandidateRoots(tst *testing.T) {
	gt := buildQuartet(tst)
	// an unrooted binary tree with n tips has 2n-3 edges
	roots := gt.CandidateRoots()
	if len(roots) != 5 {
		tst.Errorf("expected 5 root candidates, got %d", len(roots))
	}
	seen := make(map[int]bool)
	for _, r := range roots {
		if seen[r.Index] || seen[r.Back.Index] {
			tst.Error("duplicate edge in candidate roots")
		}
		seen[r.Index] = true
		seen[r.Back.Index] = true
	}
}

func TestVirtualRoot(tst *testing.T) {
	gt := buildQuartet(tst)
	root := gt.CandidateRoots()[0]
	v := gt.VirtualRoot(root)
	if v.Index != root.Index+gt.MaxID()+1 {
		tst.Error("virtual root index not in the second half of the table")
	}
	if Left(v, true) != root || Right(v, true) != root.Back {
		tst.Error("virtual root children should be the root edge ends")
	}
	if v.IsLeaf() {
		tst.Error("virtual root must not be a leaf")
	}
}

func TestUnrootedHashInvariance(tst *testing.T) {
	gt1 := buildQuartet(tst)
	gt2 := buildQuartet(tst)
	if gt1.UnrootedHash() != gt2.UnrootedHash() {
		tst.Error("identical topologies hash differently")
	}
}

func TestSPRRollback(tst *testing.T) {
	gt := buildSixTips(tst)
	before := gt.UnrootedHash()

	var prune *GeneNode
	for _, node := range gt.Subnodes() {
		if !node.IsLeaf() && !node.Back.IsLeaf() {
			prune = node
			break
		}
	}
	// regraft on a leaf edge of the remaining tree, two steps away
	// from the prune position
	var regraft *GeneNode
	for _, node := range gt.Subnodes() {
		if node.Name == "c" {
			regraft = node
			break
		}
	}
	if SPRYieldsSameTree(prune, regraft) {
		tst.Fatal("chosen regraft is degenerate")
	}

	lengths := make(map[int]float64)
	for _, node := range gt.Subnodes() {
		lengths[node.Index] = node.Length
	}

	rollback, err := gt.ApplySPR(prune, regraft)
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if err = gt.Validate(); err != nil {
		tst.Fatal("tree broken after SPR: ", err)
	}
	if gt.UnrootedHash() == before {
		tst.Error("SPR move did not change the topology")
	}
	if err = rollback.Apply(gt); err != nil {
		tst.Fatal("Error: ", err)
	}
	if err = gt.Validate(); err != nil {
		tst.Fatal("tree broken after rollback: ", err)
	}
	if gt.UnrootedHash() != before {
		tst.Error("rollback did not restore the topology")
	}
	for _, node := range gt.Subnodes() {
		if lengths[node.Index] != node.Length {
			tst.Errorf("branch length of subnode %d not restored", node.Index)
		}
	}
}

func TestSPRYieldsSameTree(tst *testing.T) {
	gt := buildQuartet(tst)
	var prune *GeneNode
	for _, node := range gt.Subnodes() {
		if !node.IsLeaf() {
			prune = node
			break
		}
	}
	for _, regraft := range []*GeneNode{prune, prune.Next, prune.Back, prune.Next.Back} {
		if _, err := gt.ApplySPR(prune, regraft); err == nil {
			tst.Error("degenerate SPR move accepted")
		}
	}
}
