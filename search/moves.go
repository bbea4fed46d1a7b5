package search

import (
	"fmt"

	"bitbucket.org/dkoshel/jrecon/tree"
)

// SPRMove prunes the subtree behind one inner subnode and regrafts it
// on another edge; Path lists the subnode indices walked between the
// two positions.
type SPRMove struct {
	PruneIndex   int
	RegraftIndex int
	Path         []int
}

func (m *SPRMove) String() string {
	return fmt.Sprintf("SPR(prune=%d, regraft=%d, radius=%d)", m.PruneIndex, m.RegraftIndex, len(m.Path))
}

// Rollback undoes one applied SPR move: the inverse topological edit
// plus re-invalidation of exactly the CLV set the move touched.
type Rollback struct {
	spr         *tree.SPRRollback
	invalidated []int
	geneRoot    *tree.GeneNode
}

// Apply performs the move on the joint tree: edit the topology, then
// mark the union of the CLVs affected around the old and the new
// location.
func (m *SPRMove) Apply(jt *JointTree) (*Rollback, error) {
	subnodes := jt.Genes.Subnodes()
	prune := subnodes[m.PruneIndex]
	regraft := subnodes[m.RegraftIndex]
	path := make([]*tree.GeneNode, len(m.Path))
	for i, idx := range m.Path {
		path[i] = subnodes[idx]
	}
	ids := tree.InvalidatedBy(prune, regraft, path)
	sprRollback, err := jt.Genes.ApplySPR(prune, regraft)
	if err != nil {
		return nil, err
	}
	// the back pointers moved: collect the post-move neighborhood too
	ids = unionIDs(ids, tree.InvalidatedBy(prune, regraft, path))
	rollback := &Rollback{
		spr:         sprRollback,
		invalidated: ids,
		geneRoot:    jt.Rec.Root(),
	}
	jt.invalidate(ids)
	return rollback, nil
}

// Apply undoes the move and re-invalidates the same CLV set, so the
// next evaluation recomputes exactly what the trial overwrote.
func (r *Rollback) Apply(jt *JointTree) error {
	if err := r.spr.Apply(jt.Genes); err != nil {
		return err
	}
	jt.invalidate(r.invalidated)
	jt.Rec.SetRoot(r.geneRoot)
	return nil
}

func unionIDs(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, ids := range [][]int{a, b} {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
