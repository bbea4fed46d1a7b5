// Package phylio reads the inputs of a reconciliation run (Newick
// trees, gene-species mappings, alignments, family lists) and writes
// the per-family outputs.
package phylio

import (
	"fmt"
	"os"

	"github.com/evolbioinfo/gotree/io/utils"
	gotree "github.com/evolbioinfo/gotree/tree"
	"github.com/op/go-logging"

	"bitbucket.org/dkoshel/jrecon/tree"
)

var log = logging.MustGetLogger("phylio")

// defaultBranchLength replaces missing branch lengths in the input.
const defaultBranchLength = 0.1

func readFirstTree(path string) (*gotree.Tree, error) {
	f, reader, err := utils.GetReader(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var first *gotree.Tree
	for trees := range utils.ReadMultiTrees(reader, utils.FORMAT_NEWICK) {
		if trees.Err != nil {
			return nil, fmt.Errorf("parsing %s: %v", path, trees.Err)
		}
		if first == nil {
			first = trees.Tree
		}
	}
	if first == nil {
		return nil, fmt.Errorf("no tree in %s", path)
	}
	return first, nil
}

// ReadSpeciesTree reads a rooted binary Newick species tree.
func ReadSpeciesTree(path string) (*tree.SpeciesTree, error) {
	t, err := readFirstTree(path)
	if err != nil {
		return nil, err
	}
	root := t.Root()
	if len(root.Neigh()) != 2 {
		return nil, fmt.Errorf("species tree %s is not rooted", path)
	}
	st := tree.NewSpeciesTree()
	left, err := convertSpeciesRec(st, root.Neigh()[0], root)
	if err != nil {
		return nil, err
	}
	right, err := convertSpeciesRec(st, root.Neigh()[1], root)
	if err != nil {
		return nil, err
	}
	if err = st.SetRoot(st.NewInner(root.Name(), left, right)); err != nil {
		return nil, err
	}
	log.Debugf("species tree: %d nodes, %d leaves", st.NNodes(), st.NLeaves())
	return st, nil
}

func convertSpeciesRec(st *tree.SpeciesTree, node, prev *gotree.Node) (*tree.SpeciesNode, error) {
	if node.Tip() {
		return st.NewLeaf(node.Name()), nil
	}
	var children []*gotree.Node
	for _, n := range node.Neigh() {
		if n != prev {
			children = append(children, n)
		}
	}
	if len(children) != 2 {
		return nil, fmt.Errorf("species tree node %q is not binary (%d children)",
			node.Name(), len(children))
	}
	left, err := convertSpeciesRec(st, children[0], node)
	if err != nil {
		return nil, err
	}
	right, err := convertSpeciesRec(st, children[1], node)
	if err != nil {
		return nil, err
	}
	return st.NewInner(node.Name(), left, right), nil
}

// ReadGeneTree reads a Newick gene tree, rooted or not, into the
// half-edge representation. A bifurcating root is suppressed.
func ReadGeneTree(path string) (*tree.GeneTree, error) {
	t, err := readFirstTree(path)
	if err != nil {
		return nil, err
	}
	return ConvertGeneTree(t)
}

// ConvertGeneTree converts a gotree tree into the half-edge
// representation.
func ConvertGeneTree(t *gotree.Tree) (*tree.GeneTree, error) {
	gt := tree.NewGeneTree()
	root := t.Root()
	neigh := root.Neigh()
	edges := root.Edges()
	switch len(neigh) {
	case 2:
		// rooted input: suppress the root node
		left, err := convertGeneRec(gt, neigh[0], root)
		if err != nil {
			return nil, err
		}
		right, err := convertGeneRec(gt, neigh[1], root)
		if err != nil {
			return nil, err
		}
		tree.Connect(left, right, edgeLength(edges[0])+edgeLength(edges[1]))
		tree.SetSupport(left, edgeSupport(edges[0]))
		gt.SetRootEdge(left)
	case 3:
		inner := gt.NewInner()
		sub := inner
		for i, n := range neigh {
			child, err := convertGeneRec(gt, n, root)
			if err != nil {
				return nil, err
			}
			tree.Connect(sub, child, edgeLength(edges[i]))
			tree.SetSupport(sub, edgeSupport(edges[i]))
			sub = sub.Next
		}
	default:
		return nil, fmt.Errorf("gene tree root has %d neighbors", len(neigh))
	}
	if err := gt.Validate(); err != nil {
		return nil, err
	}
	log.Debugf("gene tree: %d tips, %d subnodes", gt.NTips(), gt.MaxID()+1)
	return gt, nil
}

func convertGeneRec(gt *tree.GeneTree, node, prev *gotree.Node) (*tree.GeneNode, error) {
	if node.Tip() {
		return gt.NewTip(node.Name()), nil
	}
	inner := gt.NewInner()
	sub := inner.Next
	for i, n := range node.Neigh() {
		if n == prev {
			continue
		}
		child, err := convertGeneRec(gt, n, node)
		if err != nil {
			return nil, err
		}
		tree.Connect(sub, child, edgeLength(node.Edges()[i]))
		tree.SetSupport(sub, edgeSupport(node.Edges()[i]))
		sub = sub.Next
	}
	if sub != inner {
		return nil, fmt.Errorf("gene tree node %q is not binary", node.Name())
	}
	return inner, nil
}

func edgeLength(e *gotree.Edge) float64 {
	if e == nil || e.Length() < 0 {
		return defaultBranchLength
	}
	return e.Length()
}

func edgeSupport(e *gotree.Edge) float64 {
	if e == nil || e.Support() < 0 {
		return 0
	}
	return e.Support()
}

// PruneSpeciesTree builds a new species tree restricted to the given
// leaf labels; inner nodes with a single remaining child are
// suppressed.
func PruneSpeciesTree(st *tree.SpeciesTree, keep map[string]bool) (*tree.SpeciesTree, error) {
	pruned := tree.NewSpeciesTree()
	root := pruneRec(pruned, st.Root(), keep)
	if root == nil || root.IsLeaf() {
		return nil, fmt.Errorf("pruned species tree has fewer than two leaves")
	}
	if err := pruned.SetRoot(root); err != nil {
		return nil, err
	}
	log.Debugf("pruned species tree: %d of %d leaves kept", pruned.NLeaves(), st.NLeaves())
	return pruned, nil
}

func pruneRec(pruned *tree.SpeciesTree, node *tree.SpeciesNode, keep map[string]bool) *tree.SpeciesNode {
	if node.IsLeaf() {
		if keep[node.Name] {
			return pruned.NewLeaf(node.Name)
		}
		return nil
	}
	left := pruneRec(pruned, node.Left, keep)
	right := pruneRec(pruned, node.Right, keep)
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return pruned.NewInner(node.Name, left, right)
}

// WriteFile writes a string to a file, used for tree outputs.
func WriteFile(path, content string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content + "\n")
	return err
}
