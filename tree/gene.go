package tree

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
)

// GeneNode is a directed half-edge ("subnode") of the unrooted gene
// tree. A leaf is a single subnode; an inner node is a round of three
// subnodes linked by Next. Back points to a subnode of the adjacent
// node. Indices are stable for the lifetime of the tree; topological
// edits rewire Back pointers only.
type GeneNode struct {
	Index   int
	Name    string
	Next    *GeneNode
	Back    *GeneNode
	Length  float64
	Support float64
}

// IsLeaf returns true for a leaf subnode.
func (node *GeneNode) IsLeaf() bool {
	return node.Next == nil
}

// GeneTree is an unrooted binary tree over directed half-edges.
type GeneTree struct {
	nodes    []*GeneNode
	tips     int
	inner    int
	rootEdge *GeneNode
}

// SetRootEdge remembers the edge carrying the root of a rooted input
// tree; nil for unrooted inputs.
func (tree *GeneTree) SetRootEdge(node *GeneNode) {
	tree.rootEdge = node
}

// RootEdge returns the remembered root edge, or nil.
func (tree *GeneTree) RootEdge() *GeneNode {
	return tree.rootEdge
}

// NewGeneTree creates an empty gene tree; populate with NewTip and
// NewInner, wire with Connect.
func NewGeneTree() *GeneTree {
	return &GeneTree{}
}

// NewTip adds a leaf subnode with the given label.
func (tree *GeneTree) NewTip(name string) *GeneNode {
	node := &GeneNode{Index: len(tree.nodes), Name: name}
	tree.nodes = append(tree.nodes, node)
	tree.tips++
	return node
}

// NewInner adds an inner node as a round of three subnodes with
// contiguous indices and returns the first of them.
func (tree *GeneTree) NewInner() *GeneNode {
	a := &GeneNode{Index: len(tree.nodes)}
	b := &GeneNode{Index: len(tree.nodes) + 1}
	c := &GeneNode{Index: len(tree.nodes) + 2}
	a.Next, b.Next, c.Next = b, c, a
	tree.nodes = append(tree.nodes, a, b, c)
	tree.inner++
	return a
}

// Connect wires two subnodes into an undirected edge of the given
// length.
func Connect(a, b *GeneNode, length float64) {
	a.Back = b
	b.Back = a
	a.Length = length
	b.Length = length
}

// SetLength updates the length of the edge node-node.Back.
func SetLength(node *GeneNode, length float64) {
	node.Length = length
	node.Back.Length = length
}

// SetSupport updates the support value of the edge node-node.Back.
func SetSupport(node *GeneNode, support float64) {
	node.Support = support
	node.Back.Support = support
}

// Validate checks that every subnode is wired.
func (tree *GeneTree) Validate() error {
	for _, node := range tree.nodes {
		if node.Back == nil {
			return fmt.Errorf("gene subnode %d has no back pointer", node.Index)
		}
		if node.Back.Back != node {
			return fmt.Errorf("gene subnode %d has asymmetric back pointer", node.Index)
		}
	}
	if tree.tips < 3 && tree.inner > 0 {
		return fmt.Errorf("gene tree with %d tips cannot be unrooted binary", tree.tips)
	}
	return nil
}

// Subnodes returns all directed half-edges indexed by GeneNode.Index.
func (tree *GeneTree) Subnodes() []*GeneNode {
	return tree.nodes
}

// MaxID returns the largest subnode index.
func (tree *GeneTree) MaxID() int {
	return len(tree.nodes) - 1
}

// NTips returns the leaf count.
func (tree *GeneTree) NTips() int {
	return tree.tips
}

// NInner returns the inner-node count (rounds, not subnodes).
func (tree *GeneTree) NInner() int {
	return tree.inner
}

// Leaves returns all leaf subnodes.
func (tree *GeneTree) Leaves() (leaves []*GeneNode) {
	for _, node := range tree.nodes {
		if node.IsLeaf() {
			leaves = append(leaves, node)
		}
	}
	return
}

// CandidateRoots returns one directed subnode per undirected edge;
// placing a virtual root on each of them enumerates every possible
// rooting of the tree.
func (tree *GeneTree) CandidateRoots() (roots []*GeneNode) {
	marked := make([]bool, len(tree.nodes))
	for _, node := range tree.nodes {
		if marked[node.Index] || marked[node.Back.Index] {
			continue
		}
		roots = append(roots, node.Back)
		marked[node.Index] = true
	}
	return
}

// VirtualRoot returns an ephemeral subnode representing a root placed
// on the edge root-root.Back. It is not part of the tree; its index
// lives in the second half of the CLV table.
func (tree *GeneTree) VirtualRoot(root *GeneNode) *GeneNode {
	return &GeneNode{Index: root.Index + tree.MaxID() + 1, Next: root}
}

// Left returns the left child subnode under the current orientation.
// For a virtual root the left child is the root edge itself.
func Left(node *GeneNode, virtualRoot bool) *GeneNode {
	if virtualRoot {
		return node.Next
	}
	return node.Next.Back
}

// Right returns the right child subnode under the current orientation.
func Right(node *GeneNode, virtualRoot bool) *GeneNode {
	if virtualRoot {
		return node.Next.Back
	}
	return node.Next.Next.Back
}

// SPRRollback records the inverse of an applied SPR move together
// with the original branch lengths.
type SPRRollback struct {
	Prune   *GeneNode
	Regraft *GeneNode // first detached neighbor; regraft edge of the inverse move
	b2      *GeneNode
	r       *GeneNode
	rb      *GeneNode
	lenB1   float64
	lenB2   float64
	lenR    float64
}

// SPRYieldsSameTree returns true when regrafting prune at regraft
// would not change the topology.
func SPRYieldsSameTree(prune, regraft *GeneNode) bool {
	return regraft == prune || regraft == prune.Next || regraft == prune.Next.Next ||
		regraft == prune.Back || regraft == prune.Next.Back || regraft == prune.Next.Next.Back
}

// ApplySPR prunes the subtree hanging behind prune (an inner subnode)
// and regrafts it on the edge regraft-regraft.Back. It returns the
// rollback record undoing the move.
func (tree *GeneTree) ApplySPR(prune, regraft *GeneNode) (*SPRRollback, error) {
	if prune.IsLeaf() {
		return nil, fmt.Errorf("prune subnode %d is a leaf", prune.Index)
	}
	if SPRYieldsSameTree(prune, regraft) {
		return nil, fmt.Errorf("regraft %d yields the same tree for prune %d", regraft.Index, prune.Index)
	}
	b1 := prune.Next.Back
	b2 := prune.Next.Next.Back
	r := regraft
	rb := regraft.Back
	rollback := &SPRRollback{
		Prune:   prune,
		Regraft: b1,
		b2:      b2,
		r:       r,
		rb:      rb,
		lenB1:   prune.Next.Length,
		lenB2:   prune.Next.Next.Length,
		lenR:    r.Length,
	}
	// detach the prune round, joining its two neighbors
	joined := rollback.lenB1 + rollback.lenB2
	b1.Back = b2
	b2.Back = b1
	b1.Length = joined
	b2.Length = joined
	// split the regraft edge around the prune round
	prune.Next.Back = r
	r.Back = prune.Next
	prune.Next.Next.Back = rb
	rb.Back = prune.Next.Next
	half := rollback.lenR / 2
	prune.Next.Length = half
	r.Length = half
	prune.Next.Next.Length = half
	rb.Length = half
	return rollback, nil
}

// Apply undoes the recorded move and restores the original branch
// lengths exactly.
func (rollback *SPRRollback) Apply(tree *GeneTree) error {
	if _, err := tree.ApplySPR(rollback.Prune, rollback.Regraft); err != nil {
		return err
	}
	SetLength(rollback.Prune.Next, rollback.lenB1)
	SetLength(rollback.Prune.Next.Next, rollback.lenB2)
	SetLength(rollback.r, rollback.lenR)
	return nil
}

// InvalidatedBy returns the subnode indices whose edges are touched by
// an SPR move described by prune, regraft and the regraft path.
func InvalidatedBy(prune, regraft *GeneNode, path []*GeneNode) []int {
	ids := []int{prune.Index, prune.Next.Index, prune.Next.Next.Index,
		regraft.Index, regraft.Back.Index}
	for _, node := range path {
		ids = append(ids, node.Index, node.Back.Index)
	}
	return ids
}

func leafHash(node *GeneNode) uint64 {
	h := fnv.New64a()
	h.Write([]byte(node.Name))
	return h.Sum64()
}

func combineHash(m, M, i uint64) uint64 {
	h := fnv.New64a()
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], m)
	binary.LittleEndian.PutUint64(buf[8:], M)
	binary.LittleEndian.PutUint64(buf[16:], i)
	h.Write(buf[:])
	return h.Sum64()
}

func treeHashRec(node *GeneNode, i uint64) uint64 {
	if i == 0 {
		i = 1
	}
	if node.IsLeaf() {
		return leafHash(node)
	}
	h1 := treeHashRec(node.Next.Back, i+1)
	h2 := treeHashRec(node.Next.Next.Back, i+1)
	if h1 > h2 {
		h1, h2 = h2, h1
	}
	return combineHash(h1, h2, i)
}

func minimumHashLeafRec(node *GeneNode) (*GeneNode, uint64) {
	if node.IsLeaf() {
		return node, leafHash(node)
	}
	min1, h1 := minimumHashLeafRec(node.Next.Back)
	min2, h2 := minimumHashLeafRec(node.Next.Next.Back)
	if h1 < h2 {
		return min1, h1
	}
	return min2, h2
}

// UnrootedHash returns a topology hash that is invariant under the
// choice of traversal start, used to detect identical trees across
// moves and rollbacks.
func (tree *GeneTree) UnrootedHash() uint64 {
	start := tree.nodes[0]
	min1, h1 := minimumHashLeafRec(start)
	min2, h2 := minimumHashLeafRec(start.Back)
	min := min1
	if h2 < h1 {
		min = min2
	}
	return treeHashRec(min, 0) + treeHashRec(min.Back, 0)
}

// Newick writes the tree rooted on the edge root-root.Back.
func (tree *GeneTree) Newick(root *GeneNode) string {
	return "(" + newickRec(root, true) + "," + newickRec(root.Back, true) + ");"
}

func newickRec(node *GeneNode, isRoot bool) string {
	length := node.Length
	if isRoot {
		length /= 2
	}
	if node.IsLeaf() {
		return fmt.Sprintf("%s:%g", node.Name, length)
	}
	return fmt.Sprintf("(%s,%s):%g",
		newickRec(node.Next.Back, false),
		newickRec(node.Next.Next.Back, false),
		length)
}
