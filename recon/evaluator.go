// Package recon implements the reconciliation likelihood core: the
// undated duplication-loss and duplication-transfer-loss models, the
// no-loss duplication-speciation model, CLV management over the two
// trees and the most-likely scenario backtrace.
package recon

import (
	"fmt"
	"math"

	"github.com/op/go-logging"

	"bitbucket.org/dkoshel/jrecon/scaled"
	"bitbucket.org/dkoshel/jrecon/tree"
)

var log = logging.MustGetLogger("recon")

// ModelType selects the reconciliation model variant.
type ModelType int

// Reconciliation model variants.
const (
	UndatedDL ModelType = iota
	UndatedDTL
	SimpleDS
)

func (t ModelType) String() string {
	switch t {
	case UndatedDL:
		return "UndatedDL"
	case UndatedDTL:
		return "UndatedDTL"
	case SimpleDS:
		return "SimpleDS"
	}
	return "Invalid"
}

// ParseModelType converts a model name into a ModelType.
func ParseModelType(s string) (ModelType, error) {
	switch s {
	case "UndatedDL":
		return UndatedDL, nil
	case "UndatedDTL":
		return UndatedDTL, nil
	case "SimpleDS":
		return SimpleDS, nil
	}
	return UndatedDL, fmt.Errorf("unknown reconciliation model %q", s)
}

// Options configures an Evaluator.
type Options struct {
	Model ModelType
	// RootedGeneTree freezes the gene root instead of inferring it.
	RootedGeneTree bool
	// NoDup clamps the duplication probability to zero.
	NoDup bool
	// DTLIterations is the sweep count of the transfer fixed point.
	DTLIterations int
}

// defaultDTLIterations is the default sweep count for the DTL fixed
// points; the recurrence is a contraction under normalized rates and
// converges in a few sweeps.
const defaultDTLIterations = 3

// maxRootIterations caps the unrooted root-refinement loop; the root
// stabilizes after one or two passes in practice but there is no
// formal termination bound.
const maxRootIterations = 10

// modelCore is the variant-specific part of a reconciliation model.
// The Evaluator provides the shared machinery: traversal, validity
// bits and root management.
type modelCore interface {
	setRates(r *Rates)
	updateCLV(g *tree.GeneNode)
	computeRootCLV(v *tree.GeneNode)
	rootLikelihood(root *tree.GeneNode) scaled.Real
	rootLikelihoodAt(root *tree.GeneNode, e *tree.SpeciesNode) scaled.Real
	backtrace(g *tree.GeneNode, e *tree.SpeciesNode, sc *Scenario, virtualRoot bool) error
	accountsForTransfers() bool
	canBacktrace() bool
}

// Evaluator owns one reconciliation model instance over a species
// tree and a gene tree and keeps the CLV table incrementally up to
// date across rate changes and topology edits.
type Evaluator struct {
	species       *tree.SpeciesTree
	genes         *tree.GeneTree
	geneToSpecies []int
	opts          Options
	core          modelCore
	rates         *Rates

	geneRoot     *tree.GeneNode
	isCLVUpdated []bool
	invalidated  map[int]bool
}

// NewEvaluator creates an evaluator. Every gene leaf must map to a
// species leaf present in the species tree.
func NewEvaluator(species *tree.SpeciesTree, genes *tree.GeneTree,
	mapping map[string]string, opts Options) (*Evaluator, error) {
	if opts.DTLIterations <= 0 {
		opts.DTLIterations = defaultDTLIterations
	}
	ev := &Evaluator{
		species:       species,
		genes:         genes,
		geneToSpecies: make([]int, genes.MaxID()+1),
		opts:          opts,
		isCLVUpdated:  make([]bool, genes.MaxID()+1),
		invalidated:   make(map[int]bool),
	}
	for i := range ev.geneToSpecies {
		ev.geneToSpecies[i] = -1
	}
	for _, leaf := range genes.Leaves() {
		speciesName, ok := mapping[leaf.Name]
		if !ok {
			return nil, fmt.Errorf("gene leaf %q has no species mapping", leaf.Name)
		}
		id, ok := species.LeafID(speciesName)
		if !ok {
			return nil, fmt.Errorf("gene leaf %q maps to unknown species %q", leaf.Name, speciesName)
		}
		ev.geneToSpecies[leaf.Index] = id
	}
	switch opts.Model {
	case UndatedDL:
		ev.core = newUndatedDL(ev)
	case UndatedDTL:
		ev.core = newUndatedDTL(ev)
	case SimpleDS:
		ev.core = newSimpleDS(ev)
	default:
		return nil, fmt.Errorf("unknown reconciliation model %v", opts.Model)
	}
	if opts.RootedGeneTree {
		ev.geneRoot = genes.RootEdge()
		if ev.geneRoot == nil {
			ev.geneRoot = genes.CandidateRoots()[0]
		}
	}
	return ev, nil
}

// Species returns the species tree.
func (ev *Evaluator) Species() *tree.SpeciesTree {
	return ev.species
}

// Genes returns the gene tree.
func (ev *Evaluator) Genes() *tree.GeneTree {
	return ev.genes
}

// Rates returns the current normalized rates.
func (ev *Evaluator) Rates() *Rates {
	return ev.rates
}

// AccountsForTransfers reports whether the model has transfer events.
func (ev *Evaluator) AccountsForTransfers() bool {
	return ev.core.accountsForTransfers()
}

// SetRates installs a global (dup, loss, transfer) rate triple. All
// CLVs are invalidated.
func (ev *Evaluator) SetRates(dup, loss, trans float64) error {
	r, err := GlobalRates(ev.species.NNodes(), dup, loss, trans)
	if err != nil {
		return err
	}
	return ev.setRates(r)
}

// SetRatesVectors installs per-species-branch rate vectors.
func (ev *Evaluator) SetRatesVectors(dup, loss, trans []float64) error {
	r, err := PerBranchRates(ev.species.NNodes(), dup, loss, trans)
	if err != nil {
		return err
	}
	return ev.setRates(r)
}

func (ev *Evaluator) setRates(r *Rates) error {
	r.normalize(ev.opts.NoDup)
	if err := r.check(); err != nil {
		return err
	}
	ev.rates = r
	ev.core.setRates(r)
	ev.InvalidateAll()
	return nil
}

// InvalidateCLV marks one directed gene node as stale; the nodes
// whose subtrees contain it are marked at the next update.
func (ev *Evaluator) InvalidateCLV(nodeIndex int) {
	ev.invalidated[nodeIndex] = true
}

// InvalidateAll marks every CLV stale.
func (ev *Evaluator) InvalidateAll() {
	for i := range ev.isCLVUpdated {
		ev.isCLVUpdated[i] = false
	}
	ev.invalidated = make(map[int]bool)
}

// CLVValidity returns a copy of the validity bits, for rollbacks.
func (ev *Evaluator) CLVValidity() []bool {
	bits := make([]bool, len(ev.isCLVUpdated))
	copy(bits, ev.isCLVUpdated)
	return bits
}

// RestoreCLVValidity restores validity bits saved before a move.
func (ev *Evaluator) RestoreCLVValidity(bits []bool) {
	copy(ev.isCLVUpdated, bits)
}

// Root returns the current gene root (the last inferred one in
// unrooted mode).
func (ev *Evaluator) Root() *tree.GeneNode {
	return ev.geneRoot
}

// SetRoot restores a gene root, used when rolling back a move.
func (ev *Evaluator) SetRoot(root *tree.GeneNode) {
	ev.geneRoot = root
}

// markInvalidated propagates the invalidated set: a stale node makes
// every directed node whose subtree contains it stale as well.
func (ev *Evaluator) markInvalidated() {
	subnodes := ev.genes.Subnodes()
	for idx := range ev.invalidated {
		ev.markInvalidatedRec(subnodes[idx])
	}
	ev.invalidated = make(map[int]bool)
}

func (ev *Evaluator) markInvalidatedRec(node *tree.GeneNode) {
	ev.isCLVUpdated[node.Index] = false
	if !node.Back.IsLeaf() {
		ev.markInvalidatedRec(node.Back.Next)
		ev.markInvalidatedRec(node.Back.Next.Next)
	}
}

// currentRoots returns the virtual-root candidates: every undirected
// edge in unrooted mode, the frozen root in rooted mode.
func (ev *Evaluator) currentRoots() []*tree.GeneNode {
	if ev.opts.RootedGeneTree {
		return []*tree.GeneNode{ev.geneRoot}
	}
	return ev.genes.CandidateRoots()
}

// updateCLVs recomputes stale CLVs in strict post-order under every
// candidate rooting.
func (ev *Evaluator) updateCLVs() {
	ev.markInvalidated()
	for _, root := range ev.currentRoots() {
		ev.updateCLVsRec(root)
		ev.updateCLVsRec(root.Back)
	}
}

func (ev *Evaluator) updateCLVsRec(node *tree.GeneNode) {
	if ev.isCLVUpdated[node.Index] {
		return
	}
	if !node.IsLeaf() {
		ev.updateCLVsRec(node.Next.Back)
		ev.updateCLVsRec(node.Next.Next.Back)
	}
	ev.core.updateCLV(node)
	ev.isCLVUpdated[node.Index] = true
}

// computeLikelihoods fills the virtual-root half of the CLV table for
// every candidate root.
func (ev *Evaluator) computeLikelihoods() {
	for _, root := range ev.currentRoots() {
		ev.core.computeRootCLV(ev.genes.VirtualRoot(root))
	}
}

// mlRoot returns the candidate root with the largest marginal
// likelihood.
func (ev *Evaluator) mlRoot() *tree.GeneNode {
	var best *tree.GeneNode
	var max scaled.Real
	for _, root := range ev.currentRoots() {
		ll := ev.core.rootLikelihood(root)
		if best == nil || max.Less(ll) {
			best = root
			max = ll
		}
	}
	return best
}

// mlRootPair returns the (gene root, species root) pair with the
// largest likelihood, the backtrace starting point.
func (ev *Evaluator) mlRootPair() (*tree.GeneNode, *tree.SpeciesNode) {
	var bestGene *tree.GeneNode
	var bestSpecies *tree.SpeciesNode
	var max scaled.Real
	for _, root := range ev.currentRoots() {
		for _, speciesNode := range ev.species.PostOrder() {
			ll := ev.core.rootLikelihoodAt(root, speciesNode)
			if bestGene == nil || max.Less(ll) {
				bestGene = root
				bestSpecies = speciesNode
				max = ll
			}
		}
	}
	return bestGene, bestSpecies
}

// sumLikelihood returns the total log-likelihood: the marginal over
// all rootings in unrooted mode, the frozen root's marginal in rooted
// mode.
func (ev *Evaluator) sumLikelihood() float64 {
	var total scaled.Real
	for _, root := range ev.currentRoots() {
		total = total.Add(ev.core.rootLikelihood(root))
	}
	return total.Log()
}

// Evaluate computes the reconciliation log-likelihood, refreshing
// only stale CLVs. In unrooted mode the most-likely root is
// re-inferred until it stabilizes.
func (ev *Evaluator) Evaluate() float64 {
	ev.updateCLVs()
	ev.computeLikelihoods()
	if !ev.opts.RootedGeneTree {
		prev := ev.geneRoot
		ev.geneRoot = ev.mlRoot()
		for it := 0; ev.geneRoot != prev; it++ {
			if it >= maxRootIterations {
				log.Warningf("gene root did not stabilize after %d iterations", maxRootIterations)
				break
			}
			prev = ev.geneRoot
			ev.updateCLVs()
			ev.computeLikelihoods()
			ev.geneRoot = ev.mlRoot()
		}
	}
	ll := ev.sumLikelihood()
	if math.IsNaN(ll) {
		ll = math.Inf(-1)
	}
	return ll
}

// InferScenario extracts the most-likely reconciliation scenario.
func (ev *Evaluator) InferScenario() (*Scenario, error) {
	if !ev.core.canBacktrace() {
		return nil, fmt.Errorf("model %v does not support scenario extraction", ev.opts.Model)
	}
	ev.updateCLVs()
	ev.computeLikelihoods()
	geneRoot, speciesRoot := ev.mlRootPair()
	if geneRoot == nil || ev.core.rootLikelihoodAt(geneRoot, speciesRoot).IsZero() {
		return nil, fmt.Errorf("no root candidate with non-zero likelihood")
	}
	sc := NewScenario(ev.genes, ev.species)
	virtualRoot := ev.genes.VirtualRoot(geneRoot)
	sc.setRoot(geneRoot, virtualRoot.Index)
	if err := ev.core.backtrace(virtualRoot, speciesRoot, sc, true); err != nil {
		return nil, err
	}
	return sc, nil
}
