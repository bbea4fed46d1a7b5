// Package search implements the joint likelihood and the SPR search
// over the gene tree: move enumeration within a radius, incremental
// scoring with CLV invalidation, and exact rollbacks.
package search

import (
	"fmt"

	"github.com/op/go-logging"

	"bitbucket.org/dkoshel/jrecon/optimize"
	"bitbucket.org/dkoshel/jrecon/recon"
	"bitbucket.org/dkoshel/jrecon/tree"
)

var log = logging.MustGetLogger("search")

// SequenceEvaluator is the external sequence-likelihood collaborator.
// It must share the gene tree of the reconciliation evaluator and
// honor the same CLV invalidation indices.
type SequenceEvaluator interface {
	Loglk() float64
	InvalidateCLV(nodeIndex int)
}

// JointTree couples the gene tree with its two likelihoods and owns
// the rollback stack of the search.
type JointTree struct {
	Genes *tree.GeneTree
	Rec   *recon.Evaluator
	Seq   SequenceEvaluator

	// RecWeight scales the reconciliation term of the joint
	// objective.
	RecWeight float64
	// SupportThreshold stops SPR paths at well-supported branches;
	// negative disables the check.
	SupportThreshold float64

	dup, loss, trans float64
	rollbacks        []*Rollback
}

// NewJointTree creates a joint tree; seq may be nil when no sequence
// data is available.
func NewJointTree(genes *tree.GeneTree, rec *recon.Evaluator, seq SequenceEvaluator, recWeight float64) *JointTree {
	return &JointTree{
		Genes:            genes,
		Rec:              rec,
		Seq:              seq,
		RecWeight:        recWeight,
		SupportThreshold: -1,
	}
}

// SetRates installs a global rate triple on the reconciliation
// evaluator.
func (jt *JointTree) SetRates(dup, loss, trans float64) error {
	jt.dup, jt.loss, jt.trans = dup, loss, trans
	return jt.Rec.SetRates(dup, loss, trans)
}

// DupRate returns the current duplication rate.
func (jt *JointTree) DupRate() float64 { return jt.dup }

// LossRate returns the current loss rate.
func (jt *JointTree) LossRate() float64 { return jt.loss }

// TransferRate returns the current transfer rate.
func (jt *JointTree) TransferRate() float64 { return jt.trans }

// ComputeSeqLoglk returns the sequence log-likelihood, zero without
// sequence data.
func (jt *JointTree) ComputeSeqLoglk() float64 {
	if jt.Seq == nil {
		return 0
	}
	return jt.Seq.Loglk()
}

// ComputeRecLoglk returns the weighted reconciliation log-likelihood.
func (jt *JointTree) ComputeRecLoglk() float64 {
	if jt.RecWeight == 0 {
		return 0
	}
	return jt.RecWeight * jt.Rec.Evaluate()
}

// ComputeJointLoglk returns the joint objective.
func (jt *JointTree) ComputeJointLoglk() float64 {
	return jt.ComputeSeqLoglk() + jt.ComputeRecLoglk()
}

// ApplyMove applies an SPR move and pushes its rollback.
func (jt *JointTree) ApplyMove(m *SPRMove) error {
	rollback, err := m.Apply(jt)
	if err != nil {
		return err
	}
	jt.rollbacks = append(jt.rollbacks, rollback)
	return nil
}

// RollbackLastMove undoes the most recent move.
func (jt *JointTree) RollbackLastMove() error {
	if len(jt.rollbacks) == 0 {
		return fmt.Errorf("no move to roll back")
	}
	rollback := jt.rollbacks[len(jt.rollbacks)-1]
	jt.rollbacks = jt.rollbacks[:len(jt.rollbacks)-1]
	return rollback.Apply(jt)
}

// invalidate marks the CLVs of both evaluators stale.
func (jt *JointTree) invalidate(ids []int) {
	for _, id := range ids {
		jt.Rec.InvalidateCLV(id)
		if jt.Seq != nil {
			jt.Seq.InvalidateCLV(id)
		}
	}
}

// OptimizeRates maximizes the reconciliation likelihood over the
// global rate triple. method is lbfgsb, simplex or none.
func (jt *JointTree) OptimizeRates(method string, iterations int) error {
	model := newRatesModel(jt)
	var opt optimize.Optimizer
	switch method {
	case "lbfgsb":
		opt = optimize.NewLBFGSB()
	case "simplex":
		opt = optimize.NewDS()
	case "none":
		opt = optimize.NewNone()
	default:
		return fmt.Errorf("unknown rate optimization method %q", method)
	}
	opt.SetOptimizable(model)
	opt.Run(iterations)
	best := opt.GetMaxLParameters()
	if best == nil {
		return fmt.Errorf("rate optimization produced no parameters")
	}
	dup, loss := best[0], best[1]
	trans := 0.0
	if jt.Rec.AccountsForTransfers() {
		trans = best[2]
	}
	log.Infof("optimized rates: D=%f L=%f T=%f (llrec=%f)", dup, loss, trans, opt.GetMaxL())
	return jt.SetRates(dup, loss, trans)
}
