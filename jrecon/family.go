package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"bitbucket.org/dkoshel/jrecon/checkpoint"
	"bitbucket.org/dkoshel/jrecon/phylio"
	"bitbucket.org/dkoshel/jrecon/recon"
	"bitbucket.org/dkoshel/jrecon/search"
	"bitbucket.org/dkoshel/jrecon/seqlike"
	"bitbucket.org/dkoshel/jrecon/tree"
)

type familySettings struct {
	model            recon.ModelType
	rootedGeneTree   bool
	recWeight        float64
	pruneSpecies     bool
	noDup            bool
	dtlIterations    int
	dup, loss, trans float64
	recOpt           string
	recIterations    int
	radius           int
	supportThreshold float64
	noSearch         bool
	outputDir        string
}

type familyRunner struct {
	speciesTree *tree.SpeciesTree
	checkpoints *checkpoint.CheckpointIO
	settings    familySettings
}

type familyResult struct {
	name string
	ll   float64
	err  error
}

// runAll evaluates the families on a worker pool and reduces the
// joint log-likelihoods by summation.
func (r *familyRunner) runAll(families []phylio.Family, workers int) (totalLL float64, valid int) {
	tasks := make(chan int, len(families))
	results := make([]familyResult, len(families))
	done := make(chan struct{}, workers)

	for w := 0; w < workers; w++ {
		go func() {
			for i := range tasks {
				ll, err := r.runFamily(families[i])
				results[i] = familyResult{families[i].Name, ll, err}
			}
			done <- struct{}{}
		}()
	}
	for i := range families {
		tasks <- i
	}
	close(tasks)
	for w := 0; w < workers; w++ {
		<-done
	}

	for _, res := range results {
		if res.err != nil {
			log.Errorf("family %s aborted: %v", res.name, res.err)
			continue
		}
		totalLL += res.ll
		valid++
	}
	return
}

func (r *familyRunner) outPath(family, suffix string) string {
	return filepath.Join(r.settings.outputDir, family+suffix)
}

// runFamily runs one family end to end: inputs, joint tree, rate
// optimization, SPR search and output artifacts.
func (r *familyRunner) runFamily(family phylio.Family) (float64, error) {
	s := &r.settings
	if data, err := r.checkpoints.Load(family.Name); err == nil && data != nil && data.Done {
		return data.JointLL, nil
	}

	genes, err := phylio.ReadGeneTree(family.GeneTree)
	if err != nil {
		return 0, err
	}
	mapping, err := phylio.ReadGeneSpeciesMap(family.Mapping)
	if err != nil {
		return 0, err
	}

	speciesTree := r.speciesTree
	if s.pruneSpecies {
		speciesTree, err = phylio.PruneSpeciesTree(speciesTree, mapping.Species())
		if err != nil {
			return 0, err
		}
	}

	evaluator, err := recon.NewEvaluator(speciesTree, genes, mapping, recon.Options{
		Model:          s.model,
		RootedGeneTree: s.rootedGeneTree,
		NoDup:          s.noDup,
		DTLIterations:  s.dtlIterations,
	})
	if err != nil {
		return 0, err
	}

	var seq search.SequenceEvaluator
	if family.Alignment != "" && family.Alignment != "-" {
		alignment, err := phylio.ReadAlignment(family.Alignment)
		if err != nil {
			return 0, err
		}
		jc, err := seqlike.New(genes, alignment)
		if err != nil {
			return 0, err
		}
		seq = jc
	}

	jt := search.NewJointTree(genes, evaluator, seq, s.recWeight)
	jt.SupportThreshold = s.supportThreshold
	if err = jt.SetRates(s.dup, s.loss, s.trans); err != nil {
		return 0, err
	}

	stats := &phylio.FamilyStats{}
	stats.InitialLLRec = jt.ComputeRecLoglk()
	stats.InitialLLLibpll = jt.ComputeSeqLoglk()
	stats.InitialLL = stats.InitialLLRec + stats.InitialLLLibpll
	if math.IsInf(stats.InitialLLRec, -1) {
		return 0, fmt.Errorf("zero reconciliation likelihood for the starting tree")
	}
	log.Infof("family %s: initial ll=%f (rec=%f, seq=%f)",
		family.Name, stats.InitialLL, stats.InitialLLRec, stats.InitialLLLibpll)

	trajectory := &phylio.Trajectory{}
	trajectory.Append(stats.InitialLL)

	if s.recOpt != "none" {
		if err = jt.OptimizeRates(s.recOpt, s.recIterations); err != nil {
			return 0, err
		}
	}

	ll := jt.ComputeJointLoglk()
	if !s.noSearch {
		searcher := &search.SPRSearch{
			JointTree:       jt,
			MaxRadius:       s.radius,
			RatesMethod:     s.recOpt,
			RatesIterations: s.recIterations,
			OnImprovement:   trajectory.Append,
		}
		ll, err = searcher.Run()
		if err != nil {
			return 0, err
		}
	}

	stats.LLRec = jt.ComputeRecLoglk()
	stats.LLLibpll = jt.ComputeSeqLoglk()
	stats.LL = stats.LLRec + stats.LLLibpll
	stats.Dup = jt.DupRate()
	stats.Loss = jt.LossRate()
	stats.Trans = jt.TransferRate()

	if err = stats.SaveFile(r.outPath(family.Name, ".stats.txt")); err != nil {
		return 0, err
	}
	if err = trajectory.SaveFile(r.outPath(family.Name, ".trajectory.txt")); err != nil {
		return 0, err
	}
	root := evaluator.Root()
	if root == nil {
		root = genes.CandidateRoots()[0]
	}
	if err = phylio.WriteFile(r.outPath(family.Name, ".newick"), genes.Newick(root)); err != nil {
		return 0, err
	}
	if s.model != recon.SimpleDS {
		if err = r.saveScenario(family.Name, evaluator); err != nil {
			return 0, err
		}
	}

	saveErr := r.checkpoints.Save(family.Name, &checkpoint.FamilyData{
		Dup:     jt.DupRate(),
		Loss:    jt.LossRate(),
		Trans:   jt.TransferRate(),
		JointLL: ll,
		RecLL:   stats.LLRec,
		SeqLL:   stats.LLLibpll,
		Done:    true,
	})
	if saveErr != nil {
		log.Warningf("family %s: checkpoint not saved: %v", family.Name, saveErr)
	}
	return ll, nil
}

func (r *familyRunner) saveScenario(name string, evaluator *recon.Evaluator) error {
	scenario, err := evaluator.InferScenario()
	if err != nil {
		return err
	}
	if err = scenario.SaveReconciliationFile(r.outPath(name, ".reconciliation.nhx")); err != nil {
		return err
	}
	f, err := os.Create(r.outPath(name, ".events.txt"))
	if err != nil {
		return err
	}
	defer f.Close()
	if err = scenario.SaveEventsCounts(f); err != nil {
		return err
	}
	sf, err := os.Create(r.outPath(name, ".species_events.txt"))
	if err != nil {
		return err
	}
	defer sf.Close()
	if err = scenario.SavePerSpeciesEvents(sf); err != nil {
		return err
	}
	if evaluator.AccountsForTransfers() {
		tf, err := os.Create(r.outPath(name, ".transfers.txt"))
		if err != nil {
			return err
		}
		defer tf.Close()
		return scenario.SaveTransfers(tf)
	}
	return nil
}
