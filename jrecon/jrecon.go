/*

Jrecon jointly optimizes gene trees against a species tree: it
combines the sequence likelihood of each gene family with the
probability that the gene tree arose from the species tree under an
undated reconciliation model (duplication-loss, with or without
horizontal transfers), and searches gene tree topologies with SPR
moves.

The basic usage looks like this:

	jrecon families.txt species.nwk

where families.txt lists one family per line:
name geneTree alignment mapping. To enable transfers:

	jrecon --rec-model UndatedDTL families.txt species.nwk

To see all the options run:

	jrecon -h

*/
package main

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/op/go-logging"
	bolt "go.etcd.io/bbolt"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/dkoshel/jrecon/checkpoint"
	"bitbucket.org/dkoshel/jrecon/phylio"
	"bitbucket.org/dkoshel/jrecon/recon"
)

// These variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("jrecon")
var formatter = logging.MustStringFormatter(`%{message}`)

// command-line options
var (
	app = kingpin.New("jrecon", "joint gene/species tree reconciliation optimizer").Version(version)

	// input
	familiesFileName = app.Arg("families", "family list (name geneTree alignment mapping per line)").Required().ExistingFile()
	speciesFileName  = app.Arg("speciestree", "rooted species tree").Required().ExistingFile()

	// model
	recModel = app.Flag("rec-model", "reconciliation model (UndatedDL, UndatedDTL or SimpleDS)").
			Default("UndatedDL").Enum("UndatedDL", "UndatedDTL", "SimpleDS")
	rootedGeneTree = app.Flag("rooted-gene-tree", "freeze the gene root instead of inferring it").Bool()
	recWeight      = app.Flag("rec-weight", "weight of the reconciliation term in the joint objective").Default("1").Float64()
	pruneSpecies   = app.Flag("prune-species-tree", "restrict the species tree to the species present in each family").Bool()
	noDup          = app.Flag("no-dup", "clamp the duplication rate to zero").Bool()
	dtlIterations  = app.Flag("dtl-iterations", "fixed-point sweeps of the transfer model").Default("3").Int()

	// rates
	dupRate       = app.Flag("dup", "initial duplication rate").Default("0.2").Float64()
	lossRate      = app.Flag("loss", "initial loss rate").Default("0.2").Float64()
	transferRate  = app.Flag("transfer", "initial transfer rate (UndatedDTL only)").Default("0").Float64()
	recOpt        = app.Flag("rec-opt", "rate optimization method (lbfgsb, simplex or none)").Default("simplex").Enum("lbfgsb", "simplex", "none")
	recIterations = app.Flag("rec-iter", "rate optimization iteration bound").Default("300").Int()

	// search
	radius           = app.Flag("radius", "maximum SPR radius").Default("5").Int()
	supportThreshold = app.Flag("support-threshold", "stop SPR paths at branches with higher support (negative disables)").Default("-1").Float64()
	noSearch         = app.Flag("no-search", "evaluate without rearranging the gene trees").Bool()

	// output
	outputDir      = app.Flag("output", "output directory").Default("jrecon_output").String()
	checkpointFile = app.Flag("checkpoint", "bolt database with per-family checkpoints").String()

	// technical
	nThreads = app.Flag("nt", "number of families evaluated concurrently").Int()
	seed     = app.Flag("seed", "random generator seed, default time based").Default("-1").Int64()
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)
	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, pkg := range []string{"jrecon", "phylio", "recon", "search", "seqlike", "optimize", "checkpoint"} {
		logging.SetLevel(level, pkg)
	}

	log.Info(version)
	log.Info("Command line:", os.Args)

	if *seed == -1 {
		*seed = time.Now().UnixNano()
		log.Debug("Random seed from time")
	}
	log.Infof("Random seed=%v", *seed)
	rand.Seed(*seed)

	if *nThreads > 0 {
		runtime.GOMAXPROCS(*nThreads)
	}
	workers := runtime.GOMAXPROCS(0)
	log.Infof("Using %d workers.", workers)

	modelType, err := recon.ParseModelType(*recModel)
	if err != nil {
		log.Fatal(err)
	}
	if modelType == recon.SimpleDS && *noDup {
		log.Fatal("--no-dup contradicts the duplication-speciation model")
	}
	if modelType != recon.UndatedDTL && *transferRate != 0 {
		log.Warningf("transfer rate %f ignored by model %s", *transferRate, modelType)
		*transferRate = 0
	}
	if *recWeight < 0 {
		log.Fatal("--rec-weight must be non-negative")
	}

	speciesTree, err := phylio.ReadSpeciesTree(*speciesFileName)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("Species tree: %d leaves", speciesTree.NLeaves())

	families, err := phylio.ReadFamilies(*familiesFileName)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("Families: %d", len(families))

	var db *bolt.DB
	if *checkpointFile != "" {
		db, err = bolt.Open(*checkpointFile, 0666, nil)
		if err != nil {
			log.Fatal("Error opening checkpoint database:", err)
		}
		defer db.Close()
	}
	checkpoints := checkpoint.NewCheckpointIO(db)

	if err = os.MkdirAll(*outputDir, 0777); err != nil {
		log.Fatal("Error creating output directory:", err)
	}

	runner := &familyRunner{
		speciesTree: speciesTree,
		checkpoints: checkpoints,
		settings: familySettings{
			model:            modelType,
			rootedGeneTree:   *rootedGeneTree,
			recWeight:        *recWeight,
			pruneSpecies:     *pruneSpecies,
			noDup:            *noDup,
			dtlIterations:    *dtlIterations,
			dup:              *dupRate,
			loss:             *lossRate,
			trans:            *transferRate,
			recOpt:           *recOpt,
			recIterations:    *recIterations,
			radius:           *radius,
			supportThreshold: *supportThreshold,
			noSearch:         *noSearch,
			outputDir:        *outputDir,
		},
	}

	totalLL, valid := runner.runAll(families, workers)
	if valid == 0 {
		log.Fatal("No valid family")
	}
	log.Noticef("Total joint log-likelihood over %d families: %f", valid, totalLL)
}
