package recon

import (
	"fmt"
	"io"
	"os"

	"github.com/gonum/matrix/mat64"

	"bitbucket.org/dkoshel/jrecon/tree"
)

// EventType labels one reconciliation event.
type EventType int

// Reconciliation event types. SL is a speciation whose sister lineage
// was lost; TL is a transfer whose donor copy was lost.
const (
	EventS EventType = iota
	EventSL
	EventD
	EventT
	EventTL
	EventL
	EventNone
	eventTypes
)

var eventNames = [...]string{"S", "SL", "D", "T", "TL", "L", "None"}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventNames) {
		return "Invalid"
	}
	return eventNames[t]
}

// invalidNode marks an unused node reference in an event.
const invalidNode = -1

// Event records one reconciliation event: the directed gene node it
// labels, the hosting species node and, for transfers, the receiving
// species node.
type Event struct {
	Type        EventType
	GeneNode    int
	SpeciesNode int
	DestSpecies int
}

// SpeciesEvents counts the events hosted on one species branch.
type SpeciesEvents struct {
	LeafCount int
	DCount    int
	SCount    int
	SLCount   int
	TCount    int
	TLCount   int
}

// Scenario is a full labeling of the gene tree with events, produced
// by the model backtrace.
type Scenario struct {
	genes            *tree.GeneTree
	species          *tree.SpeciesTree
	events           []Event
	eventsCount      [eventTypes]int
	geneIDToEvents   [][]Event
	geneRoot         *tree.GeneNode
	virtualRootIndex int
	blacklist        [][]bool
}

// NewScenario creates an empty scenario for one gene/species tree
// pair.
func NewScenario(genes *tree.GeneTree, species *tree.SpeciesTree) *Scenario {
	return &Scenario{
		genes:          genes,
		species:        species,
		geneIDToEvents: make([][]Event, 2*(genes.MaxID()+1)),
	}
}

func (sc *Scenario) setRoot(root *tree.GeneNode, virtualIndex int) {
	sc.geneRoot = root
	sc.virtualRootIndex = virtualIndex
}

// AddEvent records a non-transfer event.
func (sc *Scenario) AddEvent(t EventType, geneNode, speciesNode int) {
	sc.AddTransfer(t, geneNode, speciesNode, invalidNode)
}

// AddTransfer records an event with a receiving species.
func (sc *Scenario) AddTransfer(t EventType, geneNode, speciesNode, destSpecies int) {
	ev := Event{Type: t, GeneNode: geneNode, SpeciesNode: speciesNode, DestSpecies: destSpecies}
	sc.events = append(sc.events, ev)
	sc.eventsCount[t]++
	sc.geneIDToEvents[geneNode] = append(sc.geneIDToEvents[geneNode], ev)
}

// EventCount returns the number of recorded events of one type.
func (sc *Scenario) EventCount(t EventType) int {
	return sc.eventsCount[t]
}

// Events returns all recorded events in backtrace order.
func (sc *Scenario) Events() []Event {
	return sc.events
}

// GeneRoot returns the gene root chosen by the backtrace.
func (sc *Scenario) GeneRoot() *tree.GeneNode {
	return sc.geneRoot
}

// initBlacklist allocates the gene-species blacklist used to break
// transfer cycles during backtrace.
func (sc *Scenario) initBlacklist() {
	if sc.blacklist != nil {
		return
	}
	sc.blacklist = make([][]bool, 2*(sc.genes.MaxID()+1))
	for i := range sc.blacklist {
		sc.blacklist[i] = make([]bool, sc.species.NNodes())
	}
}

// Blacklist marks a gene/species pair as visited.
func (sc *Scenario) Blacklist(geneNode, speciesNode int) {
	sc.initBlacklist()
	sc.blacklist[geneNode][speciesNode] = true
}

// IsBlacklisted returns true for a visited gene/species pair.
func (sc *Scenario) IsBlacklisted(geneNode, speciesNode int) bool {
	return sc.blacklist != nil && sc.blacklist[geneNode][speciesNode]
}

// PerSpeciesEvents aggregates the event counts per species branch.
func (sc *Scenario) PerSpeciesEvents() []SpeciesEvents {
	counts := make([]SpeciesEvents, sc.species.NNodes())
	for _, ev := range sc.events {
		c := &counts[ev.SpeciesNode]
		switch ev.Type {
		case EventNone:
			c.LeafCount++
		case EventD:
			c.DCount++
		case EventS:
			c.SCount++
		case EventSL:
			c.SLCount++
		case EventT:
			c.TCount++
		case EventTL:
			c.TLCount++
		}
	}
	return counts
}

// SaveEventsCounts writes the total event counts, one per line.
func (sc *Scenario) SaveEventsCounts(w io.Writer) error {
	for t := EventType(0); t < eventTypes; t++ {
		if _, err := fmt.Fprintf(w, "%s %d\n", t, sc.eventsCount[t]); err != nil {
			return err
		}
	}
	return nil
}

// SavePerSpeciesEvents writes one line per species node:
// name LeafCount DCount SCount SLCount TCount TLCount.
func (sc *Scenario) SavePerSpeciesEvents(w io.Writer) error {
	counts := sc.PerSpeciesEvents()
	for _, node := range sc.species.PostOrder() {
		c := counts[node.Index]
		_, err := fmt.Fprintf(w, "%s %d %d %d %d %d %d\n",
			node.Name, c.LeafCount, c.DCount, c.SCount, c.SLCount, c.TCount, c.TLCount)
		if err != nil {
			return err
		}
	}
	return nil
}

// CountTransfers accumulates a species-by-species donor/receiver
// matrix of T and TL events.
func (sc *Scenario) CountTransfers() *mat64.Dense {
	n := sc.species.NNodes()
	m := mat64.NewDense(n, n, nil)
	for _, ev := range sc.events {
		if (ev.Type == EventT || ev.Type == EventTL) && ev.DestSpecies != invalidNode {
			m.Set(ev.SpeciesNode, ev.DestSpecies, m.At(ev.SpeciesNode, ev.DestSpecies)+1)
		}
	}
	return m
}

// SaveTransfers writes the non-zero donor/receiver transfer counts.
func (sc *Scenario) SaveTransfers(w io.Writer) error {
	m := sc.CountTransfers()
	nodes := sc.species.Nodes()
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if c := m.At(i, j); c > 0 {
				_, err := fmt.Fprintf(w, "%s %s %d\n", nodes[i].Name, nodes[j].Name, int(c))
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// SaveReconciliationNHX writes the reconciled gene tree in NHX form:
// every node carries its hosting species, and flags for duplication
// and transfer events.
func (sc *Scenario) SaveReconciliationNHX(w io.Writer) error {
	if sc.geneRoot == nil {
		return fmt.Errorf("scenario has no gene root")
	}
	rootEvents := sc.geneIDToEvents[sc.virtualRootIndex]
	_, err := fmt.Fprintf(w, "(%s,%s)%s;\n",
		sc.nhxRec(sc.geneRoot),
		sc.nhxRec(sc.geneRoot.Back),
		sc.nhxAnnotation(rootEvents))
	return err
}

func (sc *Scenario) nhxRec(node *tree.GeneNode) string {
	events := sc.geneIDToEvents[node.Index]
	if node.IsLeaf() {
		return fmt.Sprintf("%s:%g%s", node.Name, node.Length, sc.nhxAnnotation(events))
	}
	return fmt.Sprintf("(%s,%s):%g%s",
		sc.nhxRec(tree.Left(node, false)),
		sc.nhxRec(tree.Right(node, false)),
		node.Length,
		sc.nhxAnnotation(events))
}

func (sc *Scenario) nhxAnnotation(events []Event) string {
	if len(events) == 0 {
		return ""
	}
	// the last event is the final placement of the gene node
	last := events[len(events)-1]
	species := sc.species.Nodes()[last.SpeciesNode].Name
	dup := "N"
	if last.Type == EventD {
		dup = "Y"
	}
	transfer := "N"
	for _, ev := range events {
		if ev.Type == EventT || ev.Type == EventTL {
			transfer = "Y"
		}
	}
	return fmt.Sprintf("[&&NHX:S=%s:D=%s:H=%s]", species, dup, transfer)
}

// SaveReconciliationFile writes the NHX reconciliation to a file.
func (sc *Scenario) SaveReconciliationFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return sc.SaveReconciliationNHX(f)
}
