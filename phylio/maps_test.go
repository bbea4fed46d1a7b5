package phylio

import (
	"strings"
	"testing"
)

func TestParseGeneSpeciesMap(tst *testing.T) {
	m, err := ParseGeneSpeciesMap(strings.NewReader("g1\tSP1\ng2 SP2\n\n# comment\ng3\tSP1\n"))
	if err != nil {
		tst.Fatal("Error: ", err)
	}
	if len(m) != 3 || m["g1"] != "SP1" || m["g2"] != "SP2" || m["g3"] != "SP1" {
		tst.Errorf("unexpected mapping: %v", m)
	}
	species := m.Species()
	if len(species) != 2 || !species["SP1"] || !species["SP2"] {
		tst.Errorf("unexpected species set: %v", species)
	}
}

func TestParseGeneSpeciesMapMalformed(tst *testing.T) {
	if _, err := ParseGeneSpeciesMap(strings.NewReader("justonefield\n")); err == nil {
		tst.Error("single-field line accepted")
	}
	if _, err := ParseGeneSpeciesMap(strings.NewReader("g1 SP1\ng1 SP2\n")); err == nil {
		tst.Error("conflicting mapping accepted")
	}
	if _, err := ParseGeneSpeciesMap(strings.NewReader("")); err == nil {
		tst.Error("empty mapping accepted")
	}
}
