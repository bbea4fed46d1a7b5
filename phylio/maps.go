package phylio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// GeneSpeciesMap maps gene leaf labels to species leaf labels.
type GeneSpeciesMap map[string]string

// ParseGeneSpeciesMap reads a mapping with one gene/species pair per
// line, tab or space separated. Blank lines and #-comments are
// skipped.
func ParseGeneSpeciesMap(rd io.Reader) (GeneSpeciesMap, error) {
	m := make(GeneSpeciesMap)
	scanner := bufio.NewScanner(rd)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("mapping line %d: expected two fields, got %d", line, len(fields))
		}
		if prev, ok := m[fields[0]]; ok && prev != fields[1] {
			return nil, fmt.Errorf("mapping line %d: gene %q mapped to both %q and %q",
				line, fields[0], prev, fields[1])
		}
		m[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("empty gene-species mapping")
	}
	return m, nil
}

// ReadGeneSpeciesMap reads a mapping file.
func ReadGeneSpeciesMap(path string) (GeneSpeciesMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ParseGeneSpeciesMap(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return m, nil
}

// Species returns the set of species names used by the mapping,
// for species-tree pruning.
func (m GeneSpeciesMap) Species() map[string]bool {
	set := make(map[string]bool, len(m))
	for _, s := range m {
		set[s] = true
	}
	return set
}
