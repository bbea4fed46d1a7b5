package phylio

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Family describes one gene family: its starting gene tree, its
// alignment and its gene-species mapping.
type Family struct {
	Name      string
	GeneTree  string
	Alignment string
	Mapping   string
}

// ReadFamilies reads a tab-separated family list:
// name geneTree alignment mapping. The alignment column may be "-"
// when no sequence data is available.
func ReadFamilies(path string) ([]Family, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var families []Family
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 4 {
			return nil, fmt.Errorf("%s line %d: expected 4 fields, got %d", path, line, len(fields))
		}
		families = append(families, Family{
			Name:      fields[0],
			GeneTree:  fields[1],
			Alignment: fields[2],
			Mapping:   fields[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(families) == 0 {
		return nil, fmt.Errorf("no family in %s", path)
	}
	return families, nil
}
