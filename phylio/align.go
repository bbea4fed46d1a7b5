package phylio

import (
	"fmt"
	"os"

	"github.com/evolbioinfo/goalign/align"
	"github.com/evolbioinfo/goalign/io/fasta"
)

// ReadAlignment reads a FASTA alignment.
func ReadAlignment(path string) (align.Alignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	alignment, err := fasta.NewParser(f).Parse()
	if err != nil {
		return nil, fmt.Errorf("parsing alignment %s: %v", path, err)
	}
	if alignment.Length() == 0 {
		return nil, fmt.Errorf("zero length alignment in %s", path)
	}
	return alignment, nil
}
