package phylio

import (
	"fmt"
	"io"
	"os"
)

// FamilyStats collects the per-family likelihoods and rates reported
// at the end of a run.
type FamilyStats struct {
	InitialLL       float64
	InitialLLRec    float64
	InitialLLLibpll float64
	LL              float64
	LLRec           float64
	LLLibpll        float64
	Dup             float64
	Loss            float64
	Trans           float64
}

// Save writes the stats, one key-value pair per line.
func (s *FamilyStats) Save(w io.Writer) error {
	pairs := []struct {
		key   string
		value float64
	}{
		{"initial_ll", s.InitialLL},
		{"initial_llrec", s.InitialLLRec},
		{"initial_lllibpll", s.InitialLLLibpll},
		{"ll", s.LL},
		{"llrec", s.LLRec},
		{"lllibpll", s.LLLibpll},
		{"D", s.Dup},
		{"L", s.Loss},
		{"T", s.Trans},
	}
	for _, p := range pairs {
		if _, err := fmt.Fprintf(w, "%s %f\n", p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}

// SaveFile writes the stats to a file.
func (s *FamilyStats) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Save(f)
}

// Trajectory records the joint log-likelihood after each accepted
// move, for plotting.
type Trajectory struct {
	LL []float64
}

// Append records one point.
func (t *Trajectory) Append(ll float64) {
	t.LL = append(t.LL, ll)
}

// Save writes "iteration ll" lines.
func (t *Trajectory) Save(w io.Writer) error {
	for i, ll := range t.LL {
		if _, err := fmt.Fprintf(w, "%d\t%f\n", i, ll); err != nil {
			return err
		}
	}
	return nil
}

// SaveFile writes the trajectory to a file.
func (t *Trajectory) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return t.Save(f)
}
