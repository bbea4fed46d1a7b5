// plotll creates a plot of the joint log-likelihood trajectory
// written by the search driver.
package main

import (
	"bufio"
	"flag"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

func main() {
	out := flag.String("o", "trajectory.png", "output image")
	flag.Parse()
	if flag.NArg() != 1 {
		panic("usage: plotll [-o out.png] trajectory.txt")
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		panic(err)
	}
	defer f.Close()

	var pts plotter.XYs
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			panic(err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			panic(err)
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	if err := scanner.Err(); err != nil {
		panic(err)
	}

	p := plot.New()
	p.X.Label.Text = "accepted move"
	p.Y.Label.Text = "joint log-likelihood"

	if err = plotutil.AddLinePoints(p, "joint", pts); err != nil {
		panic(err)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, *out); err != nil {
		panic(err)
	}
}
