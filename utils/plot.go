package utils

import (
	"errors"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveErrorPlot draws the convergence trace as a line chart
// (x = iteration, y = spectral error) and saves it to filename.
// The format follows the file extension.
func SaveErrorPlot(trace []float64, filename string) error {
	if len(trace) == 0 {
		return errors.New("utils: empty error trace")
	}
	p := plot.New()
	p.Title.Text = "Convergence"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "spectral error"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(trace))
	for i, v := range trace {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, filename)
}
