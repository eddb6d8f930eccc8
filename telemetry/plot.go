package telemetry

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// FillPlotter records fill ratio time series per unit and renders them as a PNG.
type FillPlotter struct {
	names   []string
	colors  []color.Color
	series  []plotter.XYs
	targets []float64
}

// NewFillPlotter creates a plotter for the named units.
func NewFillPlotter(names []string, colors []color.Color) *FillPlotter {
	return &FillPlotter{
		names:   names,
		colors:  colors,
		series:  make([]plotter.XYs, len(names)),
		targets: make([]float64, len(names)),
	}
}

// Sample appends one fill reading for unit at sim time t.
func (fp *FillPlotter) Sample(unit int, t, fill float64) {
	if unit < 0 || unit >= len(fp.series) {
		return
	}
	fp.series[unit] = append(fp.series[unit], plotter.XY{X: t, Y: fill})
}

// SetTarget records the discharge target drawn as a dashed line for unit.
func (fp *FillPlotter) SetTarget(unit int, target float64) {
	if unit >= 0 && unit < len(fp.targets) {
		fp.targets[unit] = target
	}
}

// Reset drops all recorded samples.
func (fp *FillPlotter) Reset() {
	for i := range fp.series {
		fp.series[i] = fp.series[i][:0]
	}
}

// Len returns the number of samples recorded for unit.
func (fp *FillPlotter) Len(unit int) int {
	if unit < 0 || unit >= len(fp.series) {
		return 0
	}
	return len(fp.series[unit])
}

// Save writes the chart to path. The image format follows the extension.
func (fp *FillPlotter) Save(path string) error {
	p := plot.New()
	p.Title.Text = "Container fill by silo"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Fill ratio"
	p.Y.Min = 0
	p.Y.Max = 1

	var tMax float64
	for i, pts := range fp.series {
		if len(pts) == 0 {
			continue
		}
		tMax = max(tMax, pts[len(pts)-1].X)

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("fill line %s: %w", fp.names[i], err)
		}
		line.Width = vg.Points(1.5)
		if i < len(fp.colors) {
			line.Color = fp.colors[i]
		}
		p.Add(line)
		p.Legend.Add(fp.names[i], line)
	}

	for i, target := range fp.targets {
		if target <= 0 || tMax <= 0 {
			continue
		}
		ref, err := plotter.NewLine(plotter.XYs{{X: 0, Y: target}, {X: tMax, Y: target}})
		if err != nil {
			return fmt.Errorf("target line %s: %w", fp.names[i], err)
		}
		ref.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		if i < len(fp.colors) {
			ref.Color = fp.colors[i]
		}
		p.Add(ref)
	}

	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("saving fill plot: %w", err)
	}
	return nil
}
