package telemetry

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// WriteBedHeatmap renders the bed height field as an HTML scatter heatmap.
// heights is row-major with w columns and h rows.
func WriteBedHeatmap(out io.Writer, heights []float32, w, h int, subtitle string) error {
	if w*h != len(heights) {
		return fmt.Errorf("bed heatmap: %d heights for a %dx%d grid", len(heights), w, h)
	}

	var peak float32
	data := make([]opts.ScatterData, 0, len(heights))
	for iz := 0; iz < h; iz++ {
		for ix := 0; ix < w; ix++ {
			v := heights[iz*w+ix]
			peak = max(peak, v)
			data = append(data, opts.ScatterData{Value: []interface{}{ix, iz, v}})
		}
	}
	if peak == 0 {
		peak = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Container bed", Theme: "dark", Width: "900px", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Container bed height", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -1, Max: w, Name: "cell x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: h, Name: "cell z", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        peak,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("height", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 22}))

	if err := scatter.Render(out); err != nil {
		return fmt.Errorf("rendering bed heatmap: %w", err)
	}
	return nil
}

// SaveBedHeatmap writes the heatmap to path.
func SaveBedHeatmap(path string, heights []float32, w, h int, subtitle string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	return WriteBedHeatmap(f, heights, w, h, subtitle)
}
