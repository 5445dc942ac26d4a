package report

import (
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/lumamark/internal/region"
)

// RegionChart renders candidate region centres coloured by score, with the
// selected regions as a second series, as a standalone HTML page. The y axis
// runs downwards like image rows.
func RegionChart(w io.Writer, candidates, selected []region.Region, width, height int) error {
	if len(candidates) == 0 && len(selected) == 0 {
		return ErrNoData
	}
	maxScore := 0.0
	cand := make([]opts.ScatterData, 0, len(candidates))
	for _, r := range candidates {
		cand = append(cand, opts.ScatterData{Value: []interface{}{r.Center.X, -r.Center.Y, r.Score}})
		maxScore = max(maxScore, r.Score)
	}
	sel := make([]opts.ScatterData, 0, len(selected))
	for i, r := range selected {
		sel = append(sel, opts.ScatterData{
			Name:  fmt.Sprintf("region %d", i),
			Value: []interface{}{r.Center.X, -r.Center.Y, r.Score},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "lumamark regions", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Region scores", Subtitle: fmt.Sprintf("image=%dx%d candidates=%d selected=%d", width, height, len(candidates), len(selected))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: width, Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -height, Max: 0, Name: "-y", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxScore),
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("candidates", cand, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	scatter.AddSeries("selected", sel, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))
	return scatter.Render(w)
}

// MarginPlot saves a histogram of block margins as a PNG.
func MarginPlot(path string, margins []float64) error {
	if len(margins) == 0 {
		return ErrNoData
	}
	p := plot.New()
	p.Title.Text = "QIM margin per block"
	p.X.Label.Text = "Margin (steps)"
	p.Y.Label.Text = "Blocks"
	p.X.Min = 0
	p.X.Max = 0.5

	h, err := plotter.NewHist(plotter.Values(margins), 25)
	if err != nil {
		return err
	}
	h.FillColor = color.RGBA{R: 49, G: 104, B: 142, A: 255}
	p.Add(h)

	p.Add(plotter.NewGrid())

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save margin plot: %w", err)
	}
	return nil
}
