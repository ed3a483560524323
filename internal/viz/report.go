package viz

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/radiant-data/gaussnerf/internal/checkpoint"
)

// WriteTrainingReport renders an HTML page with one line chart per metric,
// charts ordered by metric name.
func WriteTrainingReport(w io.Writer, runID string, series map[string][]checkpoint.MetricPoint) error {
	if len(series) == 0 {
		return fmt.Errorf("viz: no metric series for run %s", runID)
	}

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Training report %s", runID)
	for _, name := range names {
		points := series[name]
		xs := make([]string, len(points))
		ys := make([]opts.LineData, len(points))
		for i, p := range points {
			xs[i] = strconv.Itoa(p.Step)
			ys[i] = opts.LineData{Value: p.Value}
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "360px"}),
			charts.WithTitleOpts(opts.Title{Title: name, Subtitle: fmt.Sprintf("run %s", runID)}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		)
		line.SetXAxis(xs).AddSeries(name, ys)
		page.AddCharts(line)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("viz: render training report: %w", err)
	}
	return nil
}
