package viz

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/radiant-data/gaussnerf/internal/checkpoint"
)

// SaveMetricPlots renders one PNG line plot per metric series into dir and
// returns the written paths in metric-name order.
func SaveMetricPlots(series map[string][]checkpoint.MetricPoint, dir string) ([]string, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("viz: no metric series to plot")
	}

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	var written []string
	for _, name := range names {
		points := series[name]
		if len(points) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(points))
		for i, mp := range points {
			pts[i] = plotter.XY{X: float64(mp.Step), Y: mp.Value}
		}
		sort.Slice(pts, func(i, j int) bool { return pts[i].X < pts[j].X })

		p := plot.New()
		p.Title.Text = name
		p.X.Label.Text = "Step"
		p.Y.Label.Text = name

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("viz: line for %s: %w", name, err)
		}
		line.Width = vg.Points(1)
		p.Add(line)

		out := filepath.Join(dir, "metric_"+fileSafe(name)+".png")
		if err := p.Save(10*vg.Inch, 4*vg.Inch, out); err != nil {
			return nil, fmt.Errorf("viz: save metric plot %s: %w", name, err)
		}
		written = append(written, out)
	}
	return written, nil
}

// fileSafe maps a metric name onto the characters allowed in a file name.
func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
}
