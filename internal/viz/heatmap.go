package viz

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/radiant-data/gaussnerf/internal/field"
	"github.com/radiant-data/gaussnerf/internal/volume"
)

// planeGrid adapts one midplane of a radius volume to plotter.GridXYZ.
// Values are normalized to [0,1] and plot coordinates are the lattice spans.
type planeGrid struct {
	xs, ys []float64
	vals   []float64
}

func (g *planeGrid) Dims() (int, int)   { return len(g.xs), len(g.ys) }
func (g *planeGrid) Z(c, r int) float64 { return g.vals[r*len(g.xs)+c] }
func (g *planeGrid) X(c int) float64    { return g.xs[c] }
func (g *planeGrid) Y(r int) float64    { return g.ys[r] }

// normalizeRadius maps a signed radius into [0,1]: -4σ to 0, +4σ to 1, with
// values beyond that band clamped.
func normalizeRadius(r, sigma float64) float64 {
	v := (r + 4*sigma) / (8 * sigma)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RadiusSlice extracts the normalized midplane of the radius volume
// perpendicular to axis.
func RadiusSlice(radii *volume.Volume, axis volume.Axis, sigma float64) plotter.GridXYZ {
	var g *planeGrid
	switch axis {
	case volume.AxisZ:
		g = &planeGrid{xs: volume.LatticeSpan(radii.NX), ys: volume.LatticeSpan(radii.NY)}
		iz := radii.NZ / 2
		for r := 0; r < radii.NY; r++ {
			for c := 0; c < radii.NX; c++ {
				g.vals = append(g.vals, normalizeRadius(radii.At(c, r, iz), sigma))
			}
		}
	case volume.AxisY:
		g = &planeGrid{xs: volume.LatticeSpan(radii.NX), ys: volume.LatticeSpan(radii.NZ)}
		iy := radii.NY / 2
		for r := 0; r < radii.NZ; r++ {
			for c := 0; c < radii.NX; c++ {
				g.vals = append(g.vals, normalizeRadius(radii.At(c, iy, r), sigma))
			}
		}
	default:
		g = &planeGrid{xs: volume.LatticeSpan(radii.NY), ys: volume.LatticeSpan(radii.NZ)}
		ix := radii.NX / 2
		for r := 0; r < radii.NZ; r++ {
			for c := 0; c < radii.NY; c++ {
				g.vals = append(g.vals, normalizeRadius(radii.At(ix, c, r), sigma))
			}
		}
	}
	return g
}

// SaveRadiusHeatmaps writes one midplane heatmap PNG per axis into dir and
// returns the written paths.
func SaveRadiusHeatmaps(res *field.RadiusResult, sigma float64, dir string) ([]string, error) {
	if res == nil || res.Radii == nil || res.Radii.Len() == 0 {
		return nil, fmt.Errorf("viz: empty radius result")
	}
	if sigma <= 0 {
		return nil, fmt.Errorf("viz: sigma must be positive, got %v", sigma)
	}

	planes := []struct {
		file   string
		title  string
		axis   volume.Axis
		xl, yl string
	}{
		{"radius_xy.png", "Certified radius, XY midplane", volume.AxisZ, "x", "y"},
		{"radius_xz.png", "Certified radius, XZ midplane", volume.AxisY, "x", "z"},
		{"radius_yz.png", "Certified radius, YZ midplane", volume.AxisX, "y", "z"},
	}

	var written []string
	for _, pl := range planes {
		grid := RadiusSlice(res.Radii, pl.axis, sigma)

		p := plot.New()
		p.Title.Text = pl.title
		p.X.Label.Text = pl.xl
		p.Y.Label.Text = pl.yl
		p.Add(plotter.NewHeatMap(grid, palette.Heat(12, 1)))

		out := filepath.Join(dir, pl.file)
		if err := p.Save(6*vg.Inch, 6*vg.Inch, out); err != nil {
			return nil, fmt.Errorf("viz: save heatmap %s: %w", pl.file, err)
		}
		written = append(written, out)
	}
	return written, nil
}
