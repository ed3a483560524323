package field

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/radiant-data/gaussnerf/internal/autodiff"
	"github.com/radiant-data/gaussnerf/internal/volume"
)

// RadiusResult is a certified-radius evaluation over the dense lattice.
type RadiusResult struct {
	// Radii holds sigma·Φ⁻¹(occupancy) on a lattice at twice the grid's
	// linear resolution per axis.
	Radii *volume.Volume
	// EikonalLoss is mean((‖∇radius‖₂ − 1)²) over the lattice.
	EikonalLoss float64
}

// CertifiedRadius evaluates the signed radius field on the oversampled
// lattice together with the eikonal penalty of its spatial gradients. The
// computation is atomic with respect to grid mutation. A non-nil error means
// the result is unavailable for this step; callers choose their own logging
// policy and must not treat it as fatal to training.
func (f *Field) CertifiedRadius() (*RadiusResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	tf := f.pipeline.Transition(f.grid)
	return certifiedRadius(tf, f.sigma)
}

// certifiedRadius computes radii and eikonal loss for an occupancy volume.
//
// The dense radius volume comes from a factor-2 nearest-neighbor upsample
// followed by the inverse-CDF transform. The eikonal term re-evaluates the
// same transform at the lattice positions by explicit interpolation on a
// gradient-tracked tape, so one backward pass yields ∂radius/∂position for
// every lattice point.
func certifiedRadius(tf *volume.Volume, sigma float64) (*RadiusResult, error) {
	radii := tf.UpsampleNearest()
	for i, o := range radii.Data {
		radii.Data[i] = sigma * distuv.UnitNormal.Quantile(clampOpen01(o))
	}

	xs := volume.LatticeSpan(radii.NX)
	ys := volume.LatticeSpan(radii.NY)
	zs := volume.LatticeSpan(radii.NZ)
	total := radii.Len()
	px := make([]float64, total)
	py := make([]float64, total)
	pz := make([]float64, total)
	i := 0
	for iz := range zs {
		for iy := range ys {
			for ix := range xs {
				px[i], py[i], pz[i] = xs[ix], ys[iy], zs[iz]
				i++
			}
		}
	}

	lx := autodiff.Leaf(px, true)
	ly := autodiff.Leaf(py, true)
	lz := autodiff.Leaf(pz, true)
	occ := autodiff.SampleVolume(tf, lx, ly, lz)
	radius := autodiff.Scale(
		autodiff.NormalQuantile(autodiff.ClampInterval(occ, quantileEps, 1-quantileEps)),
		sigma,
	)
	if err := autodiff.Backward(radius); err != nil {
		return nil, fmt.Errorf("field: radius gradient pass: %w", err)
	}

	return &RadiusResult{
		Radii:       radii,
		EikonalLoss: eikonalLoss(lx.Grad, ly.Grad, lz.Grad),
	}, nil
}

// eikonalLoss reduces per-point spatial gradients to the mean squared
// deviation of their Euclidean norm from 1.
func eikonalLoss(gx, gy, gz []float64) float64 {
	if len(gx) == 0 {
		return 0
	}
	var sum float64
	for i := range gx {
		norm := math.Sqrt(gx[i]*gx[i] + gy[i]*gy[i] + gz[i]*gz[i])
		d := norm - 1
		sum += d * d
	}
	return sum / float64(len(gx))
}
