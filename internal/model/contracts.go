package model

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/radiant-data/gaussnerf/internal/field"
)

// RayBundle is one training batch of camera rays.
type RayBundle struct {
	Origins       []r3.Vec
	Directions    []r3.Vec
	CameraIndices []int
	// PixelRGB holds the ground-truth pixel colors for loss computation.
	PixelRGB []field.RGB
}

// NumRays returns the ray count.
func (b *RayBundle) NumRays() int { return len(b.Origins) }

// SampleOptions carries the march parameters handed to the sampler.
type SampleOptions struct {
	NearPlane      float64
	FarPlane       float64
	RenderStepSize float64
	ConeAngle      float64
}

// Sampler generates ray samples against the acceleration structure. The
// returned batch must carry ray indices into the bundle and per-sample
// segment bounds.
type Sampler interface {
	Sample(bundle *RayBundle, opts SampleOptions) (*field.RaySamples, error)
}

// OccupancyGrid is the acceleration structure refreshed from field opacity.
// Implementations decide their own cadence from step; eval returns the
// per-point opacity used to update occupancy bits.
type OccupancyGrid interface {
	EveryNStep(step int, eval func(points []r3.Vec) []float64) error
}

// Renderer composites per-sample field outputs into per-ray images.
type Renderer interface {
	// WeightsFromDensity integrates densities over sample segments into
	// compositing weights.
	WeightsFromDensity(samples *field.RaySamples, density []float64) []float64
	// CompositeRGB blends sample colors into per-ray colors over background.
	CompositeRGB(weights []float64, rgb []field.RGB, samples *field.RaySamples, background field.RGB) []field.RGB
	// CompositeDepth produces expected depth per ray.
	CompositeDepth(weights []float64, samples *field.RaySamples) []float64
	// Accumulate sums weights per ray (opacity accumulation).
	Accumulate(weights []float64, samples *field.RaySamples) []float64
}
