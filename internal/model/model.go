package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/radiant-data/gaussnerf/internal/field"
	"github.com/radiant-data/gaussnerf/internal/monitoring"
)

// RenderOutputs is the per-ray result of one forward pass.
type RenderOutputs struct {
	RGB          []field.RGB
	Depth        []float64
	Accumulation []float64
	// Alive marks rays whose accumulated weight is positive; dead rays are
	// excluded from the pixel loss.
	Alive []bool
	// NumSamples is the total sample count the batch produced.
	NumSamples int
}

// Model ties the field to the sampling and rendering machinery for one
// training run.
type Model struct {
	field    *field.Field
	sampler  Sampler
	renderer Renderer
	occGrid  OccupancyGrid
	cfg      *Config
}

// New wires a model together. All collaborators are required.
func New(cfg *Config, f *field.Field, sampler Sampler, renderer Renderer, occGrid OccupancyGrid) (*Model, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("model: nil field")
	}
	if sampler == nil {
		return nil, fmt.Errorf("model: nil sampler")
	}
	if renderer == nil {
		return nil, fmt.Errorf("model: nil renderer")
	}
	if occGrid == nil {
		return nil, fmt.Errorf("model: nil occupancy grid")
	}
	return &Model{field: f, sampler: sampler, renderer: renderer, occGrid: occGrid, cfg: cfg}, nil
}

// Field returns the underlying radiance field.
func (m *Model) Field() *field.Field { return m.field }

// BeforeTrainIteration runs the per-step callbacks in their fixed order:
// first the occupancy grid refreshes from current field opacity, then the
// g-transition sharpness advances by the configured increment. The refresh
// therefore always sees the pre-increment sharpness.
func (m *Model) BeforeTrainIteration(step int) error {
	stepSize := m.cfg.GetRenderStepSize()
	err := m.occGrid.EveryNStep(step, func(points []r3.Vec) []float64 {
		return m.field.Opacity(points, stepSize)
	})
	if err != nil {
		return fmt.Errorf("model: occupancy refresh: %w", err)
	}
	m.field.IncrementSharpness(m.field.AlphaIncrement())
	return nil
}

// Outputs runs the forward pass for one ray bundle: sample, query the field,
// and composite colors, depth, and accumulation per ray.
func (m *Model) Outputs(bundle *RayBundle) (*RenderOutputs, error) {
	if bundle == nil || bundle.NumRays() == 0 {
		return nil, fmt.Errorf("model: empty ray bundle")
	}
	samples, err := m.sampler.Sample(bundle, SampleOptions{
		NearPlane:      m.cfg.GetNearPlane(),
		FarPlane:       m.cfg.GetFarPlane(),
		RenderStepSize: m.cfg.GetRenderStepSize(),
		ConeAngle:      m.cfg.GetConeAngle(),
	})
	if err != nil {
		return nil, fmt.Errorf("model: sampling: %w", err)
	}
	fo, err := m.field.Outputs(samples)
	if err != nil {
		return nil, err
	}

	weights := m.renderer.WeightsFromDensity(samples, fo.Density)
	rgb := m.renderer.CompositeRGB(weights, fo.RGB, samples, m.cfg.GetBackgroundColor())
	depth := m.renderer.CompositeDepth(weights, samples)
	acc := m.renderer.Accumulate(weights, samples)

	alive := make([]bool, len(acc))
	for i, a := range acc {
		alive[i] = a > 0
	}
	return &RenderOutputs{
		RGB:          rgb,
		Depth:        depth,
		Accumulation: acc,
		Alive:        alive,
		NumSamples:   samples.Len(),
	}, nil
}

// Loss computes the training losses for one batch. The pixel term is the
// mean squared color error over alive rays only; a batch with no alive rays
// contributes zero.
func (m *Model) Loss(out *RenderOutputs, bundle *RayBundle) map[string]float64 {
	return map[string]float64{"rgb_loss": maskedMSE(out, bundle)}
}

func maskedMSE(out *RenderOutputs, bundle *RayBundle) float64 {
	var sum float64
	var n int
	for i, alive := range out.Alive {
		if !alive {
			continue
		}
		p, q := out.RGB[i], bundle.PixelRGB[i]
		sum += (p.R-q.R)*(p.R-q.R) + (p.G-q.G)*(p.G-q.G) + (p.B-q.B)*(p.B-q.B)
		n += 3
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Metrics reports per-batch training scalars: PSNR derived from the masked
// color error, the batch sample count, raw grid statistics, and the current
// sharpness.
func (m *Model) Metrics(out *RenderOutputs, bundle *RayBundle) map[string]float64 {
	stats := m.field.Stats()
	return map[string]float64{
		"psnr":                  psnrFromMSE(maskedMSE(out, bundle)),
		"num_samples_per_batch": float64(out.NumSamples),
		"f_min":                 stats.Min,
		"f_max":                 stats.Max,
		"f_mean":                stats.Mean,
		"f_std":                 stats.Std,
		"alpha_value":           m.field.Sharpness(),
	}
}

// ImageMetrics extends Metrics with evaluation-only scalars. When the
// certified-radius pass succeeds it contributes eikonal_loss and the dense
// radius volume for visualization; when it fails the step is logged and
// skipped, never fatal.
func (m *Model) ImageMetrics(out *RenderOutputs, bundle *RayBundle) (map[string]float64, *field.RadiusResult) {
	metrics := m.Metrics(out, bundle)
	res, err := m.field.CertifiedRadius()
	if err != nil {
		monitoring.Logf("[Model] certified radius unavailable, skipping: %v", err)
		return metrics, nil
	}
	metrics["eikonal_loss"] = res.EikonalLoss
	return metrics, res
}

// psnrFromMSE converts a mean squared color error into peak signal-to-noise
// ratio assuming a unit peak. Zero error yields +Inf.
func psnrFromMSE(mse float64) float64 {
	if mse == 0 {
		return math.Inf(1)
	}
	return -10 * math.Log10(mse)
}
