package field

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/radiant-data/gaussnerf/internal/volume"
)

const (
	// quantileEps bounds occupancy samples away from {0,1} before the
	// inverse-CDF transform, which is undefined outside the open interval.
	quantileEps = 1e-7

	// truncExpCap saturates the exponential activation input so densities
	// stay strictly positive and finite for any finite raw signal.
	truncExpCap = 80.0
)

// AABB is the axis-aligned scene bounding box in world coordinates.
type AABB struct {
	Min, Max r3.Vec
}

// UnitAABB is the normalized [-1,1]³ box used when the field stands alone.
func UnitAABB() AABB {
	return AABB{Min: r3.Vec{X: -1, Y: -1, Z: -1}, Max: r3.Vec{X: 1, Y: 1, Z: 1}}
}

// Normalize maps a world-space point into [0,1]³ box coordinates.
func (b AABB) Normalize(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: (p.X - b.Min.X) / (b.Max.X - b.Min.X),
		Y: (p.Y - b.Min.Y) / (b.Max.Y - b.Min.Y),
		Z: (p.Z - b.Min.Z) / (b.Max.Z - b.Min.Z),
	}
}

func (b AABB) validate() error {
	if !(b.Min.X < b.Max.X && b.Min.Y < b.Max.Y && b.Min.Z < b.Max.Z) {
		return fmt.Errorf("field: degenerate aabb min %v max %v", b.Min, b.Max)
	}
	return nil
}

// RGB is a linear color sample.
type RGB struct {
	R, G, B float64
}

// RaySamples is a packed batch of samples produced by the volumetric sampler.
// RayIndices assigns each sample to its owning ray in [0, NumRays).
type RaySamples struct {
	Positions     []r3.Vec
	Directions    []r3.Vec
	CameraIndices []int
	Starts        []float64
	Ends          []float64
	RayIndices    []int
	NumRays       int
}

// Len returns the sample count.
func (rs *RaySamples) Len() int { return len(rs.Positions) }

// Parameter is one named trainable tensor exposed for optimizer registration.
// Data is live storage: optimizers update it in place.
type Parameter struct {
	Name string
	Data []float64
}

// Backbone is the auxiliary density/feature/color network. Positions are
// normalized box coordinates in [0,1]³.
type Backbone interface {
	// DensityFeatures returns the backbone's own base density estimate and
	// one geometric feature vector per position.
	DensityFeatures(positions []r3.Vec) (base []float64, features [][]float64, err error)
	// Colors predicts linear RGB from view directions and geometric
	// features. cameraIndices selects per-image appearance embeddings; an
	// index of -1 uses the neutral embedding.
	Colors(directions []r3.Vec, features [][]float64, cameraIndices []int) ([]RGB, error)
	// Parameters enumerates the backbone's trainable tensors.
	Parameters() []Parameter
}

// Field is the smoothed-occupancy radiance field: the learnable grid, its
// transition pipeline, and the density/radius query surface.
//
// The mutex guards the grid against concurrent snapshot/restore while queries
// run; training itself is single-stream, with optimizers writing through the
// slices returned by Parameters.
type Field struct {
	mu       sync.RWMutex
	grid     *volume.Volume
	pipeline *Pipeline

	aabb              AABB
	sigma             float64
	densityMultiplier float64
	alphaIncrement    float64
	runID             string
	cfg               *Config

	backbone Backbone
}

// New constructs a Field from a validated configuration. backbone may be nil
// for density-only use; Outputs then fails.
func New(cfg *Config, aabb AABB, backbone Backbone) (*Field, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("field: %w", err)
	}
	if err := aabb.validate(); err != nil {
		return nil, err
	}

	initMode, err := ParseInitMode(cfg.GetFInit())
	if err != nil {
		return nil, err
	}
	fTrans, err := ParseFTransition(cfg.GetFTransition())
	if err != nil {
		return nil, err
	}
	gTrans, err := ParseGTransition(cfg.GetGTransition())
	if err != nil {
		return nil, err
	}

	grid, err := NewGrid(cfg.GetGridResolution(), initMode, nil)
	if err != nil {
		return nil, err
	}
	pipeline, err := NewPipeline(fTrans, gTrans, cfg.GetSigma(), cfg.GetGAlpha())
	if err != nil {
		return nil, err
	}

	return &Field{
		grid:              grid,
		pipeline:          pipeline,
		aabb:              aabb,
		sigma:             cfg.GetSigma(),
		densityMultiplier: cfg.GetDensityMultiplier(),
		alphaIncrement:    cfg.GetGAlphaIncrements(),
		runID:             uuid.NewString(),
		cfg:               cfg,
		backbone:          backbone,
	}, nil
}

// RunID identifies this field instance for persistence and metrics.
func (f *Field) RunID() string { return f.runID }

// Resolution returns the grid's linear resolution.
func (f *Field) Resolution() int { return f.grid.NX }

// Sigma returns the blur standard deviation.
func (f *Field) Sigma() float64 { return f.sigma }

// DensityMultiplier returns the density scale factor.
func (f *Field) DensityMultiplier() float64 { return f.densityMultiplier }

// AABB returns the scene bounding box.
func (f *Field) AABB() AABB { return f.aabb }

// Config returns the construction configuration.
func (f *Field) Config() *Config { return f.cfg }

// Sharpness returns the current g-transition sharpness.
func (f *Field) Sharpness() float64 { return f.pipeline.Sharpness() }

// SetSharpness replaces the g-transition sharpness.
func (f *Field) SetSharpness(v float64) { f.pipeline.SetSharpness(v) }

// IncrementSharpness advances the g-transition sharpness by delta and returns
// the new value.
func (f *Field) IncrementSharpness(delta float64) float64 {
	return f.pipeline.IncrementSharpness(delta)
}

// AlphaIncrement returns the configured per-iteration sharpness step.
func (f *Field) AlphaIncrement() float64 { return f.alphaIncrement }

// Transitioned computes the pseudo-occupancy field from the current grid.
func (f *Field) Transitioned() *volume.Volume {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pipeline.Transition(f.grid)
}

// Density evaluates the field density at world-space points: normalize into
// the box, trilinearly sample the transitioned field, rescale the occupancy
// through sigma·Φ⁻¹, and apply the saturating exponential activation times
// the density multiplier.
func (f *Field) Density(points []r3.Vec) []float64 {
	return f.densityFromVolume(f.Transitioned(), points)
}

func (f *Field) densityFromVolume(tf *volume.Volume, points []r3.Vec) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		n := f.aabb.Normalize(p)
		o := tf.SampleTrilinear(2*n.X-1, 2*n.Y-1, 2*n.Z-1)
		out[i] = f.densityMultiplier * TruncExp(f.sigma*distuv.UnitNormal.Quantile(clampOpen01(o)))
	}
	return out
}

// Opacity returns Density(points)·stepSize, the per-sample opacity used to
// refresh the occupancy acceleration grid.
func (f *Field) Opacity(points []r3.Vec, stepSize float64) []float64 {
	d := f.Density(points)
	for i := range d {
		d[i] *= stepSize
	}
	return d
}

// FieldOutputs is the per-sample forward result handed to the renderer.
type FieldOutputs struct {
	Density  []float64
	RGB      []RGB
	Features [][]float64
}

// GetDensity runs the density half of the forward pass: pipeline density for
// every sample plus the backbone's geometric features. The backbone's own
// base density is intentionally not combined into the returned density; only
// its features feed the color branch.
func (f *Field) GetDensity(rs *RaySamples) ([]float64, [][]float64, error) {
	tf := f.Transitioned()
	density := f.densityFromVolume(tf, rs.Positions)
	if f.backbone == nil {
		return density, nil, nil
	}
	normalized := make([]r3.Vec, len(rs.Positions))
	for i, p := range rs.Positions {
		normalized[i] = f.aabb.Normalize(p)
	}
	_, features, err := f.backbone.DensityFeatures(normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("field: backbone density: %w", err)
	}
	return density, features, nil
}

// Outputs runs the full forward pass for a sample batch: density plus
// predicted color. Camera indices must be present on the samples.
func (f *Field) Outputs(rs *RaySamples) (*FieldOutputs, error) {
	if f.backbone == nil {
		return nil, fmt.Errorf("field: no backbone wired for color prediction")
	}
	if rs.CameraIndices == nil {
		return nil, fmt.Errorf("field: ray samples missing camera indices")
	}
	density, features, err := f.GetDensity(rs)
	if err != nil {
		return nil, err
	}
	rgb, err := f.backbone.Colors(rs.Directions, features, rs.CameraIndices)
	if err != nil {
		return nil, fmt.Errorf("field: backbone colors: %w", err)
	}
	return &FieldOutputs{Density: density, RGB: rgb, Features: features}, nil
}

// Parameters enumerates the trainable tensors: the raw grid and, when a
// backbone is wired, its weights.
func (f *Field) Parameters() []Parameter {
	params := []Parameter{{Name: "field.grid", Data: f.grid.Data}}
	if f.backbone != nil {
		params = append(params, f.backbone.Parameters()...)
	}
	return params
}

// FieldStats summarizes the raw grid values.
type FieldStats struct {
	Min, Max, Mean, Std float64
}

// Stats computes summary statistics of the raw grid.
func (f *Field) Stats() FieldStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	min, max := f.grid.MinMax()
	mean, std := stat.MeanStdDev(f.grid.Data, nil)
	return FieldStats{Min: min, Max: max, Mean: mean, Std: std}
}

// TruncExp is the overflow-safe exponential: the argument saturates at
// ±truncExpCap, keeping the result strictly positive and finite.
func TruncExp(x float64) float64 {
	if x > truncExpCap {
		x = truncExpCap
	} else if x < -truncExpCap {
		x = -truncExpCap
	}
	return math.Exp(x)
}

// clampOpen01 bounds o into the epsilon interior of (0,1).
func clampOpen01(o float64) float64 {
	if o < quantileEps {
		return quantileEps
	}
	if o > 1-quantileEps {
		return 1 - quantileEps
	}
	return o
}
