package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/radiant-data/gaussnerf/internal/field"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
func sptr(v string) *string   { return &v }

// stubBackbone predicts a constant color with fixed-size features.
type stubBackbone struct {
	color field.RGB
}

func (b *stubBackbone) DensityFeatures(positions []r3.Vec) ([]float64, [][]float64, error) {
	base := make([]float64, len(positions))
	feats := make([][]float64, len(positions))
	for i := range feats {
		feats[i] = []float64{0.1, 0.2, 0.3}
	}
	return base, feats, nil
}

func (b *stubBackbone) Colors(directions []r3.Vec, features [][]float64, cameraIndices []int) ([]field.RGB, error) {
	out := make([]field.RGB, len(directions))
	for i := range out {
		out[i] = b.color
	}
	return out, nil
}

func (b *stubBackbone) Parameters() []field.Parameter { return nil }

// fakeSampler places perRay equally spaced samples on each ray, skipping rays
// listed in skip so tests can produce dead rays.
type fakeSampler struct {
	perRay  int
	skip    map[int]bool
	err     error
	gotOpts SampleOptions
}

func (s *fakeSampler) Sample(bundle *RayBundle, opts SampleOptions) (*field.RaySamples, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.gotOpts = opts
	rs := &field.RaySamples{NumRays: bundle.NumRays()}
	for r := 0; r < bundle.NumRays(); r++ {
		if s.skip[r] {
			continue
		}
		for k := 0; k < s.perRay; k++ {
			t0 := opts.NearPlane + float64(k)*opts.RenderStepSize
			rs.Positions = append(rs.Positions, r3.Add(bundle.Origins[r], r3.Scale(t0, bundle.Directions[r])))
			rs.Directions = append(rs.Directions, bundle.Directions[r])
			rs.CameraIndices = append(rs.CameraIndices, bundle.CameraIndices[r])
			rs.Starts = append(rs.Starts, t0)
			rs.Ends = append(rs.Ends, t0+opts.RenderStepSize)
			rs.RayIndices = append(rs.RayIndices, r)
		}
	}
	return rs, nil
}

// fakeRenderer composites with plain density·segment weights, enough to give
// the orchestration deterministic numbers.
type fakeRenderer struct{}

func (fakeRenderer) WeightsFromDensity(samples *field.RaySamples, density []float64) []float64 {
	w := make([]float64, len(density))
	for i, d := range density {
		w[i] = d * (samples.Ends[i] - samples.Starts[i])
	}
	return w
}

func (fakeRenderer) CompositeRGB(weights []float64, rgb []field.RGB, samples *field.RaySamples, background field.RGB) []field.RGB {
	out := make([]field.RGB, samples.NumRays)
	acc := fakeRenderer{}.Accumulate(weights, samples)
	for i, w := range weights {
		r := samples.RayIndices[i]
		out[r].R += w * rgb[i].R
		out[r].G += w * rgb[i].G
		out[r].B += w * rgb[i].B
	}
	for r := range out {
		rem := 1 - acc[r]
		if rem < 0 {
			rem = 0
		}
		out[r].R += rem * background.R
		out[r].G += rem * background.G
		out[r].B += rem * background.B
	}
	return out
}

func (fakeRenderer) CompositeDepth(weights []float64, samples *field.RaySamples) []float64 {
	out := make([]float64, samples.NumRays)
	for i, w := range weights {
		out[samples.RayIndices[i]] += w * 0.5 * (samples.Starts[i] + samples.Ends[i])
	}
	return out
}

func (fakeRenderer) Accumulate(weights []float64, samples *field.RaySamples) []float64 {
	out := make([]float64, samples.NumRays)
	for i, w := range weights {
		out[samples.RayIndices[i]] += w
	}
	return out
}

// fakeOccGrid records refresh steps and runs the eval callback once per call.
type fakeOccGrid struct {
	steps   []int
	onEval  func()
	evalOut []float64
	err     error
}

func (g *fakeOccGrid) EveryNStep(step int, eval func(points []r3.Vec) []float64) error {
	if g.err != nil {
		return g.err
	}
	g.steps = append(g.steps, step)
	if g.onEval != nil {
		g.onEval()
	}
	g.evalOut = eval([]r3.Vec{{}, {X: 0.5, Y: 0.5, Z: 0.5}})
	return nil
}

func testField(t *testing.T) *field.Field {
	t.Helper()
	cfg := &field.Config{
		Sigma:            fptr(1),
		FInit:            sptr("ones"),
		GridResolution:   iptr(8),
		GAlpha:           fptr(4),
		GAlphaIncrements: fptr(0.25),
	}
	f, err := field.New(cfg, field.UnitAABB(), &stubBackbone{color: field.RGB{R: 0.5, G: 0.5, B: 0.5}})
	require.NoError(t, err)
	return f
}

func newTestModel(t *testing.T, sampler *fakeSampler, occ *fakeOccGrid) *Model {
	t.Helper()
	m, err := New(nil, testField(t), sampler, fakeRenderer{}, occ)
	require.NoError(t, err)
	return m
}

func testBundle(n int) *RayBundle {
	b := &RayBundle{}
	for r := 0; r < n; r++ {
		b.Origins = append(b.Origins, r3.Vec{X: -0.2 + 0.1*float64(r)})
		b.Directions = append(b.Directions, r3.Vec{Z: 1})
		b.CameraIndices = append(b.CameraIndices, 0)
		b.PixelRGB = append(b.PixelRGB, field.RGB{R: 0.5, G: 0.5, B: 0.5})
	}
	return b
}

func TestNewRejectsMissingCollaborators(t *testing.T) {
	t.Parallel()
	f := testField(t)
	s := &fakeSampler{perRay: 1}
	g := &fakeOccGrid{}

	_, err := New(nil, nil, s, fakeRenderer{}, g)
	assert.ErrorContains(t, err, "nil field")
	_, err = New(nil, f, nil, fakeRenderer{}, g)
	assert.ErrorContains(t, err, "nil sampler")
	_, err = New(nil, f, s, nil, g)
	assert.ErrorContains(t, err, "nil renderer")
	_, err = New(nil, f, s, fakeRenderer{}, nil)
	assert.ErrorContains(t, err, "nil occupancy grid")
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	var cfg Config
	assert.Equal(t, 0.05, cfg.GetNearPlane())
	assert.Equal(t, 1000.0, cfg.GetFarPlane())
	assert.Equal(t, 0.01, cfg.GetRenderStepSize())
	assert.Equal(t, 0.004, cfg.GetConeAngle())
	assert.Equal(t, field.RGB{}, cfg.GetBackgroundColor())

	white := Config{BackgroundColor: sptr("white")}
	assert.Equal(t, field.RGB{R: 1, G: 1, B: 1}, white.GetBackgroundColor())
}

func TestConfigValidateRejections(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		cfg  Config
	}{
		{"negative near plane", Config{NearPlane: fptr(-0.1)}},
		{"far not past near", Config{NearPlane: fptr(1), FarPlane: fptr(1)}},
		{"zero step size", Config{RenderStepSize: fptr(0)}},
		{"negative cone angle", Config{ConeAngle: fptr(-0.1)}},
		{"unknown background", Config{BackgroundColor: sptr("plaid")}},
		{"bad embedded field config", Config{Field: &field.Config{Sigma: fptr(-1)}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Error(t, tc.cfg.Validate())
		})
	}
}

func TestBeforeTrainIterationRefreshesThenAnneals(t *testing.T) {
	t.Parallel()
	occ := &fakeOccGrid{}
	m := newTestModel(t, &fakeSampler{perRay: 2}, occ)

	var sharpnessAtRefresh float64
	occ.onEval = func() { sharpnessAtRefresh = m.Field().Sharpness() }

	require.NoError(t, m.BeforeTrainIteration(0))
	assert.Equal(t, 4.0, sharpnessAtRefresh, "refresh must see pre-increment sharpness")
	assert.Equal(t, 4.25, m.Field().Sharpness())

	require.NoError(t, m.BeforeTrainIteration(1))
	assert.Equal(t, 4.25, sharpnessAtRefresh)
	assert.Equal(t, 4.5, m.Field().Sharpness())
	assert.Equal(t, []int{0, 1}, occ.steps)

	require.Len(t, occ.evalOut, 2)
	for _, o := range occ.evalOut {
		assert.Greater(t, o, 0.0, "ones field opacity is strictly positive")
	}
}

func TestBeforeTrainIterationOccErrorStopsAnnealing(t *testing.T) {
	t.Parallel()
	occ := &fakeOccGrid{err: errors.New("grid offline")}
	m := newTestModel(t, &fakeSampler{perRay: 2}, occ)

	err := m.BeforeTrainIteration(7)
	require.ErrorContains(t, err, "occupancy refresh")
	assert.Equal(t, 4.0, m.Field().Sharpness(), "sharpness must not advance on failed refresh")
}

func TestOutputsForwardPass(t *testing.T) {
	t.Parallel()
	sampler := &fakeSampler{perRay: 2, skip: map[int]bool{1: true}}
	m := newTestModel(t, sampler, &fakeOccGrid{})
	bundle := testBundle(3)

	out, err := m.Outputs(bundle)
	require.NoError(t, err)

	assert.Equal(t, 4, out.NumSamples, "two live rays at two samples each")
	require.Len(t, out.RGB, 3)
	require.Len(t, out.Alive, 3)
	assert.True(t, out.Alive[0])
	assert.False(t, out.Alive[1], "unsampled ray is dead")
	assert.True(t, out.Alive[2])
	assert.Equal(t, field.RGB{}, out.RGB[1], "dead ray composites to the black background")
	assert.Zero(t, out.Accumulation[1])
	assert.Greater(t, out.Accumulation[0], 0.0)
	assert.Greater(t, out.Depth[0], 0.0)

	assert.Equal(t, SampleOptions{
		NearPlane:      0.05,
		FarPlane:       1000,
		RenderStepSize: 0.01,
		ConeAngle:      0.004,
	}, sampler.gotOpts)
}

func TestOutputsRejectsEmptyBundle(t *testing.T) {
	t.Parallel()
	m := newTestModel(t, &fakeSampler{perRay: 1}, &fakeOccGrid{})

	_, err := m.Outputs(nil)
	assert.Error(t, err)
	_, err = m.Outputs(&RayBundle{})
	assert.Error(t, err)
}

func TestOutputsSamplerErrorWrapped(t *testing.T) {
	t.Parallel()
	m := newTestModel(t, &fakeSampler{err: errors.New("no aabb intersection")}, &fakeOccGrid{})

	_, err := m.Outputs(testBundle(1))
	require.ErrorContains(t, err, "sampling")
	require.ErrorContains(t, err, "no aabb intersection")
}

func TestLossMasksDeadRays(t *testing.T) {
	t.Parallel()
	m := newTestModel(t, &fakeSampler{perRay: 1}, &fakeOccGrid{})
	bundle := &RayBundle{PixelRGB: []field.RGB{{}, {R: 1, G: 1, B: 1}}}

	out := &RenderOutputs{
		RGB:   []field.RGB{{R: 1, G: 1, B: 1}, {}},
		Alive: []bool{true, false},
	}
	losses := m.Loss(out, bundle)
	assert.InDelta(t, 1.0, losses["rgb_loss"], 1e-12, "only the alive ray contributes")

	out.Alive = []bool{false, false}
	losses = m.Loss(out, bundle)
	assert.Zero(t, losses["rgb_loss"], "batch with no alive rays contributes zero loss")
}

func TestMetricsScalars(t *testing.T) {
	t.Parallel()
	m := newTestModel(t, &fakeSampler{perRay: 2}, &fakeOccGrid{})
	bundle := testBundle(2)

	out, err := m.Outputs(bundle)
	require.NoError(t, err)

	metrics := m.Metrics(out, bundle)
	assert.Equal(t, float64(out.NumSamples), metrics["num_samples_per_batch"])
	assert.Equal(t, 1.0, metrics["f_min"], "ones init")
	assert.Equal(t, 1.0, metrics["f_max"])
	assert.Equal(t, 1.0, metrics["f_mean"])
	assert.Zero(t, metrics["f_std"])
	assert.Equal(t, m.Field().Sharpness(), metrics["alpha_value"])

	mse := maskedMSE(out, bundle)
	require.Greater(t, mse, 0.0)
	assert.InDelta(t, -10*math.Log10(mse), metrics["psnr"], 1e-12)
}

func TestImageMetricsAttachRadius(t *testing.T) {
	t.Parallel()
	m := newTestModel(t, &fakeSampler{perRay: 2}, &fakeOccGrid{})
	bundle := testBundle(2)

	out, err := m.Outputs(bundle)
	require.NoError(t, err)

	metrics, res := m.ImageMetrics(out, bundle)
	require.NotNil(t, res)
	assert.Contains(t, metrics, "eikonal_loss")
	assert.Contains(t, metrics, "psnr")
	assert.Equal(t, res.EikonalLoss, metrics["eikonal_loss"])
	assert.Equal(t, 16, res.Radii.NX, "radius lattice doubles the grid resolution")
}
