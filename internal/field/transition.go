package field

import (
	"fmt"
	"math"
	"sync"

	"github.com/radiant-data/gaussnerf/internal/volume"
)

// FTransition selects the pointwise nonlinearity applied to the raw grid
// before blurring.
type FTransition int

const (
	FTransitionReLU FTransition = iota
	FTransitionSigmoid
)

// ParseFTransition maps a configuration tag to an FTransition. Unrecognized
// tags are rejected.
func ParseFTransition(s string) (FTransition, error) {
	switch s {
	case "relu":
		return FTransitionReLU, nil
	case "sigmoid":
		return FTransitionSigmoid, nil
	}
	return 0, fmt.Errorf("field: unrecognized f transition %q (want relu or sigmoid)", s)
}

func (f FTransition) String() string {
	switch f {
	case FTransitionReLU:
		return "relu"
	case FTransitionSigmoid:
		return "sigmoid"
	}
	return fmt.Sprintf("FTransition(%d)", int(f))
}

// GTransition selects the sharpening stage applied after the blur.
type GTransition int

const (
	GTransitionIdentity GTransition = iota
	GTransitionSigmoid
)

// ParseGTransition maps a configuration tag to a GTransition. Unrecognized
// tags are rejected.
func ParseGTransition(s string) (GTransition, error) {
	switch s {
	case "identity":
		return GTransitionIdentity, nil
	case "sigmoid":
		return GTransitionSigmoid, nil
	}
	return 0, fmt.Errorf("field: unrecognized g transition %q (want identity or sigmoid)", s)
}

func (g GTransition) String() string {
	switch g {
	case GTransitionIdentity:
		return "identity"
	case GTransitionSigmoid:
		return "sigmoid"
	}
	return fmt.Sprintf("GTransition(%d)", int(g))
}

// Transition applies a pointwise nonlinearity to a scalar field. dst and src
// may alias.
type Transition interface {
	Name() string
	Apply(dst, src []float64)
}

// Sharpener applies the occupancy sharpening stage at a given sharpness.
// dst and src may alias.
type Sharpener interface {
	Name() string
	Apply(dst, src []float64, alpha float64)
}

// Strategy returns the Transition implementing f.
func (f FTransition) Strategy() (Transition, error) {
	switch f {
	case FTransitionReLU:
		return reluTransition{}, nil
	case FTransitionSigmoid:
		return sigmoidTransition{}, nil
	}
	return nil, fmt.Errorf("field: no strategy for f transition %d", int(f))
}

// Strategy returns the Sharpener implementing g.
func (g GTransition) Strategy() (Sharpener, error) {
	switch g {
	case GTransitionIdentity:
		return identitySharpener{}, nil
	case GTransitionSigmoid:
		return sigmoidSharpener{}, nil
	}
	return nil, fmt.Errorf("field: no strategy for g transition %d", int(g))
}

type reluTransition struct{}

func (reluTransition) Name() string { return "relu" }

func (reluTransition) Apply(dst, src []float64) {
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		} else {
			dst[i] = 0
		}
	}
}

type sigmoidTransition struct{}

func (sigmoidTransition) Name() string { return "sigmoid" }

func (sigmoidTransition) Apply(dst, src []float64) {
	for i, v := range src {
		dst[i] = sigmoid(v)
	}
}

type identitySharpener struct{}

func (identitySharpener) Name() string { return "identity" }

func (identitySharpener) Apply(dst, src []float64, _ float64) {
	copy(dst, src)
}

// sigmoidSharpener computes sigmoid(alpha·(x−0.5)), approaching a binary
// occupancy mask as alpha grows.
type sigmoidSharpener struct{}

func (sigmoidSharpener) Name() string { return "sigmoid" }

func (sigmoidSharpener) Apply(dst, src []float64, alpha float64) {
	for i, v := range src {
		dst[i] = sigmoid(alpha * (v - 0.5))
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// Pipeline turns the raw learnable grid into the pseudo-occupancy field:
// pointwise f transition, separable Gaussian blur along each axis, then the
// sharpening g transition. The pipeline owns the sharpness parameter; it is
// mutated only through SetSharpness and IncrementSharpness.
type Pipeline struct {
	f      Transition
	g      Sharpener
	kernel []float64

	mu    sync.RWMutex
	alpha float64
}

// NewPipeline validates the transition selection and builds the blur kernel.
func NewPipeline(f FTransition, g GTransition, sigma, alpha float64) (*Pipeline, error) {
	fs, err := f.Strategy()
	if err != nil {
		return nil, err
	}
	gs, err := g.Strategy()
	if err != nil {
		return nil, err
	}
	kernel, err := GaussianKernel(sigma)
	if err != nil {
		return nil, err
	}
	return &Pipeline{f: fs, g: gs, kernel: kernel, alpha: alpha}, nil
}

// Transition computes the pseudo-occupancy field from the raw grid. The input
// is not modified.
func (p *Pipeline) Transition(grid *volume.Volume) *volume.Volume {
	out := grid.Clone()
	p.f.Apply(out.Data, out.Data)
	for _, axis := range []volume.Axis{volume.AxisX, volume.AxisY, volume.AxisZ} {
		out = out.ConvolveAxis(p.kernel, axis)
	}
	p.g.Apply(out.Data, out.Data, p.Sharpness())
	return out
}

// Sharpness returns the current sharpening parameter.
func (p *Pipeline) Sharpness() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.alpha
}

// SetSharpness replaces the sharpening parameter.
func (p *Pipeline) SetSharpness(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alpha = v
}

// IncrementSharpness adds delta to the sharpening parameter and returns the
// new value.
func (p *Pipeline) IncrementSharpness(delta float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alpha += delta
	return p.alpha
}

// Kernel returns a copy of the blur kernel.
func (p *Pipeline) Kernel() []float64 {
	k := make([]float64, len(p.kernel))
	copy(k, p.kernel)
	return k
}
