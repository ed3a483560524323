// Package autodiff implements a small reverse-mode differentiation tape over
// batches of float64 scalars. It exists to differentiate the radius transform
// through trilinear interpolation and the normal quantile with respect to
// sample positions, which no general matrix library in the dependency set
// provides for irregular point batches.
//
// A graph is built once, evaluated forward as it is built, and differentiated
// by a single Backward call. Values are not reusable across backward passes.
// Batch-length mismatches between operands are programmer errors and panic,
// following gonum/floats.
package autodiff

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/radiant-data/gaussnerf/internal/volume"
)

// ErrNoGrad reports that a backward pass was requested on an output with no
// path to any gradient-tracked leaf.
var ErrNoGrad = errors.New("autodiff: output does not depend on a gradient-tracked leaf")

// Value is one node of the computation graph: a batch of scalars, and after
// Backward the gradient of the seeded output with respect to each element.
type Value struct {
	Data []float64
	Grad []float64

	requiresGrad bool
	children     []*Value
	back         func()
}

// Leaf wraps a data slice as a graph input. withGrad marks the leaf as a
// differentiation target; Backward errors if the output reaches no such leaf.
// The slice is used as-is, not copied.
func Leaf(data []float64, withGrad bool) *Value {
	return &Value{
		Data:         data,
		Grad:         make([]float64, len(data)),
		requiresGrad: withGrad,
	}
}

// Const wraps a data slice as a non-differentiated graph input.
func Const(data []float64) *Value { return Leaf(data, false) }

func newValue(n int, children ...*Value) *Value {
	v := &Value{
		Data:     make([]float64, n),
		Grad:     make([]float64, n),
		children: children,
	}
	for _, c := range children {
		if c.requiresGrad {
			v.requiresGrad = true
			break
		}
	}
	return v
}

func sameLen(a, b *Value) int {
	if len(a.Data) != len(b.Data) {
		panic(fmt.Sprintf("autodiff: batch length mismatch %d vs %d", len(a.Data), len(b.Data)))
	}
	return len(a.Data)
}

// Add returns x + y elementwise.
func Add(x, y *Value) *Value {
	out := newValue(sameLen(x, y), x, y)
	for i := range out.Data {
		out.Data[i] = x.Data[i] + y.Data[i]
	}
	out.back = func() {
		for i, g := range out.Grad {
			x.Grad[i] += g
			y.Grad[i] += g
		}
	}
	return out
}

// Mul returns x * y elementwise.
func Mul(x, y *Value) *Value {
	out := newValue(sameLen(x, y), x, y)
	for i := range out.Data {
		out.Data[i] = x.Data[i] * y.Data[i]
	}
	out.back = func() {
		for i, g := range out.Grad {
			x.Grad[i] += y.Data[i] * g
			y.Grad[i] += x.Data[i] * g
		}
	}
	return out
}

// Scale returns a·x elementwise for a scalar a.
func Scale(x *Value, a float64) *Value {
	out := newValue(len(x.Data), x)
	for i, d := range x.Data {
		out.Data[i] = a * d
	}
	out.back = func() {
		for i, g := range out.Grad {
			x.Grad[i] += a * g
		}
	}
	return out
}

// AddConst returns x + a elementwise for a scalar a.
func AddConst(x *Value, a float64) *Value {
	out := newValue(len(x.Data), x)
	for i, d := range x.Data {
		out.Data[i] = d + a
	}
	out.back = func() {
		for i, g := range out.Grad {
			x.Grad[i] += g
		}
	}
	return out
}

// ReLU returns max(x, 0) elementwise.
func ReLU(x *Value) *Value {
	out := newValue(len(x.Data), x)
	for i, d := range x.Data {
		if d > 0 {
			out.Data[i] = d
		}
	}
	out.back = func() {
		for i, g := range out.Grad {
			if x.Data[i] > 0 {
				x.Grad[i] += g
			}
		}
	}
	return out
}

// Sigmoid returns 1/(1+exp(-x)) elementwise.
func Sigmoid(x *Value) *Value {
	out := newValue(len(x.Data), x)
	for i, d := range x.Data {
		out.Data[i] = 1 / (1 + math.Exp(-d))
	}
	out.back = func() {
		for i, g := range out.Grad {
			s := out.Data[i]
			x.Grad[i] += s * (1 - s) * g
		}
	}
	return out
}

// ClampInterval returns x limited to [lo, hi] elementwise. The gradient
// passes through where lo ≤ x ≤ hi and is zero where the input was clipped.
func ClampInterval(x *Value, lo, hi float64) *Value {
	out := newValue(len(x.Data), x)
	for i, d := range x.Data {
		switch {
		case d < lo:
			out.Data[i] = lo
		case d > hi:
			out.Data[i] = hi
		default:
			out.Data[i] = d
		}
	}
	out.back = func() {
		for i, g := range out.Grad {
			if d := x.Data[i]; d >= lo && d <= hi {
				x.Grad[i] += g
			}
		}
	}
	return out
}

// NormalQuantile returns Φ⁻¹(x) elementwise for the standard normal CDF Φ.
// Inputs must lie strictly inside (0,1); clamp first (see ClampInterval).
// The derivative is 1/φ(Φ⁻¹(x)) with φ the standard normal density.
func NormalQuantile(x *Value) *Value {
	out := newValue(len(x.Data), x)
	deriv := make([]float64, len(x.Data))
	for i, d := range x.Data {
		q := distuv.UnitNormal.Quantile(d)
		out.Data[i] = q
		deriv[i] = 1 / distuv.UnitNormal.Prob(q)
	}
	out.back = func() {
		for i, g := range out.Grad {
			x.Grad[i] += deriv[i] * g
		}
	}
	return out
}

// SampleVolume trilinearly samples vol at the normalized coordinates given by
// the three parallel batches px, py, pz. Gradients flow to the coordinates
// only; the volume is treated as constant.
func SampleVolume(vol *volume.Volume, px, py, pz *Value) *Value {
	n := sameLen(px, py)
	sameLen(py, pz)
	out := newValue(n, px, py, pz)
	gx := make([]float64, n)
	gy := make([]float64, n)
	gz := make([]float64, n)
	for i := 0; i < n; i++ {
		val, ddx, ddy, ddz := vol.SampleTrilinearGrad(px.Data[i], py.Data[i], pz.Data[i])
		out.Data[i] = val
		gx[i], gy[i], gz[i] = ddx, ddy, ddz
	}
	out.back = func() {
		for i, g := range out.Grad {
			px.Grad[i] += gx[i] * g
			py.Grad[i] += gy[i] * g
			pz.Grad[i] += gz[i] * g
		}
	}
	return out
}

// Backward accumulates gradients of out into every upstream Value, seeding
// each element of out with gradient 1 (the gradient of the implicit sum over
// the batch). It returns ErrNoGrad if the graph holds no tracked leaf.
func Backward(out *Value) error {
	if !out.requiresGrad {
		return ErrNoGrad
	}
	var order []*Value
	visited := map[*Value]bool{}
	var build func(*Value)
	build = func(v *Value) {
		if visited[v] {
			return
		}
		visited[v] = true
		for _, c := range v.children {
			build(c)
		}
		order = append(order, v)
	}
	build(out)
	for i := range out.Grad {
		out.Grad[i] = 1
	}
	for i := len(order) - 1; i >= 0; i-- {
		if order[i].back != nil {
			order[i].back()
		}
	}
	return nil
}
