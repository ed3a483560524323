package volume

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Axis identifies one of the three spatial axes of a Volume.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// Volume is a dense scalar field on a regular NX×NY×NZ grid. Data is stored
// flat with x fastest: voxel (ix, iy, iz) lives at (iz*NY+iy)*NX+ix.
//
// Shape violations (non-positive dimensions, mismatched data lengths, even
// convolution kernels) are programmer errors and panic, following the
// convention of gonum/floats. Callers validate configuration before
// constructing volumes.
type Volume struct {
	NX, NY, NZ int
	Data       []float64
}

// New allocates a zeroed volume. Panics if any dimension is not positive.
func New(nx, ny, nz int) *Volume {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		panic(fmt.Sprintf("volume: non-positive dimensions %dx%dx%d", nx, ny, nz))
	}
	return &Volume{NX: nx, NY: ny, NZ: nz, Data: make([]float64, nx*ny*nz)}
}

// NewCube allocates a zeroed n×n×n volume.
func NewCube(n int) *Volume { return New(n, n, n) }

// FromData wraps an existing flat slice without copying. Panics if the slice
// length does not match the dimensions.
func FromData(nx, ny, nz int, data []float64) *Volume {
	if len(data) != nx*ny*nz {
		panic(fmt.Sprintf("volume: data length %d does not match %dx%dx%d", len(data), nx, ny, nz))
	}
	if nx <= 0 || ny <= 0 || nz <= 0 {
		panic(fmt.Sprintf("volume: non-positive dimensions %dx%dx%d", nx, ny, nz))
	}
	return &Volume{NX: nx, NY: ny, NZ: nz, Data: data}
}

// Idx returns the flat index of voxel (ix, iy, iz).
func (v *Volume) Idx(ix, iy, iz int) int { return (iz*v.NY+iy)*v.NX + ix }

// At returns the value of voxel (ix, iy, iz).
func (v *Volume) At(ix, iy, iz int) float64 { return v.Data[v.Idx(ix, iy, iz)] }

// Set assigns the value of voxel (ix, iy, iz).
func (v *Volume) Set(ix, iy, iz int, val float64) { v.Data[v.Idx(ix, iy, iz)] = val }

// Len returns the total voxel count.
func (v *Volume) Len() int { return len(v.Data) }

// Fill assigns val to every voxel.
func (v *Volume) Fill(val float64) {
	for i := range v.Data {
		v.Data[i] = val
	}
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	out := New(v.NX, v.NY, v.NZ)
	copy(out.Data, v.Data)
	return out
}

// SampleTrilinear interpolates the field at a normalized coordinate in
// [-1,1]³ under the aligned-corners convention: -1 maps to plane 0 and +1 to
// plane N-1 on each axis. Coordinates outside [-1,1] clamp to the border.
func (v *Volume) SampleTrilinear(x, y, z float64) float64 {
	val, _, _, _ := v.SampleTrilinearGrad(x, y, z)
	return val
}

// SampleTrilinearGrad interpolates the field at a normalized coordinate and
// returns the partial derivatives of the value with respect to the three
// normalized coordinates. Derivatives are zero along axes where the
// coordinate clamps and one-sided at exact borders; a single-plane axis
// contributes no derivative.
func (v *Volume) SampleTrilinearGrad(x, y, z float64) (val, ddx, ddy, ddz float64) {
	xi0, xi1, xw0, xw1, xdw := axisStencil(x, v.NX)
	yi0, yi1, yw0, yw1, ydw := axisStencil(y, v.NY)
	zi0, zi1, zw0, zw1, zdw := axisStencil(z, v.NZ)

	c000 := v.At(xi0, yi0, zi0)
	c100 := v.At(xi1, yi0, zi0)
	c010 := v.At(xi0, yi1, zi0)
	c110 := v.At(xi1, yi1, zi0)
	c001 := v.At(xi0, yi0, zi1)
	c101 := v.At(xi1, yi0, zi1)
	c011 := v.At(xi0, yi1, zi1)
	c111 := v.At(xi1, yi1, zi1)

	val = xw0*yw0*zw0*c000 + xw1*yw0*zw0*c100 +
		xw0*yw1*zw0*c010 + xw1*yw1*zw0*c110 +
		xw0*yw0*zw1*c001 + xw1*yw0*zw1*c101 +
		xw0*yw1*zw1*c011 + xw1*yw1*zw1*c111

	// d(weight)/d(coord) is ±dw for the lower/upper plane of the axis being
	// differentiated; the other two axes keep their interpolation weights.
	ddx = xdw * (yw0*zw0*(c100-c000) + yw1*zw0*(c110-c010) +
		yw0*zw1*(c101-c001) + yw1*zw1*(c111-c011))
	ddy = ydw * (xw0*zw0*(c010-c000) + xw1*zw0*(c110-c100) +
		xw0*zw1*(c011-c001) + xw1*zw1*(c111-c101))
	ddz = zdw * (xw0*yw0*(c001-c000) + xw1*yw0*(c101-c100) +
		xw0*yw1*(c011-c010) + xw1*yw1*(c111-c110))
	return val, ddx, ddy, ddz
}

// axisStencil maps one normalized coordinate in [-1,1] to a two-plane stencil
// along an axis with n planes. dw is the derivative of the upper-plane weight
// with respect to the normalized coordinate; it is zero when the coordinate
// clamps outside [-1,1] or the axis is degenerate, and one-sided at exact
// borders.
func axisStencil(c float64, n int) (i0, i1 int, w0, w1, dw float64) {
	if n == 1 {
		return 0, 0, 1, 0, 0
	}
	scale := float64(n-1) / 2
	g := (c + 1) * scale
	dw = scale
	if g < 0 {
		g, dw = 0, 0
	} else if g > float64(n-1) {
		g, dw = float64(n-1), 0
	}
	i0 = int(g)
	if i0 > n-2 {
		i0 = n - 2
	}
	i1 = i0 + 1
	f := g - float64(i0)
	return i0, i1, 1 - f, f, dw
}

// ConvolveAxis convolves the field with a 1D kernel along one axis, using
// zero-value padding so the output extent matches the input ("same" padding,
// stride 1). Panics if the kernel length is even or zero.
func (v *Volume) ConvolveAxis(kernel []float64, axis Axis) *Volume {
	if len(kernel) == 0 || len(kernel)%2 == 0 {
		panic(fmt.Sprintf("volume: convolution kernel length %d must be odd", len(kernel)))
	}
	var stride, n int
	switch axis {
	case AxisX:
		stride, n = 1, v.NX
	case AxisY:
		stride, n = v.NX, v.NY
	case AxisZ:
		stride, n = v.NX*v.NY, v.NZ
	default:
		panic(fmt.Sprintf("volume: unknown axis %d", int(axis)))
	}
	half := len(kernel) / 2
	out := New(v.NX, v.NY, v.NZ)
	i := 0
	for iz := 0; iz < v.NZ; iz++ {
		for iy := 0; iy < v.NY; iy++ {
			for ix := 0; ix < v.NX; ix++ {
				c := ix
				if axis == AxisY {
					c = iy
				} else if axis == AxisZ {
					c = iz
				}
				var acc float64
				for t, kv := range kernel {
					p := c + t - half
					if p < 0 || p >= n {
						continue
					}
					acc += kv * v.Data[i+(p-c)*stride]
				}
				out.Data[i] = acc
				i++
			}
		}
	}
	return out
}

// UpsampleNearest doubles the linear resolution along every axis by
// nearest-neighbor replication: output voxel i maps to input voxel i/2.
func (v *Volume) UpsampleNearest() *Volume {
	out := New(2*v.NX, 2*v.NY, 2*v.NZ)
	i := 0
	for oz := 0; oz < out.NZ; oz++ {
		for oy := 0; oy < out.NY; oy++ {
			for ox := 0; ox < out.NX; ox++ {
				out.Data[i] = v.At(ox/2, oy/2, oz/2)
				i++
			}
		}
	}
	return out
}

// LatticeSpan returns n evenly spaced normalized coordinates covering [-1,1]
// inclusive. Panics if n < 2.
func LatticeSpan(n int) []float64 {
	if n < 2 {
		panic(fmt.Sprintf("volume: lattice span needs at least 2 points, got %d", n))
	}
	s := make([]float64, n)
	floats.Span(s, -1, 1)
	return s
}

// MinMax returns the smallest and largest voxel values.
func (v *Volume) MinMax() (min, max float64) {
	return floats.Min(v.Data), floats.Max(v.Data)
}
