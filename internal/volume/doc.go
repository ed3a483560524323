// Package volume provides a dense scalar field sampled on a regular 3D grid,
// together with the primitives the occupancy pipeline is built from: trilinear
// sampling under the aligned-corners convention, 1D convolution along a single
// axis, nearest-neighbor upsampling, and lattice coordinate spans.
//
// Layering: volume is a leaf package and must not import any other internal
// package.
package volume
