// Package field implements the smoothed-occupancy radiance field core: a
// learnable 3D scalar grid turned into a pseudo-occupancy field by a pointwise
// transition, a separable Gaussian blur, and an annealed sharpening sigmoid;
// queried for density through an inverse-normal-CDF radius transform; and
// evaluated on a dense lattice for certified radii with an eikonal penalty on
// the radius gradients.
//
// The field owns its trainable grid and the sharpness parameter. External
// collaborators (backbone network, volumetric sampler, renderer, occupancy
// acceleration grid) are consumed through interfaces declared here and in
// package model.
//
// Layering: field may depend on volume and autodiff, never on model,
// checkpoint, or viz.
package field
