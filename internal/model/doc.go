// Package model wires the occupancy field into a training iteration: the
// per-step occupancy-grid refresh and sharpness annealing callbacks, the
// forward pass through the external sampler and renderer contracts, the
// masked pixel loss, and the metric passes that pull certified-radius results
// for visualization.
//
// Ray sampling, occupancy acceleration, and the volumetric rendering integral
// live behind interfaces: this package orchestrates them but does not
// implement them.
package model
