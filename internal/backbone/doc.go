// Package backbone provides the default neural backbone behind the field's
// color branch: sinusoidal frequency encodings feeding bias-free two-layer
// MLPs built on gorgonia, plus an optional learnable per-image appearance
// embedding table.
//
// The density MLP emits a base density estimate and a geometric feature
// vector per position; the color MLP consumes the direction encoding, the
// features, and the appearance embedding. Weights live in persistent tensors
// whose backing slices are exposed through Parameters, so optimizers update
// them in place; each forward pass builds a throwaway graph over the current
// values.
//
// backbone may depend on field (for the contract types), never on model,
// checkpoint, or viz.
package backbone
