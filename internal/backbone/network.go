package backbone

import (
	"encoding/gob"
	"fmt"
	"io"

	"gonum.org/v1/gonum/spatial/r3"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/radiant-data/gaussnerf/internal/field"
)

const (
	// posOctaves and dirOctaves set the frequency-encoding depth for
	// positions and view directions.
	posOctaves = 6
	dirOctaves = 4

	hiddenDim = 64
)

var _ field.Backbone = (*Network)(nil)

// Network is the default field.Backbone implementation.
type Network struct {
	g *gorgonia.ExprGraph

	// density MLP: position encoding -> hidden -> 1+geoFeatDim
	w0, w1 *gorgonia.Node
	// color MLP: [direction encoding | features | appearance] -> hidden -> 3
	v0, v1 *gorgonia.Node

	posDim     int
	dirDim     int
	geoFeatDim int

	// appearance is the row-major numImages×appearanceDim embedding table,
	// nil when appearance embeddings are disabled. Row -1 is the implicit
	// neutral (all-zero) embedding.
	appearance    []float64
	appearanceDim int
	numImages     int
}

// New builds a backbone from the field configuration knobs it shares.
func New(cfg *field.Config) (*Network, error) {
	if cfg == nil {
		cfg = &field.Config{}
	}
	geoFeatDim := cfg.GetGeoFeatDim()
	if geoFeatDim < 0 {
		return nil, fmt.Errorf("backbone: geo_feat_dim must be non-negative, got %d", geoFeatDim)
	}

	n := &Network{
		posDim:     encodingDim(posOctaves),
		dirDim:     encodingDim(dirOctaves),
		geoFeatDim: geoFeatDim,
	}
	if cfg.GetUseAppearanceEmbedding() {
		if cfg.GetNumImages() <= 0 {
			return nil, fmt.Errorf("backbone: appearance embeddings enabled without a positive num_images")
		}
		n.numImages = cfg.GetNumImages()
		n.appearanceDim = cfg.GetAppearanceEmbeddingDim()
		// Rows start neutral; training differentiates them per image.
		n.appearance = make([]float64, n.numImages*n.appearanceDim)
	}

	colorIn := n.dirDim + n.geoFeatDim + n.appearanceDim
	g := gorgonia.NewGraph()
	n.g = g
	n.w0 = gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(n.posDim, hiddenDim),
		gorgonia.WithName("density.w0"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	n.w1 = gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(hiddenDim, 1+n.geoFeatDim),
		gorgonia.WithName("density.w1"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	n.v0 = gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(colorIn, hiddenDim),
		gorgonia.WithName("color.w0"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	n.v1 = gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(hiddenDim, 3),
		gorgonia.WithName("color.w1"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	return n, nil
}

// DensityFeatures runs the density MLP over a position batch. The base
// density is the overflow-safe exponential of the first output channel; the
// remaining channels are the geometric features handed to the color head.
func (n *Network) DensityFeatures(positions []r3.Vec) ([]float64, [][]float64, error) {
	if len(positions) == 0 {
		return nil, nil, nil
	}
	backing := make([]float64, 0, len(positions)*n.posDim)
	for _, p := range positions {
		backing = encodeVec(backing, p, posOctaves)
	}
	raw, err := n.forward(backing, len(positions), n.posDim, n.w0, n.w1, false)
	if err != nil {
		return nil, nil, fmt.Errorf("backbone: density forward: %w", err)
	}

	width := 1 + n.geoFeatDim
	base := make([]float64, len(positions))
	features := make([][]float64, len(positions))
	for i := range positions {
		row := raw[i*width : (i+1)*width]
		base[i] = field.TruncExp(row[0])
		features[i] = append([]float64(nil), row[1:]...)
	}
	return base, features, nil
}

// Colors runs the color MLP. Camera index -1 selects the neutral appearance
// embedding; any other out-of-table index is an error.
func (n *Network) Colors(directions []r3.Vec, features [][]float64, cameraIndices []int) ([]field.RGB, error) {
	if len(features) != len(directions) || len(cameraIndices) != len(directions) {
		return nil, fmt.Errorf("backbone: mismatched color inputs: %d directions, %d features, %d camera indices",
			len(directions), len(features), len(cameraIndices))
	}
	if len(directions) == 0 {
		return nil, nil
	}

	colorIn := n.dirDim + n.geoFeatDim + n.appearanceDim
	backing := make([]float64, 0, len(directions)*colorIn)
	for i, d := range directions {
		if len(features[i]) != n.geoFeatDim {
			return nil, fmt.Errorf("backbone: feature vector %d has dim %d, want %d", i, len(features[i]), n.geoFeatDim)
		}
		backing = encodeVec(backing, d, dirOctaves)
		backing = append(backing, features[i]...)
		if n.appearance != nil {
			row, err := n.embeddingRow(cameraIndices[i])
			if err != nil {
				return nil, err
			}
			backing = append(backing, row...)
		}
	}

	raw, err := n.forward(backing, len(directions), colorIn, n.v0, n.v1, true)
	if err != nil {
		return nil, fmt.Errorf("backbone: color forward: %w", err)
	}
	out := make([]field.RGB, len(directions))
	for i := range out {
		out[i] = field.RGB{R: raw[3*i], G: raw[3*i+1], B: raw[3*i+2]}
	}
	return out, nil
}

// forward evaluates rectify(x·wa)·wb on a throwaway graph over the current
// weight values, optionally squashing the output through a sigmoid.
func (n *Network) forward(backing []float64, rows, cols int, wa, wb *gorgonia.Node, sigmoidOut bool) ([]float64, error) {
	g := gorgonia.NewGraph()
	x := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(rows, cols),
		gorgonia.WithValue(tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))))
	a := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(wa.Shape()[0], wa.Shape()[1]),
		gorgonia.WithValue(wa.Value()))
	b := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(wb.Shape()[0], wb.Shape()[1]),
		gorgonia.WithValue(wb.Value()))

	out := gorgonia.Must(gorgonia.Mul(gorgonia.Must(gorgonia.Rectify(gorgonia.Must(gorgonia.Mul(x, a)))), b))
	if sigmoidOut {
		out = gorgonia.Must(gorgonia.Sigmoid(out))
	}

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, err
	}
	data, ok := out.Value().Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("unexpected output backing %T", out.Value().Data())
	}
	return data, nil
}

func (n *Network) embeddingRow(idx int) ([]float64, error) {
	if idx == -1 {
		return make([]float64, n.appearanceDim), nil
	}
	if idx < 0 || idx >= n.numImages {
		return nil, fmt.Errorf("backbone: camera index %d outside appearance table [0,%d)", idx, n.numImages)
	}
	off := idx * n.appearanceDim
	return n.appearance[off : off+n.appearanceDim], nil
}

// Parameters exposes the live weight storage for optimizer registration.
func (n *Network) Parameters() []field.Parameter {
	params := []field.Parameter{
		{Name: "backbone.density.w0", Data: denseData(n.w0)},
		{Name: "backbone.density.w1", Data: denseData(n.w1)},
		{Name: "backbone.color.w0", Data: denseData(n.v0)},
		{Name: "backbone.color.w1", Data: denseData(n.v1)},
	}
	if n.appearance != nil {
		params = append(params, field.Parameter{Name: "backbone.appearance", Data: n.appearance})
	}
	return params
}

func denseData(node *gorgonia.Node) []float64 {
	return node.Value().Data().([]float64)
}

// Save gob-encodes the weight tensors and the appearance table.
func (n *Network) Save(w io.Writer) error {
	enc := gob.NewEncoder(w)
	for _, node := range []*gorgonia.Node{n.w0, n.w1, n.v0, n.v1} {
		if err := enc.Encode(node.Value()); err != nil {
			return fmt.Errorf("backbone: encode %s: %w", node.Name(), err)
		}
	}
	if err := enc.Encode(n.appearance); err != nil {
		return fmt.Errorf("backbone: encode appearance table: %w", err)
	}
	return nil
}

// Load restores weights saved by Save into a network of the same
// architecture. Values are copied into the live tensors so slices previously
// returned by Parameters keep observing the weights.
func (n *Network) Load(r io.Reader) error {
	dec := gob.NewDecoder(r)
	for _, node := range []*gorgonia.Node{n.w0, n.w1, n.v0, n.v1} {
		var t *tensor.Dense
		if err := dec.Decode(&t); err != nil {
			return fmt.Errorf("backbone: decode %s: %w", node.Name(), err)
		}
		if !t.Shape().Eq(node.Shape()) {
			return fmt.Errorf("backbone: %s shape %v does not match %v", node.Name(), t.Shape(), node.Shape())
		}
		vals, ok := t.Data().([]float64)
		if !ok {
			return fmt.Errorf("backbone: %s holds %T, want []float64", node.Name(), t.Data())
		}
		copy(denseData(node), vals)
	}
	var app []float64
	if err := dec.Decode(&app); err != nil {
		return fmt.Errorf("backbone: decode appearance table: %w", err)
	}
	if len(app) != len(n.appearance) {
		return fmt.Errorf("backbone: appearance table has %d values, want %d", len(app), len(n.appearance))
	}
	copy(n.appearance, app)
	return nil
}
