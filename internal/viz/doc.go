// Package viz renders training artifacts: certified-radius midplane heatmaps
// (gonum/plot PNGs), an HTML training report of metric series (go-echarts),
// and an STL isosurface of the occupancy field (model3d marching cubes).
//
// viz may depend on volume, field, and checkpoint, never on model.
package viz
