package viz

import (
	"fmt"

	"github.com/unixpickle/model3d/model3d"

	"github.com/radiant-data/gaussnerf/internal/volume"
)

// occupancySolid treats a pseudo-occupancy volume on the [-1,1]³ lattice as
// a solid: a point is contained when its interpolated occupancy exceeds the
// threshold.
type occupancySolid struct {
	vol       *volume.Volume
	threshold float64
}

var _ model3d.Solid = (*occupancySolid)(nil)

func (s *occupancySolid) Min() model3d.Coord3D { return model3d.XYZ(-1, -1, -1) }
func (s *occupancySolid) Max() model3d.Coord3D { return model3d.XYZ(1, 1, 1) }

func (s *occupancySolid) Contains(c model3d.Coord3D) bool {
	if !model3d.InBounds(s, c) {
		return false
	}
	return s.vol.SampleTrilinear(c.X, c.Y, c.Z) > s.threshold
}

// ExportOccupancySTL marches the occupancy isosurface at threshold and saves
// the mesh as a grouped STL file.
func ExportOccupancySTL(occupancy *volume.Volume, threshold float64, path string) error {
	if occupancy == nil || occupancy.Len() == 0 {
		return fmt.Errorf("viz: empty occupancy volume")
	}
	if threshold <= 0 || threshold >= 1 {
		return fmt.Errorf("viz: isosurface threshold %v outside (0,1)", threshold)
	}

	maxDim := occupancy.NX
	if occupancy.NY > maxDim {
		maxDim = occupancy.NY
	}
	if occupancy.NZ > maxDim {
		maxDim = occupancy.NZ
	}

	solid := &occupancySolid{vol: occupancy, threshold: threshold}
	mesh := model3d.MarchingCubesSearch(solid, 2.0/float64(maxDim), 8)
	if len(mesh.TriangleSlice()) == 0 {
		return fmt.Errorf("viz: no isosurface crosses threshold %v", threshold)
	}
	if err := mesh.SaveGroupedSTL(path); err != nil {
		return fmt.Errorf("viz: save stl %s: %w", path, err)
	}
	return nil
}
