package field

import (
	"fmt"
	"math/rand"

	"github.com/radiant-data/gaussnerf/internal/volume"
)

// InitMode selects how the learnable grid is initialized.
type InitMode int

const (
	InitOnes InitMode = iota
	InitZeros
	InitRand
)

// ParseInitMode maps a configuration tag to an InitMode. Unrecognized tags
// are rejected.
func ParseInitMode(s string) (InitMode, error) {
	switch s {
	case "ones":
		return InitOnes, nil
	case "zeros":
		return InitZeros, nil
	case "rand":
		return InitRand, nil
	}
	return 0, fmt.Errorf("field: unrecognized init mode %q (want ones, zeros, or rand)", s)
}

func (m InitMode) String() string {
	switch m {
	case InitOnes:
		return "ones"
	case InitZeros:
		return "zeros"
	case InitRand:
		return "rand"
	}
	return fmt.Sprintf("InitMode(%d)", int(m))
}

// NewGrid allocates the learnable resolution³ grid. Modes other than ones and
// zeros take the random branch, drawing uniformly from [0.5, 1). A nil rng
// uses the shared global source.
func NewGrid(resolution int, mode InitMode, rng *rand.Rand) (*volume.Volume, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("field: grid resolution must be positive, got %d", resolution)
	}
	v := volume.NewCube(resolution)
	switch mode {
	case InitOnes:
		v.Fill(1)
	case InitZeros:
		// Zero value already.
	default:
		uniform := rand.Float64
		if rng != nil {
			uniform = rng.Float64
		}
		for i := range v.Data {
			v.Data[i] = 0.5 + 0.5*uniform()
		}
	}
	return v, nil
}
