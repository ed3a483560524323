package backbone

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// encodingDim is the output width of encodeVec for one octave count: one
// sin/cos pair per octave per component.
func encodingDim(octaves int) int { return 6 * octaves }

// encodeVec appends the sinusoidal frequency encoding of v to dst and
// returns the extended slice. Each component contributes sin(2^l·π·c) and
// cos(2^l·π·c) for every octave l.
func encodeVec(dst []float64, v r3.Vec, octaves int) []float64 {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		freq := math.Pi
		for l := 0; l < octaves; l++ {
			s, cs := math.Sincos(freq * c)
			dst = append(dst, s, cs)
			freq *= 2
		}
	}
	return dst
}
