package field

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// GaussianKernel builds the normalized 1D blur kernel for a standard
// deviation sigma. The kernel length is int(5·sigma) rounded up to the next
// odd integer (minimum 1), and the values are samples of the zero-mean
// Gaussian density on the symmetric integer support {-len/2 … len/2},
// normalized to sum to 1.
func GaussianKernel(sigma float64) ([]float64, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("field: kernel sigma must be positive, got %v", sigma)
	}
	length := int(5 * sigma)
	if length%2 == 0 {
		length++
	}
	if length < 1 {
		length = 1
	}
	half := length / 2
	dist := distuv.Normal{Mu: 0, Sigma: sigma}
	k := make([]float64, length)
	for i := range k {
		k[i] = dist.Prob(float64(i - half))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k, nil
}
