package nn

import (
	"math"
	"math/rand"

	"github.com/canopy-ml/canopy/internal/tensor"
)

// GlorotUniform returns a tensor initialized from the Xavier/Glorot uniform
// distribution U(-b, b) with b = sqrt(6/(fan_in + fan_out)).
func GlorotUniform(rng *rand.Rand, fanIn, fanOut int, shape tensor.Shape) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := tensor.New(shape)
	data := t.Data()
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// Ones returns a tensor filled with ones.
func Ones(shape tensor.Shape) *tensor.Tensor {
	t := tensor.New(shape)
	t.Fill(1)
	return t
}

// Zeros returns a zero-filled tensor.
func Zeros(shape tensor.Shape) *tensor.Tensor {
	return tensor.New(shape)
}
