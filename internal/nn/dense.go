package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/canopy-ml/canopy/internal/tensor"
)

// Dense is the fully connected projection producing the class logits.
//
// Forward computes y = x·W + b for x of shape [batch, in_features], with W
// [in_features, out_features] under L2 weight decay and b [out_features].
// The matrix products run through gonum; the float32 tensors are widened to
// float64 at the boundary.
type Dense struct {
	inFeatures  int
	outFeatures int

	weight *Parameter
	bias   *Parameter

	input *tensor.Tensor
}

// NewDense creates a dense layer, registering weight (Glorot uniform, with
// weight decay) and bias (zeros) under path.
func NewDense(store *ParamStore, path string, inFeatures, outFeatures int, weightDecay float32) *Dense {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("dense: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}
	return &Dense{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight: store.Register(&Parameter{
			Path:        path + "/weight",
			Value:       GlorotUniform(store.Rand(), inFeatures, outFeatures, tensor.Shape{inFeatures, outFeatures}),
			WeightDecay: weightDecay,
			Trainable:   true,
		}),
		bias: store.Register(&Parameter{
			Path:      path + "/bias",
			Value:     Zeros(tensor.Shape{outFeatures}),
			Trainable: true,
		}),
	}
}

// Forward computes the projection for a [batch, in_features] input.
func (d *Dense) Forward(input *tensor.Tensor, _ bool) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 2 || shape[1] != d.inFeatures {
		panic(fmt.Sprintf("dense: expected input [batch %d], got %v", d.inFeatures, shape))
	}
	d.input = input

	batch := shape[0]
	x := toDense(input.Data(), batch, d.inFeatures)
	w := toDense(d.weight.Value.Data(), d.inFeatures, d.outFeatures)

	var y mat.Dense
	y.Mul(x, w)

	output := tensor.New(tensor.Shape{batch, d.outFeatures})
	outData := output.Data()
	biasData := d.bias.Value.Data()
	for i := 0; i < batch; i++ {
		for j := 0; j < d.outFeatures; j++ {
			outData[i*d.outFeatures+j] = float32(y.At(i, j)) + biasData[j]
		}
	}
	return output
}

// Backward accumulates weight/bias gradients and returns the input gradient.
func (d *Dense) Backward(grad *tensor.Tensor) *tensor.Tensor {
	batch := d.input.Shape()[0]
	x := toDense(d.input.Data(), batch, d.inFeatures)
	w := toDense(d.weight.Value.Data(), d.inFeatures, d.outFeatures)
	g := toDense(grad.Data(), batch, d.outFeatures)

	var wGrad mat.Dense
	wGrad.Mul(x.T(), g)
	d.weight.AddGrad(fromDense(&wGrad, tensor.Shape{d.inFeatures, d.outFeatures}))

	biasGrad := tensor.New(tensor.Shape{d.outFeatures})
	biasData := biasGrad.Data()
	gradData := grad.Data()
	for i := 0; i < batch; i++ {
		for j := 0; j < d.outFeatures; j++ {
			biasData[j] += gradData[i*d.outFeatures+j]
		}
	}
	d.bias.AddGrad(biasGrad)

	var xGrad mat.Dense
	xGrad.Mul(g, w.T())
	return fromDense(&xGrad, tensor.Shape{batch, d.inFeatures})
}

func toDense(data []float32, rows, cols int) *mat.Dense {
	wide := make([]float64, len(data))
	for i, v := range data {
		wide[i] = float64(v)
	}
	return mat.NewDense(rows, cols, wide)
}

func fromDense(m *mat.Dense, shape tensor.Shape) *tensor.Tensor {
	t := tensor.New(shape)
	data := t.Data()
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data[i*cols+j] = float32(m.At(i, j))
		}
	}
	return t
}
