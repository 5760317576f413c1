package cpu

import (
	"fmt"

	"github.com/canopy-ml/canopy/internal/tensor"
)

// Add returns the elementwise sum of two tensors of identical shape.
//
// This is the additive join of the residual blocks. A shape mismatch here
// means the caller wired a block without the required projection shortcut,
// which is a construction defect, so it panics.
func (b *Backend) Add(x, y *tensor.Tensor) *tensor.Tensor {
	if !x.Shape().Equal(y.Shape()) {
		panic(fmt.Sprintf("add: shape mismatch %v vs %v (missing projection shortcut?)", x.Shape(), y.Shape()))
	}
	out := tensor.New(x.Shape())
	outData := out.Data()
	yData := y.Data()
	for i, v := range x.Data() {
		outData[i] = v + yData[i]
	}
	return out
}

// ReLU applies max(0, x) elementwise.
func (b *Backend) ReLU(x *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(x.Shape())
	outData := out.Data()
	for i, v := range x.Data() {
		if v > 0 {
			outData[i] = v
		}
	}
	return out
}

// ReLUBackward masks the gradient by the activation output: positions that
// were clipped to zero propagate no gradient.
func (b *Backend) ReLUBackward(output, grad *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(grad.Shape())
	outData := out.Data()
	gradData := grad.Data()
	for i, v := range output.Data() {
		if v > 0 {
			outData[i] = gradData[i]
		}
	}
	return out
}
