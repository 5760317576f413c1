package nn

import (
	"github.com/canopy-ml/canopy/internal/backend/cpu"
	"github.com/canopy-ml/canopy/internal/tensor"
)

// ReLU applies max(0, x) elementwise. It has no parameters; the forward
// output is cached as the gradient mask for Backward.
type ReLU struct {
	backend *cpu.Backend
	output  *tensor.Tensor
}

// NewReLU creates a ReLU activation.
func NewReLU(backend *cpu.Backend) *ReLU {
	return &ReLU{backend: backend}
}

// Forward applies the activation.
func (r *ReLU) Forward(input *tensor.Tensor, _ bool) *tensor.Tensor {
	r.output = r.backend.ReLU(input)
	return r.output
}

// Backward masks grad by the saved activation output.
func (r *ReLU) Backward(grad *tensor.Tensor) *tensor.Tensor {
	return r.backend.ReLUBackward(r.output, grad)
}
