package nn

import (
	"fmt"

	"github.com/canopy-ml/canopy/internal/backend/cpu"
	"github.com/canopy-ml/canopy/internal/tensor"
)

// MaxPool2D is max pooling with SAME padding: output spatial size is
// ceil(input/stride). Used once, as the optional initial pool of the model.
type MaxPool2D struct {
	backend *cpu.Backend
	window  int
	stride  int

	input  *tensor.Tensor
	padBeg int
}

// NewMaxPool2D creates a SAME-padded max pooling layer.
func NewMaxPool2D(backend *cpu.Backend, window, stride int) *MaxPool2D {
	if window <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid window %d / stride %d", window, stride))
	}
	return &MaxPool2D{backend: backend, window: window, stride: stride}
}

// Forward pools a [batch, height, width, channels] input.
func (m *MaxPool2D) Forward(input *tensor.Tensor, _ bool) *tensor.Tensor {
	_, h, _, _ := input.Shape().NHWC()
	// SAME padding depends on the input size, so it is computed per call.
	padBeg, _ := cpu.SamePadding(h, m.window, m.stride)
	m.input = input
	m.padBeg = padBeg
	return m.backend.MaxPool2D(input, m.window, m.stride, padBeg)
}

// Backward routes the gradient to the window maxima of the last Forward.
func (m *MaxPool2D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	return m.backend.MaxPool2DBackward(m.input, grad, m.window, m.stride, m.padBeg)
}

// OutputSize computes the output spatial size for one input dimension.
func (m *MaxPool2D) OutputSize(in int) int {
	return (in + m.stride - 1) / m.stride
}

// AvgPool2D is average pooling with VALID padding, the final spatial
// reduction of the model.
type AvgPool2D struct {
	backend *cpu.Backend
	window  int
	stride  int

	input *tensor.Tensor
}

// NewAvgPool2D creates a VALID-padded average pooling layer.
func NewAvgPool2D(backend *cpu.Backend, window, stride int) *AvgPool2D {
	if window <= 0 || stride <= 0 {
		panic(fmt.Sprintf("avgpool2d: invalid window %d / stride %d", window, stride))
	}
	return &AvgPool2D{backend: backend, window: window, stride: stride}
}

// Forward pools a [batch, height, width, channels] input.
func (a *AvgPool2D) Forward(input *tensor.Tensor, _ bool) *tensor.Tensor {
	a.input = input
	return a.backend.AvgPool2D(input, a.window, a.stride)
}

// Backward distributes the gradient uniformly over each pooling window.
func (a *AvgPool2D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	return a.backend.AvgPool2DBackward(a.input, grad, a.window, a.stride)
}

// OutputSize computes the output spatial size for one input dimension.
func (a *AvgPool2D) OutputSize(in int) int {
	return (in-a.window)/a.stride + 1
}
