package nn

import (
	"fmt"

	"github.com/canopy-ml/canopy/internal/backend/cpu"
	"github.com/canopy-ml/canopy/internal/tensor"
)

// Conv2D is a strided 2D convolution with fixed padding and L2 weight
// regularization, the padding/convolution primitive of the network.
//
// The padding is consistent and based only on the kernel size, never on the
// input dimensions: pad_total = kernel_size - 1, split as pad_total/2 before
// and the remainder after, along height and width only. With stride 1 this
// split coincides with SAME padding, so the same pair serves both cases:
//
//	stride == 1: output spatial size equals input size
//	stride  > 1: output spatial size is ceil(input/stride)
//
// A kernel size of 1 with stride > 1 pads nothing and degenerates to strided
// sampling. The layer has no bias; every convolution in this architecture is
// followed by batch normalization or feeds an additive join.
type Conv2D struct {
	backend *cpu.Backend

	inChannels int
	filters    int
	kernelSize int
	stride     int
	padBeg     int
	padEnd     int

	weight *Parameter

	input *tensor.Tensor // saved by Forward for Backward
}

// NewConv2D creates a convolution layer and registers its weight (shape
// [k, k, in_channels, filters], Glorot uniform) at path/weight with the given
// weight decay.
func NewConv2D(store *ParamStore, backend *cpu.Backend, path string, inChannels, filters, kernelSize, stride int, weightDecay float32) *Conv2D {
	if inChannels <= 0 || filters <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, filters))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}

	fanIn := kernelSize * kernelSize * inChannels
	fanOut := kernelSize * kernelSize * filters
	weight := store.Register(&Parameter{
		Path:        path + "/weight",
		Value:       GlorotUniform(store.Rand(), fanIn, fanOut, tensor.Shape{kernelSize, kernelSize, inChannels, filters}),
		WeightDecay: weightDecay,
		Trainable:   true,
	})

	padTotal := kernelSize - 1
	return &Conv2D{
		backend:    backend,
		inChannels: inChannels,
		filters:    filters,
		kernelSize: kernelSize,
		stride:     stride,
		padBeg:     padTotal / 2,
		padEnd:     padTotal - padTotal/2,
		weight:     weight,
	}
}

// Forward convolves a [batch, height, width, in_channels] input.
func (c *Conv2D) Forward(input *tensor.Tensor, _ bool) *tensor.Tensor {
	if _, _, _, ch := input.Shape().NHWC(); ch != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", ch, c.inChannels))
	}
	c.input = input
	return c.backend.Conv2D(input, c.weight.Value, c.stride, c.padBeg, c.padEnd)
}

// Backward accumulates the weight gradient and returns the input gradient.
func (c *Conv2D) Backward(grad *tensor.Tensor) *tensor.Tensor {
	c.weight.AddGrad(c.backend.Conv2DKernelBackward(c.input, c.weight.Value, grad, c.stride, c.padBeg))
	return c.backend.Conv2DInputBackward(c.input, c.weight.Value, grad, c.stride, c.padBeg)
}

// OutChannels returns the number of output channels.
func (c *Conv2D) OutChannels() int {
	return c.filters
}

// OutputSize computes the output spatial size for one input dimension.
func (c *Conv2D) OutputSize(in int) int {
	if c.stride == 1 {
		return in
	}
	return (in + c.padBeg + c.padEnd - c.kernelSize)/c.stride + 1
}

// String returns a short description of the layer.
func (c *Conv2D) String() string {
	return fmt.Sprintf("Conv2D(in=%d, filters=%d, kernel=%d, stride=%d)",
		c.inChannels, c.filters, c.kernelSize, c.stride)
}
