package resnet

import (
	"github.com/canopy-ml/canopy/internal/backend/cpu"
	"github.com/canopy-ml/canopy/internal/nn"
	"github.com/canopy-ml/canopy/internal/tensor"
)

// block is one residual unit. Forward in training mode caches whatever
// Backward needs; blocks follow the same layer contract as the nn package.
type block interface {
	Forward(input *tensor.Tensor, training bool) *tensor.Tensor
	Backward(grad *tensor.Tensor) *tensor.Tensor
}

// shortcut is the optional 1x1 projection applied when a block changes the
// channel count or spatial size. In v1 blocks the projected tensor is batch
// normalized; v2 blocks use the raw projection.
type shortcut struct {
	conv *nn.Conv2D
	bn   *nn.BatchNorm // nil for v2
}

func newShortcut(store *nn.ParamStore, backend *cpu.Backend, path string, inChannels, filtersOut, stride int, wd float32, withBN bool) *shortcut {
	s := &shortcut{
		conv: nn.NewConv2D(store, backend, path+"/conv", inChannels, filtersOut, 1, stride, wd),
	}
	if withBN {
		s.bn = nn.NewBatchNorm(store, backend, path+"/bn", filtersOut)
	}
	return s
}

func (s *shortcut) forward(input *tensor.Tensor, training bool) *tensor.Tensor {
	out := s.conv.Forward(input, training)
	if s.bn != nil {
		out = s.bn.Forward(out, training)
	}
	return out
}

func (s *shortcut) backward(grad *tensor.Tensor) *tensor.Tensor {
	if s.bn != nil {
		grad = s.bn.Backward(grad)
	}
	return s.conv.Backward(grad)
}

// basicV1 is the original two-convolution residual block: both convolutions
// are followed by batch normalization, the identity join comes before the
// final activation.
//
//	out = relu(bn2(conv2(relu(bn1(conv1(x))))) + shortcut(x))
type basicV1 struct {
	backend  *cpu.Backend
	proj     *shortcut
	conv1    *nn.Conv2D
	bn1      *nn.BatchNorm
	relu1    *nn.ReLU
	conv2    *nn.Conv2D
	bn2      *nn.BatchNorm
	reluJoin *nn.ReLU
}

func newBasicV1(store *nn.ParamStore, backend *cpu.Backend, path string, inChannels, filters, stride int, project bool, wd float32) *basicV1 {
	b := &basicV1{
		backend:  backend,
		conv1:    nn.NewConv2D(store, backend, path+"/conv1", inChannels, filters, 3, stride, wd),
		bn1:      nn.NewBatchNorm(store, backend, path+"/bn1", filters),
		relu1:    nn.NewReLU(backend),
		conv2:    nn.NewConv2D(store, backend, path+"/conv2", filters, filters, 3, 1, wd),
		bn2:      nn.NewBatchNorm(store, backend, path+"/bn2", filters),
		reluJoin: nn.NewReLU(backend),
	}
	if project {
		b.proj = newShortcut(store, backend, path+"/shortcut", inChannels, filters, stride, wd, true)
	}
	return b
}

func (b *basicV1) Forward(input *tensor.Tensor, training bool) *tensor.Tensor {
	identity := input
	if b.proj != nil {
		identity = b.proj.forward(input, training)
	}

	out := b.conv1.Forward(input, training)
	out = b.bn1.Forward(out, training)
	out = b.relu1.Forward(out, training)
	out = b.conv2.Forward(out, training)
	out = b.bn2.Forward(out, training)
	return b.reluJoin.Forward(b.backend.Add(out, identity), training)
}

func (b *basicV1) Backward(grad *tensor.Tensor) *tensor.Tensor {
	grad = b.reluJoin.Backward(grad)

	main := b.bn2.Backward(grad)
	main = b.conv2.Backward(main)
	main = b.relu1.Backward(main)
	main = b.bn1.Backward(main)
	main = b.conv1.Backward(main)

	if b.proj != nil {
		return b.backend.Add(main, b.proj.backward(grad))
	}
	return b.backend.Add(main, grad)
}

// basicV2 is the pre-activation variant of the basic block: batch norm and
// ReLU precede each convolution, the projection consumes the pre-activated
// tensor, and the additive join is the block output with no trailing
// activation.
type basicV2 struct {
	backend *cpu.Backend
	proj    *shortcut
	bn1     *nn.BatchNorm
	relu1   *nn.ReLU
	conv1   *nn.Conv2D
	bn2     *nn.BatchNorm
	relu2   *nn.ReLU
	conv2   *nn.Conv2D
}

func newBasicV2(store *nn.ParamStore, backend *cpu.Backend, path string, inChannels, filters, stride int, project bool, wd float32) *basicV2 {
	b := &basicV2{
		backend: backend,
		bn1:     nn.NewBatchNorm(store, backend, path+"/bn1", inChannels),
		relu1:   nn.NewReLU(backend),
		conv1:   nn.NewConv2D(store, backend, path+"/conv1", inChannels, filters, 3, stride, wd),
		bn2:     nn.NewBatchNorm(store, backend, path+"/bn2", filters),
		relu2:   nn.NewReLU(backend),
		conv2:   nn.NewConv2D(store, backend, path+"/conv2", filters, filters, 3, 1, wd),
	}
	if project {
		b.proj = newShortcut(store, backend, path+"/shortcut", inChannels, filters, stride, wd, false)
	}
	return b
}

func (b *basicV2) Forward(input *tensor.Tensor, training bool) *tensor.Tensor {
	pre := b.bn1.Forward(input, training)
	pre = b.relu1.Forward(pre, training)

	identity := input
	if b.proj != nil {
		identity = b.proj.forward(pre, training)
	}

	out := b.conv1.Forward(pre, training)
	out = b.bn2.Forward(out, training)
	out = b.relu2.Forward(out, training)
	out = b.conv2.Forward(out, training)
	return b.backend.Add(out, identity)
}

func (b *basicV2) Backward(grad *tensor.Tensor) *tensor.Tensor {
	main := b.conv2.Backward(grad)
	main = b.relu2.Backward(main)
	main = b.bn2.Backward(main)
	preGrad := b.conv1.Backward(main)

	if b.proj != nil {
		preGrad = b.backend.Add(preGrad, b.proj.backward(grad))
	}

	inGrad := b.relu1.Backward(preGrad)
	inGrad = b.bn1.Backward(inGrad)

	if b.proj == nil {
		inGrad = b.backend.Add(inGrad, grad)
	}
	return inGrad
}

// bottleneckV1 is the three-convolution post-activation block: a 1x1
// reduction, the strided 3x3, then a 1x1 expansion to four times the block
// filter count.
type bottleneckV1 struct {
	backend  *cpu.Backend
	proj     *shortcut
	conv1    *nn.Conv2D
	bn1      *nn.BatchNorm
	relu1    *nn.ReLU
	conv2    *nn.Conv2D
	bn2      *nn.BatchNorm
	relu2    *nn.ReLU
	conv3    *nn.Conv2D
	bn3      *nn.BatchNorm
	reluJoin *nn.ReLU
}

func newBottleneckV1(store *nn.ParamStore, backend *cpu.Backend, path string, inChannels, filters, stride int, project bool, wd float32) *bottleneckV1 {
	filtersOut := filters * expansion
	b := &bottleneckV1{
		backend:  backend,
		conv1:    nn.NewConv2D(store, backend, path+"/conv1", inChannels, filters, 1, 1, wd),
		bn1:      nn.NewBatchNorm(store, backend, path+"/bn1", filters),
		relu1:    nn.NewReLU(backend),
		conv2:    nn.NewConv2D(store, backend, path+"/conv2", filters, filters, 3, stride, wd),
		bn2:      nn.NewBatchNorm(store, backend, path+"/bn2", filters),
		relu2:    nn.NewReLU(backend),
		conv3:    nn.NewConv2D(store, backend, path+"/conv3", filters, filtersOut, 1, 1, wd),
		bn3:      nn.NewBatchNorm(store, backend, path+"/bn3", filtersOut),
		reluJoin: nn.NewReLU(backend),
	}
	if project {
		b.proj = newShortcut(store, backend, path+"/shortcut", inChannels, filtersOut, stride, wd, true)
	}
	return b
}

func (b *bottleneckV1) Forward(input *tensor.Tensor, training bool) *tensor.Tensor {
	identity := input
	if b.proj != nil {
		identity = b.proj.forward(input, training)
	}

	out := b.conv1.Forward(input, training)
	out = b.bn1.Forward(out, training)
	out = b.relu1.Forward(out, training)
	out = b.conv2.Forward(out, training)
	out = b.bn2.Forward(out, training)
	out = b.relu2.Forward(out, training)
	out = b.conv3.Forward(out, training)
	out = b.bn3.Forward(out, training)
	return b.reluJoin.Forward(b.backend.Add(out, identity), training)
}

func (b *bottleneckV1) Backward(grad *tensor.Tensor) *tensor.Tensor {
	grad = b.reluJoin.Backward(grad)

	main := b.bn3.Backward(grad)
	main = b.conv3.Backward(main)
	main = b.relu2.Backward(main)
	main = b.bn2.Backward(main)
	main = b.conv2.Backward(main)
	main = b.relu1.Backward(main)
	main = b.bn1.Backward(main)
	main = b.conv1.Backward(main)

	if b.proj != nil {
		return b.backend.Add(main, b.proj.backward(grad))
	}
	return b.backend.Add(main, grad)
}

// bottleneckV2 is the pre-activation bottleneck block.
type bottleneckV2 struct {
	backend *cpu.Backend
	proj    *shortcut
	bn1     *nn.BatchNorm
	relu1   *nn.ReLU
	conv1   *nn.Conv2D
	bn2     *nn.BatchNorm
	relu2   *nn.ReLU
	conv2   *nn.Conv2D
	bn3     *nn.BatchNorm
	relu3   *nn.ReLU
	conv3   *nn.Conv2D
}

func newBottleneckV2(store *nn.ParamStore, backend *cpu.Backend, path string, inChannels, filters, stride int, project bool, wd float32) *bottleneckV2 {
	filtersOut := filters * expansion
	b := &bottleneckV2{
		backend: backend,
		bn1:     nn.NewBatchNorm(store, backend, path+"/bn1", inChannels),
		relu1:   nn.NewReLU(backend),
		conv1:   nn.NewConv2D(store, backend, path+"/conv1", inChannels, filters, 1, 1, wd),
		bn2:     nn.NewBatchNorm(store, backend, path+"/bn2", filters),
		relu2:   nn.NewReLU(backend),
		conv2:   nn.NewConv2D(store, backend, path+"/conv2", filters, filters, 3, stride, wd),
		bn3:     nn.NewBatchNorm(store, backend, path+"/bn3", filters),
		relu3:   nn.NewReLU(backend),
		conv3:   nn.NewConv2D(store, backend, path+"/conv3", filters, filtersOut, 1, 1, wd),
	}
	if project {
		b.proj = newShortcut(store, backend, path+"/shortcut", inChannels, filtersOut, stride, wd, false)
	}
	return b
}

func (b *bottleneckV2) Forward(input *tensor.Tensor, training bool) *tensor.Tensor {
	pre := b.bn1.Forward(input, training)
	pre = b.relu1.Forward(pre, training)

	identity := input
	if b.proj != nil {
		identity = b.proj.forward(pre, training)
	}

	out := b.conv1.Forward(pre, training)
	out = b.bn2.Forward(out, training)
	out = b.relu2.Forward(out, training)
	out = b.conv2.Forward(out, training)
	out = b.bn3.Forward(out, training)
	out = b.relu3.Forward(out, training)
	out = b.conv3.Forward(out, training)
	return b.backend.Add(out, identity)
}

func (b *bottleneckV2) Backward(grad *tensor.Tensor) *tensor.Tensor {
	main := b.conv3.Backward(grad)
	main = b.relu3.Backward(main)
	main = b.bn3.Backward(main)
	main = b.conv2.Backward(main)
	main = b.relu2.Backward(main)
	main = b.bn2.Backward(main)
	preGrad := b.conv1.Backward(main)

	if b.proj != nil {
		preGrad = b.backend.Add(preGrad, b.proj.backward(grad))
	}

	inGrad := b.relu1.Backward(preGrad)
	inGrad = b.bn1.Backward(inGrad)

	if b.proj == nil {
		inGrad = b.backend.Add(inGrad, grad)
	}
	return inGrad
}

// newBlock builds one residual unit of the variant selected by cfg.
func newBlock(cfg *Config, store *nn.ParamStore, backend *cpu.Backend, path string, inChannels, filters, stride int, project bool) block {
	switch {
	case cfg.Bottleneck && cfg.Version == 1:
		return newBottleneckV1(store, backend, path, inChannels, filters, stride, project, cfg.WeightDecay)
	case cfg.Bottleneck:
		return newBottleneckV2(store, backend, path, inChannels, filters, stride, project, cfg.WeightDecay)
	case cfg.Version == 1:
		return newBasicV1(store, backend, path, inChannels, filters, stride, project, cfg.WeightDecay)
	default:
		return newBasicV2(store, backend, path, inChannels, filters, stride, project, cfg.WeightDecay)
	}
}
