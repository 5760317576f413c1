package resnet

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/canopy-ml/canopy/internal/backend/cpu"
	"github.com/canopy-ml/canopy/internal/nn"
	"github.com/canopy-ml/canopy/internal/tensor"
)

// Model is a residual network. The same model value serves training and
// inference: the mode is selected per call by the training flag, and all
// parameters live in the ParamStore passed at construction, so training and
// evaluation share one set of weights.
type Model struct {
	cfg     Config
	backend *cpu.Backend

	initialConv *nn.Conv2D
	initialPool *nn.MaxPool2D // nil when FirstPoolSize == 0
	stages      []*blockLayer
	finalBN     *nn.BatchNorm
	finalReLU   *nn.ReLU
	finalPool   *nn.AvgPool2D
	dense       *nn.Dense

	poolOutSize int // spatial size after the final average pool
	outChannels int
	flatShape   tensor.Shape // saved by Forward for the flatten backward
}

// NewModel assembles a residual network from cfg, registering every
// parameter in store. Construction is eager: layer shapes are inferred from
// cfg.ImageSize, and a FinalSize that disagrees with the inferred flattened
// width is rejected here rather than at the first Forward.
func NewModel(cfg Config, store *nn.ParamStore, backend *cpu.Backend) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid model config")
	}

	m := &Model{cfg: cfg, backend: backend}

	m.initialConv = nn.NewConv2D(store, backend, "initial_conv",
		cfg.NumChannels, cfg.NumFilters, cfg.KernelSize, cfg.ConvStride, cfg.WeightDecay)
	size := m.initialConv.OutputSize(cfg.ImageSize)
	channels := cfg.NumFilters

	if cfg.FirstPoolSize > 0 {
		m.initialPool = nn.NewMaxPool2D(backend, cfg.FirstPoolSize, cfg.FirstPoolStride)
		size = m.initialPool.OutputSize(size)
	}

	m.stages = make([]*blockLayer, len(cfg.BlockSizes))
	for i, numBlocks := range cfg.BlockSizes {
		stage := newBlockLayer(&cfg, store, backend, i, channels, numBlocks, cfg.BlockStrides[i])
		m.stages[i] = stage
		size = stage.OutputSize(size)
		channels = stage.outChannels
	}

	m.finalBN = nn.NewBatchNorm(store, backend, "final_bn", channels)
	m.finalReLU = nn.NewReLU(backend)
	m.finalPool = nn.NewAvgPool2D(backend, cfg.SecondPoolSize, cfg.SecondPoolStride)

	if size < cfg.SecondPoolSize {
		return nil, errors.Errorf(
			"feature map %dx%d is smaller than the final pool window %d; shrink the pool or the strides",
			size, size, cfg.SecondPoolSize)
	}
	m.poolOutSize = m.finalPool.OutputSize(size)
	m.outChannels = channels

	flat := m.poolOutSize * m.poolOutSize * channels
	if flat != cfg.FinalSize {
		return nil, errors.Errorf(
			"final_size %d does not match the flattened feature width %d (%dx%dx%d)",
			cfg.FinalSize, flat, m.poolOutSize, m.poolOutSize, channels)
	}

	m.dense = nn.NewDense(store, "dense", cfg.FinalSize, cfg.NumClasses, cfg.WeightDecay)
	return m, nil
}

// Config returns the architecture the model was built from.
func (m *Model) Config() Config {
	return m.cfg
}

// Forward runs the network on a [batch, size, size, channels] input and
// returns the raw logits, shape [batch, num_classes]. Sigmoid is left to the
// loss and to the metrics.
func (m *Model) Forward(input *tensor.Tensor, training bool) *tensor.Tensor {
	batch, h, w, ch := input.Shape().NHWC()
	if h != m.cfg.ImageSize || w != m.cfg.ImageSize || ch != m.cfg.NumChannels {
		panic(fmt.Sprintf("model: expected input [batch %d %d %d], got %v",
			m.cfg.ImageSize, m.cfg.ImageSize, m.cfg.NumChannels, input.Shape()))
	}

	out := m.initialConv.Forward(input, training)
	if m.initialPool != nil {
		out = m.initialPool.Forward(out, training)
	}
	for _, stage := range m.stages {
		out = stage.Forward(out, training)
	}
	out = m.finalBN.Forward(out, training)
	out = m.finalReLU.Forward(out, training)
	out = m.finalPool.Forward(out, training)

	m.flatShape = out.Shape().Clone()
	flat := out.Reshape(batch, m.cfg.FinalSize)
	return m.dense.Forward(flat, training)
}

// Backward propagates the logits gradient through the network, accumulating
// parameter gradients in the store. It requires a preceding training-mode
// Forward. The returned input gradient is rarely needed but completes the
// layer contract.
func (m *Model) Backward(grad *tensor.Tensor) *tensor.Tensor {
	g := m.dense.Backward(grad)
	g = g.Reshape(m.flatShape...)

	g = m.finalPool.Backward(g)
	g = m.finalReLU.Backward(g)
	g = m.finalBN.Backward(g)
	for i := len(m.stages) - 1; i >= 0; i-- {
		g = m.stages[i].Backward(g)
	}
	if m.initialPool != nil {
		g = m.initialPool.Backward(g)
	}
	return m.initialConv.Backward(g)
}
