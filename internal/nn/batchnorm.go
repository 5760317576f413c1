package nn

import (
	"github.com/canopy-ml/canopy/internal/backend/cpu"
	"github.com/canopy-ml/canopy/internal/tensor"
)

// Batch normalization hyperparameters, fixed for the whole network.
const (
	BatchNormDecay   = 0.997
	BatchNormEpsilon = 1e-5
)

// BatchNorm applies per-channel batch normalization with learnable scale and
// center.
//
// The training flag passed to Forward selects the statistics: batch
// statistics (with a running-estimate update) when training, the running
// estimates alone during inference. The layer keeps no mode state of its own.
// Running statistics are registered as non-trainable parameters so they
// travel with the weights on save/restore.
type BatchNorm struct {
	backend *cpu.Backend

	gamma      *Parameter
	beta       *Parameter
	movingMean *Parameter
	movingVar  *Parameter

	input *tensor.Tensor
	stats *cpu.BatchNormStats
}

// NewBatchNorm creates a batch normalization layer over channels channels,
// registering gamma (ones), beta (zeros) and the running statistics under
// path.
func NewBatchNorm(store *ParamStore, backend *cpu.Backend, path string, channels int) *BatchNorm {
	shape := tensor.Shape{channels}
	return &BatchNorm{
		backend:    backend,
		gamma:      store.Register(&Parameter{Path: path + "/gamma", Value: Ones(shape), Trainable: true}),
		beta:       store.Register(&Parameter{Path: path + "/beta", Value: Zeros(shape), Trainable: true}),
		movingMean: store.Register(&Parameter{Path: path + "/moving_mean", Value: Zeros(shape)}),
		movingVar:  store.Register(&Parameter{Path: path + "/moving_variance", Value: Ones(shape)}),
	}
}

// Forward normalizes input ([..., channels], channels last).
func (bn *BatchNorm) Forward(input *tensor.Tensor, training bool) *tensor.Tensor {
	if !training {
		bn.input, bn.stats = nil, nil
		return bn.backend.BatchNormInference(
			input, bn.gamma.Value, bn.beta.Value,
			bn.movingMean.Value.Data(), bn.movingVar.Value.Data(),
			BatchNormEpsilon,
		)
	}

	bn.input = input
	output, stats := bn.backend.BatchNormTraining(
		input, bn.gamma.Value, bn.beta.Value,
		bn.movingMean.Value.Data(), bn.movingVar.Value.Data(),
		BatchNormDecay, BatchNormEpsilon,
	)
	bn.stats = stats
	return output
}

// Backward propagates the gradient through the batch statistics of the last
// training-mode Forward.
func (bn *BatchNorm) Backward(grad *tensor.Tensor) *tensor.Tensor {
	if bn.stats == nil {
		panic("batchnorm: Backward without a training-mode Forward")
	}
	inputGrad, gammaGrad, betaGrad := bn.backend.BatchNormBackward(bn.input, grad, bn.gamma.Value, bn.stats)
	bn.gamma.AddGrad(gammaGrad)
	bn.beta.AddGrad(betaGrad)
	return inputGrad
}
