package cpu

import (
	"fmt"
	"math"

	"github.com/canopy-ml/canopy/internal/tensor"
)

// BatchNormStats holds the per-channel batch statistics saved by a training
// forward pass for the corresponding backward pass.
type BatchNormStats struct {
	Mean []float32 // per-channel batch mean
	Std  []float32 // per-channel sqrt(var + eps)
}

func channelsOf(t *tensor.Tensor) int {
	shape := t.Shape()
	return shape[len(shape)-1]
}

// BatchNormTraining normalizes input with per-batch statistics and updates
// the running estimates in place:
//
//	running = decay*running + (1-decay)*batch
//
// Works on any rank with channels-last layout; statistics are computed per
// channel over all remaining dimensions. Returns the normalized output and
// the batch statistics needed by BatchNormBackward.
func (b *Backend) BatchNormTraining(
	input, gamma, beta *tensor.Tensor,
	runningMean, runningVar []float32,
	decay, eps float32,
) (*tensor.Tensor, *BatchNormStats) {
	c := channelsOf(input)
	if len(gamma.Data()) != c || len(beta.Data()) != c || len(runningMean) != c || len(runningVar) != c {
		panic(fmt.Sprintf("batchnorm: parameter length mismatch for %d channels", c))
	}

	data := input.Data()
	m := len(data) / c
	mean := make([]float32, c)
	std := make([]float32, c)

	for i, v := range data {
		mean[i%c] += v
	}
	for ch := range mean {
		mean[ch] /= float32(m)
	}

	variance := make([]float32, c)
	for i, v := range data {
		d := v - mean[i%c]
		variance[i%c] += d * d
	}
	for ch := range variance {
		variance[ch] /= float32(m)
		std[ch] = float32(math.Sqrt(float64(variance[ch] + eps)))
		runningMean[ch] = decay*runningMean[ch] + (1-decay)*mean[ch]
		runningVar[ch] = decay*runningVar[ch] + (1-decay)*variance[ch]
	}

	output := tensor.New(input.Shape())
	outData := output.Data()
	gammaData := gamma.Data()
	betaData := beta.Data()
	for i, v := range data {
		ch := i % c
		outData[i] = gammaData[ch]*(v-mean[ch])/std[ch] + betaData[ch]
	}

	return output, &BatchNormStats{Mean: mean, Std: std}
}

// BatchNormInference normalizes input with the running estimates only.
func (b *Backend) BatchNormInference(
	input, gamma, beta *tensor.Tensor,
	runningMean, runningVar []float32,
	eps float32,
) *tensor.Tensor {
	c := channelsOf(input)
	std := make([]float32, c)
	for ch := range std {
		std[ch] = float32(math.Sqrt(float64(runningVar[ch] + eps)))
	}

	output := tensor.New(input.Shape())
	data := input.Data()
	outData := output.Data()
	gammaData := gamma.Data()
	betaData := beta.Data()
	for i, v := range data {
		ch := i % c
		outData[i] = gammaData[ch]*(v-runningMean[ch])/std[ch] + betaData[ch]
	}
	return output
}

// BatchNormBackward computes gradients w.r.t. input, gamma and beta given the
// forward input and the batch statistics saved by BatchNormTraining.
func (b *Backend) BatchNormBackward(
	input, grad, gamma *tensor.Tensor,
	stats *BatchNormStats,
) (inputGrad, gammaGrad, betaGrad *tensor.Tensor) {
	c := channelsOf(input)
	data := input.Data()
	gradData := grad.Data()
	gammaData := gamma.Data()
	m := float32(len(data) / c)

	sumGrad := make([]float32, c)
	sumGradXhat := make([]float32, c)
	for i, g := range gradData {
		ch := i % c
		sumGrad[ch] += g
		sumGradXhat[ch] += g * (data[i] - stats.Mean[ch]) / stats.Std[ch]
	}

	inputGrad = tensor.New(input.Shape())
	inGradData := inputGrad.Data()
	for i, g := range gradData {
		ch := i % c
		xhat := (data[i] - stats.Mean[ch]) / stats.Std[ch]
		inGradData[i] = gammaData[ch] / stats.Std[ch] *
			(g - sumGrad[ch]/m - xhat*sumGradXhat[ch]/m)
	}

	gammaGrad = tensor.New(tensor.Shape{c})
	betaGrad = tensor.New(tensor.Shape{c})
	copy(gammaGrad.Data(), sumGradXhat)
	copy(betaGrad.Data(), sumGrad)
	return inputGrad, gammaGrad, betaGrad
}
