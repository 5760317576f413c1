package nn

import (
	"fmt"
	"math"

	"github.com/canopy-ml/canopy/internal/tensor"
)

// SigmoidCrossEntropy computes the mean elementwise sigmoid cross-entropy
// between logits and multi-hot labels, the loss for multi-label
// classification. Returns the scalar loss and the gradient w.r.t. the
// logits.
//
// The per-element loss uses the numerically stable form
//
//	max(x, 0) - x*y + log(1 + exp(-|x|))
//
// and the gradient is (sigmoid(x) - y) / numel.
func SigmoidCrossEntropy(logits, labels *tensor.Tensor) (float32, *tensor.Tensor) {
	if !logits.Shape().Equal(labels.Shape()) {
		panic(fmt.Sprintf("sigmoid cross-entropy: logits %v vs labels %v", logits.Shape(), labels.Shape()))
	}

	logitData := logits.Data()
	labelData := labels.Data()
	n := float64(len(logitData))

	grad := tensor.New(logits.Shape())
	gradData := grad.Data()

	var total float64
	for i, x := range logitData {
		y := labelData[i]
		xf := float64(x)
		total += math.Max(xf, 0) - xf*float64(y) + math.Log1p(math.Exp(-math.Abs(xf)))
		sigmoid := 1.0 / (1.0 + math.Exp(-xf))
		gradData[i] = float32((sigmoid - float64(y)) / n)
	}

	return float32(total / n), grad
}

// Sigmoid applies the logistic function elementwise, converting logits to
// per-label probabilities.
func Sigmoid(logits *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(logits.Shape())
	outData := out.Data()
	for i, x := range logits.Data() {
		outData[i] = float32(1.0 / (1.0 + math.Exp(-float64(x))))
	}
	return out
}
