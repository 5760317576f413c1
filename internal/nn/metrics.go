package nn

import (
	"fmt"

	"github.com/canopy-ml/canopy/internal/tensor"
)

// MultiLabelCounts accumulates micro-averaged confusion counts over batches
// of multi-label predictions.
type MultiLabelCounts struct {
	TP, FP, FN float64
}

// Update counts one batch: a label is predicted when its sigmoid probability
// exceeds threshold.
func (c *MultiLabelCounts) Update(logits, labels *tensor.Tensor, threshold float32) {
	if !logits.Shape().Equal(labels.Shape()) {
		panic(fmt.Sprintf("metrics: logits %v vs labels %v", logits.Shape(), labels.Shape()))
	}

	probs := Sigmoid(logits).Data()
	labelData := labels.Data()
	for i, p := range probs {
		predicted := p > threshold
		actual := labelData[i] > 0.5
		switch {
		case predicted && actual:
			c.TP++
		case predicted && !actual:
			c.FP++
		case !predicted && actual:
			c.FN++
		}
	}
}

// Precision returns TP/(TP+FP), or 0 when nothing was predicted.
func (c *MultiLabelCounts) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return c.TP / (c.TP + c.FP)
}

// Recall returns TP/(TP+FN), or 0 when no labels were present.
func (c *MultiLabelCounts) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return c.TP / (c.TP + c.FN)
}

// PrecisionRecall computes micro-averaged precision and recall for one batch
// of multi-label predictions.
func PrecisionRecall(logits, labels *tensor.Tensor, threshold float32) (precision, recall float64) {
	var c MultiLabelCounts
	c.Update(logits, labels, threshold)
	return c.Precision(), c.Recall()
}

// FBeta combines precision and recall with recall weighted beta times as
// much as precision. Beta 2 is the evaluation score of this project.
func FBeta(precision, recall, beta float64) float64 {
	b2 := beta * beta
	denom := b2*precision + recall
	if denom == 0 {
		return 0
	}
	return (1 + b2) * precision * recall / denom
}
