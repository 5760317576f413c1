package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/canopy-ml/canopy/internal/tensor"
)

func TestFBeta(t *testing.T) {
	// F2 weights recall four times as much as precision.
	assert.InDelta(t, 5*0.8*0.5/(4*0.8+0.5), FBeta(0.8, 0.5, 2), 1e-9)
	assert.InDelta(t, 0.5405405, FBeta(0.8, 0.5, 2), 1e-6)

	// F1 is the harmonic mean.
	assert.InDelta(t, 2.0/3.0, FBeta(0.5, 1, 1), 1e-9)

	assert.Equal(t, 0.0, FBeta(0, 0, 2))
}

func TestPrecisionRecall(t *testing.T) {
	logits := fromSlice(t, []float32{5, 5, -5, -5}, tensor.Shape{1, 4})
	labels := fromSlice(t, []float32{1, 0, 1, 0}, tensor.Shape{1, 4})

	precision, recall := PrecisionRecall(logits, labels, 0.5)

	// One true positive, one false positive, one false negative.
	assert.InDelta(t, 0.5, precision, 1e-9)
	assert.InDelta(t, 0.5, recall, 1e-9)
}

func TestPrecisionRecall_EmptyDenominators(t *testing.T) {
	logits := fromSlice(t, []float32{-5, -5}, tensor.Shape{1, 2})
	labels := tensor.New(tensor.Shape{1, 2})

	precision, recall := PrecisionRecall(logits, labels, 0.5)
	assert.Equal(t, 0.0, precision)
	assert.Equal(t, 0.0, recall)
}

func TestMultiLabelCounts_AccumulatesAcrossBatches(t *testing.T) {
	var c MultiLabelCounts

	c.Update(fromSlice(t, []float32{5, -5}, tensor.Shape{1, 2}),
		fromSlice(t, []float32{1, 0}, tensor.Shape{1, 2}), 0.5)
	c.Update(fromSlice(t, []float32{5, -5}, tensor.Shape{1, 2}),
		fromSlice(t, []float32{0, 1}, tensor.Shape{1, 2}), 0.5)

	assert.Equal(t, 1.0, c.TP)
	assert.Equal(t, 1.0, c.FP)
	assert.Equal(t, 1.0, c.FN)
	assert.InDelta(t, 0.5, c.Precision(), 1e-9)
	assert.InDelta(t, 0.5, c.Recall(), 1e-9)
}
