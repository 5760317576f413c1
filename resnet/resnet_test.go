// Copyright 2026 Canopy ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package resnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicAPI_BuildAndRun(t *testing.T) {
	store := NewParamStore(230)
	model, err := NewModel(Config{
		NumClasses:       4,
		NumFilters:       8,
		KernelSize:       3,
		ConvStride:       1,
		SecondPoolSize:   8,
		SecondPoolStride: 8,
		BlockSizes:       []int{1},
		BlockStrides:     []int{1},
		FinalSize:        8,
		Version:          2,
		ImageSize:        8,
		NumChannels:      3,
	}, store, NewBackend())
	require.NoError(t, err)

	input := NewTensor(Shape{1, 8, 8, 3})
	logits := model.Forward(input, false)
	require.True(t, logits.Shape().Equal(Shape{1, 4}))

	labels := NewTensor(Shape{1, 4})
	loss, grad := SigmoidCrossEntropy(logits, labels)
	assert.False(t, loss < 0)
	assert.True(t, grad.Shape().Equal(logits.Shape()))

	precision, recall := PrecisionRecall(logits, labels, 0.5)
	assert.GreaterOrEqual(t, precision, 0.0)
	assert.GreaterOrEqual(t, recall, 0.0)
}
