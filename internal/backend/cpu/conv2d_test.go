package cpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopy-ml/canopy/internal/tensor"
)

func fromSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	out, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	return out
}

func randomTensor(rng *rand.Rand, shape tensor.Shape) *tensor.Tensor {
	out := tensor.New(shape)
	data := out.Data()
	for i := range data {
		data[i] = rng.Float32()*2 - 1
	}
	return out
}

func TestConv2D_OneByOneKernel(t *testing.T) {
	b := New()
	input := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 3, 3, 1})
	kernel := fromSlice(t, []float32{2}, tensor.Shape{1, 1, 1, 1})

	out := b.Conv2D(input, kernel, 1, 0, 0)

	require.True(t, out.Shape().Equal(tensor.Shape{1, 3, 3, 1}))
	for i, v := range input.Data() {
		assert.Equal(t, v*2, out.Data()[i])
	}
}

func TestConv2D_SamePaddingSums(t *testing.T) {
	b := New()
	input := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 2, 2, 1})
	kernel := tensor.New(tensor.Shape{3, 3, 1, 1})
	kernel.Fill(1)

	// 3x3 all-ones kernel with pad 1/1: every window covers the whole input.
	out := b.Conv2D(input, kernel, 1, 1, 1)

	require.True(t, out.Shape().Equal(tensor.Shape{1, 2, 2, 1}))
	for _, v := range out.Data() {
		assert.Equal(t, float32(10), v)
	}
}

func TestConv2D_StridedOutputIsCeil(t *testing.T) {
	b := New()
	input := tensor.New(tensor.Shape{1, 5, 5, 1})
	kernel := tensor.New(tensor.Shape{3, 3, 1, 1})

	// Fixed padding for k=3: pad 1 before and 1 after, stride 2.
	out := b.Conv2D(input, kernel, 2, 1, 1)
	assert.True(t, out.Shape().Equal(tensor.Shape{1, 3, 3, 1}), "got %v", out.Shape())
}

func TestConv2D_OneByOneStridedSamples(t *testing.T) {
	b := New()
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i)
	}
	input := fromSlice(t, data, tensor.Shape{1, 4, 4, 1})
	kernel := fromSlice(t, []float32{1}, tensor.Shape{1, 1, 1, 1})

	// A 1x1 kernel with stride 2 pads nothing and samples the grid.
	out := b.Conv2D(input, kernel, 2, 0, 0)

	require.True(t, out.Shape().Equal(tensor.Shape{1, 2, 2, 1}))
	assert.Equal(t, []float32{0, 2, 8, 10}, out.Data())
}

func TestConv2D_ChannelMismatchPanics(t *testing.T) {
	b := New()
	input := tensor.New(tensor.Shape{1, 3, 3, 2})
	kernel := tensor.New(tensor.Shape{3, 3, 1, 4})
	assert.Panics(t, func() { b.Conv2D(input, kernel, 1, 1, 1) })
}

// weightedSum is the scalar test loss sum_i(out_i * w_i), with fixed varied
// weights so transposed or shifted gradients cannot cancel out.
func weightedSum(out *tensor.Tensor) float64 {
	var total float64
	for i, v := range out.Data() {
		total += float64(v) * lossWeight(i)
	}
	return total
}

func lossWeight(i int) float64 {
	return float64(i%7)*0.25 - 0.75
}

func TestConv2DInputBackward_MatchesFiniteDifference(t *testing.T) {
	b := New()
	rng := rand.New(rand.NewSource(42))
	input := randomTensor(rng, tensor.Shape{1, 4, 4, 2})
	kernel := randomTensor(rng, tensor.Shape{3, 3, 2, 3})
	const stride, padBeg, padEnd = 2, 1, 1

	out := b.Conv2D(input, kernel, stride, padBeg, padEnd)
	grad := tensor.New(out.Shape())
	for i := range grad.Data() {
		grad.Data()[i] = float32(lossWeight(i))
	}
	analytic := b.Conv2DInputBackward(input, kernel, grad, stride, padBeg)

	const eps = 1e-2
	data := input.Data()
	for i := range data {
		orig := data[i]
		data[i] = orig + eps
		plus := weightedSum(b.Conv2D(input, kernel, stride, padBeg, padEnd))
		data[i] = orig - eps
		minus := weightedSum(b.Conv2D(input, kernel, stride, padBeg, padEnd))
		data[i] = orig

		numeric := (plus - minus) / (2 * eps)
		assert.InDelta(t, numeric, float64(analytic.Data()[i]), 0.02, "input element %d", i)
	}
}

func TestConv2DKernelBackward_MatchesFiniteDifference(t *testing.T) {
	b := New()
	rng := rand.New(rand.NewSource(7))
	input := randomTensor(rng, tensor.Shape{2, 4, 4, 2})
	kernel := randomTensor(rng, tensor.Shape{3, 3, 2, 2})
	const stride, padBeg, padEnd = 1, 1, 1

	out := b.Conv2D(input, kernel, stride, padBeg, padEnd)
	grad := tensor.New(out.Shape())
	for i := range grad.Data() {
		grad.Data()[i] = float32(lossWeight(i))
	}
	analytic := b.Conv2DKernelBackward(input, kernel, grad, stride, padBeg)

	const eps = 1e-2
	data := kernel.Data()
	for i := range data {
		orig := data[i]
		data[i] = orig + eps
		plus := weightedSum(b.Conv2D(input, kernel, stride, padBeg, padEnd))
		data[i] = orig - eps
		minus := weightedSum(b.Conv2D(input, kernel, stride, padBeg, padEnd))
		data[i] = orig

		numeric := (plus - minus) / (2 * eps)
		assert.InDelta(t, numeric, float64(analytic.Data()[i]), 0.05, "kernel element %d", i)
	}
}
