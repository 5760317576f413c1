package nn

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopy-ml/canopy/internal/tensor"
)

func registerTestParam(store *ParamStore, path string, shape tensor.Shape, trainable bool) *Parameter {
	return store.Register(&Parameter{
		Path:      path,
		Value:     GlorotUniform(store.Rand(), 4, 4, shape),
		Trainable: trainable,
	})
}

func TestParamStore_DuplicatePathPanics(t *testing.T) {
	store := NewParamStore(1)
	registerTestParam(store, "conv/weight", tensor.Shape{2, 2}, true)
	assert.Panics(t, func() {
		registerTestParam(store, "conv/weight", tensor.Shape{2, 2}, true)
	})
}

func TestParamStore_TrainableFiltersAndOrder(t *testing.T) {
	store := NewParamStore(1)
	registerTestParam(store, "a/weight", tensor.Shape{2, 3}, true)
	registerTestParam(store, "a/moving_mean", tensor.Shape{3}, false)
	registerTestParam(store, "b/weight", tensor.Shape{3}, true)

	trainable := store.Trainable()
	require.Len(t, trainable, 2)
	assert.Equal(t, "a/weight", trainable[0].Path)
	assert.Equal(t, "b/weight", trainable[1].Path)
	assert.Len(t, store.All(), 3)
	assert.Equal(t, 9, store.NumValues())
}

func TestParameter_AddGradAccumulates(t *testing.T) {
	p := &Parameter{Path: "w", Value: Zeros(tensor.Shape{2})}
	g := Ones(tensor.Shape{2})

	p.AddGrad(g)
	p.AddGrad(g)
	assert.Equal(t, []float32{2, 2}, p.Grad.Data())

	// The first AddGrad must copy, not alias.
	g.Fill(9)
	assert.Equal(t, []float32{2, 2}, p.Grad.Data())

	p.ZeroGrad()
	assert.Nil(t, p.Grad)
}

func TestParamStore_SaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.gob")

	src := NewParamStore(1)
	registerTestParam(src, "conv/weight", tensor.Shape{2, 2}, true)
	registerTestParam(src, "bn/moving_mean", tensor.Shape{2}, false)
	require.NoError(t, src.Save(path))

	dst := NewParamStore(2)
	registerTestParam(dst, "conv/weight", tensor.Shape{2, 2}, true)
	registerTestParam(dst, "bn/moving_mean", tensor.Shape{2}, false)
	require.NoError(t, dst.Load(path))

	assert.Equal(t, src.Get("conv/weight").Value.Data(), dst.Get("conv/weight").Value.Data())
	assert.Equal(t, src.Get("bn/moving_mean").Value.Data(), dst.Get("bn/moving_mean").Value.Data())
}

func TestParamStore_LoadRejectsUnknownParameter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.gob")

	src := NewParamStore(1)
	registerTestParam(src, "conv/weight", tensor.Shape{2}, true)
	registerTestParam(src, "extra/weight", tensor.Shape{2}, true)
	require.NoError(t, src.Save(path))

	dst := NewParamStore(1)
	registerTestParam(dst, "conv/weight", tensor.Shape{2}, true)
	err := dst.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown parameter")
}

func TestParamStore_LoadRejectsMissingParameter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.gob")

	src := NewParamStore(1)
	registerTestParam(src, "conv/weight", tensor.Shape{2}, true)
	require.NoError(t, src.Save(path))

	dst := NewParamStore(1)
	registerTestParam(dst, "conv/weight", tensor.Shape{2}, true)
	registerTestParam(dst, "dense/weight", tensor.Shape{2}, true)
	err := dst.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing parameters")
}

func TestParamStore_LoadRejectsShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.gob")

	src := NewParamStore(1)
	registerTestParam(src, "conv/weight", tensor.Shape{2, 2}, true)
	require.NoError(t, src.Save(path))

	dst := NewParamStore(1)
	registerTestParam(dst, "conv/weight", tensor.Shape{4}, true)
	err := dst.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shape mismatch")
}

func TestGlorotUniform_DeterministicAndBounded(t *testing.T) {
	a := GlorotUniform(NewParamStore(230).Rand(), 3, 5, tensor.Shape{3, 5})
	b := GlorotUniform(NewParamStore(230).Rand(), 3, 5, tensor.Shape{3, 5})
	assert.Equal(t, a.Data(), b.Data())

	bound := math.Sqrt(6.0 / 8.0)
	for _, v := range a.Data() {
		assert.LessOrEqual(t, math.Abs(float64(v)), bound)
	}

	c := GlorotUniform(NewParamStore(231).Rand(), 3, 5, tensor.Shape{3, 5})
	assert.NotEqual(t, a.Data(), c.Data())
}
