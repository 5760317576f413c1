package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopy-ml/canopy/internal/nn"
	"github.com/canopy-ml/canopy/internal/tensor"
)

func newTestStore(t *testing.T, weightDecay float32) (*nn.ParamStore, *nn.Parameter) {
	t.Helper()
	store := nn.NewParamStore(1)
	p := store.Register(&nn.Parameter{
		Path:        "w",
		Value:       nn.Ones(tensor.Shape{1}),
		WeightDecay: weightDecay,
		Trainable:   true,
	})
	return store, p
}

func setGrad(p *nn.Parameter, g float32) {
	p.ZeroGrad()
	grad := tensor.New(tensor.Shape{1})
	grad.Set(g, 0)
	p.AddGrad(grad)
}

func TestSGD_PlainStep(t *testing.T) {
	store, p := newTestStore(t, 0)
	opt := NewSGD(store, 0.1, 0)

	setGrad(p, 0.5)
	opt.Step()
	assert.InDelta(t, 0.95, p.Value.At(0), 1e-6)
}

func TestSGD_WeightDecayFoldedIntoGradient(t *testing.T) {
	store, p := newTestStore(t, 0.1)
	opt := NewSGD(store, 0.1, 0)

	// Effective gradient: 0.5 + 0.1*1.0.
	setGrad(p, 0.5)
	opt.Step()
	assert.InDelta(t, 0.94, p.Value.At(0), 1e-6)
}

func TestSGD_MomentumAccumulates(t *testing.T) {
	store, p := newTestStore(t, 0)
	opt := NewSGD(store, 0.1, 0.9)

	setGrad(p, 1)
	opt.Step()
	assert.InDelta(t, 0.9, p.Value.At(0), 1e-6)

	setGrad(p, 1)
	opt.Step()
	// v = 0.9*1 + 1 = 1.9.
	assert.InDelta(t, 0.71, p.Value.At(0), 1e-6)
}

func TestSGD_SkipsParamsWithoutGradient(t *testing.T) {
	store, p := newTestStore(t, 0)
	opt := NewSGD(store, 0.1, 0)

	opt.Step()
	assert.Equal(t, float32(1), p.Value.At(0))
}

func TestSGD_ZeroGradClears(t *testing.T) {
	store, p := newTestStore(t, 0)
	opt := NewSGD(store, 0.1, 0)

	setGrad(p, 1)
	opt.ZeroGrad()
	require.Nil(t, p.Grad)
}

func TestAdam_FirstStepMovesByLearningRate(t *testing.T) {
	store, p := newTestStore(t, 0)
	opt := NewAdam(store, 0.1, 0, 0, 0)

	// After bias correction the first update is lr * g/(|g| + eps).
	setGrad(p, 0.5)
	opt.Step()
	assert.InDelta(t, 0.9, p.Value.At(0), 1e-4)
}

func TestAdam_DefaultsApplied(t *testing.T) {
	store := nn.NewParamStore(1)
	opt := NewAdam(store, 0.001, 0, 0, 0)
	assert.Equal(t, float32(0.9), opt.beta1)
	assert.Equal(t, float32(0.999), opt.beta2)
	assert.Equal(t, float32(1e-8), opt.eps)
}

func TestAdam_ConvergesTowardMinimum(t *testing.T) {
	// Minimize (w-0.2)^2 by feeding its gradient; Adam should close most of
	// the distance in a few hundred steps.
	store, p := newTestStore(t, 0)
	opt := NewAdam(store, 0.05, 0, 0, 0)

	for i := 0; i < 200; i++ {
		w := p.Value.At(0)
		setGrad(p, 2*(w-0.2))
		opt.Step()
	}
	assert.InDelta(t, 0.2, p.Value.At(0), 0.05)
}
