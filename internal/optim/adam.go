package optim

import (
	"math"

	"github.com/canopy-ml/canopy/internal/nn"
)

// Adam implements the Adam optimizer with bias-corrected first and second
// moment estimates.
type Adam struct {
	store *nn.ParamStore
	lr    float32
	beta1 float32
	beta2 float32
	eps   float32

	step int
	m    map[string][]float32
	v    map[string][]float32
}

// NewAdam creates an Adam optimizer over the store's trainable parameters
// with the usual defaults for the moment coefficients when zero values are
// passed (beta1=0.9, beta2=0.999, eps=1e-8).
func NewAdam(store *nn.ParamStore, lr, beta1, beta2, eps float32) *Adam {
	if beta1 == 0 {
		beta1 = 0.9
	}
	if beta2 == 0 {
		beta2 = 0.999
	}
	if eps == 0 {
		eps = 1e-8
	}
	return &Adam{
		store: store,
		lr:    lr,
		beta1: beta1,
		beta2: beta2,
		eps:   eps,
		m:     make(map[string][]float32),
		v:     make(map[string][]float32),
	}
}

// Step applies one Adam update to every trainable parameter.
func (a *Adam) Step() {
	a.step++
	correction1 := 1 - float32(math.Pow(float64(a.beta1), float64(a.step)))
	correction2 := 1 - float32(math.Pow(float64(a.beta2), float64(a.step)))

	for _, p := range a.store.Trainable() {
		if p.Grad == nil {
			continue
		}
		m := a.m[p.Path]
		v := a.v[p.Path]
		if m == nil {
			m = make([]float32, p.Value.NumElements())
			v = make([]float32, p.Value.NumElements())
			a.m[p.Path] = m
			a.v[p.Path] = v
		}
		value := p.Value.Data()
		for i := range value {
			g := decayedGrad(p, i)
			m[i] = a.beta1*m[i] + (1-a.beta1)*g
			v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
			mHat := m[i] / correction1
			vHat := v[i] / correction2
			value[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// ZeroGrad clears the accumulated gradients.
func (a *Adam) ZeroGrad() {
	a.store.ZeroGrad()
}
