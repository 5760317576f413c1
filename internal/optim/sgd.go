package optim

import (
	"github.com/canopy-ml/canopy/internal/nn"
)

// SGD is stochastic gradient descent with classical momentum.
type SGD struct {
	store    *nn.ParamStore
	lr       float32
	momentum float32

	velocity map[string][]float32
}

// NewSGD creates an SGD optimizer over the store's trainable parameters.
// A momentum of 0 gives plain gradient descent.
func NewSGD(store *nn.ParamStore, lr, momentum float32) *SGD {
	return &SGD{
		store:    store,
		lr:       lr,
		momentum: momentum,
		velocity: make(map[string][]float32),
	}
}

// Step applies v = momentum*v + g, w -= lr*v to every trainable parameter.
func (s *SGD) Step() {
	for _, p := range s.store.Trainable() {
		if p.Grad == nil {
			continue
		}
		v := s.velocity[p.Path]
		if v == nil {
			v = make([]float32, p.Value.NumElements())
			s.velocity[p.Path] = v
		}
		value := p.Value.Data()
		for i := range value {
			v[i] = s.momentum*v[i] + decayedGrad(p, i)
			value[i] -= s.lr * v[i]
		}
	}
}

// ZeroGrad clears the accumulated gradients.
func (s *SGD) ZeroGrad() {
	s.store.ZeroGrad()
}

// SetLR replaces the learning rate, for schedules driven by the caller.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}
