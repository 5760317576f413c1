// Package optim implements gradient-descent optimizers over the trainable
// parameters of a ParamStore.
//
// Optimizers read each parameter's accumulated gradient, fold in the L2
// weight decay recorded on the parameter, and update the value in place.
// The caller owns the loop: zero the gradients, run forward and backward,
// then Step.
package optim

import (
	"github.com/canopy-ml/canopy/internal/nn"
)

// Optimizer updates trainable parameters from their accumulated gradients.
type Optimizer interface {
	// Step applies one update and leaves the gradients untouched.
	Step()
	// ZeroGrad clears the accumulated gradients before the next batch.
	ZeroGrad()
}

// decayedGrad returns the gradient at index i with the parameter's L2 decay
// term folded in.
func decayedGrad(p *nn.Parameter, i int) float32 {
	g := p.Grad.Data()[i]
	if p.WeightDecay != 0 {
		g += p.WeightDecay * p.Value.Data()[i]
	}
	return g
}
