// Package cpu implements the CPU compute kernels behind the network layers.
//
// All spatial kernels operate on NHWC tensors ([batch, height, width,
// channels]) and take explicit, possibly asymmetric padding amounts. The
// layers above compute the padding; the kernels only ever perform VALID
// (in-bounds) arithmetic with zero padding semantics.
package cpu

import (
	"github.com/canopy-ml/canopy/internal/parallel"
)

// Backend executes tensor kernels on the host CPU.
type Backend struct {
	par parallel.Config
}

// New creates a CPU backend with default parallelism.
func New() *Backend {
	return &Backend{par: parallel.DefaultConfig()}
}

// NewWithParallelism creates a CPU backend with an explicit parallel config.
func NewWithParallelism(cfg parallel.Config) *Backend {
	return &Backend{par: cfg}
}
