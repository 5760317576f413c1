// Copyright 2026 Canopy ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package resnet is the public API for building and running residual
// networks for multi-label image classification.
//
// Example:
//
//	store := resnet.NewParamStore(230)
//	backend := resnet.NewBackend()
//	model, err := resnet.NewModel(resnet.Config{
//		NumClasses: 17,
//		NumFilters: 32,
//		KernelSize: 3,
//		ConvStride: 1,
//		SecondPoolSize:   8,
//		SecondPoolStride: 8,
//		BlockSizes:   []int{2, 2},
//		BlockStrides: []int{1, 2},
//		FinalSize:    64,
//		Version:      2,
//		ImageSize:    64,
//		NumChannels:  3,
//	}, store, backend)
package resnet

import (
	"github.com/canopy-ml/canopy/internal/backend/cpu"
	"github.com/canopy-ml/canopy/internal/nn"
	"github.com/canopy-ml/canopy/internal/resnet"
	"github.com/canopy-ml/canopy/internal/tensor"
)

// Config describes a residual network architecture.
type Config = resnet.Config

// Model is a residual network sharing one parameter store across training
// and inference calls.
type Model = resnet.Model

// NewModel assembles a residual network from cfg, registering every
// parameter in store.
func NewModel(cfg Config, store *ParamStore, backend *Backend) (*Model, error) {
	return resnet.NewModel(cfg, store, backend)
}

// ParamStore owns the model parameters, keyed by layer path.
type ParamStore = nn.ParamStore

// NewParamStore creates an empty parameter store with a seeded RNG for
// reproducible initialization.
func NewParamStore(seed int64) *ParamStore {
	return nn.NewParamStore(seed)
}

// Backend is the CPU compute backend.
type Backend = cpu.Backend

// NewBackend creates a CPU backend with default parallelism.
func NewBackend() *Backend {
	return cpu.New()
}

// Tensor is a dense float32 tensor.
type Tensor = tensor.Tensor

// Shape holds tensor dimensions.
type Shape = tensor.Shape

// NewTensor allocates a zero-filled tensor.
func NewTensor(shape Shape) *Tensor {
	return tensor.New(shape)
}

// SigmoidCrossEntropy is the multi-label training loss. It returns the mean
// loss and the gradient with respect to the logits.
func SigmoidCrossEntropy(logits, labels *Tensor) (float32, *Tensor) {
	return nn.SigmoidCrossEntropy(logits, labels)
}

// PrecisionRecall computes micro-averaged precision and recall for
// multi-label predictions at the given probability threshold.
func PrecisionRecall(logits, labels *Tensor, threshold float32) (precision, recall float64) {
	return nn.PrecisionRecall(logits, labels, threshold)
}
