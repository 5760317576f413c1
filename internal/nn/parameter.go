// Package nn implements the neural network layers the residual network is
// assembled from.
//
// Every layer follows the same contract: Forward(input, training) produces a
// fresh output tensor and caches whatever the layer needs for Backward;
// Backward(grad) accumulates parameter gradients and returns the gradient
// w.r.t. the layer input. Layers hold no training/inference mode state; the
// mode is an argument of every Forward call.
package nn

import (
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/canopy-ml/canopy/internal/tensor"
)

// Parameter is a named tensor owned by a ParamStore.
//
// Trainable parameters (weights, gamma/beta) receive gradients during the
// backward pass; non-trainable ones (batch norm running statistics) are
// updated directly by their layer but still live in the store so they are
// saved and restored with the weights.
type Parameter struct {
	Path        string         // slash-separated layer path, e.g. "block_layer1/block0/conv1/weight"
	Value       *tensor.Tensor // the parameter tensor
	Grad        *tensor.Tensor // accumulated gradient, nil until first backward
	WeightDecay float32        // L2 regularization scale, 0 to disable
	Trainable   bool
}

// AddGrad accumulates g into the parameter gradient.
func (p *Parameter) AddGrad(g *tensor.Tensor) {
	if p.Grad == nil {
		p.Grad = g.Clone()
		return
	}
	data := p.Grad.Data()
	for i, v := range g.Data() {
		data[i] += v
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Parameter) ZeroGrad() {
	p.Grad = nil
}

// ParamStore owns every parameter of a model, keyed by layer path.
//
// The store is created once and shared by all invocations of the model:
// a training forward/backward and an evaluation forward reference the same
// parameter tensors, never copies. The store also owns the RNG used for
// weight initialization, so a fixed seed yields a fully reproducible model.
type ParamStore struct {
	rng    *rand.Rand
	order  []string
	params map[string]*Parameter
}

// NewParamStore creates an empty store whose initializers draw from a
// deterministic RNG seeded with seed.
func NewParamStore(seed int64) *ParamStore {
	return &ParamStore{
		rng:    rand.New(rand.NewSource(seed)),
		params: make(map[string]*Parameter),
	}
}

// Rand returns the store's initialization RNG.
func (s *ParamStore) Rand() *rand.Rand {
	return s.rng
}

// Register adds a parameter to the store. Registering the same path twice is
// a wiring defect and panics.
func (s *ParamStore) Register(p *Parameter) *Parameter {
	if _, ok := s.params[p.Path]; ok {
		panic(fmt.Sprintf("paramstore: duplicate parameter path %q", p.Path))
	}
	s.params[p.Path] = p
	s.order = append(s.order, p.Path)
	return p
}

// Get returns the parameter at path, or nil.
func (s *ParamStore) Get(path string) *Parameter {
	return s.params[path]
}

// All returns every parameter in registration order.
func (s *ParamStore) All() []*Parameter {
	out := make([]*Parameter, 0, len(s.order))
	for _, path := range s.order {
		out = append(out, s.params[path])
	}
	return out
}

// Trainable returns the trainable parameters in registration order.
func (s *ParamStore) Trainable() []*Parameter {
	out := make([]*Parameter, 0, len(s.order))
	for _, p := range s.All() {
		if p.Trainable {
			out = append(out, p)
		}
	}
	return out
}

// NumValues returns the total number of scalar values across all trainable
// parameters.
func (s *ParamStore) NumValues() int {
	total := 0
	for _, p := range s.Trainable() {
		total += p.Value.NumElements()
	}
	return total
}

// ZeroGrad clears every parameter gradient.
func (s *ParamStore) ZeroGrad() {
	for _, p := range s.All() {
		p.ZeroGrad()
	}
}

// savedParam is the on-disk form of one parameter.
type savedParam struct {
	Path  string
	Shape []int
	Data  []float32
}

// Save writes all parameter values (including running statistics) to path.
func (s *ParamStore) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "saving weights")
	}
	defer f.Close()

	saved := make([]savedParam, 0, len(s.order))
	for _, p := range s.All() {
		saved = append(saved, savedParam{
			Path:  p.Path,
			Shape: p.Value.Shape(),
			Data:  p.Value.Data(),
		})
	}
	if err := gob.NewEncoder(f).Encode(saved); err != nil {
		return errors.Wrapf(err, "encoding weights to %s", path)
	}
	return nil
}

// Load restores parameter values from a file written by Save. Every entry in
// the file must match a registered parameter in path and shape; the file may
// not omit parameters the model has.
func (s *ParamStore) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "loading weights")
	}
	defer f.Close()

	var saved []savedParam
	if err := gob.NewDecoder(f).Decode(&saved); err != nil {
		return errors.Wrapf(err, "decoding weights from %s", path)
	}

	loaded := make(map[string]bool, len(saved))
	for _, sp := range saved {
		p := s.params[sp.Path]
		if p == nil {
			return errors.Errorf("weights file has unknown parameter %q", sp.Path)
		}
		if !p.Value.Shape().Equal(tensor.Shape(sp.Shape)) {
			return errors.Errorf("parameter %q shape mismatch: model %v, file %v",
				sp.Path, p.Value.Shape(), tensor.Shape(sp.Shape))
		}
		copy(p.Value.Data(), sp.Data)
		loaded[sp.Path] = true
	}

	var missing []string
	for _, path := range s.order {
		if !loaded[path] {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Errorf("weights file missing parameters: %v", missing)
	}
	return nil
}
