// Package tensor implements the dense float32 tensor that flows through the
// residual network.
//
// The network is a pure data-flow pipeline: every operation consumes tensors
// and produces a fresh one, there is no aliasing between the outputs of
// different operations. Only float32 is supported; image classification
// neither needs mixed precision nor integer tensors, and a single element
// type keeps the CPU kernels free of dtype dispatch.
package tensor

import "fmt"

// Tensor is a dense float32 tensor with row-major layout.
type Tensor struct {
	shape Shape
	data  []float32
}

// New creates a zero-filled tensor of the given shape.
// Panics if the shape contains a non-positive dimension; shapes are always
// computed by the layers, never taken from user input.
func New(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]float32, shape.NumElements()),
	}
}

// FromSlice creates a tensor from a Go slice. The slice is copied.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t := New(shape)
	copy(t.data, data)
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the backing slice.
//
// WARNING: modifications to the returned slice modify the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) At(indices ...int) float32 {
	return t.data[t.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) Set(value float32, indices ...int) {
	t.data[t.offset(indices)] = value
}

func (t *Tensor) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(t.shape), len(indices)))
	}
	offset := 0
	stride := 1
	for i := len(t.shape) - 1; i >= 0; i-- {
		idx := indices[i]
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, t.shape[i]))
		}
		offset += idx * stride
		stride *= t.shape[i]
	}
	return offset
}

// Clone creates a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	c := New(t.shape)
	copy(c.data, t.data)
	return c
}

// Reshape returns a tensor sharing the same data with a new shape.
// The element count must match.
func (t *Tensor) Reshape(shape ...int) *Tensor {
	s := Shape(shape)
	if s.NumElements() != len(t.data) {
		panic(fmt.Sprintf("cannot reshape %v into %v", t.shape, s))
	}
	return &Tensor{shape: s.Clone(), data: t.data}
}

// Fill sets every element to value.
func (t *Tensor) Fill(value float32) {
	for i := range t.data {
		t.data[i] = value
	}
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}
