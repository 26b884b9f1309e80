// Package grid holds the tensor helpers shared by the automaton engine and its
// perceive/update units. All grids are float32 dense tensors laid out
// row-major as (height, width, channels) unless stated otherwise.
package grid

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/pdevine/tensor"
)

var (
	ErrShape = errors.New("invalid shape")
	ErrDtype = errors.New("unsupported dtype")
	ErrIndex = errors.New("index out of range")
)

// New copies data into a float32 tensor of the given shape. An empty shape
// yields a scalar tensor backed by a single value.
func New(shape []int, data []float32) (*tensor.Dense, error) {
	size, err := Size(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(data), shape)
	}
	if len(shape) == 0 {
		return tensor.New(tensor.FromScalar(data[0])), nil
	}
	backing := make([]float32, size)
	copy(backing, data)
	return tensor.New(tensor.WithShape(append([]int(nil), shape...)...), tensor.WithBacking(backing)), nil
}

// Size returns the element count of shape.
func Size(shape []int) (int, error) {
	size := 1
	for _, dim := range shape {
		if dim <= 0 {
			return 0, fmt.Errorf("%w: non-positive dimension in %v", ErrShape, shape)
		}
		size *= dim
	}
	return size, nil
}

func Zeros(shape ...int) (*tensor.Dense, error) {
	return Full(0, shape...)
}

func Full(value float32, shape ...int) (*tensor.Dense, error) {
	size, err := Size(shape)
	if err != nil {
		return nil, err
	}
	data := make([]float32, size)
	for i := range data {
		data[i] = value
	}
	return New(shape, data)
}

// Uniform fills a tensor with values drawn from [lo, hi).
func Uniform(rng *rand.Rand, lo, hi float32, shape ...int) (*tensor.Dense, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	size, err := Size(shape)
	if err != nil {
		return nil, err
	}
	data := make([]float32, size)
	for i := range data {
		data[i] = lo + (hi-lo)*rng.Float32()
	}
	return New(shape, data)
}

// Normal fills a tensor with independent standard-normal draws taken from src
// in row-major order.
func Normal(src interface{ NormFloat64() float64 }, shape ...int) (*tensor.Dense, error) {
	if src == nil {
		return nil, errors.New("normal source is required")
	}
	size, err := Size(shape)
	if err != nil {
		return nil, err
	}
	data := make([]float32, size)
	for i := range data {
		data[i] = float32(src.NormFloat64())
	}
	return New(shape, data)
}

// Values exposes the backing slice of t. Callers must not modify it.
func Values(t *tensor.Dense) ([]float32, error) {
	if t == nil {
		return nil, errors.New("tensor is nil")
	}
	switch data := t.Data().(type) {
	case []float32:
		return data, nil
	case float32:
		return []float32{data}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrDtype, t.Dtype())
	}
}

// Shape returns a copy of t's shape, or nil for a nil tensor.
func Shape(t *tensor.Dense) []int {
	if t == nil {
		return nil
	}
	return append([]int(nil), t.Shape()...)
}

func SameShape(a, b *tensor.Dense) bool {
	if a == nil || b == nil {
		return a == b
	}
	sa, sb := a.Shape(), b.Shape()
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func Clone(t *tensor.Dense) *tensor.Dense {
	if t == nil {
		return nil
	}
	return t.Clone().(*tensor.Dense)
}

// Equal reports whether a and b share a shape and every element differs by at
// most tol.
func Equal(a, b *tensor.Dense, tol float32) bool {
	if !SameShape(a, b) {
		return false
	}
	va, err := Values(a)
	if err != nil {
		return false
	}
	vb, err := Values(b)
	if err != nil {
		return false
	}
	for i := range va {
		d := va[i] - vb[i]
		if d < -tol || d > tol {
			return false
		}
	}
	return true
}

// MoveAxisFront returns a contiguous copy of t with axis moved to position 0.
// Negative axes count from the end.
func MoveAxisFront(t *tensor.Dense, axis int) (*tensor.Dense, error) {
	if t == nil {
		return nil, errors.New("tensor is nil")
	}
	dims := t.Dims()
	if axis < 0 {
		axis += dims
	}
	if axis < 0 || axis >= dims {
		return nil, fmt.Errorf("%w: axis %d for %d-dimensional tensor", ErrIndex, axis, dims)
	}

	out := Clone(t)
	if axis == 0 {
		return out, nil
	}
	perm := make([]int, 0, dims)
	perm = append(perm, axis)
	for i := 0; i < dims; i++ {
		if i != axis {
			perm = append(perm, i)
		}
	}
	if err := out.T(perm...); err != nil {
		return nil, err
	}
	if err := out.Transpose(); err != nil {
		return nil, err
	}
	return out, nil
}

// Select copies the i-th slice along the leading axis of t.
func Select(t *tensor.Dense, i int) (*tensor.Dense, error) {
	if t == nil {
		return nil, errors.New("tensor is nil")
	}
	shape := t.Shape()
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: cannot select from a scalar", ErrShape)
	}
	if i < 0 || i >= shape[0] {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndex, i, shape[0])
	}
	values, err := Values(t)
	if err != nil {
		return nil, err
	}
	rest := append([]int(nil), shape[1:]...)
	chunk := len(values) / shape[0]
	return New(rest, values[i*chunk:(i+1)*chunk])
}

// Stack joins equally shaped tensors along a new leading axis.
func Stack(ts []*tensor.Dense) (*tensor.Dense, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("%w: nothing to stack", ErrShape)
	}
	first := ts[0]
	if first == nil {
		return nil, errors.New("tensor is nil")
	}
	data := make([]float32, 0, len(ts)*first.Shape().TotalSize())
	for i, t := range ts {
		if !SameShape(first, t) {
			return nil, fmt.Errorf("%w: element %d has shape %v, want %v", ErrShape, i, Shape(t), Shape(first))
		}
		values, err := Values(t)
		if err != nil {
			return nil, err
		}
		data = append(data, values...)
	}
	return New(append([]int{len(ts)}, first.Shape()...), data)
}

