// Package ca implements the neural cellular automaton engine: a perceive unit
// and an update unit composed into a single transition, iterated for a fixed
// number of steps with optional trajectory capture. UnsupervisedEngine adds a
// reparameterized latent encoding of a target grid.
package ca

import "github.com/pdevine/tensor"

// Perceiver extracts a neighborhood feature tensor from a state. It must be a
// pure function of the state.
type Perceiver interface {
	Perceive(state *tensor.Dense) (*tensor.Dense, error)
}

// Updater maps a state, its perception and an optional input (nil when absent)
// to the next state. The result must keep the shape of state.
type Updater interface {
	Update(state, perception, input *tensor.Dense) (*tensor.Dense, error)
}

// LatentEncoder maps a target tensor to the mean and log-variance of a
// per-element Gaussian. Both results must share a shape.
type LatentEncoder interface {
	EncodeParams(target *tensor.Dense) (mean, logvar *tensor.Dense, err error)
}

// NormalSource is a caller-owned standard-normal generator. *rand.Rand
// satisfies it.
type NormalSource interface {
	NormFloat64() float64
}

type PerceiverFunc func(state *tensor.Dense) (*tensor.Dense, error)

func (f PerceiverFunc) Perceive(state *tensor.Dense) (*tensor.Dense, error) {
	return f(state)
}

type UpdaterFunc func(state, perception, input *tensor.Dense) (*tensor.Dense, error)

func (f UpdaterFunc) Update(state, perception, input *tensor.Dense) (*tensor.Dense, error) {
	return f(state, perception, input)
}

type LatentEncoderFunc func(target *tensor.Dense) (*tensor.Dense, *tensor.Dense, error)

func (f LatentEncoderFunc) EncodeParams(target *tensor.Dense) (*tensor.Dense, *tensor.Dense, error) {
	return f(target)
}
