package ca

import (
	"fmt"

	"github.com/pdevine/tensor"

	"neuralca/internal/grid"
)

// UnsupervisedEngine wraps an Engine with a latent encoder used to produce
// stochastic target encodings.
type UnsupervisedEngine struct {
	*Engine
	encoder LatentEncoder
}

func NewUnsupervised(perceive Perceiver, update Updater, encoder LatentEncoder) (*UnsupervisedEngine, error) {
	engine, err := New(perceive, update)
	if err != nil {
		return nil, err
	}
	if encoder == nil {
		return nil, fmt.Errorf("%w: latent encoder is required", ErrConfiguration)
	}
	return &UnsupervisedEngine{Engine: engine, encoder: encoder}, nil
}

// Encode samples mean + eps*exp(logvar/2) with eps drawn from src. It consumes
// exactly one draw per latent element, so repeated calls on the same source
// yield independent samples.
func (u *UnsupervisedEngine) Encode(target *tensor.Dense, src NormalSource) (*tensor.Dense, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: target is required", ErrConfiguration)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: normal source is required", ErrConfiguration)
	}

	mean, logvar, err := u.encoder.EncodeParams(target)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	if mean == nil || logvar == nil {
		return nil, fmt.Errorf("%w: encoder returned no parameters", ErrShapeMismatch)
	}
	if !grid.SameShape(mean, logvar) {
		return nil, fmt.Errorf("%w: mean shape %v, logvar shape %v", ErrShapeMismatch, grid.Shape(mean), grid.Shape(logvar))
	}

	halved, err := tensor.Mul(logvar, float32(0.5))
	if err != nil {
		return nil, err
	}
	std, err := tensor.Exp(halved)
	if err != nil {
		return nil, err
	}
	noise, err := grid.Normal(src, mean.Shape()...)
	if err != nil {
		return nil, err
	}
	scaled, err := tensor.Mul(noise, std)
	if err != nil {
		return nil, err
	}
	sample, err := tensor.Add(mean, scaled)
	if err != nil {
		return nil, err
	}
	return tensor.Materialize(sample).(*tensor.Dense), nil
}
