package ca

import (
	"errors"
	"fmt"

	"github.com/pdevine/tensor"

	"neuralca/internal/grid"
)

// Engine composes a Perceiver and an Updater. It holds no per-run state and
// may be shared across goroutines when its units are safe to share.
type Engine struct {
	perceive Perceiver
	update   Updater
}

func New(perceive Perceiver, update Updater) (*Engine, error) {
	if perceive == nil {
		return nil, fmt.Errorf("%w: perceive unit is required", ErrConfiguration)
	}
	if update == nil {
		return nil, fmt.Errorf("%w: update unit is required", ErrConfiguration)
	}
	return &Engine{perceive: perceive, update: update}, nil
}

// Step applies one transition: perceive the state, then update it. input may
// be nil.
func (e *Engine) Step(state, input *tensor.Dense) (*tensor.Dense, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: state is required", ErrConfiguration)
	}
	perception, err := e.perceive.Perceive(state)
	if err != nil {
		return nil, fmt.Errorf("perceive: %w", err)
	}
	if perception == nil {
		return nil, errors.New("perceive: unit returned no perception")
	}
	next, err := e.update.Update(state, perception, input)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	if !grid.SameShape(state, next) {
		return nil, fmt.Errorf("%w: update returned shape %v, want %v", ErrShapeMismatch, grid.Shape(next), grid.Shape(state))
	}
	return next, nil
}
