// Package encoder provides latent encoders that map a target grid to the
// mean and log-variance of a per-element Gaussian.
package encoder

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/pdevine/tensor"

	"neuralca/internal/grid"
	"neuralca/internal/nn"
)

// Linear flattens the target and projects it through two affine heads.
type Linear struct {
	Mean        *nn.Dense `json:"mean"`
	LogVar      *nn.Dense `json:"logvar"`
	LatentShape []int     `json:"latent_shape"`
}

// NewLinear builds an encoder for targets of inSize elements. The log-variance
// head starts at zero so initial samples have unit variance.
func NewLinear(inSize int, latentShape []int, rng *rand.Rand) (*Linear, error) {
	latent, err := grid.Size(latentShape)
	if err != nil {
		return nil, fmt.Errorf("latent shape: %w", err)
	}
	if len(latentShape) == 0 {
		return nil, errors.New("latent shape is required")
	}
	mean, err := nn.NewDense(inSize, latent, "identity", rng)
	if err != nil {
		return nil, fmt.Errorf("mean head: %w", err)
	}
	logvar, err := nn.NewZeroDense(inSize, latent, "identity")
	if err != nil {
		return nil, fmt.Errorf("logvar head: %w", err)
	}
	return &Linear{
		Mean:        mean,
		LogVar:      logvar,
		LatentShape: append([]int(nil), latentShape...),
	}, nil
}

func (e *Linear) EncodeParams(target *tensor.Dense) (*tensor.Dense, *tensor.Dense, error) {
	values, err := grid.Values(target)
	if err != nil {
		return nil, nil, err
	}
	mean, err := project(e.Mean, values, e.LatentShape)
	if err != nil {
		return nil, nil, fmt.Errorf("mean head: %w", err)
	}
	logvar, err := project(e.LogVar, values, e.LatentShape)
	if err != nil {
		return nil, nil, fmt.Errorf("logvar head: %w", err)
	}
	return mean, logvar, nil
}

func project(head *nn.Dense, x []float32, shape []int) (*tensor.Dense, error) {
	if head == nil {
		return nil, errors.New("head is not configured")
	}
	out := make([]float32, head.Out)
	if err := head.Forward(x, out); err != nil {
		return nil, err
	}
	return grid.New(shape, out)
}
