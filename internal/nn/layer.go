package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Dense is a fully connected layer. Weights are stored row-major as
// [Out][In].
type Dense struct {
	In         int       `json:"in"`
	Out        int       `json:"out"`
	Weights    []float32 `json:"weights"`
	Bias       []float32 `json:"bias"`
	Activation string    `json:"activation"`
}

// NewDense builds a layer with Glorot-uniform weights and zero bias.
func NewDense(in, out int, activation string, rng *rand.Rand) (*Dense, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("dense dimensions must be > 0, got in=%d out=%d", in, out)
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if _, err := GetActivation(activation); err != nil {
		return nil, err
	}
	limit := math.Sqrt(6.0 / float64(in+out))
	weights := make([]float32, in*out)
	for i := range weights {
		weights[i] = float32((rng.Float64()*2 - 1) * limit)
	}
	return &Dense{
		In:         in,
		Out:        out,
		Weights:    weights,
		Bias:       make([]float32, out),
		Activation: activation,
	}, nil
}

// NewZeroDense builds a layer whose weights and bias start at zero, so a
// residual update built on it is initially the identity.
func NewZeroDense(in, out int, activation string) (*Dense, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("dense dimensions must be > 0, got in=%d out=%d", in, out)
	}
	if _, err := GetActivation(activation); err != nil {
		return nil, err
	}
	return &Dense{
		In:         in,
		Out:        out,
		Weights:    make([]float32, in*out),
		Bias:       make([]float32, out),
		Activation: activation,
	}, nil
}

func (d *Dense) Validate() error {
	if d.In <= 0 || d.Out <= 0 {
		return fmt.Errorf("dense dimensions must be > 0, got in=%d out=%d", d.In, d.Out)
	}
	if len(d.Weights) != d.In*d.Out {
		return fmt.Errorf("dense weights: got %d, want %d", len(d.Weights), d.In*d.Out)
	}
	if len(d.Bias) != d.Out {
		return fmt.Errorf("dense bias: got %d, want %d", len(d.Bias), d.Out)
	}
	_, err := GetActivation(d.Activation)
	return err
}

// Forward writes activation(W·x + b) into out, which must hold d.Out values.
func (d *Dense) Forward(x, out []float32) error {
	if len(x) != d.In {
		return fmt.Errorf("dense input: got %d values, want %d", len(x), d.In)
	}
	if len(out) != d.Out {
		return fmt.Errorf("dense output: got %d slots, want %d", len(out), d.Out)
	}
	act, err := GetActivation(d.Activation)
	if err != nil {
		return err
	}
	for o := 0; o < d.Out; o++ {
		total := float64(d.Bias[o])
		row := d.Weights[o*d.In : (o+1)*d.In]
		for i, w := range row {
			total += float64(w) * float64(x[i])
		}
		out[o] = float32(act(total))
	}
	return nil
}

// MLP chains dense layers.
type MLP struct {
	Layers []*Dense `json:"layers"`
}

// NewMLP builds in -> hidden... -> out. Hidden layers use activation; the
// output layer is linear and zero-initialized when zeroOutput is set.
func NewMLP(in int, hidden []int, out int, activation string, zeroOutput bool, rng *rand.Rand) (*MLP, error) {
	layers := make([]*Dense, 0, len(hidden)+1)
	width := in
	for _, h := range hidden {
		layer, err := NewDense(width, h, activation, rng)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
		width = h
	}

	var (
		last *Dense
		err  error
	)
	if zeroOutput {
		last, err = NewZeroDense(width, out, "identity")
	} else {
		last, err = NewDense(width, out, "identity", rng)
	}
	if err != nil {
		return nil, err
	}
	return &MLP{Layers: append(layers, last)}, nil
}

func (m *MLP) In() int {
	if len(m.Layers) == 0 {
		return 0
	}
	return m.Layers[0].In
}

func (m *MLP) Out() int {
	if len(m.Layers) == 0 {
		return 0
	}
	return m.Layers[len(m.Layers)-1].Out
}

func (m *MLP) Validate() error {
	if len(m.Layers) == 0 {
		return errors.New("mlp has no layers")
	}
	for i, layer := range m.Layers {
		if err := layer.Validate(); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		if i > 0 && m.Layers[i-1].Out != layer.In {
			return fmt.Errorf("layer %d: input %d does not match previous output %d", i, layer.In, m.Layers[i-1].Out)
		}
	}
	return nil
}

// Forward evaluates the network on x and returns a freshly allocated output.
func (m *MLP) Forward(x []float32) ([]float32, error) {
	if len(m.Layers) == 0 {
		return nil, errors.New("mlp has no layers")
	}
	current := x
	for i, layer := range m.Layers {
		next := make([]float32, layer.Out)
		if err := layer.Forward(current, next); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		current = next
	}
	return current, nil
}
