// Package update provides update units for the automaton engine.
package update

import (
	"errors"
	"fmt"

	"github.com/pdevine/tensor"

	"neuralca/internal/grid"
	"neuralca/internal/nn"
)

// Increment adds Delta to every cell and ignores perception and input.
type Increment struct {
	Delta float32
}

func (u Increment) Update(state, _, _ *tensor.Dense) (*tensor.Dense, error) {
	if state == nil {
		return nil, errors.New("state is required")
	}
	next, err := tensor.Add(state, u.Delta)
	if err != nil {
		return nil, err
	}
	return tensor.Materialize(next).(*tensor.Dense), nil
}

// Residual is the growing-automaton update: every cell feeds its perception,
// and its input features when present, through a shared MLP whose output is
// added to the cell. When AliveChannel is non-negative, cells with no alive
// neighbor before and after the update are cleared.
type Residual struct {
	Net            *nn.MLP
	AliveChannel   int
	AliveThreshold float32
}

func NewResidual(net *nn.MLP, aliveChannel int, aliveThreshold float32) (*Residual, error) {
	if net == nil {
		return nil, errors.New("update network is required")
	}
	if err := net.Validate(); err != nil {
		return nil, fmt.Errorf("update network: %w", err)
	}
	return &Residual{Net: net, AliveChannel: aliveChannel, AliveThreshold: aliveThreshold}, nil
}

// Update accepts input as nil, a feature vector of shape (K) shared by every
// cell, or a per-cell tensor of shape (H, W, K).
func (u *Residual) Update(state, perception, input *tensor.Dense) (*tensor.Dense, error) {
	shape := grid.Shape(state)
	if len(shape) != 3 {
		return nil, fmt.Errorf("residual update expects (H, W, C) state, got shape %v", shape)
	}
	h, w, c := shape[0], shape[1], shape[2]
	if u.AliveChannel >= c {
		return nil, fmt.Errorf("alive channel %d out of range for %d channels", u.AliveChannel, c)
	}

	pshape := grid.Shape(perception)
	if len(pshape) != 3 || pshape[0] != h || pshape[1] != w {
		return nil, fmt.Errorf("perception shape %v does not cover state grid %v", pshape, shape)
	}
	features := pshape[2]

	cellInput, inputWidth, err := inputFeatures(input, h, w)
	if err != nil {
		return nil, err
	}
	if u.Net.In() != features+inputWidth {
		return nil, fmt.Errorf("update network expects %d features, got %d perception + %d input", u.Net.In(), features, inputWidth)
	}
	if u.Net.Out() != c {
		return nil, fmt.Errorf("update network produces %d channels, state has %d", u.Net.Out(), c)
	}

	values, err := grid.Values(state)
	if err != nil {
		return nil, err
	}
	perceived, err := grid.Values(perception)
	if err != nil {
		return nil, err
	}

	next := make([]float32, len(values))
	x := make([]float32, features+inputWidth)
	for cell := 0; cell < h*w; cell++ {
		copy(x, perceived[cell*features:(cell+1)*features])
		if inputWidth > 0 {
			copy(x[features:], cellInput(cell))
		}
		delta, err := u.Net.Forward(x)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", cell, err)
		}
		for ch := 0; ch < c; ch++ {
			next[cell*c+ch] = values[cell*c+ch] + delta[ch]
		}
	}

	if u.AliveChannel >= 0 {
		pre := aliveMask(values, h, w, c, u.AliveChannel, u.AliveThreshold)
		post := aliveMask(next, h, w, c, u.AliveChannel, u.AliveThreshold)
		for cell := 0; cell < h*w; cell++ {
			if pre[cell] && post[cell] {
				continue
			}
			for ch := 0; ch < c; ch++ {
				next[cell*c+ch] = 0
			}
		}
	}
	return grid.New(shape, next)
}

// inputFeatures returns a per-cell accessor for input along with its width.
func inputFeatures(input *tensor.Dense, h, w int) (func(cell int) []float32, int, error) {
	if input == nil {
		return nil, 0, nil
	}
	values, err := grid.Values(input)
	if err != nil {
		return nil, 0, err
	}
	shape := grid.Shape(input)
	switch {
	case len(shape) <= 1:
		return func(int) []float32 { return values }, len(values), nil
	case len(shape) == 3 && shape[0] == h && shape[1] == w:
		k := shape[2]
		return func(cell int) []float32 { return values[cell*k : (cell+1)*k] }, k, nil
	default:
		return nil, 0, fmt.Errorf("input shape %v is neither a feature vector nor a (%d, %d, K) grid", shape, h, w)
	}
}

// aliveMask marks cells whose 3x3 neighborhood holds an alive-channel value
// above threshold. Out-of-grid neighbors are ignored.
func aliveMask(values []float32, h, w, c, channel int, threshold float32) []bool {
	mask := make([]bool, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			alive := false
			for dy := -1; dy <= 1 && !alive; dy++ {
				for dx := -1; dx <= 1; dx++ {
					ny, nx := y+dy, x+dx
					if ny < 0 || ny >= h || nx < 0 || nx >= w {
						continue
					}
					if values[(ny*w+nx)*c+channel] > threshold {
						alive = true
						break
					}
				}
			}
			mask[y*w+x] = alive
		}
	}
	return mask
}
