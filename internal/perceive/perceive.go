// Package perceive provides perception units for the automaton engine.
package perceive

import (
	"errors"
	"fmt"

	"github.com/pdevine/tensor"

	"neuralca/internal/grid"
)

const (
	PaddingCircular = "circular"
	PaddingZero     = "zero"
)

// Identity perceives a state as itself.
type Identity struct{}

func (Identity) Perceive(state *tensor.Dense) (*tensor.Dense, error) {
	if state == nil {
		return nil, errors.New("state is required")
	}
	return state, nil
}

// DepthwiseConv convolves every channel of an (H, W, C) state with each
// kernel. The output has shape (H, W, C*K); for channel c and kernel k the
// feature lands at index c*K+k.
type DepthwiseConv struct {
	kernels []Kernel
	names   []string
	padding string
}

// NewDepthwiseConv resolves kernel names up front. An empty name list selects
// DefaultKernels and an empty padding selects circular.
func NewDepthwiseConv(names []string, padding string) (*DepthwiseConv, error) {
	if len(names) == 0 {
		names = DefaultKernels
	}
	switch padding {
	case "":
		padding = PaddingCircular
	case PaddingCircular, PaddingZero:
	default:
		return nil, fmt.Errorf("unsupported padding: %s", padding)
	}

	kernels := make([]Kernel, 0, len(names))
	for _, name := range names {
		kernel, err := ResolveKernel(name)
		if err != nil {
			return nil, err
		}
		kernels = append(kernels, kernel)
	}
	return &DepthwiseConv{
		kernels: kernels,
		names:   append([]string(nil), names...),
		padding: padding,
	}, nil
}

// Features returns the number of output channels per input channel.
func (p *DepthwiseConv) Features() int {
	return len(p.kernels)
}

func (p *DepthwiseConv) Kernels() []string {
	return append([]string(nil), p.names...)
}

func (p *DepthwiseConv) Perceive(state *tensor.Dense) (*tensor.Dense, error) {
	shape := grid.Shape(state)
	if len(shape) != 3 {
		return nil, fmt.Errorf("depthwise conv expects (H, W, C) state, got shape %v", shape)
	}
	h, w, c := shape[0], shape[1], shape[2]
	values, err := grid.Values(state)
	if err != nil {
		return nil, err
	}

	k := len(p.kernels)
	out := make([]float32, h*w*c*k)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := (y*w + x) * c * k
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					ny, nx, ok := p.neighbor(y+dy, x+dx, h, w)
					if !ok {
						continue
					}
					src := (ny*w + nx) * c
					tap := (dy+1)*3 + (dx + 1)
					for ch := 0; ch < c; ch++ {
						v := values[src+ch]
						if v == 0 {
							continue
						}
						for ki, kernel := range p.kernels {
							out[base+ch*k+ki] += kernel[tap] * v
						}
					}
				}
			}
		}
	}
	return grid.New([]int{h, w, c * k}, out)
}

func (p *DepthwiseConv) neighbor(y, x, h, w int) (int, int, bool) {
	if p.padding == PaddingZero {
		if y < 0 || y >= h || x < 0 || x >= w {
			return 0, 0, false
		}
		return y, x, true
	}
	return (y%h + h) % h, (x%w + w) % w, true
}
