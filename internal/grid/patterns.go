package grid

import (
	"fmt"
	"math/rand"

	"github.com/pdevine/tensor"
)

// AliveChannel is the channel conventionally used as the alive mask in
// growing automata. Channels before it hold visible color.
const AliveChannel = 3

// Init pattern names understood by Pattern.
const (
	PatternZeros  = "zeros"
	PatternOnes   = "ones"
	PatternSeed   = "seed"
	PatternRandom = "random"
)

// SeedCenter returns an (h, w, c) grid that is zero except for the center
// cell, whose hidden channels (from AliveChannel on) are set to one. Grids
// with no hidden channels get every channel of the center cell set.
func SeedCenter(h, w, c int) (*tensor.Dense, error) {
	size, err := Size([]int{h, w, c})
	if err != nil {
		return nil, err
	}
	data := make([]float32, size)
	base := ((h/2)*w + w/2) * c
	start := AliveChannel
	if c <= AliveChannel {
		start = 0
	}
	for ch := start; ch < c; ch++ {
		data[base+ch] = 1
	}
	return New([]int{h, w, c}, data)
}

// Pattern builds an initial (h, w, c) grid by name.
func Pattern(name string, h, w, c int, rng *rand.Rand) (*tensor.Dense, error) {
	switch name {
	case "", PatternZeros:
		return Zeros(h, w, c)
	case PatternOnes:
		return Full(1, h, w, c)
	case PatternSeed:
		return SeedCenter(h, w, c)
	case PatternRandom:
		return Uniform(rng, 0, 1, h, w, c)
	default:
		return nil, fmt.Errorf("unsupported init pattern: %s", name)
	}
}
