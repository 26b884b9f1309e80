package encoder

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralca/internal/ca"
	"neuralca/internal/grid"
	"neuralca/internal/perceive"
	"neuralca/internal/update"
)

func TestLinearEncodeParamsShapes(t *testing.T) {
	enc, err := NewLinear(12, []int{2, 2}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	target, err := grid.Uniform(rand.New(rand.NewSource(2)), 0, 1, 2, 2, 3)
	require.NoError(t, err)
	mean, logvar, err := enc.EncodeParams(target)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, grid.Shape(mean))
	assert.Equal(t, []int{2, 2}, grid.Shape(logvar))

	lv, err := grid.Values(logvar)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, lv)
}

func TestLinearRejectsWrongTargetSize(t *testing.T) {
	enc, err := NewLinear(4, []int{2}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	target, err := grid.Zeros(5)
	require.NoError(t, err)
	if _, _, err := enc.EncodeParams(target); err == nil {
		t.Fatal("expected width mismatch error")
	}
}

func TestNewLinearValidation(t *testing.T) {
	if _, err := NewLinear(4, nil, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected missing latent shape error")
	}
	if _, err := NewLinear(4, []int{0}, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected invalid latent shape error")
	}
}

func TestLinearDrivesUnsupervisedEncode(t *testing.T) {
	enc, err := NewLinear(8, []int{4}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	engine, err := ca.NewUnsupervised(perceive.Identity{}, update.Increment{Delta: 1}, enc)
	require.NoError(t, err)

	target, err := grid.Full(0.5, 2, 2, 2)
	require.NoError(t, err)

	a, err := engine.Encode(target, rand.New(rand.NewSource(10)))
	require.NoError(t, err)
	b, err := engine.Encode(target, rand.New(rand.NewSource(10)))
	require.NoError(t, err)
	c, err := engine.Encode(target, rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	assert.Equal(t, []int{4}, grid.Shape(a))
	assert.True(t, grid.Equal(a, b, 0), "same seed must reproduce the sample")
	assert.False(t, grid.Equal(a, c, 1e-6), "different seeds should differ")
}
