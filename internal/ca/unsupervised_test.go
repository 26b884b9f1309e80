package ca

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/pdevine/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralca/internal/grid"
)

// fixedEncoder returns constant parameters of the given shape.
func fixedEncoder(mean, logvar float32, shape ...int) LatentEncoder {
	return LatentEncoderFunc(func(_ *tensor.Dense) (*tensor.Dense, *tensor.Dense, error) {
		m, err := grid.Full(mean, shape...)
		if err != nil {
			return nil, nil, err
		}
		lv, err := grid.Full(logvar, shape...)
		if err != nil {
			return nil, nil, err
		}
		return m, lv, nil
	})
}

func mustUnsupervised(t *testing.T, enc LatentEncoder) *UnsupervisedEngine {
	t.Helper()
	engine, err := NewUnsupervised(identityPerceive(), addUpdate(), enc)
	require.NoError(t, err)
	return engine
}

func TestNewUnsupervisedRequiresEncoder(t *testing.T) {
	if _, err := NewUnsupervised(identityPerceive(), addUpdate(), nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUnsupervisedEngineStillSteps(t *testing.T) {
	engine := mustUnsupervised(t, fixedEncoder(0, 0, 2))
	res, err := engine.Run(mustZeros(t, 2, 2, 1), nil, RunOptions{NumSteps: 2})
	require.NoError(t, err)
	assertAll(t, res.Final, 2)
}

func TestEncodeReparameterization(t *testing.T) {
	engine := mustUnsupervised(t, fixedEncoder(1.5, float32(math.Log(4)), 2, 3))
	target := mustZeros(t, 4)

	got, err := engine.Encode(target, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, grid.Shape(got))

	ref := rand.New(rand.NewSource(42))
	values, err := grid.Values(got)
	require.NoError(t, err)
	for i, v := range values {
		want := 1.5 + float32(ref.NormFloat64())*2
		assert.InDelta(t, want, v, 1e-4, "element %d", i)
	}
}

func TestEncodeReproducibleUnderFixedSeed(t *testing.T) {
	engine := mustUnsupervised(t, fixedEncoder(0, 0, 8))
	target := mustZeros(t, 8)

	a, err := engine.Encode(target, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := engine.Encode(target, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	if !grid.Equal(a, b, 0) {
		t.Fatal("expected identical samples for identical seeds")
	}
}

func TestEncodeAdvancesSource(t *testing.T) {
	engine := mustUnsupervised(t, fixedEncoder(0, 0, 16))
	target := mustZeros(t, 16)
	src := rand.New(rand.NewSource(11))

	a, err := engine.Encode(target, src)
	require.NoError(t, err)
	b, err := engine.Encode(target, src)
	require.NoError(t, err)
	if grid.Equal(a, b, 1e-6) {
		t.Fatal("expected independent samples from an advanced source")
	}
}

func TestEncodeZeroVarianceReturnsMean(t *testing.T) {
	// logvar of -inf is not representable through exp, use a very small variance.
	engine := mustUnsupervised(t, fixedEncoder(3, -40, 5))
	got, err := engine.Encode(mustZeros(t, 1), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	values, err := grid.Values(got)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{3, 3, 3, 3, 3}, values, 1e-6)
}

func TestEncodeShapeMismatch(t *testing.T) {
	enc := LatentEncoderFunc(func(_ *tensor.Dense) (*tensor.Dense, *tensor.Dense, error) {
		m, _ := grid.Zeros(2)
		lv, _ := grid.Zeros(3)
		return m, lv, nil
	})
	engine := mustUnsupervised(t, enc)
	_, err := engine.Encode(mustZeros(t, 2), rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestEncodeRequiresSource(t *testing.T) {
	engine := mustUnsupervised(t, fixedEncoder(0, 0, 2))
	if _, err := engine.Encode(mustZeros(t, 2), nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
