package grid

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/pdevine/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCopiesBacking(t *testing.T) {
	data := []float32{1, 2, 3, 4}
	g, err := New([]int{2, 2}, data)
	require.NoError(t, err)

	data[0] = 99
	values, err := Values(g)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, values)
	assert.Equal(t, []int{2, 2}, Shape(g))
}

func TestNewRejectsMismatchedLength(t *testing.T) {
	_, err := New([]int{2, 3}, make([]float32, 5))
	if !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
	_, err = New([]int{0, 3}, nil)
	if !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape for zero dimension, got %v", err)
	}
}

func TestNewScalar(t *testing.T) {
	g, err := New(nil, []float32{7})
	require.NoError(t, err)
	values, err := Values(g)
	require.NoError(t, err)
	assert.Equal(t, []float32{7}, values)
}

func TestMoveAxisFrontAndSelect(t *testing.T) {
	// shape (2, 3): rows [0 1 2] and [3 4 5]
	g, err := New([]int{2, 3}, []float32{0, 1, 2, 3, 4, 5})
	require.NoError(t, err)

	front, err := MoveAxisFront(g, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, Shape(front))

	col, err := Select(front, 2)
	require.NoError(t, err)
	values, err := Values(col)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 5}, values)

	// the source tensor is untouched
	src, err := Values(g)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5}, src)
}

func TestMoveAxisFrontNegativeAxis(t *testing.T) {
	g, err := Zeros(2, 3, 4)
	require.NoError(t, err)
	front, err := MoveAxisFront(g, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 3}, Shape(front))

	_, err = MoveAxisFront(g, 3)
	if !errors.Is(err, ErrIndex) {
		t.Fatalf("expected ErrIndex, got %v", err)
	}
}

func TestSelectOutOfRange(t *testing.T) {
	g, err := Zeros(2, 2)
	require.NoError(t, err)
	if _, err := Select(g, 2); !errors.Is(err, ErrIndex) {
		t.Fatalf("expected ErrIndex, got %v", err)
	}
}

func TestStack(t *testing.T) {
	a, _ := Full(1, 2, 2)
	b, _ := Full(2, 2, 2)
	stacked, err := Stack([]*tensor.Dense{a, b})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, Shape(stacked))
	values, err := Values(stacked)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1, 2, 2, 2, 2}, values)

	c, _ := Zeros(3)
	if _, err := Stack([]*tensor.Dense{a, c}); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestEqualTolerance(t *testing.T) {
	a, _ := New([]int{2}, []float32{1, 2})
	b, _ := New([]int{2}, []float32{1.0005, 2})
	assert.True(t, Equal(a, b, 1e-3))
	assert.False(t, Equal(a, b, 1e-5))
}

func TestSeedCenter(t *testing.T) {
	g, err := SeedCenter(3, 3, 5)
	require.NoError(t, err)
	values, err := Values(g)
	require.NoError(t, err)

	center := (1*3 + 1) * 5
	for i, v := range values {
		want := float32(0)
		if i >= center+AliveChannel && i < center+5 {
			want = 1
		}
		if v != want {
			t.Fatalf("value %d = %f, want %f", i, v, want)
		}
	}
}

func TestPattern(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, name := range []string{PatternZeros, PatternOnes, PatternSeed, PatternRandom} {
		g, err := Pattern(name, 4, 4, 2, rng)
		if err != nil {
			t.Fatalf("pattern %s: %v", name, err)
		}
		assert.Equal(t, []int{4, 4, 2}, Shape(g), name)
	}
	if _, err := Pattern("checkerboard", 4, 4, 2, rng); err == nil {
		t.Fatal("expected unsupported pattern error")
	}
}

func TestNormalConsumesOneDrawPerElement(t *testing.T) {
	a := rand.New(rand.NewSource(5))
	b := rand.New(rand.NewSource(5))
	g, err := Normal(a, 2, 3)
	require.NoError(t, err)
	values, err := Values(g)
	require.NoError(t, err)
	for i := range values {
		assert.Equal(t, float32(b.NormFloat64()), values[i])
	}
	assert.Equal(t, a.NormFloat64(), b.NormFloat64())
}
