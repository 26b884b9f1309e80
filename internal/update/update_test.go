package update

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralca/internal/ca"
	"neuralca/internal/grid"
	"neuralca/internal/nn"
	"neuralca/internal/perceive"
)

func TestIncrementScenario(t *testing.T) {
	engine, err := ca.New(perceive.Identity{}, Increment{Delta: 1})
	require.NoError(t, err)
	s, err := grid.Zeros(4, 4, 1)
	require.NoError(t, err)

	res, err := engine.Run(s, nil, ca.RunOptions{NumSteps: 3, AllSteps: true})
	require.NoError(t, err)
	require.Len(t, res.Trajectory, 4)
	for i, state := range res.Trajectory {
		values, err := grid.Values(state)
		require.NoError(t, err)
		for _, v := range values {
			if v != float32(i) {
				t.Fatalf("trajectory[%d] holds %f, want %d", i, v, i)
			}
		}
	}

	// the initial state is not modified by the run
	values, err := grid.Values(s)
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), values)
}

func identityNet(t *testing.T, in, out int) *nn.MLP {
	t.Helper()
	// one linear layer that copies the first out features
	layer, err := nn.NewZeroDense(in, out, "identity")
	require.NoError(t, err)
	for o := 0; o < out; o++ {
		layer.Weights[o*in+o] = 1
	}
	return &nn.MLP{Layers: []*nn.Dense{layer}}
}

func TestResidualAddsNetworkOutput(t *testing.T) {
	u, err := NewResidual(identityNet(t, 2, 2), -1, 0)
	require.NoError(t, err)

	state, err := grid.Full(1, 2, 2, 2)
	require.NoError(t, err)
	// perception equals the state, so every cell doubles
	next, err := u.Update(state, state, nil)
	require.NoError(t, err)
	values, err := grid.Values(next)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{2, 2, 2, 2, 2, 2, 2, 2}, values, 1e-6)
}

func TestResidualBroadcastAndGridInput(t *testing.T) {
	// network reads only the input feature (index 1) into the single channel
	layer, err := nn.NewZeroDense(2, 1, "identity")
	require.NoError(t, err)
	layer.Weights[1] = 1
	u, err := NewResidual(&nn.MLP{Layers: []*nn.Dense{layer}}, -1, 0)
	require.NoError(t, err)

	state, err := grid.Zeros(2, 2, 1)
	require.NoError(t, err)

	vec, err := grid.New([]int{1}, []float32{0.5})
	require.NoError(t, err)
	next, err := u.Update(state, state, vec)
	require.NoError(t, err)
	values, err := grid.Values(next)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.5, 0.5}, values, 1e-6)

	perCell, err := grid.New([]int{2, 2, 1}, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	next, err = u.Update(state, state, perCell)
	require.NoError(t, err)
	values, err = grid.Values(next)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 2, 3, 4}, values, 1e-6)

	bad, err := grid.Zeros(3, 3, 1)
	require.NoError(t, err)
	if _, err := u.Update(state, state, bad); err == nil {
		t.Fatal("expected input shape error")
	}
}

func TestResidualAliveMasking(t *testing.T) {
	net, err := nn.NewMLP(4, nil, 4, "identity", true, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	u, err := NewResidual(net, grid.AliveChannel, 0.1)
	require.NoError(t, err)

	// 5x5 grid, center seeded; everything else is random noise on visible
	// channels that must be cleared because no alive neighbor is present.
	state, err := grid.SeedCenter(5, 5, 4)
	require.NoError(t, err)
	values, err := grid.Values(state)
	require.NoError(t, err)
	noisy := append([]float32(nil), values...)
	noisy[0] = 0.7
	state, err = grid.New([]int{5, 5, 4}, noisy)
	require.NoError(t, err)

	next, err := u.Update(state, state, nil)
	require.NoError(t, err)
	out, err := grid.Values(next)
	require.NoError(t, err)
	assert.Equal(t, float32(0), out[0], "corner cell is dead and must be cleared")
	center := (2*5 + 2) * 4
	assert.Equal(t, float32(1), out[center+grid.AliveChannel], "seed survives")
}

func TestResidualShapeChecks(t *testing.T) {
	u, err := NewResidual(identityNet(t, 3, 2), -1, 0)
	require.NoError(t, err)
	state, err := grid.Zeros(2, 2, 2)
	require.NoError(t, err)
	if _, err := u.Update(state, state, nil); err == nil {
		t.Fatal("expected network width error")
	}

	u, err = NewResidual(identityNet(t, 2, 2), 5, 0)
	require.NoError(t, err)
	if _, err := u.Update(state, state, nil); err == nil {
		t.Fatal("expected alive channel range error")
	}

	if _, err := NewResidual(nil, -1, 0); err == nil {
		t.Fatal("expected missing network error")
	}
}

func TestResidualWithDepthwisePerceptionInEngine(t *testing.T) {
	p, err := perceive.NewDepthwiseConv(nil, "")
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(4))
	net, err := nn.NewMLP(4*p.Features(), []int{16}, 4, "relu", false, rng)
	require.NoError(t, err)
	u, err := NewResidual(net, grid.AliveChannel, 0.1)
	require.NoError(t, err)

	engine, err := ca.New(p, u)
	require.NoError(t, err)
	seed, err := grid.SeedCenter(8, 8, 4)
	require.NoError(t, err)

	res, err := engine.Run(seed, nil, ca.RunOptions{NumSteps: 4, AllSteps: true})
	require.NoError(t, err)
	require.Len(t, res.Trajectory, 5)
	for _, state := range res.Trajectory {
		assert.Equal(t, []int{8, 8, 4}, grid.Shape(state))
	}

	again, err := engine.Run(seed, nil, ca.RunOptions{NumSteps: 4})
	require.NoError(t, err)
	if !grid.Equal(res.Final, again.Final, 0) {
		t.Fatal("expected deterministic runs")
	}
}
