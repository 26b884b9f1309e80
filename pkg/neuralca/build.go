package neuralca

import (
	"fmt"
	"math/rand"

	"github.com/pdevine/tensor"

	"neuralca/internal/ca"
	"neuralca/internal/encoder"
	"neuralca/internal/grid"
	"neuralca/internal/model"
	"neuralca/internal/nn"
	"neuralca/internal/perceive"
	"neuralca/internal/update"
)

const (
	PerceiveIdentity  = "identity"
	PerceiveDepthwise = "depthwise"

	UpdateIncrement = "increment"
	UpdateResidual  = "residual"

	InputNone     = "none"
	InputConstant = "constant"
	InputSequence = "sequence"
)

type builtRun struct {
	engine       *ca.Engine
	unsupervised *ca.UnsupervisedEngine
	first        *tensor.Dense
	input        *tensor.Dense
	rng          *rand.Rand
	config       model.RunConfig
}

func withDefaults(req RunRequest) RunRequest {
	if req.Height <= 0 {
		req.Height = 16
	}
	if req.Width <= 0 {
		req.Width = 16
	}
	if req.Channels <= 0 {
		req.Channels = 8
	}
	if req.InitPattern == "" {
		req.InitPattern = grid.PatternSeed
	}
	if req.Perceive == "" {
		req.Perceive = PerceiveDepthwise
	}
	if req.Update == "" {
		req.Update = UpdateResidual
	}
	if req.Update == UpdateResidual {
		if req.Hidden == nil {
			req.Hidden = []int{32}
		}
		if req.Activation == "" {
			req.Activation = "relu"
		}
	}
	if req.Update == UpdateIncrement && req.Delta == nil {
		delta := float32(1)
		req.Delta = &delta
	}
	if req.AliveMasking && req.AliveThreshold == 0 {
		req.AliveThreshold = 0.1
	}
	if req.Input == "" {
		req.Input = InputNone
	}
	if req.Input != InputNone && req.InputWidth <= 0 {
		req.InputWidth = 2
	}
	if req.Input == InputSequence && req.InputInAxis == nil {
		req.InputInAxis = ca.Axis(0)
	}
	if req.Encode && req.LatentSize <= 0 {
		req.LatentSize = 8
	}
	return req
}

// build assembles units, initial state and input. Every random draw comes from
// one generator seeded by req.Seed so a request always rebuilds identically.
func build(req RunRequest) (builtRun, error) {
	if req.NumSteps < 0 {
		return builtRun{}, fmt.Errorf("%w: num_steps must be >= 0, got %d", ca.ErrConfiguration, req.NumSteps)
	}
	aliveChannel := -1
	if req.AliveMasking {
		if req.Channels <= grid.AliveChannel {
			return builtRun{}, fmt.Errorf("%w: alive masking needs more than %d channels, got %d", ca.ErrConfiguration, grid.AliveChannel, req.Channels)
		}
		aliveChannel = grid.AliveChannel
	}
	rng := rngFor(req.Seed)

	perceiver, features, err := buildPerceive(req)
	if err != nil {
		return builtRun{}, err
	}
	inputWidth := 0
	if req.Input != InputNone {
		inputWidth = req.InputWidth
	}
	updater, err := buildUpdate(req, features, inputWidth, aliveChannel, rng)
	if err != nil {
		return builtRun{}, err
	}
	first, err := grid.Pattern(req.InitPattern, req.Height, req.Width, req.Channels, rng)
	if err != nil {
		return builtRun{}, err
	}
	input, err := buildInput(req, rng)
	if err != nil {
		return builtRun{}, err
	}

	out := builtRun{
		first: first,
		input: input,
		rng:   rng,
		config: model.RunConfig{
			Height:         req.Height,
			Width:          req.Width,
			Channels:       req.Channels,
			InitPattern:    req.InitPattern,
			Perceive:       req.Perceive,
			Kernels:        req.Kernels,
			Padding:        req.Padding,
			Update:         req.Update,
			Hidden:         req.Hidden,
			Activation:     req.Activation,
			Delta:          deltaOf(req),
			AliveChannel:   aliveChannel,
			AliveThreshold: req.AliveThreshold,
			Input:          req.Input,
			InputWidth:     inputWidth,
			InputInAxis:    req.InputInAxis,
			Seed:           req.Seed,
			NumSteps:       req.NumSteps,
			AllSteps:       req.AllSteps,
			Encode:         req.Encode,
			LatentSize:     req.LatentSize,
		},
	}

	if req.Encode {
		enc, err := encoder.NewLinear(req.Height*req.Width*req.Channels, []int{req.LatentSize}, rng)
		if err != nil {
			return builtRun{}, err
		}
		out.unsupervised, err = ca.NewUnsupervised(perceiver, updater, enc)
		if err != nil {
			return builtRun{}, err
		}
		out.engine = out.unsupervised.Engine
		return out, nil
	}

	out.engine, err = ca.New(perceiver, updater)
	if err != nil {
		return builtRun{}, err
	}
	return out, nil
}

// buildPerceive returns the perceive unit and its feature count per cell.
func buildPerceive(req RunRequest) (ca.Perceiver, int, error) {
	switch req.Perceive {
	case PerceiveIdentity:
		return perceive.Identity{}, req.Channels, nil
	case PerceiveDepthwise:
		p, err := perceive.NewDepthwiseConv(req.Kernels, req.Padding)
		if err != nil {
			return nil, 0, err
		}
		return p, req.Channels * p.Features(), nil
	default:
		return nil, 0, fmt.Errorf("unsupported perceive unit: %s", req.Perceive)
	}
}

func buildUpdate(req RunRequest, features, inputWidth, aliveChannel int, rng *rand.Rand) (ca.Updater, error) {
	switch req.Update {
	case UpdateIncrement:
		return update.Increment{Delta: deltaOf(req)}, nil
	case UpdateResidual:
		net, err := nn.NewMLP(features+inputWidth, req.Hidden, req.Channels, req.Activation, false, rng)
		if err != nil {
			return nil, fmt.Errorf("update network: %w", err)
		}
		return update.NewResidual(net, aliveChannel, req.AliveThreshold)
	default:
		return nil, fmt.Errorf("unsupported update unit: %s", req.Update)
	}
}

// buildInput draws a constant feature vector of shape (K), or a per-step
// sequence laid out so the step axis sits at InputInAxis.
func buildInput(req RunRequest, rng *rand.Rand) (*tensor.Dense, error) {
	switch req.Input {
	case InputNone:
		return nil, nil
	case InputConstant:
		return grid.Uniform(rng, -1, 1, req.InputWidth)
	case InputSequence:
		steps := req.NumSteps
		if steps == 0 {
			steps = 1
		}
		axis := 0
		if req.InputInAxis != nil {
			axis = *req.InputInAxis
		}
		switch axis {
		case 0, -2:
			return grid.Uniform(rng, -1, 1, steps, req.InputWidth)
		case 1, -1:
			return grid.Uniform(rng, -1, 1, req.InputWidth, steps)
		default:
			return nil, fmt.Errorf("%w: sequence input supports step axis 0 or 1, got %d", ca.ErrConfiguration, axis)
		}
	default:
		return nil, fmt.Errorf("unsupported input kind: %s", req.Input)
	}
}

func deltaOf(req RunRequest) float32 {
	if req.Delta == nil {
		return 0
	}
	return *req.Delta
}
