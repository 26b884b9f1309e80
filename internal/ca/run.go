package ca

import (
	"errors"
	"fmt"

	"github.com/pdevine/tensor"

	"neuralca/internal/grid"
)

// RunOptions configures a multi-step run.
type RunOptions struct {
	// NumSteps is the number of transitions to apply. Zero returns the
	// initial state untouched.
	NumSteps int
	// AllSteps captures the full trajectory, initial state included.
	AllSteps bool
	// InputInAxis, when set, selects slice i of the input along this axis
	// for transition i. When nil the input is passed unchanged to every
	// transition. Negative values count from the last axis.
	InputInAxis *int
	// Observer, when set, is called after each transition with the
	// one-based step number and the new state.
	Observer func(step int, state *tensor.Dense)
}

// Axis returns a pointer suitable for RunOptions.InputInAxis.
func Axis(axis int) *int {
	return &axis
}

// Result holds the final state and, when requested, the trajectory of
// NumSteps+1 states starting with the initial one.
type Result struct {
	Final      *tensor.Dense
	Trajectory []*tensor.Dense
}

// Stacked joins the trajectory along a new leading axis.
func (r Result) Stacked() (*tensor.Dense, error) {
	if len(r.Trajectory) == 0 {
		return nil, errors.New("trajectory was not captured")
	}
	return grid.Stack(r.Trajectory)
}

// Run applies Step NumSteps times starting from first. Transitions run strictly
// in order since each consumes the previous state.
func (e *Engine) Run(first, input *tensor.Dense, opts RunOptions) (Result, error) {
	if first == nil {
		return Result{}, fmt.Errorf("%w: first state is required", ErrConfiguration)
	}
	if opts.NumSteps < 0 {
		return Result{}, fmt.Errorf("%w: num_steps must be >= 0, got %d", ErrConfiguration, opts.NumSteps)
	}
	inputs, err := newStepInputs(input, opts.InputInAxis, opts.NumSteps)
	if err != nil {
		return Result{}, err
	}

	var trajectory []*tensor.Dense
	if opts.AllSteps {
		trajectory = make([]*tensor.Dense, 1, opts.NumSteps+1)
		trajectory[0] = first
	}

	current := first
	for i := 0; i < opts.NumSteps; i++ {
		in, err := inputs.at(i)
		if err != nil {
			return Result{}, &StepError{Step: i, Err: err}
		}
		next, err := e.Step(current, in)
		if err != nil {
			return Result{}, &StepError{Step: i, Err: err}
		}
		if opts.AllSteps {
			trajectory = append(trajectory, next)
		}
		if opts.Observer != nil {
			opts.Observer(i+1, next)
		}
		current = next
	}
	return Result{Final: current, Trajectory: trajectory}, nil
}

// stepInputs resolves the input handed to each transition.
type stepInputs struct {
	constant *tensor.Dense
	sequence *tensor.Dense
	sliced   bool
}

func newStepInputs(input *tensor.Dense, axis *int, numSteps int) (stepInputs, error) {
	if axis == nil {
		return stepInputs{constant: input}, nil
	}
	if input == nil {
		return stepInputs{}, fmt.Errorf("%w: input_in_axis=%d set without input", ErrConfiguration, *axis)
	}

	dims := input.Dims()
	resolved := *axis
	if resolved < 0 {
		resolved += dims
	}
	if resolved < 0 || resolved >= dims {
		return stepInputs{}, fmt.Errorf("%w: input_in_axis=%d out of range for %d-dimensional input", ErrConfiguration, *axis, dims)
	}
	if extent := input.Shape()[resolved]; extent < numSteps {
		return stepInputs{}, fmt.Errorf("%w: input extent %d along axis %d is smaller than num_steps %d", ErrIndexRange, extent, resolved, numSteps)
	}
	if numSteps == 0 {
		return stepInputs{sliced: true}, nil
	}

	sequence, err := grid.MoveAxisFront(input, resolved)
	if err != nil {
		return stepInputs{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return stepInputs{sequence: sequence, sliced: true}, nil
}

func (s stepInputs) at(i int) (*tensor.Dense, error) {
	if !s.sliced {
		return s.constant, nil
	}
	slice, err := grid.Select(s.sequence, i)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexRange, err)
	}
	return slice, nil
}
