package ca

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch reports a unit that broke a shape invariant: the
	// state shape across steps, or mean/logvar equality.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrIndexRange reports a per-step input whose extent along the step
	// axis is smaller than the number of steps.
	ErrIndexRange = errors.New("input index out of range")
	// ErrConfiguration reports invalid run arguments.
	ErrConfiguration = errors.New("invalid configuration")
)

// StepError locates a failure inside a multi-step run. Step is the zero-based
// index of the transition that failed.
type StepError struct {
	Step int
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
