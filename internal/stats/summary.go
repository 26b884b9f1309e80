package stats

import (
	"github.com/pdevine/tensor"

	"neuralca/internal/grid"
	"neuralca/internal/model"
	"neuralca/internal/nn"
)

// Summarize computes value statistics for one (H, W, C) state. Alive counts
// cells whose aliveChannel value exceeds threshold; it is zero when
// aliveChannel is negative or the state is not a 3-D grid.
func Summarize(step int, state *tensor.Dense, aliveChannel int, threshold float32) (model.StepStats, error) {
	values, err := grid.Values(state)
	if err != nil {
		return model.StepStats{}, err
	}
	mean, err := nn.Avg(values)
	if err != nil {
		return model.StepStats{}, err
	}
	std, err := nn.Std(values)
	if err != nil {
		return model.StepStats{}, err
	}
	lo, hi, err := nn.MinMax(values)
	if err != nil {
		return model.StepStats{}, err
	}

	out := model.StepStats{Step: step, Mean: mean, Std: std, Min: lo, Max: hi}
	shape := grid.Shape(state)
	if aliveChannel >= 0 && len(shape) == 3 && aliveChannel < shape[2] {
		c := shape[2]
		for cell := 0; cell < shape[0]*shape[1]; cell++ {
			if values[cell*c+aliveChannel] > threshold {
				out.Alive++
			}
		}
	}
	return out, nil
}
