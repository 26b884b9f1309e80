package nn

import (
	"fmt"
	"math"
)

// Sat clamps value to [min, max].
func Sat(value, max, min float64) float64 {
	if value > max {
		return max
	}
	if value < min {
		return min
	}
	return value
}

// Avg returns the arithmetic mean of values.
func Avg(values []float32) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("values must not be empty")
	}
	sum := 0.0
	for _, value := range values {
		sum += float64(value)
	}
	return sum / float64(len(values)), nil
}

// Std returns population standard deviation.
func Std(values []float32) (float64, error) {
	mean, err := Avg(values)
	if err != nil {
		return 0, err
	}
	acc := 0.0
	for _, value := range values {
		d := float64(value) - mean
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(values))), nil
}

// MinMax returns the smallest and largest of values.
func MinMax(values []float32) (float32, float32, error) {
	if len(values) == 0 {
		return 0, 0, fmt.Errorf("values must not be empty")
	}
	lo, hi := values[0], values[0]
	for _, value := range values[1:] {
		if value < lo {
			lo = value
		}
		if value > hi {
			hi = value
		}
	}
	return lo, hi, nil
}
