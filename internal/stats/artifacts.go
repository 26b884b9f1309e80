package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdevine/tensor"

	"neuralca/internal/grid"
	"neuralca/internal/model"
)

var ErrInvalidRunID = errors.New("invalid run id")

// ValidateRunID rejects ids that cannot name a single directory entry.
func ValidateRunID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}
	return nil
}

// RunArtifacts is the exported view of a run: its configuration, per-step
// statistics and decoded states keyed by step number.
type RunArtifacts struct {
	RunID        string            `json:"run_id"`
	CreatedAtUTC string            `json:"created_at_utc"`
	Config       model.RunConfig   `json:"config"`
	Stats        []model.StepStats `json:"stats"`
	Encoded      []float32         `json:"encoded,omitempty"`
	Steps        []int             `json:"-"`
	States       []*tensor.Dense   `json:"-"`
}

// WriteRunArtifacts writes run.json and states.csv under baseDir/<run id> and
// returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if err := ValidateRunID(artifacts.RunID); err != nil {
		return "", err
	}
	if len(artifacts.Steps) != len(artifacts.States) {
		return "", fmt.Errorf("got %d step numbers for %d states", len(artifacts.Steps), len(artifacts.States))
	}

	runDir := filepath.Join(baseDir, artifacts.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "run.json"), artifacts); err != nil {
		return "", err
	}
	if err := writeStatesCSV(filepath.Join(runDir, "states.csv"), artifacts.Steps, artifacts.States); err != nil {
		return "", err
	}
	return runDir, nil
}

// writeStatesCSV emits one row per element: step followed by the element's
// index along each axis, then its value.
func writeStatesCSV(path string, steps []int, states []*tensor.Dense) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"step"}
	if len(states) > 0 {
		for axis := range grid.Shape(states[0]) {
			header = append(header, "i"+strconv.Itoa(axis))
		}
	}
	header = append(header, "value")
	if err := writer.Write(header); err != nil {
		return err
	}

	for n, state := range states {
		shape := grid.Shape(state)
		values, err := grid.Values(state)
		if err != nil {
			return fmt.Errorf("state %d: %w", steps[n], err)
		}
		index := make([]int, len(shape))
		for _, v := range values {
			record := make([]string, 0, len(shape)+2)
			record = append(record, strconv.Itoa(steps[n]))
			for _, i := range index {
				record = append(record, strconv.Itoa(i))
			}
			record = append(record, strconv.FormatFloat(float64(v), 'g', -1, 32))
			if err := writer.Write(record); err != nil {
				return err
			}
			advance(index, shape)
		}
	}
	writer.Flush()
	return writer.Error()
}

// advance increments a row-major multi-index in place.
func advance(index, shape []int) {
	for axis := len(index) - 1; axis >= 0; axis-- {
		index[axis]++
		if index[axis] < shape[axis] {
			return
		}
		index[axis] = 0
	}
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
