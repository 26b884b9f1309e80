package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/pdevine/tensor"
	"github.com/x448/float16"

	"neuralca/internal/grid"
	"neuralca/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// EncodeTensor serializes t as float32, or as IEEE half precision when half is
// set. Half precision keeps roughly three significant digits.
func EncodeTensor(t *tensor.Dense, half bool) (model.TensorRecord, error) {
	values, err := grid.Values(t)
	if err != nil {
		return model.TensorRecord{}, err
	}
	rec := model.TensorRecord{Shape: grid.Shape(t), Encoding: model.EncodingF32}
	if half {
		rec.Encoding = model.EncodingF16
		rec.Data = make([]byte, 2*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint16(rec.Data[2*i:], float16.Fromfloat32(v).Bits())
		}
		return rec, nil
	}
	rec.Data = make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(rec.Data[4*i:], math.Float32bits(v))
	}
	return rec, nil
}

func DecodeTensor(rec model.TensorRecord) (*tensor.Dense, error) {
	size, err := grid.Size(rec.Shape)
	if err != nil {
		return nil, err
	}
	values := make([]float32, size)
	switch rec.Encoding {
	case model.EncodingF32, "":
		if len(rec.Data) != 4*size {
			return nil, fmt.Errorf("f32 payload: got %d bytes, want %d", len(rec.Data), 4*size)
		}
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(rec.Data[4*i:]))
		}
	case model.EncodingF16:
		if len(rec.Data) != 2*size {
			return nil, fmt.Errorf("f16 payload: got %d bytes, want %d", len(rec.Data), 2*size)
		}
		for i := range values {
			values[i] = float16.Frombits(binary.LittleEndian.Uint16(rec.Data[2*i:])).Float32()
		}
	default:
		return nil, fmt.Errorf("unsupported tensor encoding: %s", rec.Encoding)
	}
	return grid.New(rec.Shape, values)
}

// DecodeTrajectory decodes every recorded state of a run in order.
func DecodeTrajectory(run model.RunRecord) ([]*tensor.Dense, error) {
	out := make([]*tensor.Dense, 0, len(run.Trajectory))
	for i, rec := range run.Trajectory {
		t, err := DecodeTensor(rec)
		if err != nil {
			return nil, fmt.Errorf("trajectory[%d]: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
