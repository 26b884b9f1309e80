package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Tensor encodings understood by the storage codec.
const (
	EncodingF32 = "f32"
	EncodingF16 = "f16"
)

// TensorRecord is a serialized grid: little-endian values in row-major order.
type TensorRecord struct {
	Shape    []int  `json:"shape"`
	Encoding string `json:"encoding"`
	Data     []byte `json:"data"`
}

// RunConfig describes how a run was built so it can be reproduced.
type RunConfig struct {
	Height         int      `json:"height"`
	Width          int      `json:"width"`
	Channels       int      `json:"channels"`
	InitPattern    string   `json:"init_pattern"`
	Perceive       string   `json:"perceive"`
	Kernels        []string `json:"kernels,omitempty"`
	Padding        string   `json:"padding,omitempty"`
	Update         string   `json:"update"`
	Hidden         []int    `json:"hidden,omitempty"`
	Activation     string   `json:"activation,omitempty"`
	Delta          float32  `json:"delta,omitempty"`
	AliveChannel   int      `json:"alive_channel"`
	AliveThreshold float32  `json:"alive_threshold,omitempty"`
	Input          string   `json:"input"`
	InputWidth     int      `json:"input_width,omitempty"`
	InputInAxis    *int     `json:"input_in_axis,omitempty"`
	Seed           int64    `json:"seed"`
	NumSteps       int      `json:"num_steps"`
	AllSteps       bool     `json:"all_steps"`
	Encode         bool     `json:"encode"`
	LatentSize     int      `json:"latent_size,omitempty"`
}

// StepStats summarizes one state of a run.
type StepStats struct {
	Step  int     `json:"step"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float32 `json:"min"`
	Max   float32 `json:"max"`
	Alive int     `json:"alive"`
}

type RunRecord struct {
	VersionedRecord
	ID           string         `json:"id"`
	CreatedAtUTC string         `json:"created_at_utc"`
	Config       RunConfig      `json:"config"`
	Final        TensorRecord   `json:"final"`
	Trajectory   []TensorRecord `json:"trajectory,omitempty"`
	Encoded      *TensorRecord  `json:"encoded,omitempty"`
	Stats        []StepStats    `json:"stats,omitempty"`
}
