package model

const (
	SupportedSchemaVersion = 1
	SupportedCodecVersion  = 1
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ParamRecord is one parameter tensor's persisted state.
type ParamRecord struct {
	Name   string    `json:"name"`
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

// Checkpoint is a point-in-time capture of a network's online parameters.
// Params are stored in construction order, which restore relies on.
type Checkpoint struct {
	VersionedRecord
	ID           string        `json:"id"`
	Architecture string        `json:"architecture"`
	InputShape   []int         `json:"input_shape"`
	NumActions   int           `json:"num_actions"`
	GlobalStep   int64         `json:"global_step"`
	Params       []ParamRecord `json:"params"`
}
