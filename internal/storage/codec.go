package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"deepq/internal/model"
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeCheckpoint(cp model.Checkpoint) ([]byte, error) {
	return json.Marshal(cp)
}

func DecodeCheckpoint(data []byte) (model.Checkpoint, error) {
	var cp model.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return model.Checkpoint{}, err
	}
	if err := checkVersion(cp.VersionedRecord); err != nil {
		return model.Checkpoint{}, err
	}
	return cp, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != model.SupportedSchemaVersion || v.CodecVersion != model.SupportedCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
