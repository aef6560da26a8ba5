package storage

import (
	"encoding/json"
	"errors"

	"mnemos/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeSpec(s model.Spec) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSpec(data []byte) (model.Spec, error) {
	var spec model.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return model.Spec{}, err
	}
	if err := checkVersion(spec.VersionedRecord); err != nil {
		return model.Spec{}, err
	}
	return spec, nil
}

func EncodeFitRecord(r model.FitRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeFitRecord(data []byte) (model.FitRecord, error) {
	var record model.FitRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.FitRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.FitRecord{}, err
	}
	return record, nil
}

func EncodeErrorHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeErrorHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
