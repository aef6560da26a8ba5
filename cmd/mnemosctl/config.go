package main

import (
	"encoding/json"
	"fmt"
	"os"

	"mnemos/internal/model"
	"mnemos/internal/signal"
	api "mnemos/pkg/mnemos"
)

// fitConfig is a fit request plus the file paths it was loaded with.
type fitConfig struct {
	req      api.FitRequest
	specPath string
	dataPath string
}

func loadOrDefaultFitConfig(path string) (fitConfig, error) {
	if path == "" {
		return fitConfig{}, nil
	}
	cfg, err := loadFitConfig(path)
	if err != nil {
		return fitConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func loadFitConfig(path string) (fitConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fitConfig{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fitConfig{}, err
	}

	var cfg fitConfig
	if v, ok := asString(raw["fitter"]); ok {
		cfg.req.Fitter = v
	}
	if v, ok := asString(raw["variant"]); ok {
		cfg.req.Variant = v
	}
	if v, ok := asInt(raw["ntimes"]); ok {
		cfg.req.NTimes = v
	}
	if v, ok := asInt(raw["nsplits"]); ok {
		cfg.req.NSplits = v
	}
	if v, ok := asInt(raw["rebuild_every"]); ok {
		cfg.req.RebuildEvery = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		cfg.req.Seed = v
	}
	if v, ok := asString(raw["pred_signal"]); ok {
		cfg.req.PredSignal = v
	}
	if v, ok := asString(raw["resp_signal"]); ok {
		cfg.req.RespSignal = v
	}
	if v, ok := asBool(raw["keep_stack"]); ok {
		cfg.req.KeepStack = v
	}
	if v, ok := asInt(raw["progress_every"]); ok {
		cfg.req.ProgressEvery = v
	}
	if v, ok := asString(raw["spec_path"]); ok {
		cfg.specPath = v
	}
	if v, ok := asString(raw["data_path"]); ok {
		cfg.dataPath = v
	}
	if inline, ok := raw["spec"]; ok {
		encoded, err := json.Marshal(inline)
		if err != nil {
			return fitConfig{}, err
		}
		var spec model.Spec
		if err := json.Unmarshal(encoded, &spec); err != nil {
			return fitConfig{}, fmt.Errorf("decode inline spec: %w", err)
		}
		cfg.req.Spec = spec
	}
	return cfg, nil
}

func loadSpecFile(path string) (model.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Spec{}, err
	}
	var spec model.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return model.Spec{}, fmt.Errorf("decode spec %s: %w", path, err)
	}
	if len(spec.Modules) == 0 {
		return model.Spec{}, fmt.Errorf("spec %s has no modules", path)
	}
	return spec, nil
}

func loadRecordingFile(path string) (*signal.Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var loaded signal.Recording
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("decode recording %s: %w", path, err)
	}
	if len(loaded.Signals) == 0 {
		return nil, fmt.Errorf("recording %s has no signals", path)
	}

	// Rebuild through the constructor so file contents get the same
	// validation as signals built in code.
	rec := signal.NewRecording(loaded.Name)
	for name, s := range loaded.Signals {
		if s == nil {
			return nil, fmt.Errorf("recording %s: signal %s is null", path, name)
		}
		if s.Name == "" {
			s.Name = name
		}
		rebuilt, err := signal.New(s.Name, s.Fs, s.Data, s.Chans)
		if err != nil {
			return nil, fmt.Errorf("recording %s: %w", path, err)
		}
		rec.Set(rebuilt)
	}
	return rec, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}
