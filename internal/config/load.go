package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a JSON config file on top of Default(). Fields absent from the
// file keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := Default()
	if v, ok := asString(raw["network"]); ok {
		cfg.Network = v
	}
	if v, ok := asString(raw["optimizer"]); ok {
		cfg.Optimizer = v
	}
	if v, ok := asFloat64(raw["lr"]); ok {
		cfg.LearningRate = v
	}
	if v, ok := asFloat64(raw["momentum"]); ok {
		cfg.Momentum = v
	}
	if v, ok := asFloat64(raw["rmsprop_decay"]); ok {
		cfg.RMSPropDecay = v
	}
	if v, ok := asFloat64(raw["reg_param"]); ok {
		cfg.RegParam = v
	}
	if v, ok := asBool(raw["sync"]); ok {
		cfg.Sync = v
	}
	if v, ok := asInt(raw["task_id"]); ok {
		cfg.TaskID = v
	}
	if v, ok := asBool(raw["disable_target_replication"]); ok {
		cfg.DisableTargetReplication = v
	}
	if v, ok := asInt(raw["batch_size"]); ok {
		cfg.BatchSize = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		cfg.Seed = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	f, ok := asFloat64(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func asInt64(v any) (int64, bool) {
	f, ok := asFloat64(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}
