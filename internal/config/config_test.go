package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"network": "simple", "optimizer": "sgd"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network != "simple" || cfg.Optimizer != "sgd" {
		t.Fatalf("unexpected selectors: network=%q optimizer=%q", cfg.Network, cfg.Optimizer)
	}
	if cfg.LearningRate != DefaultLearningRate {
		t.Fatalf("unexpected lr: got=%v want=%v", cfg.LearningRate, DefaultLearningRate)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Fatalf("unexpected batch size: got=%d want=%d", cfg.BatchSize, DefaultBatchSize)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"network": "cnn",
		"optimizer": "rmsprop",
		"lr": 0.00025,
		"rmsprop_decay": 0.95,
		"reg_param": 0.001,
		"sync": true,
		"task_id": 3,
		"disable_target_replication": true,
		"batch_size": 16,
		"seed": 42
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LearningRate != 0.00025 {
		t.Fatalf("unexpected lr: got=%v", cfg.LearningRate)
	}
	if cfg.RMSPropDecay != 0.95 {
		t.Fatalf("unexpected rmsprop_decay: got=%v", cfg.RMSPropDecay)
	}
	if !cfg.Sync || cfg.TaskID != 3 {
		t.Fatalf("unexpected sync fields: sync=%v task_id=%d", cfg.Sync, cfg.TaskID)
	}
	if !cfg.DisableTargetReplication {
		t.Fatal("expected disable_target_replication to be set")
	}
	if cfg.BatchSize != 16 || cfg.Seed != 42 {
		t.Fatalf("unexpected batch/seed: batch=%d seed=%d", cfg.BatchSize, cfg.Seed)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "negative-lr", body: `{"lr": -0.1}`},
		{name: "zero-batch", body: `{"batch_size": 0}`},
		{name: "negative-reg", body: `{"reg_param": -1}`},
		{name: "negative-task-id", body: `{"sync": true, "task_id": -2}`},
		{name: "malformed", body: `{`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
