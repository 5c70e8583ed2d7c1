// Package config holds the training configuration consumed during network
// construction. The loader is deliberately tolerant: unknown keys are
// ignored and numeric fields accept any JSON number representation.
package config

import (
	"errors"
	"fmt"
)

const (
	DefaultLearningRate = 1e-3
	DefaultBatchSize    = 32
)

// Config describes which network to build and how to train it. It is
// immutable for the lifetime of graph construction; builders read from it
// and never write back.
type Config struct {
	Network   string `json:"network"`
	Optimizer string `json:"optimizer"`

	LearningRate float64 `json:"lr"`
	Momentum     float64 `json:"momentum"`
	RMSPropDecay float64 `json:"rmsprop_decay"`
	RegParam     float64 `json:"reg_param"`

	// Sync enables synchronous multi-replica gradient aggregation. TaskID
	// identifies this worker's contribution and is only read when Sync is
	// set.
	Sync   bool `json:"sync"`
	TaskID int  `json:"task_id"`

	// DisableTargetReplication places target parameters with the parameter
	// server instead of replicating them on each worker.
	DisableTargetReplication bool `json:"disable_target_replication"`

	BatchSize int   `json:"batch_size"`
	Seed      int64 `json:"seed"`
}

// Default returns a Config with the fields that must be non-zero filled in.
// Selector fields are left empty on purpose: picking an architecture or an
// optimizer is an explicit decision.
func Default() Config {
	return Config{
		LearningRate: DefaultLearningRate,
		BatchSize:    DefaultBatchSize,
	}
}

// Validate checks numeric sanity. Selector values are validated by the
// builders that dispatch on them so that the unsupported-selector errors
// surface from the component that owns the dispatch table.
func (c Config) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.RegParam < 0 {
		return fmt.Errorf("reg_param must not be negative, got %v", c.RegParam)
	}
	if c.Sync && c.TaskID < 0 {
		return errors.New("task_id must not be negative when sync is enabled")
	}
	return nil
}
