package storage

import (
	"context"

	"deepq/internal/model"
)

// Store persists network checkpoints between training processes.
type Store interface {
	Init(ctx context.Context) error
	SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error
	GetCheckpoint(ctx context.Context, id string) (model.Checkpoint, bool, error)
	ListCheckpoints(ctx context.Context) ([]string, error)
	DeleteCheckpoint(ctx context.Context, id string) error
}
