package storage

import (
	"context"
	"sort"
	"sync"

	"deepq/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]model.Checkpoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints = make(map[string]model.Checkpoint)
	return nil
}

func (s *MemoryStore) SaveCheckpoint(_ context.Context, cp model.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[cp.ID] = cp
	return nil
}

func (s *MemoryStore) GetCheckpoint(_ context.Context, id string) (model.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[id]
	return cp, ok, nil
}

func (s *MemoryStore) ListCheckpoints(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.checkpoints))
	for id := range s.checkpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) DeleteCheckpoint(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.checkpoints, id)
	return nil
}
