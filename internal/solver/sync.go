package solver

import (
	"fmt"
	"sync"

	G "gorgonia.org/gorgonia"
)

// SyncReplicas turns an asynchronous solver into a synchronous one: Step
// blocks until the configured number of replicas have contributed their
// gradients, then exactly one aggregated (mean) update is applied through
// the wrapped solver and every blocked caller is released. This is an
// execution-time barrier across workers; construction stays synchronous.
type SyncReplicas struct {
	inner    G.Solver
	replicas int
	taskID   int

	mu      sync.Mutex
	cond    *sync.Cond
	round   int
	pending int
	sums    [][]float64
	stepErr error
}

func NewSyncReplicas(inner G.Solver, replicas, taskID int) *SyncReplicas {
	s := &SyncReplicas{inner: inner, replicas: replicas, taskID: taskID}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// TaskID reports which replica this worker contributes as.
func (s *SyncReplicas) TaskID() int { return s.taskID }

// Replicas reports how many contributions are aggregated per update.
func (s *SyncReplicas) Replicas() int { return s.replicas }

func (s *SyncReplicas) Step(model []G.ValueGrad) error {
	if s.replicas <= 1 {
		return s.inner.Step(model)
	}

	// Snapshot this replica's gradients outside the lock.
	grads := make([][]float64, len(model))
	for i, vg := range model {
		_, grad, err := denseData(vg)
		if err != nil {
			return fmt.Errorf("sync replicas: param %d: %w", i, err)
		}
		grads[i] = append([]float64(nil), grad...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sums == nil {
		s.sums = make([][]float64, len(grads))
		for i, g := range grads {
			s.sums[i] = make([]float64, len(g))
		}
	}
	if len(grads) != len(s.sums) {
		return fmt.Errorf("sync replicas: model size changed: got=%d want=%d", len(grads), len(s.sums))
	}
	for i, g := range grads {
		for j, v := range g {
			s.sums[i][j] += v
		}
	}
	s.pending++

	if s.pending < s.replicas {
		// Not the last contributor; wait for this round's update.
		round := s.round
		for s.round == round {
			s.cond.Wait()
		}
		return s.stepErr
	}

	// Last contributor applies the aggregated mean update. The replicas
	// share parameter nodes, so writing the averaged gradients back into
	// this model's gradient tensors updates the shared state the wrapped
	// solver reads.
	s.stepErr = s.applyLocked(model)
	s.sums = nil
	s.pending = 0
	s.round++
	s.cond.Broadcast()
	return s.stepErr
}

func (s *SyncReplicas) applyLocked(model []G.ValueGrad) error {
	scale := 1.0 / float64(s.replicas)
	for i, vg := range model {
		_, grad, err := denseData(vg)
		if err != nil {
			return fmt.Errorf("sync replicas: param %d: %w", i, err)
		}
		for j := range grad {
			grad[j] = s.sums[i][j] * scale
		}
	}
	return s.inner.Step(model)
}
