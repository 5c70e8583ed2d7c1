package solver

import (
	"errors"
	"testing"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"deepq/internal/config"
)

// fakeParam is a minimal ValueGrad backed by dense tensors.
type fakeParam struct {
	v *tensor.Dense
	g *tensor.Dense
}

func (p fakeParam) Value() G.Value         { return p.v }
func (p fakeParam) Grad() (G.Value, error) { return p.g, nil }

func newFakeParam(weights, grads []float64) fakeParam {
	return fakeParam{
		v: tensor.New(tensor.WithShape(len(weights)), tensor.WithBacking(weights)),
		g: tensor.New(tensor.WithShape(len(grads)), tensor.WithBacking(grads)),
	}
}

func baseConfig(optimizer string) config.Config {
	cfg := config.Default()
	cfg.Network = "simple"
	cfg.Optimizer = optimizer
	return cfg
}

func TestByNameSupportedOptimizers(t *testing.T) {
	for _, name := range []string{"adadelta", "adagrad", "adam", "ftrl", "sgd", "momentum", "rmsprop"} {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig(name)
			cfg.Momentum = 0.9
			cfg.RMSPropDecay = 0.95

			s, err := ByName(cfg, 1)
			if err != nil {
				t.Fatalf("by name: %v", err)
			}
			if s == nil {
				t.Fatal("expected a solver")
			}
		})
	}
}

func TestByNameUnsupportedOptimizer(t *testing.T) {
	_, err := ByName(baseConfig("lbfgs"), 1)
	if !errors.Is(err, ErrUnsupportedOptimizer) {
		t.Fatalf("expected unsupported optimizer error, got %v", err)
	}
}

func TestByNameWrapsForSyncTraining(t *testing.T) {
	cfg := baseConfig("sgd")
	cfg.Sync = true
	cfg.TaskID = 2

	s, err := ByName(cfg, 4)
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	sync, ok := s.(*SyncReplicas)
	if !ok {
		t.Fatalf("expected sync wrapper, got %T", s)
	}
	if sync.Replicas() != 4 || sync.TaskID() != 2 {
		t.Fatalf("unexpected wrapper config: replicas=%d task=%d", sync.Replicas(), sync.TaskID())
	}
}

func TestAdadeltaStepMovesAgainstGradient(t *testing.T) {
	p := newFakeParam([]float64{1.0, -1.0}, []float64{0.5, -0.5})
	s := NewAdadelta(1.0)

	if err := s.Step([]G.ValueGrad{p}); err != nil {
		t.Fatalf("step: %v", err)
	}

	weights := p.v.Data().([]float64)
	if weights[0] >= 1.0 {
		t.Fatalf("positive gradient should decrease weight: got=%v", weights[0])
	}
	if weights[1] <= -1.0 {
		t.Fatalf("negative gradient should increase weight: got=%v", weights[1])
	}

	// A second identical step keeps moving in the same direction.
	prev := append([]float64(nil), weights...)
	if err := s.Step([]G.ValueGrad{p}); err != nil {
		t.Fatalf("second step: %v", err)
	}
	if weights[0] >= prev[0] || weights[1] <= prev[1] {
		t.Fatalf("expected monotone movement: prev=%v got=%v", prev, weights)
	}
}

func TestAdadeltaZeroGradientNoChange(t *testing.T) {
	p := newFakeParam([]float64{0.25}, []float64{0})
	s := NewAdadelta(1.0)

	if err := s.Step([]G.ValueGrad{p}); err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := p.v.Data().([]float64)[0]; got != 0.25 {
		t.Fatalf("zero gradient must not move weight: got=%v", got)
	}
}

func TestAdadeltaRejectsModelSizeChange(t *testing.T) {
	s := NewAdadelta(1.0)
	if err := s.Step([]G.ValueGrad{newFakeParam([]float64{1}, []float64{1})}); err != nil {
		t.Fatalf("step: %v", err)
	}
	err := s.Step([]G.ValueGrad{
		newFakeParam([]float64{1}, []float64{1}),
		newFakeParam([]float64{1}, []float64{1}),
	})
	if err == nil {
		t.Fatal("expected error when model size changes")
	}
}

func TestFTRLStepProducesFiniteWeights(t *testing.T) {
	p := newFakeParam([]float64{1.0}, []float64{0.5})
	s := NewFTRL(1.0)

	if err := s.Step([]G.ValueGrad{p}); err != nil {
		t.Fatalf("step: %v", err)
	}
	w := p.v.Data().([]float64)[0]
	if w >= 1.0 {
		t.Fatalf("positive gradient should pull weight down: got=%v", w)
	}

	// Driving with the opposite gradient pulls the weight back up.
	grads := p.g.Data().([]float64)
	for i := 0; i < 5; i++ {
		grads[0] = -0.5
		if err := s.Step([]G.ValueGrad{p}); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if got := p.v.Data().([]float64)[0]; got <= w {
		t.Fatalf("negative gradients should raise weight: start=%v got=%v", w, got)
	}
}
