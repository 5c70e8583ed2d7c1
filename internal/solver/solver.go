// Package solver selects and adapts gradient-descent solvers for the value
// network. Algorithms gorgonia ships are used as-is; adadelta and ftrl are
// implemented here against the same Solver contract.
package solver

import (
	"errors"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"deepq/internal/config"
)

var ErrUnsupportedOptimizer = errors.New("unsupported optimizer")

// ByName instantiates the solver named by cfg.Optimizer with the configured
// learning rate. Momentum and rmsprop read their extra coefficient from the
// config. When synchronous training is enabled the solver is wrapped so that
// gradients from numReplicas workers are aggregated before a single update
// is applied.
func ByName(cfg config.Config, numReplicas int) (G.Solver, error) {
	var s G.Solver
	switch cfg.Optimizer {
	case "adadelta":
		s = NewAdadelta(cfg.LearningRate)
	case "adagrad":
		s = G.NewAdaGradSolver(G.WithLearnRate(cfg.LearningRate))
	case "adam":
		s = G.NewAdamSolver(G.WithLearnRate(cfg.LearningRate))
	case "ftrl":
		s = NewFTRL(cfg.LearningRate)
	case "sgd":
		s = G.NewVanillaSolver(G.WithLearnRate(cfg.LearningRate))
	case "momentum":
		s = G.NewMomentum(G.WithLearnRate(cfg.LearningRate), G.WithMomentum(cfg.Momentum))
	case "rmsprop":
		s = G.NewRMSPropSolver(G.WithLearnRate(cfg.LearningRate), G.WithRho(cfg.RMSPropDecay))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOptimizer, cfg.Optimizer)
	}

	if cfg.Sync {
		s = NewSyncReplicas(s, numReplicas, cfg.TaskID)
	}
	return s, nil
}

// denseData pulls the float64 backing slices for one parameter's value and
// gradient. The network builds exclusively float64 dense tensors, so
// anything else is a wiring bug.
func denseData(vg G.ValueGrad) (weights, grad []float64, err error) {
	wd, ok := vg.Value().(*tensor.Dense)
	if !ok {
		return nil, nil, fmt.Errorf("value is not a dense tensor: %T", vg.Value())
	}
	gv, err := vg.Grad()
	if err != nil {
		return nil, nil, err
	}
	gd, ok := gv.(*tensor.Dense)
	if !ok {
		return nil, nil, fmt.Errorf("gradient is not a dense tensor: %T", gv)
	}

	weights, ok = wd.Data().([]float64)
	if !ok {
		return nil, nil, fmt.Errorf("value is not float64-backed: %v", wd.Dtype())
	}
	grad, ok = gd.Data().([]float64)
	if !ok {
		return nil, nil, fmt.Errorf("gradient is not float64-backed: %v", gd.Dtype())
	}
	if len(weights) != len(grad) {
		return nil, nil, fmt.Errorf("value/gradient length mismatch: %d vs %d", len(weights), len(grad))
	}
	return weights, grad, nil
}
