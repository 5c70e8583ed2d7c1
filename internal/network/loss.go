package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"

	"deepq/internal/config"
	"deepq/internal/summary"
)

// buildLoss masks the predicted values by the chosen-action one-hot vector,
// takes the mean squared difference against the expected values, and adds
// the scaled regularization penalty when one is supplied.
func buildLoss(cfg config.Config, q, expectedQ, actions, regPenalty *G.Node, col *summary.Collector) (*G.Node, error) {
	masked, err := G.HadamardProd(q, actions)
	if err != nil {
		return nil, fmt.Errorf("mask output: %w", err)
	}
	qMasked, err := G.Sum(masked, 1)
	if err != nil {
		return nil, fmt.Errorf("reduce actions: %w", err)
	}

	diff, err := G.Sub(qMasked, expectedQ)
	if err != nil {
		return nil, fmt.Errorf("value difference: %w", err)
	}
	loss, err := G.Mean(G.Must(G.Square(diff)))
	if err != nil {
		return nil, fmt.Errorf("mean squared error: %w", err)
	}

	if regPenalty != nil {
		scaled, err := G.Mul(G.NewConstant(cfg.RegParam), regPenalty)
		if err != nil {
			return nil, fmt.Errorf("scale regularization: %w", err)
		}
		loss, err = G.Add(loss, scaled)
		if err != nil {
			return nil, fmt.Errorf("add regularization: %w", err)
		}
	}

	col.AddScalar("loss", loss)

	return loss, nil
}
