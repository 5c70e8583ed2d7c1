package solver

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
)

const (
	adadeltaRho = 0.95
	adadeltaEps = 1e-8
)

// Adadelta keeps decaying averages of squared gradients and squared updates
// and scales each step by their ratio, so the effective step size adapts per
// parameter without a manually tuned schedule. The learning rate still
// multiplies the final update.
type Adadelta struct {
	eta float64
	rho float64
	eps float64

	accumGrad   [][]float64
	accumUpdate [][]float64
}

func NewAdadelta(eta float64) *Adadelta {
	return &Adadelta{eta: eta, rho: adadeltaRho, eps: adadeltaEps}
}

func (a *Adadelta) Step(model []G.ValueGrad) error {
	if a.accumGrad == nil {
		a.accumGrad = make([][]float64, len(model))
		a.accumUpdate = make([][]float64, len(model))
	}
	if len(model) != len(a.accumGrad) {
		return fmt.Errorf("adadelta: model size changed: got=%d want=%d", len(model), len(a.accumGrad))
	}

	for i, vg := range model {
		weights, grad, err := denseData(vg)
		if err != nil {
			return fmt.Errorf("adadelta: param %d: %w", i, err)
		}
		if a.accumGrad[i] == nil {
			a.accumGrad[i] = make([]float64, len(weights))
			a.accumUpdate[i] = make([]float64, len(weights))
		}
		eg := a.accumGrad[i]
		eu := a.accumUpdate[i]

		for j, g := range grad {
			eg[j] = a.rho*eg[j] + (1-a.rho)*g*g
			update := g * math.Sqrt(eu[j]+a.eps) / math.Sqrt(eg[j]+a.eps)
			eu[j] = a.rho*eu[j] + (1-a.rho)*update*update
			weights[j] -= a.eta * update
		}
	}
	return nil
}
