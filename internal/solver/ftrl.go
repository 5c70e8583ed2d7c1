package solver

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
)

const ftrlInitialAccum = 0.1

// FTRL implements follow-the-regularized-leader-proximal updates. L1 and L2
// strengths default to zero, in which case the update reduces to per-weight
// adaptive gradient descent with the accumulated squared-gradient scale.
type FTRL struct {
	eta float64
	l1  float64
	l2  float64

	z [][]float64
	n [][]float64
}

func NewFTRL(eta float64) *FTRL {
	return &FTRL{eta: eta}
}

func (f *FTRL) Step(model []G.ValueGrad) error {
	if f.z == nil {
		f.z = make([][]float64, len(model))
		f.n = make([][]float64, len(model))
	}
	if len(model) != len(f.z) {
		return fmt.Errorf("ftrl: model size changed: got=%d want=%d", len(model), len(f.z))
	}

	for i, vg := range model {
		weights, grad, err := denseData(vg)
		if err != nil {
			return fmt.Errorf("ftrl: param %d: %w", i, err)
		}
		if f.z[i] == nil {
			f.z[i] = make([]float64, len(weights))
			f.n[i] = make([]float64, len(weights))
			for j := range f.n[i] {
				f.n[i][j] = ftrlInitialAccum
			}
		}
		z := f.z[i]
		n := f.n[i]

		for j, g := range grad {
			nNew := n[j] + g*g
			sigma := (math.Sqrt(nNew) - math.Sqrt(n[j])) / f.eta
			z[j] += g - sigma*weights[j]
			n[j] = nNew

			if math.Abs(z[j]) <= f.l1 {
				weights[j] = 0
				continue
			}
			sign := 1.0
			if z[j] < 0 {
				sign = -1.0
			}
			weights[j] = -(z[j] - sign*f.l1) / (f.l2 + math.Sqrt(n[j])/f.eta)
		}
	}
	return nil
}
