package network

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Placement records where a parameter set lives in a distributed topology.
// Device strings are opaque identifiers chosen by the deployment; they are
// carried through unvalidated. Local marks variables that every worker
// initializes and owns independently instead of sharing through the
// parameter server.
type Placement struct {
	Device string
	Local  bool
}

// ParamPair is one layer's trainable state: a weight tensor and its bias.
type ParamPair struct {
	Name string
	W    *G.Node
	B    *G.Node
}

// Params is the ordered parameter set of one network instance. Online and
// target instances of the same architecture produce Params of identical
// length and per-pair shapes; the target-update ops rely on that ordering.
type Params struct {
	Pairs     []ParamPair
	Placement Placement
}

// Nodes flattens the pairs into w1, b1, w2, b2, ... order.
func (p Params) Nodes() G.Nodes {
	nodes := make(G.Nodes, 0, 2*len(p.Pairs))
	for _, pair := range p.Pairs {
		nodes = append(nodes, pair.W, pair.B)
	}
	return nodes
}

// Count reports the total number of scalar parameters.
func (p Params) Count() int {
	total := 0
	for _, pair := range p.Pairs {
		total += pair.W.Shape().TotalSize() + pair.B.Shape().TotalSize()
	}
	return total
}

const initStdDev = 0.01

// truncatedNormal samples weight initial values from a normal distribution
// with the given standard deviation, redrawing anything beyond two standard
// deviations from the mean.
func truncatedNormal(stddev float64, src rand.Source) G.InitWFn {
	dist := distuv.Normal{Mu: 0, Sigma: stddev, Src: src}
	return func(dt tensor.Dtype, s ...int) interface{} {
		n := tensor.Shape(s).TotalSize()
		out := make([]float64, n)
		for i := range out {
			v := dist.Rand()
			for math.Abs(v) > 2*stddev {
				v = dist.Rand()
			}
			out[i] = v
		}
		return out
	}
}
