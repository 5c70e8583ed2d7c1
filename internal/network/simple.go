package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"deepq/internal/summary"
)

const (
	hidden1Size = 20
	hidden2Size = 20
)

// simpleArchitecture is a fully connected network: two tanh hidden layers of
// 20 units each and a raw affine output.
type simpleArchitecture struct{}

func (simpleArchitecture) Name() string { return "simple" }

func (simpleArchitecture) BuildParams(bc *buildContext, scope string, place Placement) (Params, error) {
	if len(bc.inputShape) != 1 {
		return Params{}, fmt.Errorf("%w: simple network expects rank-1 input, got rank %d", ErrInputRank, len(bc.inputShape))
	}
	inputSize := bc.inputShape[0]

	weightInit := truncatedNormal(initStdDev, bc.initSrc)

	sizes := []struct {
		name    string
		in, out int
	}{
		{name: "hidden1", in: inputSize, out: hidden1Size},
		{name: "hidden2", in: hidden1Size, out: hidden2Size},
		{name: "output", in: hidden2Size, out: bc.numActions},
	}

	pairs := make([]ParamPair, 0, len(sizes))
	for _, layer := range sizes {
		w := G.NewMatrix(bc.g, tensor.Float64,
			G.WithShape(layer.in, layer.out),
			G.WithName(scope+layer.name+"/w"),
			G.WithInit(weightInit),
		)
		b := G.NewVector(bc.g, tensor.Float64,
			G.WithShape(layer.out),
			G.WithName(scope+layer.name+"/b"),
			G.WithInit(G.Zeroes()),
		)
		pairs = append(pairs, ParamPair{Name: layer.name, W: w, B: b})
	}

	return Params{Pairs: pairs, Placement: place}, nil
}

func (simpleArchitecture) BuildLayers(bc *buildContext, inputs *G.Node, params Params, col *summary.Collector) (*G.Node, *G.Node, error) {
	if len(params.Pairs) != 3 {
		return nil, nil, fmt.Errorf("simple network expects 3 parameter pairs, got %d", len(params.Pairs))
	}
	h1, h2, out := params.Pairs[0], params.Pairs[1], params.Pairs[2]

	a1, err := affine(inputs, h1.W, h1.B)
	if err != nil {
		return nil, nil, fmt.Errorf("hidden1: %w", err)
	}
	a1 = G.Must(G.Tanh(a1))

	a2, err := affine(a1, h2.W, h2.B)
	if err != nil {
		return nil, nil, fmt.Errorf("hidden2: %w", err)
	}
	a2 = G.Must(G.Tanh(a2))

	output, err := affine(a2, out.W, out.B)
	if err != nil {
		return nil, nil, fmt.Errorf("output: %w", err)
	}

	// Weights only; biases are excluded from regularization.
	regPenalty := sumL2(h1.W, h2.W, out.W)

	return output, regPenalty, nil
}

// affine computes x·w + b with the bias broadcast across the batch.
func affine(x, w, b *G.Node) (*G.Node, error) {
	xw, err := G.Mul(x, w)
	if err != nil {
		return nil, err
	}
	return G.BroadcastAdd(xw, b, nil, []byte{0})
}

// sumL2 accumulates sum(w^2)/2 over the given weight tensors.
func sumL2(ws ...*G.Node) *G.Node {
	var total *G.Node
	for _, w := range ws {
		l2 := G.Must(G.Mul(
			G.NewConstant(0.5),
			G.Must(G.Sum(G.Must(G.Square(w)))),
		))
		if total == nil {
			total = l2
			continue
		}
		total = G.Must(G.Add(total, l2))
	}
	return total
}
