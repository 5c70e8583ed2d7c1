package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"deepq/internal/summary"
)

const (
	conv1Filters = 32
	conv1Size    = 8
	conv1Stride  = 4

	conv2Filters = 64
	conv2Size    = 4
	conv2Stride  = 2

	conv3Filters = 64
	conv3Size    = 3
	conv3Stride  = 1

	poolSize   = 2
	poolStride = 2

	fullyConnectedSize = 256
)

// convArchitecture is the DeepMind Atari network: three conv-pool stages
// followed by a 256-unit fully connected layer and an affine output.
type convArchitecture struct{}

func (convArchitecture) Name() string { return "cnn" }

func (convArchitecture) BuildParams(bc *buildContext, scope string, place Placement) (Params, error) {
	if len(bc.inputShape) != 3 {
		return Params{}, fmt.Errorf("%w: cnn expects rank-3 input (height, width, channels), got rank %d", ErrInputRank, len(bc.inputShape))
	}
	channels := bc.inputShape[2]

	weightInit := truncatedNormal(initStdDev, bc.initSrc)

	pairs := make([]ParamPair, 0, 5)
	convs := []struct {
		name       string
		filters    int
		size       int
		inChannels int
	}{
		{name: "conv1", filters: conv1Filters, size: conv1Size, inChannels: channels},
		{name: "conv2", filters: conv2Filters, size: conv2Size, inChannels: conv1Filters},
		{name: "conv3", filters: conv3Filters, size: conv3Size, inChannels: conv2Filters},
	}
	for _, c := range convs {
		w := G.NewTensor(bc.g, tensor.Float64, 4,
			G.WithShape(c.filters, c.inChannels, c.size, c.size),
			G.WithName(scope+c.name+"/w"),
			G.WithInit(weightInit),
		)
		b := G.NewVector(bc.g, tensor.Float64,
			G.WithShape(c.filters),
			G.WithName(scope+c.name+"/b"),
			G.WithInit(G.Zeroes()),
		)
		pairs = append(pairs, ParamPair{Name: c.name, W: w, B: b})
	}

	fcs := []struct {
		name    string
		in, out int
	}{
		{name: "fcl", in: fullyConnectedSize, out: fullyConnectedSize},
		{name: "output", in: fullyConnectedSize, out: bc.numActions},
	}
	for _, layer := range fcs {
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

func (convArchitecture) BuildLayers(bc *buildContext, inputs *G.Node, params Params, col *summary.Collector) (*G.Node, *G.Node, error) {
	if len(params.Pairs) != 5 {
		return nil, nil, fmt.Errorf("cnn expects 5 parameter pairs, got %d", len(params.Pairs))
	}
	c1, c2, c3 := params.Pairs[0], params.Pairs[1], params.Pairs[2]
	fcl, out := params.Pairs[3], params.Pairs[4]

	// Observations arrive as (batch, height, width, channels); gorgonia's
	// conv ops want (batch, channels, height, width).
	x, err := G.Transpose(inputs, 0, 3, 1, 2)
	if err != nil {
		return nil, nil, fmt.Errorf("transpose input: %w", err)
	}

	a1, err := convPool(x, c1.W, c1.B, conv1Size, conv1Stride)
	if err != nil {
		return nil, nil, fmt.Errorf("conv1: %w", err)
	}
	a2, err := convPool(a1, c2.W, c2.B, conv2Size, conv2Stride)
	if err != nil {
		return nil, nil, fmt.Errorf("conv2: %w", err)
	}
	a3, err := convPool(a2, c3.W, c3.B, conv3Size, conv3Stride)
	if err != nil {
		return nil, nil, fmt.Errorf("conv3: %w", err)
	}

	flatSize := a3.Shape().TotalSize() / bc.batch
	if flatSize != fullyConnectedSize {
		return nil, nil, fmt.Errorf("%w: conv stack flattens to %d values per sample, fully connected layer expects %d",
			ErrInputRank, flatSize, fullyConnectedSize)
	}
	flat, err := G.Reshape(a3, tensor.Shape{bc.batch, fullyConnectedSize})
	if err != nil {
		return nil, nil, fmt.Errorf("flatten: %w", err)
	}

	a4, err := affine(flat, fcl.W, fcl.B)
	if err != nil {
		return nil, nil, fmt.Errorf("fcl: %w", err)
	}
	a4 = G.Must(G.Rectify(a4))

	output, err := affine(a4, out.W, out.B)
	if err != nil {
		return nil, nil, fmt.Errorf("output: %w", err)
	}

	// Only the fully connected weights are regularized; conv filters are
	// excluded.
	regPenalty := sumL2(fcl.W, out.W)

	return output, regPenalty, nil
}

// convPool runs one conv-bias-relu-pool stage with "same" padding.
func convPool(x, filters, bias *G.Node, size, stride int) (*G.Node, error) {
	shape := x.Shape() // (batch, channels, height, width)
	pad := []int{
		samePad(shape[2], size, stride),
		samePad(shape[3], size, stride),
	}

	conv, err := G.Conv2d(x, filters, tensor.Shape{size, size}, pad, []int{stride, stride}, []int{1, 1})
	if err != nil {
		return nil, err
	}

	b4d, err := G.Reshape(bias, tensor.Shape{1, bias.Shape()[0], 1, 1})
	if err != nil {
		return nil, err
	}
	conv, err = G.BroadcastAdd(conv, b4d, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, err
	}

	act := G.Must(G.Rectify(conv))

	actShape := act.Shape()
	poolPad := []int{
		samePad(actShape[2], poolSize, poolStride),
		samePad(actShape[3], poolSize, poolStride),
	}
	return G.MaxPool2D(act, tensor.Shape{poolSize, poolSize}, poolPad, []int{poolStride, poolStride})
}

// samePad returns the symmetric padding that keeps output size at
// ceil(n/stride) for this kernel, the "same" convention.
func samePad(n, kernel, stride int) int {
	out := (n + stride - 1) / stride
	total := (out-1)*stride + kernel - n
	if total < 0 {
		total = 0
	}
	return (total + 1) / 2
}
