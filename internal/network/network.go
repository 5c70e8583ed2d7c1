// Package network builds DQN value-function approximators on a shared
// gorgonia expression graph: an online network, a structurally identical
// target network with explicit refresh operations, a masked value-difference
// loss, and a solver-backed training step.
package network

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"deepq/internal/config"
	dqsolver "deepq/internal/solver"
	"deepq/internal/summary"
)

// Network is the fully assembled value network. Its structure is immutable
// after Create returns; only the underlying tensor values change while
// training.
type Network struct {
	InputShape   []int
	NumActions   int
	NumReplicas  int
	BatchSize    int
	PSDevice     string
	WorkerDevice string

	// Graph handles consumed by the training loop.
	X            *G.Node // observation input, (batch, input shape...)
	ExpectedQ    *G.Node // regression target, (batch)
	Actions      *G.Node // chosen-action one-hot mask, (batch, actions)
	Output       *G.Node // per-action value estimates, (batch, actions)
	TargetOutput *G.Node
	Loss         *G.Node

	// TargetUpdateOps refresh the target network from the online one, one
	// op per (weight, bias) pair, in parameter order.
	TargetUpdateOps []TargetUpdateOp

	// Summaries is nil when nothing was collected.
	Summaries *summary.Merged

	arch         Architecture
	cfg          config.Config
	g            *G.ExprGraph
	onlineParams Params
	targetParams Params
	solver       G.Solver
	machine      G.VM
	globalStep   int64

	// Execution-time captures of the two outputs. The tape machine reuses
	// node buffers, so reading Output.Value() after a run can observe a
	// downstream overwrite; these hold the values as of the output ops.
	outputVal       G.Value
	targetOutputVal G.Value
}

// Create selects the architecture named by cfg.Network, assembles the full
// graph, and returns the network. The ps and worker device strings are
// opaque placement identifiers recorded on the parameter sets.
func Create(cfg config.Config, inputShape []int, numActions, numReplicas int, psDevice, workerDevice string) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	arch, err := architectureFor(cfg.Network)
	if err != nil {
		return nil, err
	}

	n := &Network{
		InputShape:   append([]int(nil), inputShape...),
		NumActions:   numActions,
		NumReplicas:  numReplicas,
		BatchSize:    cfg.BatchSize,
		PSDevice:     psDevice,
		WorkerDevice: workerDevice,
		arch:         arch,
		cfg:          cfg,
		g:            G.NewGraph(),
	}
	if err := n.assemble(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Network) assemble() error {
	seed := n.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	bc := &buildContext{
		g:          n.g,
		cfg:        n.cfg,
		inputShape: n.InputShape,
		numActions: n.NumActions,
		batch:      n.BatchSize,
		initSrc:    rand.NewSource(uint64(seed)),
	}

	// Placeholders.
	n.X = G.NewTensor(n.g, tensor.Float64, 1+len(n.InputShape),
		G.WithShape(append([]int{n.BatchSize}, n.InputShape...)...),
		G.WithName("x"),
	)
	n.ExpectedQ = G.NewVector(n.g, tensor.Float64, G.WithShape(n.BatchSize), G.WithName("expected_q"))
	n.Actions = G.NewMatrix(n.g, tensor.Float64, G.WithShape(n.BatchSize, n.NumActions), G.WithName("actions"))

	col := summary.NewCollector()

	// Online parameters live with the parameter server.
	params, err := n.arch.BuildParams(bc, "", Placement{Device: n.PSDevice})
	if err != nil {
		return err
	}
	n.onlineParams = params

	output, regPenalty, err := n.arch.BuildLayers(bc, n.X, params, col)
	if err != nil {
		return err
	}
	n.Output = output
	G.Read(output, &n.outputVal)

	// Global step starts at zero and is never trained.
	n.globalStep = 0

	loss, err := buildLoss(n.cfg, output, n.ExpectedQ, n.Actions, regPenalty, col)
	if err != nil {
		return err
	}
	n.Loss = loss

	if err := n.buildTrainOp(loss); err != nil {
		return err
	}

	targetOutput, updateOps, targetParams, err := buildTargetNetwork(
		bc, n.arch, n.X, params, n.PSDevice, n.WorkerDevice, col)
	if err != nil {
		return err
	}
	n.TargetOutput = targetOutput
	G.Read(targetOutput, &n.targetOutputVal)
	n.TargetUpdateOps = updateOps
	n.targetParams = targetParams

	n.Summaries = col.Merge()
	return nil
}

// buildTrainOp resolves the solver and differentiates the loss with respect
// to the explicit online parameter list. Restricting to that list matters:
// with in-graph replication every replica's parameters share one graph, and
// differentiating against anything graph-global would mix replicas.
func (n *Network) buildTrainOp(loss *G.Node) error {
	sv, err := dqsolver.ByName(n.cfg, n.NumReplicas)
	if err != nil {
		return err
	}
	n.solver = sv

	if _, err := G.Grad(loss, n.onlineParams.Nodes()...); err != nil {
		return fmt.Errorf("differentiate loss: %w", err)
	}
	return nil
}

// vm compiles the tape machine on first use, once the graph is final.
func (n *Network) vm() G.VM {
	if n.machine == nil {
		n.machine = G.NewTapeMachine(n.g, G.BindDualValues(n.onlineParams.Nodes()...))
	}
	return n.machine
}

// TrainStep runs one minibatch through the graph and applies the solver to
// the online parameters. Target parameters are untouched. Returns the batch
// loss.
func (n *Network) TrainStep(obs, expectedQ, actions *tensor.Dense) (float64, error) {
	if err := n.bind(obs, expectedQ, actions); err != nil {
		return 0, err
	}

	m := n.vm()
	defer m.Reset()
	if err := m.RunAll(); err != nil {
		return 0, fmt.Errorf("training step: %w", err)
	}

	lossVal, err := scalarValue(n.Loss.Value())
	if err != nil {
		return 0, fmt.Errorf("read loss: %w", err)
	}

	if err := n.solver.Step(G.NodesToValueGrads(n.onlineParams.Nodes())); err != nil {
		return 0, fmt.Errorf("apply gradients: %w", err)
	}

	atomic.AddInt64(&n.globalStep, 1)
	return lossVal, nil
}

// Predict evaluates the online network on one observation batch.
func (n *Network) Predict(obs *tensor.Dense) (*tensor.Dense, error) {
	return n.evaluate(obs, &n.outputVal, "output")
}

// PredictTarget evaluates the target network on one observation batch.
func (n *Network) PredictTarget(obs *tensor.Dense) (*tensor.Dense, error) {
	return n.evaluate(obs, &n.targetOutputVal, "target output")
}

func (n *Network) evaluate(obs *tensor.Dense, captured *G.Value, what string) (*tensor.Dense, error) {
	// The loss inputs are irrelevant for a forward read but the machine
	// executes the whole tape, so they are bound to zeros.
	if err := n.bind(obs, n.zeros(n.BatchSize), n.zeros(n.BatchSize, n.NumActions)); err != nil {
		return nil, err
	}

	m := n.vm()
	defer m.Reset()
	if err := m.RunAll(); err != nil {
		return nil, fmt.Errorf("forward pass: %w", err)
	}

	val, ok := (*captured).(*tensor.Dense)
	if !ok || val == nil {
		return nil, fmt.Errorf("%s was not captured as a dense value", what)
	}
	return val.Clone().(*tensor.Dense), nil
}

// UpdateTargets executes the full target-update list, synchronizing the
// target network to the online network's current parameters.
func (n *Network) UpdateTargets() error {
	for _, op := range n.TargetUpdateOps {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}

// GlobalStep reports how many training steps have been applied.
func (n *Network) GlobalStep() int64 {
	return atomic.LoadInt64(&n.globalStep)
}

// Architecture names the variant this network was built from.
func (n *Network) Architecture() string { return n.arch.Name() }

// Graph exposes the underlying expression graph.
func (n *Network) Graph() *G.ExprGraph { return n.g }

// OnlineParams returns the trainable parameter set.
func (n *Network) OnlineParams() Params { return n.onlineParams }

// TargetParams returns the target replica's parameter set.
func (n *Network) TargetParams() Params { return n.targetParams }

func (n *Network) bind(obs, expectedQ, actions *tensor.Dense) error {
	if err := G.Let(n.X, obs); err != nil {
		return fmt.Errorf("bind observations: %w", err)
	}
	if err := G.Let(n.ExpectedQ, expectedQ); err != nil {
		return fmt.Errorf("bind expected values: %w", err)
	}
	if err := G.Let(n.Actions, actions); err != nil {
		return fmt.Errorf("bind action mask: %w", err)
	}
	return nil
}

func (n *Network) zeros(shape ...int) *tensor.Dense {
	return tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(shape...))
}

func scalarValue(v G.Value) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("no value")
	}
	switch d := v.Data().(type) {
	case float64:
		return d, nil
	case []float64:
		if len(d) == 1 {
			return d[0], nil
		}
	}
	return 0, fmt.Errorf("value is not scalar: %v", v.Shape())
}
