package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"deepq/internal/summary"
)

// TargetUpdateOp copies one online parameter pair into its target slot.
// The training loop decides when to run these; nothing triggers them
// automatically.
type TargetUpdateOp func() error

// buildTargetNetwork constructs a structurally identical replica of the
// online network under the "target/" scope and returns its output, the
// per-pair copy operations, and the target parameter set. It is a pure
// function of its inputs.
//
// Unless replication is disabled, target parameters live on the worker
// device and are marked worker-local: the target network is read every
// training step but refreshed rarely, so keeping a per-worker copy avoids
// pulling the tensors from the parameter server on each read. With
// replication disabled the parameter server owns them like any other
// parameter.
func buildTargetNetwork(bc *buildContext, arch Architecture, inputs *G.Node, onlineParams Params,
	psDevice, workerDevice string, col *summary.Collector) (*G.Node, []TargetUpdateOp, Params, error) {

	place := Placement{Device: workerDevice, Local: true}
	if bc.cfg.DisableTargetReplication {
		place = Placement{Device: psDevice}
	}

	targetParams, err := arch.BuildParams(bc, "target/", place)
	if err != nil {
		return nil, nil, Params{}, fmt.Errorf("target params: %w", err)
	}
	targetOutput, _, err := arch.BuildLayers(bc, inputs, targetParams, col)
	if err != nil {
		return nil, nil, Params{}, fmt.Errorf("target layers: %w", err)
	}

	if len(targetParams.Pairs) != len(onlineParams.Pairs) {
		return nil, nil, Params{}, fmt.Errorf("target/online parameter count mismatch: %d vs %d",
			len(targetParams.Pairs), len(onlineParams.Pairs))
	}

	updateOps := make([]TargetUpdateOp, 0, len(targetParams.Pairs))
	for i := range targetParams.Pairs {
		tp, op := targetParams.Pairs[i], onlineParams.Pairs[i]
		updateOps = append(updateOps, func() error {
			if err := assignValue(tp.W, op.W); err != nil {
				return fmt.Errorf("update target %s weights: %w", tp.Name, err)
			}
			if err := assignValue(tp.B, op.B); err != nil {
				return fmt.Errorf("update target %s bias: %w", tp.Name, err)
			}
			return nil
		})
	}

	return targetOutput, updateOps, targetParams, nil
}

// assignValue copies src's current value into dst.
func assignValue(dst, src *G.Node) error {
	val, ok := src.Value().(*tensor.Dense)
	if !ok || val == nil {
		return fmt.Errorf("source %s has no dense value", src.Name())
	}
	return G.Let(dst, val.Clone().(*tensor.Dense))
}
