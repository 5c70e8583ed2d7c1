package network

import (
	"fmt"
	"sync/atomic"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"deepq/internal/model"
)

// Snapshot captures the online parameters and training progress as a
// checkpoint record. The target network is not captured; after a restore it
// is rebuilt by running the target-update ops.
func (n *Network) Snapshot() (model.Checkpoint, error) {
	cp := model.Checkpoint{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: model.SupportedSchemaVersion,
			CodecVersion:  model.SupportedCodecVersion,
		},
		Architecture: n.arch.Name(),
		InputShape:   append([]int(nil), n.InputShape...),
		NumActions:   n.NumActions,
		GlobalStep:   n.GlobalStep(),
	}

	for _, node := range n.onlineParams.Nodes() {
		val, ok := node.Value().(*tensor.Dense)
		if !ok || val == nil {
			return model.Checkpoint{}, fmt.Errorf("snapshot: %s has no dense value", node.Name())
		}
		data, ok := val.Data().([]float64)
		if !ok {
			return model.Checkpoint{}, fmt.Errorf("snapshot: %s is not float64-backed", node.Name())
		}
		cp.Params = append(cp.Params, model.ParamRecord{
			Name:   node.Name(),
			Shape:  append([]int(nil), val.Shape()...),
			Values: append([]float64(nil), data...),
		})
	}
	return cp, nil
}

// Restore loads a checkpoint's parameter values into the online network.
// The checkpoint must come from the same architecture and shapes.
func (n *Network) Restore(cp model.Checkpoint) error {
	if cp.Architecture != n.arch.Name() {
		return fmt.Errorf("restore: checkpoint is for %q, network is %q", cp.Architecture, n.arch.Name())
	}
	nodes := n.onlineParams.Nodes()
	if len(cp.Params) != len(nodes) {
		return fmt.Errorf("restore: checkpoint has %d parameter tensors, network has %d", len(cp.Params), len(nodes))
	}

	for i, record := range cp.Params {
		node := nodes[i]
		shape := tensor.Shape(record.Shape)
		if !node.Shape().Eq(shape) {
			return fmt.Errorf("restore: %s shape mismatch: got=%v want=%v", node.Name(), shape, node.Shape())
		}
		if len(record.Values) != shape.TotalSize() {
			return fmt.Errorf("restore: %s has %d values for shape %v", node.Name(), len(record.Values), shape)
		}
		val := tensor.New(
			tensor.Of(tensor.Float64),
			tensor.WithShape(record.Shape...),
			tensor.WithBacking(append([]float64(nil), record.Values...)),
		)
		if err := G.Let(node, val); err != nil {
			return fmt.Errorf("restore %s: %w", node.Name(), err)
		}
	}

	atomic.StoreInt64(&n.globalStep, cp.GlobalStep)
	return nil
}
