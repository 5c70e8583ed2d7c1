// Package deepq is the public entry point for building and operating DQN
// value networks. It wraps the internal builders behind plain request and
// response types and owns checkpoint persistence.
package deepq

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorgonia.org/tensor"

	"deepq/internal/config"
	"deepq/internal/network"
	"deepq/internal/storage"
)

const defaultDBPath = "deepq.db"

// Options configures a Client.
type Options struct {
	// StoreKind selects the checkpoint backend: "memory" (default) or
	// "sqlite".
	StoreKind string
	DBPath    string
}

// Client builds networks and persists their checkpoints.
type Client struct {
	store storage.Store
}

func New(ctx context.Context, opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return &Client{store: store}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Architectures lists the registered network architectures in sorted order.
func Architectures() []string {
	return network.ListArchitectures()
}

// BuildRequest mirrors the training configuration plus the placement
// parameters of a distributed deployment. Zero values fall back to the
// config defaults.
type BuildRequest struct {
	Network   string
	Optimizer string

	LearningRate float64
	Momentum     float64
	RMSPropDecay float64
	RegParam     float64

	Sync                     bool
	TaskID                   int
	DisableTargetReplication bool

	BatchSize int
	Seed      int64

	InputShape   []int
	NumActions   int
	NumReplicas  int
	PSDevice     string
	WorkerDevice string
}

func (r BuildRequest) config() config.Config {
	cfg := config.Default()
	cfg.Network = r.Network
	cfg.Optimizer = r.Optimizer
	if r.LearningRate != 0 {
		cfg.LearningRate = r.LearningRate
	}
	cfg.Momentum = r.Momentum
	cfg.RMSPropDecay = r.RMSPropDecay
	cfg.RegParam = r.RegParam
	cfg.Sync = r.Sync
	cfg.TaskID = r.TaskID
	cfg.DisableTargetReplication = r.DisableTargetReplication
	if r.BatchSize != 0 {
		cfg.BatchSize = r.BatchSize
	}
	cfg.Seed = r.Seed
	return cfg
}

// Handle is one assembled network bound to the client's checkpoint store.
type Handle struct {
	net    *network.Network
	client *Client
}

// Build assembles a network for the request.
func (c *Client) Build(req BuildRequest) (*Handle, error) {
	if req.NumActions <= 0 {
		return nil, fmt.Errorf("num actions must be positive, got %d", req.NumActions)
	}
	if len(req.InputShape) == 0 {
		return nil, errors.New("input shape is required")
	}
	replicas := req.NumReplicas
	if replicas <= 0 {
		replicas = 1
	}

	net, err := network.Create(req.config(), req.InputShape, req.NumActions, replicas, req.PSDevice, req.WorkerDevice)
	if err != nil {
		return nil, err
	}
	return &Handle{net: net, client: c}, nil
}

// LayerInfo describes one parameter pair.
type LayerInfo struct {
	Name        string
	WeightShape []int
	BiasShape   []int
}

// Description summarizes an assembled network.
type Description struct {
	Architecture    string
	InputShape      []int
	NumActions      int
	BatchSize       int
	ParamCount      int
	Layers          []LayerInfo
	TargetUpdateOps int
	Summaries       []string
}

func (h *Handle) Describe() Description {
	online := h.net.OnlineParams()
	desc := Description{
		Architecture:    h.net.Architecture(),
		InputShape:      append([]int(nil), h.net.InputShape...),
		NumActions:      h.net.NumActions,
		BatchSize:       h.net.BatchSize,
		ParamCount:      online.Count(),
		TargetUpdateOps: len(h.net.TargetUpdateOps),
	}
	for _, pair := range online.Pairs {
		desc.Layers = append(desc.Layers, LayerInfo{
			Name:        pair.Name,
			WeightShape: append([]int(nil), pair.W.Shape()...),
			BiasShape:   append([]int(nil), pair.B.Shape()...),
		})
	}
	if h.net.Summaries != nil {
		desc.Summaries = h.net.Summaries.Names()
	}
	return desc
}

// TrainBatch runs one training step on flattened row-major batches and
// returns the batch loss.
func (h *Handle) TrainBatch(obs, expectedQ, actions []float64) (float64, error) {
	obsT, err := h.obsTensor(obs)
	if err != nil {
		return 0, err
	}
	if len(expectedQ) != h.net.BatchSize {
		return 0, fmt.Errorf("expected values: got %d, batch size is %d", len(expectedQ), h.net.BatchSize)
	}
	if len(actions) != h.net.BatchSize*h.net.NumActions {
		return 0, fmt.Errorf("action mask: got %d values, want %d", len(actions), h.net.BatchSize*h.net.NumActions)
	}

	expT := tensor.New(tensor.WithShape(h.net.BatchSize), tensor.WithBacking(append([]float64(nil), expectedQ...)))
	actT := tensor.New(tensor.WithShape(h.net.BatchSize, h.net.NumActions), tensor.WithBacking(append([]float64(nil), actions...)))
	return h.net.TrainStep(obsT, expT, actT)
}

// Predict evaluates the online network, returning per-action values in
// row-major (batch, actions) order.
func (h *Handle) Predict(obs []float64) ([]float64, error) {
	return h.predictWith(obs, h.net.Predict)
}

// PredictTarget evaluates the target network.
func (h *Handle) PredictTarget(obs []float64) ([]float64, error) {
	return h.predictWith(obs, h.net.PredictTarget)
}

func (h *Handle) predictWith(obs []float64, eval func(*tensor.Dense) (*tensor.Dense, error)) ([]float64, error) {
	obsT, err := h.obsTensor(obs)
	if err != nil {
		return nil, err
	}
	out, err := eval(obsT)
	if err != nil {
		return nil, err
	}
	data, ok := out.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("unexpected output backing: %T", out.Data())
	}
	return data, nil
}

// SyncTargets refreshes the target network from the online parameters.
func (h *Handle) SyncTargets() error {
	return h.net.UpdateTargets()
}

// GlobalStep reports applied training steps.
func (h *Handle) GlobalStep() int64 {
	return h.net.GlobalStep()
}

// Summaries reads the merged summary values; nil when none were collected.
func (h *Handle) Summaries() (map[string]float64, error) {
	if h.net.Summaries == nil {
		return nil, nil
	}
	return h.net.Summaries.Values()
}

// SummaryNames lists collected summaries; empty when none were collected.
func (h *Handle) SummaryNames() []string {
	if h.net.Summaries == nil {
		return nil
	}
	return h.net.Summaries.Names()
}

// Save snapshots the online network into the client's store and returns the
// checkpoint id.
func (h *Handle) Save(ctx context.Context) (string, error) {
	cp, err := h.net.Snapshot()
	if err != nil {
		return "", err
	}
	cp.ID = uuid.NewString()
	if err := h.client.store.SaveCheckpoint(ctx, cp); err != nil {
		return "", fmt.Errorf("save checkpoint: %w", err)
	}
	return cp.ID, nil
}

// Load restores a checkpoint from the client's store into the online
// network. The target network is left alone until SyncTargets is called.
func (h *Handle) Load(ctx context.Context, id string) error {
	cp, ok, err := h.client.store.GetCheckpoint(ctx, id)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return fmt.Errorf("checkpoint %s not found", id)
	}
	return h.net.Restore(cp)
}

func (h *Handle) obsTensor(obs []float64) (*tensor.Dense, error) {
	shape := append([]int{h.net.BatchSize}, h.net.InputShape...)
	want := tensor.Shape(shape).TotalSize()
	if len(obs) != want {
		return nil, fmt.Errorf("observations: got %d values, want %d for shape %v", len(obs), want, shape)
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(append([]float64(nil), obs...))), nil
}
