package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"deepq/internal/config"
	"deepq/internal/storage"
	"deepq/internal/summary"
	"deepq/pkg/deepq"
)

const artifactsDir = "artifacts"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "describe":
		return runDescribe(ctx, args[1:])
	case "smoke":
		return runSmoke(ctx, args[1:])
	case "checkpoints":
		return runCheckpoints(ctx, args[1:])
	case "architectures":
		return runArchitectures(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// buildFlags is the flag subset shared by describe and smoke.
type buildFlags struct {
	configPath *string
	network    *string
	optimizer  *string
	inputShape *string
	actions    *int
	batchSize  *int
	seed       *int64
}

func registerBuildFlags(fs *flag.FlagSet) buildFlags {
	return buildFlags{
		configPath: fs.String("config", "", "training config JSON path (flags override file values)"),
		network:    fs.String("network", "simple", "network architecture: simple|cnn"),
		optimizer:  fs.String("optimizer", "sgd", "optimizer name"),
		inputShape: fs.String("input-shape", "4", "comma-separated observation shape, e.g. 84,84,4"),
		actions:    fs.Int("actions", 2, "action count"),
		batchSize:  fs.Int("batch-size", 0, "batch size (0 keeps the config value)"),
		seed:       fs.Int64("seed", 1, "rng seed"),
	}
}

func (bf buildFlags) request() (deepq.BuildRequest, error) {
	cfg := config.Default()
	if *bf.configPath != "" {
		loaded, err := config.Load(*bf.configPath)
		if err != nil {
			return deepq.BuildRequest{}, err
		}
		cfg = loaded
	} else {
		cfg.Network = *bf.network
		cfg.Optimizer = *bf.optimizer
		cfg.Seed = *bf.seed
	}
	if *bf.batchSize > 0 {
		cfg.BatchSize = *bf.batchSize
	}

	shape, err := parseShape(*bf.inputShape)
	if err != nil {
		return deepq.BuildRequest{}, err
	}

	return deepq.BuildRequest{
		Network:                  cfg.Network,
		Optimizer:                cfg.Optimizer,
		LearningRate:             cfg.LearningRate,
		Momentum:                 cfg.Momentum,
		RMSPropDecay:             cfg.RMSPropDecay,
		RegParam:                 cfg.RegParam,
		Sync:                     cfg.Sync,
		TaskID:                   cfg.TaskID,
		DisableTargetReplication: cfg.DisableTargetReplication,
		BatchSize:                cfg.BatchSize,
		Seed:                     cfg.Seed,
		InputShape:               shape,
		NumActions:               *bf.actions,
	}, nil
}

func parseShape(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	shape := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid input shape %q: dimensions must be positive integers", s)
		}
		shape = append(shape, n)
	}
	return shape, nil
}

func runDescribe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("describe", flag.ContinueOnError)
	bf := registerBuildFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := bf.request()
	if err != nil {
		return err
	}

	client, err := deepq.New(ctx, deepq.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	h, err := client.Build(req)
	if err != nil {
		return err
	}

	desc := h.Describe()
	fmt.Printf("architecture=%s input=%v actions=%d batch=%d\n",
		desc.Architecture, desc.InputShape, desc.NumActions, desc.BatchSize)
	for _, layer := range desc.Layers {
		fmt.Printf("  %-12s weights=%v bias=%v\n", layer.Name, layer.WeightShape, layer.BiasShape)
	}
	fmt.Printf("parameters=%s target-update-ops=%d summaries=%v\n",
		humanize.Comma(int64(desc.ParamCount)), desc.TargetUpdateOps, desc.Summaries)
	return nil
}

func runSmoke(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("smoke", flag.ContinueOnError)
	bf := registerBuildFlags(fs)
	steps := fs.Int("steps", 10, "training steps to run")
	syncEvery := fs.Int("sync-every", 5, "target sync cadence in steps (0 disables)")
	storeKind := fs.String("store", "memory", "checkpoint backend: memory|sqlite")
	dbPath := fs.String("db-path", "deepq.db", "sqlite database path")
	outDir := fs.String("artifacts", artifactsDir, "summary artifact directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := bf.request()
	if err != nil {
		return err
	}

	client, err := deepq.New(ctx, deepq.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	h, err := client.Build(req)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	rng := rand.New(rand.NewSource(req.Seed))
	history := summary.NewHistory(h.SummaryNames())

	obsLen := req.BatchSize
	for _, d := range req.InputShape {
		obsLen *= d
	}
	for step := 0; step < *steps; step++ {
		obs := make([]float64, obsLen)
		for i := range obs {
			obs[i] = rng.Float64() - 0.5
		}
		expected := make([]float64, req.BatchSize)
		actions := make([]float64, req.BatchSize*req.NumActions)
		for i := range expected {
			expected[i] = rng.Float64()
			actions[i*req.NumActions+rng.Intn(req.NumActions)] = 1
		}

		loss, err := h.TrainBatch(obs, expected, actions)
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}

		values, err := h.Summaries()
		if err != nil {
			return fmt.Errorf("step %d summaries: %w", step, err)
		}
		history.Append(h.GlobalStep(), values)
		fmt.Printf("step=%d loss=%.6f\n", h.GlobalStep(), loss)

		if *syncEvery > 0 && (step+1)%*syncEvery == 0 {
			if err := h.SyncTargets(); err != nil {
				return fmt.Errorf("step %d target sync: %w", step, err)
			}
		}
	}

	csvPath, err := history.WriteCSV(*outDir, runID)
	if err != nil {
		return err
	}

	checkpointID, err := h.Save(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("run=%s steps=%d checkpoint=%s summaries=%s\n", runID, *steps, checkpointID, csvPath)
	return nil
}

func runCheckpoints(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkpoints", flag.ContinueOnError)
	storeKind := fs.String("store", "memory", "checkpoint backend: memory|sqlite")
	dbPath := fs.String("db-path", "deepq.db", "sqlite database path")
	deleteID := fs.String("delete", "", "delete the checkpoint with this id instead of listing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	if *deleteID != "" {
		if err := store.DeleteCheckpoint(ctx, *deleteID); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", *deleteID)
		return nil
	}

	ids, err := store.ListCheckpoints(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		cp, ok, err := store.GetCheckpoint(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fmt.Printf("%s network=%s input=%v actions=%d step=%d\n",
			cp.ID, cp.Architecture, cp.InputShape, cp.NumActions, cp.GlobalStep)
	}
	fmt.Printf("total=%d\n", len(ids))
	return nil
}

func runArchitectures(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("architectures", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range deepq.Architectures() {
		fmt.Println(name)
	}
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: deepqctl <describe|smoke|checkpoints|architectures> [flags]", msg)
}
