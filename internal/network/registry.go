package network

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"

	"deepq/internal/config"
	"deepq/internal/summary"
)

var (
	ErrUnsupportedNetwork = errors.New("unsupported network type")
	ErrArchitectureExists = errors.New("architecture already registered")
	ErrInputRank          = errors.New("input shape has wrong rank")
)

// buildContext carries everything the per-architecture builders need. It is
// assembled once by the orchestrator and read-only afterwards.
type buildContext struct {
	g          *G.ExprGraph
	cfg        config.Config
	inputShape []int
	numActions int
	batch      int
	initSrc    rand.Source
}

// Architecture is one closed variant of the value network. BuildParams
// allocates the trainable tensors only; BuildLayers wires them and the input
// into a forward graph. The two are split so that the target assembler can
// build a structurally identical replica under a different scope and
// placement.
type Architecture interface {
	Name() string

	// BuildParams creates the (weight, bias) pairs under the given naming
	// scope. The placement is recorded on the returned set; scope keeps
	// online and target variable names from colliding in the shared graph.
	BuildParams(bc *buildContext, scope string, place Placement) (Params, error)

	// BuildLayers produces the per-action value output and the accumulated
	// regularization penalty for the given parameter set.
	BuildLayers(bc *buildContext, inputs *G.Node, params Params, col *summary.Collector) (output, regPenalty *G.Node, err error)
}

var architectureRegistry = struct {
	mu sync.RWMutex
	m  map[string]Architecture
}{
	m: make(map[string]Architecture),
}

func init() {
	MustRegisterArchitecture(simpleArchitecture{})
	MustRegisterArchitecture(convArchitecture{})
}

func RegisterArchitecture(arch Architecture) error {
	if arch == nil || arch.Name() == "" {
		return errors.New("architecture name is required")
	}

	architectureRegistry.mu.Lock()
	defer architectureRegistry.mu.Unlock()

	if _, exists := architectureRegistry.m[arch.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrArchitectureExists, arch.Name())
	}
	architectureRegistry.m[arch.Name()] = arch
	return nil
}

func MustRegisterArchitecture(arch Architecture) {
	if err := RegisterArchitecture(arch); err != nil {
		panic(err)
	}
}

func architectureFor(name string) (Architecture, error) {
	architectureRegistry.mu.RLock()
	arch, ok := architectureRegistry.m[name]
	architectureRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, name)
	}
	return arch, nil
}

func ListArchitectures() []string {
	architectureRegistry.mu.RLock()
	defer architectureRegistry.mu.RUnlock()

	names := make([]string, 0, len(architectureRegistry.m))
	for name := range architectureRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
