// Package summary collects named scalar metrics emitted during graph
// construction and exposes them as one merged handle the training loop can
// read after each step.
package summary

import (
	"fmt"
	"sort"

	G "gorgonia.org/gorgonia"
)

// Scalar ties a metric name to the graph node whose value it reports.
type Scalar struct {
	Name string
	Node *G.Node
}

// Collector accumulates scalars as builders emit them. A nil Collector is
// valid and records nothing, mirroring builders that are invoked without a
// summary sink.
type Collector struct {
	scalars []Scalar
}

func NewCollector() *Collector {
	return &Collector{}
}

// AddScalar records a scalar metric. Safe to call on a nil collector.
func (c *Collector) AddScalar(name string, node *G.Node) {
	if c == nil || node == nil {
		return
	}
	c.scalars = append(c.scalars, Scalar{Name: name, Node: node})
}

// Empty reports whether anything was collected.
func (c *Collector) Empty() bool {
	return c == nil || len(c.scalars) == 0
}

// Merge produces the merged handle, or nil if nothing was collected.
func (c *Collector) Merge() *Merged {
	if c.Empty() {
		return nil
	}
	scalars := make([]Scalar, len(c.scalars))
	copy(scalars, c.scalars)
	return &Merged{scalars: scalars}
}

// Merged is the read side of all collected summaries. Values are only
// meaningful after the graph has been executed.
type Merged struct {
	scalars []Scalar
}

// Names lists the collected metric names in sorted order.
func (m *Merged) Names() []string {
	names := make([]string, 0, len(m.scalars))
	for _, s := range m.scalars {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// Values reads the current value of every collected scalar.
func (m *Merged) Values() (map[string]float64, error) {
	out := make(map[string]float64, len(m.scalars))
	for _, s := range m.scalars {
		v := s.Node.Value()
		if v == nil {
			return nil, fmt.Errorf("summary %s has no value; graph not executed", s.Name)
		}
		f, err := scalarData(v)
		if err != nil {
			return nil, fmt.Errorf("summary %s: %w", s.Name, err)
		}
		out[s.Name] = f
	}
	return out, nil
}

func scalarData(v G.Value) (float64, error) {
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
