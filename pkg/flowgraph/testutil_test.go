package flowgraph

import (
	"context"
	"errors"

	"github.com/courtvision/scoutgraph/pkg/flowgraph/checkpoint"
)

// Tally is the state used across engine tests.
type Tally struct {
	Count  int      `json:"count"`
	Trail  []string `json:"trail,omitempty"`
	Err    string   `json:"err,omitempty"`
	Answer any      `json:"answer,omitempty"`
}

// Delta is the per-node update for Tally.
type Delta struct {
	Add    int
	Visit  string
	Err    string
	Answer any
}

func mergeTally(s Tally, d Delta) Tally {
	s.Count += d.Add
	if d.Visit != "" {
		s.Trail = append(append([]string(nil), s.Trail...), d.Visit)
	}
	if d.Err != "" {
		s.Err = d.Err
	}
	if d.Answer != nil {
		s.Answer = d.Answer
	}
	return s
}

// visit returns a node that records its name and adds one.
func visit(name string) NodeFunc[Tally, Delta] {
	return func(_ Context, _ Tally) (Delta, error) {
		return Delta{Add: 1, Visit: name}, nil
	}
}

func failing(err error) NodeFunc[Tally, Delta] {
	return func(_ Context, _ Tally) (Delta, error) {
		return Delta{}, err
	}
}

func panicking(v any) NodeFunc[Tally, Delta] {
	return func(_ Context, _ Tally) (Delta, error) {
		panic(v)
	}
}

func newTallyGraph() *Graph[Tally, Delta] {
	return NewGraph[Tally, Delta]().SetReducer(mergeTally)
}

// linear builds entry -> ... -> END over the given node names.
func linear(names ...string) *Graph[Tally, Delta] {
	g := newTallyGraph()
	for i, name := range names {
		g.AddNode(name, visit(name))
		if i+1 < len(names) {
			g.AddEdge(name, names[i+1])
		} else {
			g.AddEdge(name, END)
		}
	}
	return g.SetEntry(names[0])
}

// failingStore wraps a MemoryStore and fails every Save.
type failingStore struct {
	*checkpoint.MemoryStore
}

var errStoreDown = errors.New("store down")

func (f failingStore) Save(_ context.Context, _, _ string, _ []byte) error {
	return errStoreDown
}

// recorder collects emitted events.
type recorder struct {
	events []Event[Delta]
}

func (r *recorder) handle(_ context.Context, ev Event[Delta]) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) nodes() []string {
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Node)
	}
	return out
}
