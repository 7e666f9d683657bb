package model

import (
	"context"
	"fmt"
)

// Stage is a single executable unit of a structure's characterization chain.
// Implementations wrap the pore analyzer, the validator, and the relaxer.
type Stage interface {
	// Name returns the stage label (e.g. "zeopp_initial").
	Name() string
	// Execute runs the stage and returns its output payload. The input carries
	// the structure and the outputs of all upstream stages that ran.
	Execute(ctx context.Context, in StageInput) (interface{}, error)
}

// StageInput is the value passed to a stage at execution time.
type StageInput struct {
	// Structure is the raw input structure of the graph.
	Structure Structure
	// Upstream holds the outputs of upstream stages, keyed by stage label.
	Upstream map[string]interface{}
}

// Guard is a typed predicate over the producing stage's output, evaluated by
// the executor immediately after that stage completes. A downstream stage is
// only enqueued when its guard holds.
type Guard struct {
	// Name describes the condition (e.g. "is_mof", "force_converged").
	Name string
	// Allow reports whether the downstream stage may run given the upstream
	// output.
	Allow func(output interface{}) bool
}

// StageNode is one node of a StageGraph: a stage plus the metadata every job
// record it produces will carry.
type StageNode struct {
	ID       string
	Stage    Stage
	Metadata map[string]string
}

// Edge is a dependency between two stages, optionally guarded. A nil Guard
// means the downstream stage runs whenever the upstream stage completed.
type Edge struct {
	From  string
	To    string
	Guard *Guard
}

// StageGraph is the dependency graph of one structure's characterization
// chain. It is a pure data structure: building it executes nothing, and guard
// conditions are evaluated at execution time because they depend on stage
// output. Stages are stored in insertion order, which for the builder's
// linear chain is also topological order.
type StageGraph struct {
	StructureName string
	Structure     Structure
	Metadata      map[string]string

	nodes map[string]*StageNode
	order []string
	edges []Edge
}

// NewStageGraph creates an empty graph for the given structure. The metadata
// is inherited (merged with the stage label) by every stage added to it.
func NewStageGraph(structure Structure, metadata map[string]string) *StageGraph {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return &StageGraph{
		StructureName: structure.Name,
		Structure:     structure,
		Metadata:      md,
		nodes:         make(map[string]*StageNode),
		order:         make([]string, 0, 4),
		edges:         make([]Edge, 0, 3),
	}
}

// AddStage appends a stage to the graph. The node's metadata is the graph
// metadata merged with the stage label.
func (g *StageGraph) AddStage(stage Stage) (*StageNode, error) {
	name := stage.Name()
	if _, exists := g.nodes[name]; exists {
		return nil, fmt.Errorf("stage '%s' already exists in graph for structure '%s'", name, g.StructureName)
	}
	md := make(map[string]string, len(g.Metadata)+1)
	for k, v := range g.Metadata {
		md[k] = v
	}
	md[MetaStageName] = name
	node := &StageNode{
		ID:       NewID(),
		Stage:    stage,
		Metadata: md,
	}
	g.nodes[name] = node
	g.order = append(g.order, name)
	return node, nil
}

// AddEdge adds a dependency from one stage to another, optionally guarded.
func (g *StageGraph) AddEdge(from, to string, guard *Guard) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("edge source stage '%s' not found", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("edge target stage '%s' not found", to)
	}
	g.edges = append(g.edges, Edge{From: from, To: to, Guard: guard})
	return nil
}

// Node returns the node with the given stage label.
func (g *StageGraph) Node(name string) (*StageNode, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Topological returns all nodes as a flat, ordered traversal respecting
// dependencies.
func (g *StageGraph) Topological() []*StageNode {
	out := make([]*StageNode, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name])
	}
	return out
}

// OutEdges returns the edges whose source is the given stage.
func (g *StageGraph) OutEdges(from string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out
}

// InEdges returns the edges whose target is the given stage.
func (g *StageGraph) InEdges(to string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.To == to {
			out = append(out, e)
		}
	}
	return out
}

// Edges returns all edges of the graph.
func (g *StageGraph) Edges() []Edge {
	return g.edges
}

// Len returns the number of stages in the graph.
func (g *StageGraph) Len() int {
	return len(g.order)
}
