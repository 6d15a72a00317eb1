// Package workflow turns a node/edge graph plus a run-time context into a
// deterministic, ordered sequence of node executions.
package workflow

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Component types form a closed set; the executor rejects anything else.
const (
	TypeUserQuery     = "user-query"
	TypeKnowledgeBase = "knowledge-base"
	TypeLLMEngine     = "llm-engine"
	TypeOutput        = "output"
)

// Node is one unit of work in a workflow graph. The wire shape mirrors the
// frontend flow editor: per-node settings live under data.config.
type Node struct {
	ID   string   `json:"id" yaml:"id"`
	Type string   `json:"type" yaml:"type"`
	Data NodeData `json:"data" yaml:"data"`
}

type NodeData struct {
	Config map[string]any `json:"config" yaml:"config"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Graph is the executable workflow definition.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

var ErrEmptyGraph = errors.New("workflow: graph has no nodes")

// ParseGraph decodes the wire-format graph and validates its structure.
func ParseGraph(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrap(err, "decode workflow graph")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks the structural invariants: a non-empty node set, unique
// node ids, and edges that reference declared nodes.
func (g *Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return ErrEmptyGraph
	}
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return errors.New("workflow: node with empty id")
		}
		if seen[n.ID] {
			return errors.Errorf("workflow: duplicate node id %s", n.ID)
		}
		seen[n.ID] = true
	}
	for _, e := range g.Edges {
		if !seen[e.Source] {
			return errors.Errorf("workflow: edge references unknown source %s", e.Source)
		}
		if !seen[e.Target] {
			return errors.Errorf("workflow: edge references unknown target %s", e.Target)
		}
	}
	return nil
}

// NodeByID looks a node up by id.
func (g *Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// ExecutionOrder computes a topological order with Kahn's algorithm. The
// queue is seeded with in-degree-zero nodes in declaration order and drained
// FIFO, so the order is deterministic for a stable input ordering. Nodes
// caught in cycles never reach in-degree zero and are excluded rather than
// reported; execution simply proceeds without them.
func (g *Graph) ExecutionOrder() []string {
	inDegree := make(map[string]int, len(g.Nodes))
	adjacency := make(map[string][]string, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range g.Edges {
		if _, ok := inDegree[e.Source]; !ok {
			continue
		}
		if _, ok := inDegree[e.Target]; !ok {
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inDegree[e.Target]++
	}

	var queue []string
	for _, n := range g.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, next := range adjacency[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order
}
