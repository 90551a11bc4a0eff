package tool

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned when a workflow's edge set contains a cycle.
var ErrCycle = errors.New("workflow graph contains a cycle")

// TopoOrder returns a topological order of the workflow's nodes using Kahn's
// algorithm. Edges referencing undeclared nodes are an error. When the
// produced order is shorter than the node count the graph has a cycle and
// ErrCycle is returned.
//
// Ready nodes are drained in lexical id order so the result is deterministic
// for a given graph.
func TopoOrder(nodes []WorkflowNode, edges []WorkflowEdge) ([]string, error) {
	declared := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		declared[n.ID] = true
	}

	adjacency := make(map[string][]string, len(nodes))
	indegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		indegree[n.ID] = 0
	}
	for _, e := range edges {
		if !declared[e.From] {
			return nil, fmt.Errorf("edge references undeclared node %q", e.From)
		}
		if !declared[e.To] {
			return nil, fmt.Errorf("edge references undeclared node %q", e.To)
		}
		adjacency[e.From] = append(adjacency[e.From], e.To)
		indegree[e.To]++
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		inserted := false
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
				inserted = true
			}
		}
		if inserted {
			sort.Strings(ready)
		}
	}

	if len(order) < len(nodes) {
		return nil, ErrCycle
	}
	return order, nil
}
