// verge/pkg/graph/validate.go

package graph

import (
	"fmt"

	"verge/pkg/logging"
)

// Validate inspects a graph before deployment and returns a list of
// human-readable problems. An empty list means the graph is deployable.
// Problems are collected, never raised: a single bad node must not hide
// the rest of the report.
func Validate(g *Graph) []string {
	var problems []string

	byID := make(map[string]*Node, len(g.Nodes))
	hasRequest := false
	hasTerminal := false

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID == "" {
			problems = append(problems, "node with empty id")
			continue
		}
		if _, dup := byID[n.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", n.ID))
			continue
		}
		byID[n.ID] = n

		if !knownKinds[n.Type] {
			problems = append(problems, fmt.Sprintf("node %q has unknown type %q", n.ID, n.Type))
		}
		switch n.Type {
		case KindRequest:
			hasRequest = true
		case KindAction, KindBackend:
			hasTerminal = true
		}
	}

	if !hasRequest {
		problems = append(problems, "graph has no request (entry) node")
	}
	if !hasTerminal {
		problems = append(problems, "graph has no terminal action or backend node")
	}

	outgoing := make(map[string]int)
	for _, e := range g.Edges {
		if _, ok := byID[e.Source]; !ok {
			problems = append(problems, fmt.Sprintf("edge %q references missing source node %q", e.ID, e.Source))
			continue
		}
		if _, ok := byID[e.Target]; !ok {
			problems = append(problems, fmt.Sprintf("edge %q references missing target node %q", e.ID, e.Target))
			continue
		}
		outgoing[e.Source]++
	}

	// A non-terminal node with no outgoing edge dead-ends the request.
	for _, n := range g.Nodes {
		switch n.Type {
		case KindAction, KindBackend, KindLog:
			continue
		}
		if byID[n.ID] != nil && outgoing[n.ID] == 0 {
			problems = append(problems, fmt.Sprintf("node %q (%s) has no outgoing connection", n.ID, n.Type))
		}
	}

	if cycle := findCycle(g, byID); cycle != "" {
		problems = append(problems, fmt.Sprintf("graph contains a cycle through node %q", cycle))
	}

	if len(problems) > 0 {
		logging.Logger.Debug().Strs("problems", problems).Msg("Graph validation found problems")
	}
	return problems
}

// findCycle returns the id of a node on a cycle, or "" when the graph
// is acyclic. Iterative DFS with a three-color marking.
func findCycle(g *Graph, byID map[string]*Node) string {
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		if byID[e.Source] == nil || byID[e.Target] == nil {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(byID))

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				return next
			case white:
				if hit := visit(next); hit != "" {
					return hit
				}
			}
		}
		color[id] = black
		return ""
	}

	for id := range byID {
		if color[id] == white {
			if hit := visit(id); hit != "" {
				return hit
			}
		}
	}
	return ""
}
