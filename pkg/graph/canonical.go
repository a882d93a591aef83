// verge/pkg/graph/canonical.go

package graph

import (
	"encoding/json"
	"fmt"
	"sort"

	"verge/pkg/logging"
)

// Parse decodes editor JSON into a Graph. Transient UI fields on nodes
// and edges are dropped here; everything semantic survives.
func Parse(jsonData []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(jsonData, &g); err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to unmarshal graph JSON")
		return nil, fmt.Errorf("invalid graph JSON: %w", err)
	}
	return &g, nil
}

// Canonicalize returns a normalized copy of the graph: nodes and edges
// sorted by id, nil data maps replaced by empty maps. Two graphs that
// differ only in UI state or ordering canonicalize identically.
func Canonicalize(g *Graph) *Graph {
	out := &Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(out.Nodes, g.Nodes)
	copy(out.Edges, g.Edges)

	for i := range out.Nodes {
		if out.Nodes[i].Data == nil {
			out.Nodes[i].Data = map[string]interface{}{}
		}
	}

	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })
	sort.Slice(out.Edges, func(i, j int) bool { return out.Edges[i].ID < out.Edges[j].ID })
	return out
}

// CanonicalJSON parses, canonicalizes and re-marshals editor JSON.
// Canonicalizing already-canonical JSON yields byte-identical output:
// struct fields marshal in declaration order and map keys are sorted by
// encoding/json.
func CanonicalJSON(jsonData []byte) ([]byte, error) {
	g, err := Parse(jsonData)
	if err != nil {
		return nil, err
	}
	return Marshal(Canonicalize(g))
}

// Marshal emits the wire-format JSON for a graph.
func Marshal(g *Graph) ([]byte, error) {
	return json.Marshal(g)
}
