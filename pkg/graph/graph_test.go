// verge/pkg/graph/graph_test.go

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalGraph() *Graph {
	return &Graph{
		Nodes: []Node{
			{ID: "request-1", Type: KindRequest, Data: map[string]interface{}{}},
			{ID: "cond-1", Type: KindCondition, Data: map[string]interface{}{
				"field": "path", "operator": "equals", "value": "/blocked",
			}},
			{ID: "action-1", Type: KindAction, Data: map[string]interface{}{
				"action": "block", "statusCode": float64(403),
			}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "request-1", Target: "cond-1"},
			{ID: "e2", Source: "cond-1", SourceHandle: "true", Target: "action-1"},
		},
	}
}

func TestParseDropsUIFields(t *testing.T) {
	jsonData := `{
		"nodes": [
			{"id": "n1", "type": "request", "position": {"x": 10, "y": 20},
			 "selected": true, "dragging": false, "width": 180, "height": 60,
			 "data": {}}
		],
		"edges": [
			{"id": "e1", "source": "n1", "target": "n1", "type": "smoothstep", "animated": true}
		]
	}`

	g, err := Parse([]byte(jsonData))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)

	out, err := Marshal(g)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "selected")
	assert.NotContains(t, string(out), "dragging")
	assert.NotContains(t, string(out), "smoothstep")
	assert.Contains(t, string(out), `"x":10`)
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{"nodes": [`))
	assert.Error(t, err)
}

func TestCanonicalizeSortsAndFillsData(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "b", Type: KindAction},
			{ID: "a", Type: KindRequest},
		},
		Edges: []Edge{
			{ID: "e2", Source: "a", Target: "b"},
			{ID: "e1", Source: "a", Target: "b"},
		},
	}

	c := Canonicalize(g)
	assert.Equal(t, "a", c.Nodes[0].ID)
	assert.Equal(t, "b", c.Nodes[1].ID)
	assert.Equal(t, "e1", c.Edges[0].ID)
	assert.NotNil(t, c.Nodes[0].Data)

	// The input graph is untouched.
	assert.Equal(t, "b", g.Nodes[0].ID)
	assert.Nil(t, g.Nodes[0].Data)
}

// Canonicalizing canonical JSON must be byte-stable, since the payload
// hash is computed over it.
func TestCanonicalJSONIdempotent(t *testing.T) {
	jsonData := `{
		"nodes": [
			{"id": "z", "type": "action", "position": {"x": 1, "y": 2}, "data": {"action": "block"}},
			{"id": "a", "type": "request", "position": {"x": 0, "y": 0}, "data": {}}
		],
		"edges": [
			{"id": "e1", "source": "a", "target": "z"}
		]
	}`

	once, err := CanonicalJSON([]byte(jsonData))
	require.NoError(t, err)
	twice, err := CanonicalJSON(once)
	require.NoError(t, err)
	assert.Equal(t, string(once), string(twice))
}

func TestDecodeData(t *testing.T) {
	n := Node{ID: "c", Type: KindCondition, Data: map[string]interface{}{
		"field": "header", "operator": "equals", "value": "abc", "headerName": "X-Token",
	}}

	var data ConditionData
	require.NoError(t, n.DecodeData(&data))
	assert.Equal(t, "header", data.Field)
	assert.Equal(t, "X-Token", data.HeaderName)
}

func TestValidateAcceptsMinimalGraph(t *testing.T) {
	assert.Empty(t, Validate(minimalGraph()))
}

func TestValidateMissingRequestNode(t *testing.T) {
	g := minimalGraph()
	g.Nodes = g.Nodes[1:]
	g.Edges = g.Edges[1:]

	problems := Validate(g)
	assert.Contains(t, problems, "graph has no request (entry) node")
}

func TestValidateMissingTerminalNode(t *testing.T) {
	g := &Graph{
		Nodes: []Node{{ID: "request-1", Type: KindRequest}},
	}
	problems := Validate(g)
	assert.Contains(t, problems, "graph has no terminal action or backend node")
}

func TestValidateDuplicateAndEmptyIDs(t *testing.T) {
	g := minimalGraph()
	g.Nodes = append(g.Nodes, Node{ID: "cond-1", Type: KindCondition})
	g.Nodes = append(g.Nodes, Node{ID: "", Type: KindCondition})

	problems := Validate(g)
	assert.Contains(t, problems, `duplicate node id "cond-1"`)
	assert.Contains(t, problems, "node with empty id")
}

func TestValidateUnknownNodeType(t *testing.T) {
	g := minimalGraph()
	g.Nodes = append(g.Nodes, Node{ID: "x", Type: "sparkles"})
	g.Edges = append(g.Edges, Edge{ID: "e3", Source: "x", Target: "action-1"})

	problems := Validate(g)
	assert.Contains(t, problems, `node "x" has unknown type "sparkles"`)
}

func TestValidateDanglingEdges(t *testing.T) {
	g := minimalGraph()
	g.Edges = append(g.Edges,
		Edge{ID: "e3", Source: "ghost", Target: "action-1"},
		Edge{ID: "e4", Source: "cond-1", Target: "phantom"},
	)

	problems := Validate(g)
	assert.Contains(t, problems, `edge "e3" references missing source node "ghost"`)
	assert.Contains(t, problems, `edge "e4" references missing target node "phantom"`)
}

func TestValidateDeadEndNode(t *testing.T) {
	g := minimalGraph()
	g.Nodes = append(g.Nodes, Node{ID: "lonely", Type: KindCondition})

	problems := Validate(g)
	assert.Contains(t, problems, `node "lonely" (condition) has no outgoing connection`)
}

func TestValidateDetectsCycle(t *testing.T) {
	g := minimalGraph()
	g.Nodes = append(g.Nodes,
		Node{ID: "c2", Type: KindCondition},
		Node{ID: "c3", Type: KindCondition},
	)
	g.Edges = append(g.Edges,
		Edge{ID: "e3", Source: "c2", Target: "c3"},
		Edge{ID: "e4", Source: "c3", Target: "c2"},
	)

	problems := Validate(g)
	found := false
	for _, p := range problems {
		if p == `graph contains a cycle through node "c2"` || p == `graph contains a cycle through node "c3"` {
			found = true
		}
	}
	assert.True(t, found, "expected a cycle problem, got %v", problems)
}

func TestValidateLogNodeMayDeadEnd(t *testing.T) {
	g := minimalGraph()
	g.Nodes = append(g.Nodes, Node{ID: "log-1", Type: KindLog})
	g.Edges = append(g.Edges, Edge{ID: "e3", Source: "cond-1", SourceHandle: "false", Target: "log-1"})

	assert.Empty(t, Validate(g))
}
