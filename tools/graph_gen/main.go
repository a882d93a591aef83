package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type Node struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Position Position               `json:"position"`
	Data     map[string]interface{} `json:"data"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

var conditionFields = []string{"path", "ipList", "deviceFlag", "userAgent", "header"}

var fieldOperators = map[string][]string{
	"path":       {"equals", "starts_with", "contains", "regex"},
	"ipList":     {"in_list", "not_in_list"},
	"deviceFlag": {"equals"},
	"userAgent":  {"contains", "equals"},
	"header":     {"exists", "equals", "contains"},
}

var actionKinds = []string{"block", "allow", "redirect", "log"}

func generateConditionValue(field string) interface{} {
	switch field {
	case "path":
		return "/" + gofakeit.Word() + "/" + gofakeit.Word()
	case "ipList":
		return []string{gofakeit.IPv4Address(), gofakeit.IPv4Address()}
	case "deviceFlag":
		return gofakeit.RandomString([]string{"is_bot", "is_mobile", "is_tor"})
	case "userAgent":
		return gofakeit.UserAgent()
	default:
		return gofakeit.Word()
	}
}

func conditionNode(id string, x, y float64) Node {
	field := conditionFields[rand.Intn(len(conditionFields))]
	ops := fieldOperators[field]
	data := map[string]interface{}{
		"field":    field,
		"operator": ops[rand.Intn(len(ops))],
		"value":    generateConditionValue(field),
	}
	if field == "header" {
		data["headerName"] = gofakeit.RandomString([]string{"X-Forwarded-For", "Referer", "Accept-Language"})
	}
	return Node{ID: id, Type: "condition", Position: Position{X: x, Y: y}, Data: data}
}

func actionNode(id string, x, y float64) Node {
	kind := actionKinds[rand.Intn(len(actionKinds))]
	data := map[string]interface{}{"actionType": kind}
	switch kind {
	case "block":
		data["statusCode"] = 403
		data["message"] = gofakeit.HackerPhrase()
	case "redirect":
		data["location"] = "https://" + gofakeit.DomainName() + "/blocked"
		data["statusCode"] = 302
	case "log":
		data["message"] = gofakeit.HackerPhrase()
	}
	return Node{ID: id, Type: "action", Position: Position{X: x, Y: y}, Data: data}
}

func generateChain(g *Graph, index int, request string) {
	depth := rand.Intn(3) + 1
	prev := request
	y := float64(index * 150)

	for d := 0; d < depth; d++ {
		id := fmt.Sprintf("cond-%d-%d", index, d)
		g.Nodes = append(g.Nodes, conditionNode(id, float64(200+d*200), y))
		g.Edges = append(g.Edges, Edge{
			ID:           fmt.Sprintf("e-%s-%s", prev, id),
			Source:       prev,
			SourceHandle: "out",
			Target:       id,
		})
		prev = id
	}

	actionID := fmt.Sprintf("action-%d", index)
	g.Nodes = append(g.Nodes, actionNode(actionID, float64(200+depth*200), y))
	g.Edges = append(g.Edges, Edge{
		ID:           fmt.Sprintf("e-%s-%s", prev, actionID),
		Source:       prev,
		SourceHandle: "true",
		Target:       actionID,
	})
}

func main() {
	numChains := flag.Int("chains", 5, "Number of rule chains to generate")
	outputFile := flag.String("output", "generated_graph.json", "Output file name")
	flag.Parse()

	gofakeit.Seed(time.Now().UnixNano())

	g := &Graph{
		Nodes: []Node{{
			ID:       "request-1",
			Type:     "request",
			Position: Position{X: 0, Y: 0},
			Data:     map[string]interface{}{},
		}},
	}
	for i := 0; i < *numChains; i++ {
		generateChain(g, i+1, "request-1")
	}

	file, err := os.Create(*outputFile)
	if err != nil {
		fmt.Printf("Error creating file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(g); err != nil {
		fmt.Printf("Error encoding JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated graph with %d nodes and %d edges. Saved to %s\n", len(g.Nodes), len(g.Edges), *outputFile)
}
