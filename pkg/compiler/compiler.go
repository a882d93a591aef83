// verge/pkg/compiler/compiler.go

package compiler

import (
	"fmt"
	"strings"

	"verge/pkg/graph"
	"verge/pkg/logging"
)

// Compile turns a graph into a RuleSet: one rule per action node whose
// backward slice contains at least one condition. Compile is pure and
// never fails; malformed node data degrades to best-effort predicates
// so a single bad node cannot block the rest of the graph.
func Compile(g *graph.Graph) *RuleSet {
	c := &walker{
		nodes: make(map[string]*graph.Node, len(g.Nodes)),
		rev:   make(map[string][]string),
	}
	for i := range g.Nodes {
		c.nodes[g.Nodes[i].ID] = &g.Nodes[i]
	}
	for _, e := range g.Edges {
		c.rev[e.Target] = append(c.rev[e.Target], e.Source)
	}

	rs := &RuleSet{}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Type != graph.KindAction {
			continue
		}
		rule, ok := c.compileRule(n)
		if !ok {
			logging.Logger.Debug().Str("action", n.ID).Msg("Dropping rule with no reachable conditions")
			continue
		}
		rs.Rules = append(rs.Rules, rule)
	}

	logging.Logger.Debug().Int("rules", len(rs.Rules)).Msg("Compiled graph")
	return rs
}

type walker struct {
	nodes map[string]*graph.Node
	rev   map[string][]string
}

// compileRule builds the condition tree for one action node by walking
// the reversed adjacency. Returns ok=false when no predicate was
// collected: an action with no reachable condition would fire on every
// request and is too dangerous to ship implicitly.
func (c *walker) compileRule(action *graph.Node) (Rule, bool) {
	visited := map[string]bool{action.ID: true}
	logicSeen := 0

	root := &ConditionTree{Op: OpAnd}
	for _, src := range c.rev[action.ID] {
		c.collect(src, root, visited, &logicSeen)
	}

	if root.predicateCount() == 0 {
		return Rule{}, false
	}

	// Hoist a lone group so the flat single-operator case stays flat.
	if len(root.Predicates) == 0 && len(root.Groups) == 1 {
		root = root.Groups[0]
	}

	return Rule{
		Name:              "rule_" + action.ID,
		Enabled:           true,
		Conditions:        root,
		Action:            actionSpec(action),
		OperatorAmbiguous: logicSeen > 1,
	}, true
}

// collect folds one upstream node into the tree under construction.
// Logic-bearing nodes open a new operator group; condition-bearing
// nodes append predicates; everything else is pass-through and only
// continues the walk.
func (c *walker) collect(id string, tree *ConditionTree, visited map[string]bool, logicSeen *int) {
	if visited[id] {
		return
	}
	visited[id] = true

	n, ok := c.nodes[id]
	if !ok {
		return
	}

	switch n.Type {
	case graph.KindLogic:
		var data graph.LogicData
		op := OpAnd
		if err := n.DecodeData(&data); err == nil {
			if parsed := normalizeOp(data.Op); parsed != "" {
				op = parsed
			}
		}
		*logicSeen++
		group := &ConditionTree{Op: op}
		for _, src := range c.rev[id] {
			c.collect(src, group, visited, logicSeen)
		}
		if group.predicateCount() > 0 {
			tree.Groups = append(tree.Groups, group)
		}

	case graph.KindRuleGroup:
		var data graph.RuleGroupData
		if err := n.DecodeData(&data); err != nil {
			logging.Logger.Warn().Err(err).Str("node", id).Msg("Bad ruleGroup data, skipping node")
			c.continueUpstream(id, tree, visited, logicSeen)
			return
		}
		op := normalizeOp(data.Logic)
		if op == "" {
			op = OpAnd
		}
		*logicSeen++
		group := &ConditionTree{Op: op}
		for _, cond := range data.Conditions {
			group.Predicates = append(group.Predicates, translateCondition(graph.ConditionData{
				Field:      cond.Field,
				Operator:   cond.Operator,
				Value:      cond.Value,
				HeaderName: cond.HeaderName,
			}))
		}
		for _, src := range c.rev[id] {
			c.collect(src, group, visited, logicSeen)
		}
		if group.predicateCount() > 0 {
			tree.Groups = append(tree.Groups, group)
		}

	case graph.KindCondition:
		var data graph.ConditionData
		if err := n.DecodeData(&data); err != nil {
			logging.Logger.Warn().Err(err).Str("node", id).Msg("Bad condition data, degrading to exists predicate")
			tree.Predicates = append(tree.Predicates, Predicate{Kind: FieldHeader, Operator: "exists", Name: id})
		} else {
			tree.Predicates = append(tree.Predicates, translateCondition(data))
		}
		c.continueUpstream(id, tree, visited, logicSeen)

	case graph.KindRateLimit:
		var data graph.RateLimitData
		if err := n.DecodeData(&data); err != nil {
			logging.Logger.Warn().Err(err).Str("node", id).Msg("Bad rateLimit data, skipping node")
		} else {
			keyBy := data.KeyBy
			if keyBy == "header" && data.HeaderName != "" {
				keyBy = "header:" + data.HeaderName
			}
			tree.Predicates = append(tree.Predicates, Predicate{
				Kind:     FieldRateLimit,
				Operator: "exceeds",
				Limit:    data.Limit,
				Window:   data.WindowUnit,
				KeyBy:    keyBy,
			})
		}
		c.continueUpstream(id, tree, visited, logicSeen)

	default:
		// request, transform, header, cache, redirect, backend, log:
		// nothing to contribute, keep walking backward.
		c.continueUpstream(id, tree, visited, logicSeen)
	}
}

func (c *walker) continueUpstream(id string, tree *ConditionTree, visited map[string]bool, logicSeen *int) {
	for _, src := range c.rev[id] {
		c.collect(src, tree, visited, logicSeen)
	}
}

// translateCondition maps a condition node's field vocabulary onto the
// compiled predicate union. Unrecognized fields degrade to a
// header-existence predicate keyed by the field name.
func translateCondition(data graph.ConditionData) Predicate {
	switch data.Field {
	case "path", "query", "method", "host", "scheme":
		return Predicate{Kind: FieldPath, Operator: data.Operator, Value: data.Value, Name: data.Field}
	case "clientIp", "client-ip", "ip", "country", "asn", "continent":
		return Predicate{Kind: FieldIPList, Operator: data.Operator, Value: data.Value, Name: data.Field}
	case "ddosDetected", "isHostingProvider", "isBot":
		return Predicate{Kind: FieldDeviceFlag, Operator: data.Operator, Value: data.Value, Name: data.Field}
	case "userAgent", "user-agent":
		return Predicate{Kind: FieldUserAgent, Operator: data.Operator, Value: data.Value}
	case "header":
		name := data.HeaderName
		if name == "" {
			name = data.Value
		}
		return Predicate{Kind: FieldHeader, Operator: data.Operator, Value: data.Value, Name: name}
	default:
		logging.Logger.Debug().Str("field", data.Field).Msg("Unrecognized condition field, degrading to header exists")
		return Predicate{Kind: FieldHeader, Operator: "exists", Name: data.Field}
	}
}

// actionSpec decodes the terminal action node. Unknown action strings
// degrade to block, mirroring the edge engine.
func actionSpec(n *graph.Node) ActionSpec {
	var data graph.ActionData
	if err := n.DecodeData(&data); err != nil {
		logging.Logger.Warn().Err(err).Str("node", n.ID).Msg("Bad action data, defaulting to block")
		return ActionSpec{Type: ActionBlock, StatusCode: 403, Message: "Blocked"}
	}

	switch data.Action {
	case ActionAllow:
		return ActionSpec{Type: ActionAllow}
	case ActionRedirect:
		status := data.StatusCode
		if status == 0 {
			status = 302
		}
		return ActionSpec{Type: ActionRedirect, StatusCode: status, URL: data.URL, PreserveQuery: data.PreserveQuery}
	case ActionLog:
		return ActionSpec{Type: ActionLog, Severity: "info", Message: data.Message}
	case ActionBlock:
		fallthrough
	default:
		status := data.StatusCode
		if status == 0 {
			status = 403
		}
		message := data.Message
		if message == "" {
			message = "Blocked"
		}
		return ActionSpec{Type: ActionBlock, StatusCode: status, Message: message}
	}
}

func normalizeOp(op string) string {
	switch strings.ToUpper(strings.TrimSpace(op)) {
	case OpAnd:
		return OpAnd
	case OpOr:
		return OpOr
	case OpNot:
		return OpNot
	}
	return ""
}

// Describe renders a short human-readable summary of a rule set, used
// by the deploy CLI's dry-run output.
func Describe(rs *RuleSet) string {
	var b strings.Builder
	for _, r := range rs.Rules {
		fmt.Fprintf(&b, "%s: %s %s (%d predicates)\n",
			r.Name, r.Conditions.Op, r.Action.Type, r.Conditions.predicateCount())
	}
	return b.String()
}
