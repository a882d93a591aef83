// verge/pkg/graph/types.go

package graph

import "encoding/json"

// Node kinds understood by the editor and the edge engine. The set is
// closed: anything else fails validation.
const (
	KindRequest   = "request"
	KindCondition = "condition"
	KindRuleGroup = "ruleGroup"
	KindLogic     = "logic"
	KindRateLimit = "rateLimit"
	KindTransform = "transform"
	KindHeader    = "header"
	KindCache     = "cache"
	KindRedirect  = "redirect"
	KindBackend   = "backend"
	KindAction    = "action"
	KindLog       = "log"
)

// Graph is the node/edge model shared with the editor and the deployed
// compute engine. The JSON field names are a wire contract.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a single node on the canvas. Data holds the kind-specific
// attributes; UI-only fields (selection, drag state, computed size) are
// intentionally not declared so that parsing drops them.
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

// Edge connects a source node output port to a target node input port.
// The editor's rendering hint ("type") is not a declared field and is
// therefore stripped on parse.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// DecodeData unmarshals the node's free-form data map into a typed
// kind-specific struct.
func (n *Node) DecodeData(v interface{}) error {
	raw, err := json.Marshal(n.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// ConditionData is the payload of a condition node. HeaderName is set
// when Field is "header".
type ConditionData struct {
	Field      string `json:"field"`
	Operator   string `json:"operator"`
	Value      string `json:"value"`
	HeaderName string `json:"headerName,omitempty"`
}

// RuleGroupData holds inline conditions combined with a single logic
// operator; the node exposes match/noMatch output ports.
type RuleGroupData struct {
	Name       string               `json:"name,omitempty"`
	Logic      string               `json:"logic"`
	Conditions []RuleGroupCondition `json:"conditions"`
}

type RuleGroupCondition struct {
	ID         string `json:"id"`
	Field      string `json:"field"`
	Operator   string `json:"operator"`
	Value      string `json:"value"`
	HeaderName string `json:"headerName,omitempty"`
}

// LogicData is the payload of a standalone logic node: AND, OR or NOT.
type LogicData struct {
	Op string `json:"op"`
}

type RateLimitData struct {
	Limit      int    `json:"limit"`
	WindowUnit string `json:"windowUnit"`
	KeyBy      string `json:"keyBy"`
	HeaderName string `json:"headerName,omitempty"`
}

type TransformData struct {
	Operation string `json:"operation"`
	Field     string `json:"field"`
	Pattern   string `json:"pattern,omitempty"`
	OutputVar string `json:"outputVar,omitempty"`
}

type HeaderData struct {
	Operation string `json:"operation"`
	Name      string `json:"name"`
	Value     string `json:"value,omitempty"`
}

type CacheData struct {
	Mode                 string `json:"mode"`
	TTL                  int    `json:"ttl,omitempty"`
	TTLUnit              string `json:"ttlUnit,omitempty"`
	StaleWhileRevalidate int    `json:"staleWhileRevalidate,omitempty"`
	SWRUnit              string `json:"swrUnit,omitempty"`
	SurrogateKeys        string `json:"surrogateKeys,omitempty"`
}

type RedirectData struct {
	URL           string `json:"url"`
	StatusCode    int    `json:"statusCode,omitempty"`
	PreserveQuery bool   `json:"preserveQuery,omitempty"`
}

type BackendData struct {
	Name                string `json:"name"`
	Host                string `json:"host"`
	Port                int    `json:"port,omitempty"`
	UseTLS              *bool  `json:"useTLS,omitempty"`
	OverrideHost        string `json:"overrideHost,omitempty"`
	ConnectTimeout      int    `json:"connectTimeout,omitempty"`
	FirstByteTimeout    int    `json:"firstByteTimeout,omitempty"`
	BetweenBytesTimeout int    `json:"betweenBytesTimeout,omitempty"`
	EdgeAuthSecret      string `json:"edgeAuthSecret,omitempty"`
}

type ActionData struct {
	Action        string `json:"action"`
	StatusCode    int    `json:"statusCode,omitempty"`
	Message       string `json:"message,omitempty"`
	URL           string `json:"url,omitempty"`
	PreserveQuery bool   `json:"preserveQuery,omitempty"`
}

type LogData struct {
	Message  string `json:"message,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// knownKinds is used by validation.
var knownKinds = map[string]bool{
	KindRequest:   true,
	KindCondition: true,
	KindRuleGroup: true,
	KindLogic:     true,
	KindRateLimit: true,
	KindTransform: true,
	KindHeader:    true,
	KindCache:     true,
	KindRedirect:  true,
	KindBackend:   true,
	KindAction:    true,
	KindLog:       true,
}
