// verge/pkg/compiler/structs.go

package compiler

// RuleSet is the compiled form of a graph: one rule per reachable
// action node. A compile always produces a fresh RuleSet; callers swap
// it in atomically.
type RuleSet struct {
	Rules []Rule `json:"rules"`
}

type Rule struct {
	Name       string         `json:"name"`
	Enabled    bool           `json:"enabled"`
	Conditions *ConditionTree `json:"conditions"`
	Action     ActionSpec     `json:"action"`

	// OperatorAmbiguous is set when more than one logic-bearing node is
	// reachable from the rule's action node. The legacy compiler kept a
	// single "active operator" variable where the last visited logic
	// node won; this compiler builds the real tree, and the flag marks
	// graphs where the two disagree.
	OperatorAmbiguous bool `json:"operatorAmbiguous,omitempty"`
}

// ConditionTree is an operator node: AND, OR or NOT over an ordered
// list of predicates and nested groups.
type ConditionTree struct {
	Op         string           `json:"op"`
	Predicates []Predicate      `json:"predicates,omitempty"`
	Groups     []*ConditionTree `json:"groups,omitempty"`
}

const (
	OpAnd = "AND"
	OpOr  = "OR"
	OpNot = "NOT"
)

// FieldKind tags the predicate union.
type FieldKind string

const (
	FieldPath       FieldKind = "path"
	FieldIPList     FieldKind = "ipList"
	FieldDeviceFlag FieldKind = "deviceFlag"
	FieldUserAgent  FieldKind = "userAgent"
	FieldHeader     FieldKind = "header"
	FieldRateLimit  FieldKind = "rateLimit"
)

// Predicate is one compiled condition. Which fields are meaningful
// depends on Kind: Name carries the header or flag name, the rate
// limit fields are set only for FieldRateLimit.
type Predicate struct {
	Kind     FieldKind `json:"kind"`
	Operator string    `json:"operator"`
	Value    string    `json:"value,omitempty"`
	Name     string    `json:"name,omitempty"`

	Limit  int    `json:"limit,omitempty"`
	Window string `json:"window,omitempty"`
	KeyBy  string `json:"keyBy,omitempty"`
}

// ActionSpec is the single terminal action of a rule.
type ActionSpec struct {
	Type          string `json:"type"`
	StatusCode    int    `json:"statusCode,omitempty"`
	Message       string `json:"message,omitempty"`
	URL           string `json:"url,omitempty"`
	PreserveQuery bool   `json:"preserveQuery,omitempty"`
	Severity      string `json:"severity,omitempty"`
}

const (
	ActionBlock    = "block"
	ActionAllow    = "allow"
	ActionRedirect = "redirect"
	ActionLog      = "log"
)

// predicateCount walks the tree and counts predicates; a rule whose
// tree holds none is dropped by the compiler.
func (t *ConditionTree) predicateCount() int {
	if t == nil {
		return 0
	}
	n := len(t.Predicates)
	for _, g := range t.Groups {
		n += g.predicateCount()
	}
	return n
}
