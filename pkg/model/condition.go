package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Operator is the comparison applied by a leaf condition.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpContains    Operator = "contains"
	OpStartsWith  Operator = "startsWith"
	OpIsEmpty     Operator = "isEmpty"
	OpIsNotEmpty  Operator = "isNotEmpty"
)

// Known reports whether the operator is part of the condition vocabulary.
func (o Operator) Known() bool {
	switch o {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpContains, OpStartsWith, OpIsEmpty, OpIsNotEmpty:
		return true
	default:
		return false
	}
}

// ConditionKind tags the Condition variant.
type ConditionKind int

const (
	KindInvalid ConditionKind = iota
	KindLeaf
	KindAnd
	KindOr
	// KindExpr holds an uncompiled shorthand expression (see
	// pkg/condition/expr). The evaluator compiles it on demand.
	KindExpr
)

func (k ConditionKind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindExpr:
		return "expr"
	default:
		return "invalid"
	}
}

// Condition is a boolean expression tree evaluated against form data. Exactly
// one variant is populated: a leaf (Field, Operator, Value), an And group, an
// Or group or a shorthand Expr string.
type Condition struct {
	Field    string
	Operator Operator
	Value    any

	And  []Condition
	Or   []Condition
	Expr string

	kind ConditionKind
}

// Leaf builds a comparison condition.
func Leaf(field string, op Operator, value any) Condition {
	return Condition{Field: field, Operator: op, Value: value, kind: KindLeaf}
}

// All builds an `and` group. All() with no arguments is vacuously true.
func All(conditions ...Condition) Condition {
	return Condition{And: append([]Condition{}, conditions...), kind: KindAnd}
}

// Any builds an `or` group. Any() with no arguments is false.
func Any(conditions ...Condition) Condition {
	return Condition{Or: append([]Condition{}, conditions...), kind: KindOr}
}

// Expression wraps a shorthand expression string.
func Expression(src string) Condition {
	return Condition{Expr: src, kind: KindExpr}
}

// Kind returns the variant tag. Conditions built as struct literals have their
// kind derived from the populated fields.
func (c Condition) Kind() ConditionKind {
	if c.kind != KindInvalid {
		return c.kind
	}
	switch {
	case c.And != nil && c.Or == nil:
		return KindAnd
	case c.Or != nil && c.And == nil:
		return KindOr
	case c.Expr != "" && c.And == nil && c.Or == nil:
		return KindExpr
	case c.Field != "" || c.Operator != "":
		return KindLeaf
	default:
		return KindInvalid
	}
}

// Fields returns the sorted, de-duplicated field names referenced by leaf
// conditions in the tree. Expressions are not compiled and contribute nothing.
func (c Condition) Fields() []string {
	seen := map[string]struct{}{}
	c.collectFields(seen)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (c Condition) collectFields(seen map[string]struct{}) {
	switch c.Kind() {
	case KindLeaf:
		if c.Field != "" {
			seen[c.Field] = struct{}{}
		}
	case KindAnd:
		for _, child := range c.And {
			child.collectFields(seen)
		}
	case KindOr:
		for _, child := range c.Or {
			child.collectFields(seen)
		}
	}
}

// Walk visits every node depth first. Returning false from fn stops descent
// into the current node's children.
func (c Condition) Walk(fn func(path string, node Condition) bool) {
	c.walk("", fn)
}

func (c Condition) walk(path string, fn func(string, Condition) bool) {
	if !fn(path, c) {
		return
	}
	switch c.Kind() {
	case KindAnd:
		for idx, child := range c.And {
			child.walk(fmt.Sprintf("%s.and[%d]", path, idx), fn)
		}
	case KindOr:
		for idx, child := range c.Or {
			child.walk(fmt.Sprintf("%s.or[%d]", path, idx), fn)
		}
	}
}

// ErrConditionShape is returned when a JSON document cannot be mapped onto any
// Condition variant.
var ErrConditionShape = errors.New("model: unrecognised condition shape")

type leafJSON struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// UnmarshalJSON decodes the leaf, `and`, `or` and string shorthand forms.
func (c *Condition) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: null", ErrConditionShape)
	}

	if trimmed[0] == '"' {
		var src string
		if err := json.Unmarshal(trimmed, &src); err != nil {
			return err
		}
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("%w: empty expression", ErrConditionShape)
		}
		*c = Expression(src)
		return nil
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("%w: expected object or string, got %s", ErrConditionShape, shapePreview(trimmed))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}

	andRaw, hasAnd := raw["and"]
	orRaw, hasOr := raw["or"]
	_, hasField := raw["field"]
	_, hasOperator := raw["operator"]

	switch {
	case hasAnd && hasOr:
		return fmt.Errorf("%w: both and/or present", ErrConditionShape)
	case hasAnd:
		children, err := decodeChildren(andRaw, "and")
		if err != nil {
			return err
		}
		*c = All(children...)
		return nil
	case hasOr:
		children, err := decodeChildren(orRaw, "or")
		if err != nil {
			return err
		}
		*c = Any(children...)
		return nil
	case hasField || hasOperator:
		var leaf leafJSON
		if err := json.Unmarshal(trimmed, &leaf); err != nil {
			return fmt.Errorf("model: decode condition leaf: %w", err)
		}
		*c = Leaf(leaf.Field, leaf.Operator, leaf.Value)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrConditionShape, shapePreview(trimmed))
	}
}

func decodeChildren(raw json.RawMessage, key string) ([]Condition, error) {
	var children []Condition
	if err := json.Unmarshal(raw, &children); err != nil {
		return nil, fmt.Errorf("model: decode %q group: %w", key, err)
	}
	if children == nil {
		children = []Condition{}
	}
	return children, nil
}

func shapePreview(data []byte) string {
	const limit = 48
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}

// MarshalJSON emits the wire shape of the populated variant.
func (c Condition) MarshalJSON() ([]byte, error) {
	switch c.Kind() {
	case KindAnd:
		children := c.And
		if children == nil {
			children = []Condition{}
		}
		return json.Marshal(map[string][]Condition{"and": children})
	case KindOr:
		children := c.Or
		if children == nil {
			children = []Condition{}
		}
		return json.Marshal(map[string][]Condition{"or": children})
	case KindExpr:
		return json.Marshal(c.Expr)
	case KindLeaf:
		return json.Marshal(leafJSON{Field: c.Field, Operator: c.Operator, Value: c.Value})
	default:
		return nil, fmt.Errorf("%w: empty condition", ErrConditionShape)
	}
}

// UnmarshalYAML routes YAML documents through the JSON decoder so both formats
// share the same shape rules.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("model: convert yaml condition: %w", err)
	}
	return c.UnmarshalJSON(data)
}

// LogicRule gates an axis (visible, disabled, required) behind a condition.
type LogicRule struct {
	When Condition `json:"when" yaml:"when"`
}

// When is a shorthand for &LogicRule{When: cond}.
func When(cond Condition) *LogicRule {
	return &LogicRule{When: cond}
}

// FieldLogic groups the optional per-axis rules of a field or section. A nil
// rule means the axis default applies.
type FieldLogic struct {
	Visible  *LogicRule `json:"visible,omitempty" yaml:"visible,omitempty"`
	Disabled *LogicRule `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Required *LogicRule `json:"required,omitempty" yaml:"required,omitempty"`
}

// AxisRule pairs a configured logic rule with its axis name.
type AxisRule struct {
	Axis string
	Rule *LogicRule
}

// Rules returns the configured rules in visible, disabled, required order.
func (l FieldLogic) Rules() []AxisRule {
	out := make([]AxisRule, 0, 3)
	for _, axis := range []AxisRule{{"visible", l.Visible}, {"disabled", l.Disabled}, {"required", l.Required}} {
		if axis.Rule != nil {
			out = append(out, axis)
		}
	}
	return out
}
