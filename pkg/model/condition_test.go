package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestConditionUnmarshalJSON_Variants(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
  "and": [
    { "field": "userType", "operator": "equals", "value": "business" },
    { "or": [
      { "field": "age", "operator": "greaterThan", "value": 18 },
      { "field": "guardian", "operator": "isNotEmpty" }
    ] },
    "country == \"RS\""
  ]
}`)

	var cond Condition
	if err := json.Unmarshal(raw, &cond); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cond.Kind() != KindAnd {
		t.Fatalf("expected and group, got %s", cond.Kind())
	}
	if len(cond.And) != 3 {
		t.Fatalf("expected 3 children, got %d", len(cond.And))
	}
	if got := cond.And[0]; got.Kind() != KindLeaf || got.Field != "userType" || got.Operator != OpEquals || got.Value != "business" {
		t.Fatalf("unexpected leaf: %#v", got)
	}
	if got := cond.And[1]; got.Kind() != KindOr || len(got.Or) != 2 {
		t.Fatalf("unexpected or group: %#v", got)
	}
	if got := cond.And[2]; got.Kind() != KindExpr || got.Expr != `country == "RS"` {
		t.Fatalf("unexpected expression: %#v", got)
	}

	if diff := cmp.Diff([]string{"age", "guardian", "userType"}, cond.Fields()); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestConditionUnmarshalJSON_EmptyGroups(t *testing.T) {
	t.Parallel()

	var and Condition
	if err := json.Unmarshal([]byte(`{"and": []}`), &and); err != nil {
		t.Fatalf("unmarshal and: %v", err)
	}
	if and.Kind() != KindAnd || and.And == nil || len(and.And) != 0 {
		t.Fatalf("expected empty and group, got %#v", and)
	}

	var or Condition
	if err := json.Unmarshal([]byte(`{"or": []}`), &or); err != nil {
		t.Fatalf("unmarshal or: %v", err)
	}
	if or.Kind() != KindOr || len(or.Or) != 0 {
		t.Fatalf("expected empty or group, got %#v", or)
	}
}

func TestConditionUnmarshalJSON_RejectsUnknownShapes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"both groups": `{"and": [], "or": []}`,
		"no keys":     `{"foo": 1}`,
		"number":      `42`,
		"null":        `null`,
		"blank expr":  `"  "`,
	}
	for name, raw := range cases {
		var cond Condition
		err := json.Unmarshal([]byte(raw), &cond)
		if !errors.Is(err, ErrConditionShape) {
			t.Fatalf("%s: expected ErrConditionShape, got %v", name, err)
		}
	}
}

func TestConditionUnmarshalJSON_KeepsUnknownOperator(t *testing.T) {
	t.Parallel()

	var cond Condition
	if err := json.Unmarshal([]byte(`{"field": "a", "operator": "matches", "value": "x"}`), &cond); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cond.Kind() != KindLeaf || cond.Operator.Known() {
		t.Fatalf("expected leaf with unknown operator, got %#v", cond)
	}
}

func TestConditionMarshalJSON_Shapes(t *testing.T) {
	t.Parallel()

	cond := All(
		Leaf("userType", OpEquals, "business"),
		Any(),
		Expression("enabled"),
	)
	data, err := json.Marshal(cond)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"and":[{"field":"userType","operator":"equals","value":"business"},{"or":[]},"enabled"]}`
	if string(data) != want {
		t.Fatalf("unexpected json:\n got %s\nwant %s", data, want)
	}

	if _, err := json.Marshal(Condition{}); !errors.Is(err, ErrConditionShape) {
		t.Fatalf("expected error for empty condition, got %v", err)
	}
}

func TestLogicRuleUnmarshalYAML(t *testing.T) {
	t.Parallel()

	raw := []byte(`
visible:
  when:
    field: userType
    operator: equals
    value: business
required:
  when: "age > 17"
`)
	var logic FieldLogic
	if err := yaml.Unmarshal(raw, &logic); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}
	if logic.Visible == nil || logic.Visible.When.Field != "userType" {
		t.Fatalf("unexpected visible rule: %#v", logic.Visible)
	}
	if logic.Required == nil || logic.Required.When.Kind() != KindExpr {
		t.Fatalf("unexpected required rule: %#v", logic.Required)
	}
	if logic.Disabled != nil {
		t.Fatalf("expected no disabled rule")
	}
}

func TestValidationResultInvariant(t *testing.T) {
	t.Parallel()

	ok := NewResult()
	if !ok.IsValid || ok.Errors == nil || len(ok.Errors) != 0 {
		t.Fatalf("unexpected valid result: %#v", ok)
	}

	bad := NewResult("one", "two")
	if bad.IsValid || len(bad.Errors) != 2 {
		t.Fatalf("unexpected invalid result: %#v", bad)
	}

	data, err := json.Marshal(ValidationResult{IsValid: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"isValid":true,"errors":[]}` {
		t.Fatalf("unexpected json: %s", data)
	}
}

func TestLookupOptionExtraRoundTrip(t *testing.T) {
	t.Parallel()

	var opt LookupOption
	if err := json.Unmarshal([]byte(`{"value":"bg","label":"Belgrade","population":1700000}`), &opt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if opt.Value != "bg" || opt.Label != "Belgrade" {
		t.Fatalf("unexpected option: %#v", opt)
	}
	if diff := cmp.Diff(map[string]any{"population": float64(1700000)}, opt.Extra); diff != "" {
		t.Fatalf("extra mismatch (-want +got):\n%s", diff)
	}

	data, err := json.Marshal(opt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"label":"Belgrade","population":1700000,"value":"bg"}` {
		t.Fatalf("unexpected json: %s", data)
	}
}
