package expr

import (
	"encoding/json"
	"testing"

	"github.com/goliatone/go-formrules/pkg/model"
)

func compileJSON(t *testing.T, src string) string {
	t.Helper()

	cond, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q) returned error: %v", src, err)
	}
	data, err := json.Marshal(cond)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestCompileComparisons(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		`userType == "business"`: `{"field":"userType","operator":"equals","value":"business"}`,
		`count != 3`:             `{"field":"count","operator":"notEquals","value":3}`,
		`age > 17`:               `{"field":"age","operator":"greaterThan","value":17}`,
		`age<65`:                 `{"field":"age","operator":"lessThan","value":65}`,
		`name ~= 'an'`:           `{"field":"name","operator":"contains","value":"an"}`,
		`code ^= "RS"`:           `{"field":"code","operator":"startsWith","value":"RS"}`,
		`enabled == true`:        `{"field":"enabled","operator":"equals","value":true}`,
		`status == draft`:        `{"field":"status","operator":"equals","value":"draft"}`,
		`offset > -2.5`:          `{"field":"offset","operator":"greaterThan","value":-2.5}`,
	}
	for src, want := range cases {
		if got := compileJSON(t, src); got != want {
			t.Fatalf("Compile(%q):\n got %s\nwant %s", src, got, want)
		}
	}
}

func TestCompileEmptiness(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		`guardian`:         `{"field":"guardian","operator":"isNotEmpty"}`,
		`!guardian`:        `{"field":"guardian","operator":"isEmpty"}`,
		`guardian == null`: `{"field":"guardian","operator":"isEmpty"}`,
		`guardian != nil`:  `{"field":"guardian","operator":"isNotEmpty"}`,
	}
	for src, want := range cases {
		if got := compileJSON(t, src); got != want {
			t.Fatalf("Compile(%q):\n got %s\nwant %s", src, got, want)
		}
	}
}

func TestCompileComposition(t *testing.T) {
	t.Parallel()

	cond, err := Compile(`a == 1 && b == 2 && c == 3 || (d && !e)`)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if cond.Kind() != model.KindOr || len(cond.Or) != 2 {
		t.Fatalf("expected top-level or with 2 children, got %#v", cond)
	}
	if first := cond.Or[0]; first.Kind() != model.KindAnd || len(first.And) != 3 {
		t.Fatalf("expected flattened and with 3 children, got %#v", first)
	}
	if second := cond.Or[1]; second.Kind() != model.KindAnd || len(second.And) != 2 {
		t.Fatalf("expected parenthesised and, got %#v", second)
	}
}

func TestCompileEscapedStrings(t *testing.T) {
	t.Parallel()

	cond, err := Compile(`title == "say \"hi\""`)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if cond.Value != `say "hi"` {
		t.Fatalf("unexpected value %#v", cond.Value)
	}

	cond, err = Compile(`title == 'it\'s'`)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if cond.Value != "it's" {
		t.Fatalf("unexpected value %#v", cond.Value)
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		"",
		"a = 1",
		"a & b",
		"a | b",
		`a == "open`,
		"(a == 1",
		"a ==",
		"!(a && b)",
		"a > null",
		"a b",
		"== 1",
	} {
		if _, err := Compile(src); err == nil {
			t.Fatalf("Compile(%q) expected error", src)
		}
	}
}
