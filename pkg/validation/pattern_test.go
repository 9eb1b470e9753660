package validation

import (
	"testing"

	"github.com/goliatone/go-formrules/pkg/diag"
	"github.com/goliatone/go-formrules/pkg/model"
)

func TestValidateFieldJavaScriptPatterns(t *testing.T) {
	t.Parallel()

	rec := &diag.Recorder{}
	engine := New(WithDiagnostics(rec))
	cases := []struct {
		pattern string
		value   string
		valid   bool
	}{
		{pattern: `^(?=.*[0-9]).+$`, value: "abc", valid: false},
		{pattern: `^(?=.*[0-9]).+$`, value: "abc1", valid: true},
		{pattern: `^(?!admin$).+`, value: "admin", valid: false},
		{pattern: `^(\w)\1$`, value: "aa", valid: true},
		{pattern: `^(\w)\1$`, value: "ab", valid: false},
	}
	for _, tc := range cases {
		rules := model.ValidationRules{Pattern: tc.pattern}
		got := engine.ValidateField(tc.value, rules, Context{})
		if tc.valid {
			assertResult(t, got)
			continue
		}
		assertResult(t, got, "Invalid format")
	}
	if kinds := rec.Kinds(); len(kinds) != 0 {
		t.Fatalf("valid patterns reported diagnostics: %v", kinds)
	}
}

func TestCompilePattern(t *testing.T) {
	t.Parallel()

	re, err := CompilePattern(`^\d{3}$`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if re.MatchTimeout != PatternMatchTimeout {
		t.Fatalf("expected match timeout %v, got %v", PatternMatchTimeout, re.MatchTimeout)
	}
	for _, src := range []string{"(", "(["} {
		if _, err := CompilePattern(src); err == nil {
			t.Fatalf("expected %q to fail", src)
		}
	}
}
