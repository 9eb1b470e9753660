package validation

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formrules/pkg/diag"
	"github.com/goliatone/go-formrules/pkg/model"
)

func TestValidateCrossField(t *testing.T) {
	t.Parallel()

	rec := &diag.Recorder{}
	engine := New(WithDiagnostics(rec))
	data := map[string]any{
		"startDate":       "2026-01-10",
		"endDate":         "2026-01-05",
		"minPrice":        "10",
		"maxPrice":        25,
		"password":        "s3cret",
		"confirmPassword": "secret",
		"email":           "ana@example.com",
		"username":        "ana",
	}
	rules := []model.CrossFieldRule{
		{Field: "maxPrice", Operator: model.OpGreaterThan, CompareTo: "minPrice"},
		{Field: "confirmPassword", Operator: model.OpEquals, CompareTo: "password", ErrorMessage: "Passwords do not match"},
		{Field: "endDate", Operator: model.OpGreaterThan, CompareTo: "startDate"},
		{Field: "email", Operator: model.OpContains, CompareTo: "username"},
		{Field: "username", Operator: model.OpNotEquals, CompareTo: "email"},
		{Field: "middleName", Operator: model.OpEquals, CompareTo: "username"},
		{Field: "username", Operator: model.OpStartsWith, CompareTo: "email"},
	}

	got := engine.ValidateCrossField(rules, data)
	want := []model.ValidationResult{
		model.NewResult(),
		model.NewResult("Passwords do not match"),
		// Dates are not numeric, so the comparison fails closed.
		model.NewResult("endDate must be greater than startDate"),
		model.NewResult(),
		model.NewResult(),
		model.NewResult(),
		model.NewResult("Unsupported cross-field operator 'startsWith'"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cross-field results mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]diag.Kind{diag.KindInvalidOperator}, rec.Kinds()); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestCrossFieldTargetsDefaultToField(t *testing.T) {
	t.Parallel()

	rule := model.CrossFieldRule{Field: "endDate"}
	if diff := cmp.Diff([]string{"endDate"}, rule.Targets()); diff != "" {
		t.Fatalf("targets mismatch (-want +got):\n%s", diff)
	}
	rule.TargetFields = []string{"startDate", "endDate"}
	if diff := cmp.Diff([]string{"startDate", "endDate"}, rule.Targets()); diff != "" {
		t.Fatalf("targets mismatch (-want +got):\n%s", diff)
	}
}
