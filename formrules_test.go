package formrules

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateLoadsSchema(t *testing.T) {
	t.Parallel()

	report, err := Validate(context.Background(), "pkg/schema/testdata/contact.json", map[string]any{
		"kind":  "person",
		"email": "nope",
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.Valid {
		t.Fatalf("expected invalid report")
	}
	want := map[string][]string{"email": {"Enter a valid email address"}}
	if diff := cmp.Diff(want, report.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateMissingSchema(t *testing.T) {
	t.Parallel()

	if _, err := Validate(context.Background(), "pkg/schema/testdata/missing.json", nil); err == nil {
		t.Fatalf("expected error for missing schema")
	}
}

func TestParseAndImport(t *testing.T) {
	t.Parallel()

	form, err := ParseSchema([]byte(`{"id":"inline","fields":[{"name":"a"}]}`), "inline")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if form.ID != "inline" || len(form.Fields) != 1 {
		t.Fatalf("unexpected schema %+v", form)
	}

	raw, err := os.ReadFile("pkg/schema/openapi/testdata/contacts.yaml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	imported, err := ImportOpenAPI(context.Background(), raw, "createContact")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, ok := imported.Field("email"); !ok {
		t.Fatalf("expected email field, got %+v", imported.Fields)
	}
}
