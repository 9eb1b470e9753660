package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/goliatone/go-formrules/pkg/logic"
	"github.com/goliatone/go-formrules/pkg/lookup"
	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/validation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func contactForm() model.FormSchema {
	return model.FormSchema{
		ID: "contact",
		Sections: []model.Section{
			{ID: "company", Logic: model.FieldLogic{Visible: model.When(model.Leaf("kind", model.OpEquals, "business"))}},
		},
		Fields: []model.Field{
			{Name: "kind", Type: model.FieldTypeSelect, Validation: model.ValidationRules{Required: true},
				Options: []model.LookupOption{{Value: "person", Label: "Person"}, {Value: "business", Label: "Business"}}},
			{Name: "email", Type: model.FieldTypeEmail, Validation: model.ValidationRules{Required: true, Email: true, ValidateOn: model.TriggerBlur}},
			{Name: "vat", Section: "company", Validation: model.ValidationRules{Required: true}},
			{Name: "phone", Logic: model.FieldLogic{Required: model.When(model.Leaf("kind", model.OpEquals, "person"))},
				Validation: model.ValidationRules{ValidateOn: model.TriggerChange}},
			{Name: "start", Type: model.FieldTypeNumber},
			{Name: "end", Type: model.FieldTypeNumber},
		},
		CrossField: []model.CrossFieldRule{
			{Field: "end", Operator: model.OpGreaterThan, CompareTo: "start", ErrorMessage: "End must follow start"},
		},
	}
}

func TestStateHidesFieldsInHiddenSections(t *testing.T) {
	t.Parallel()

	o := New()
	state := o.State(contactForm(), map[string]any{"kind": "person"})

	assert.False(t, state.Sections["company"].Visible)
	assert.Equal(t, logic.FieldState{Visible: false, Required: true}, state.Fields["vat"])
	assert.Equal(t, logic.FieldState{Visible: true, Required: true}, state.Fields["phone"])

	state = o.State(contactForm(), map[string]any{"kind": "business"})
	assert.True(t, state.Fields["vat"].Visible)
	assert.False(t, state.Fields["phone"].Required)
}

func TestValidateSubmit(t *testing.T) {
	t.Parallel()

	o := New()
	report, err := o.Validate(context.Background(), contactForm(), map[string]any{
		"kind":  "person",
		"email": "not-an-email",
		"start": 10,
		"end":   5,
	}, model.TriggerSubmit)
	require.NoError(t, err)

	assert.False(t, report.Valid)
	assert.Contains(t, report.Fields, "email")
	assert.Contains(t, report.Fields, "phone")
	assert.NotContains(t, report.Fields, "vat", "hidden fields are not validated")
	assert.NotContains(t, report.Fields, "kind")
	assert.Equal(t, []string{"End must follow start"}, report.Fields["end"])
	assert.Empty(t, report.Form)
}

func TestValidateEmptyTriggerMeansSubmit(t *testing.T) {
	t.Parallel()

	o := New()
	data := map[string]any{"kind": "business"}
	submit, err := o.Validate(context.Background(), contactForm(), data, model.TriggerSubmit)
	require.NoError(t, err)
	empty, err := o.Validate(context.Background(), contactForm(), data, "")
	require.NoError(t, err)
	assert.Equal(t, submit, empty)
	assert.Contains(t, empty.Fields, "vat")
}

func TestValidateTriggerSelectsFields(t *testing.T) {
	t.Parallel()

	o := New()
	data := map[string]any{"kind": "person", "start": 10, "end": 5}

	blur, err := o.Validate(context.Background(), contactForm(), data, model.TriggerBlur)
	require.NoError(t, err)
	assert.Contains(t, blur.Fields, "email")
	assert.NotContains(t, blur.Fields, "phone", "phone validates on change")
	// kind, start and end default to blur, so the cross-field rule is touched.
	assert.Equal(t, []string{"End must follow start"}, blur.Fields["end"])

	change, err := o.Validate(context.Background(), contactForm(), data, model.TriggerChange)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"phone": {"This field is required"}}, change.Fields)
}

func TestValidateCrossFieldFallsBackToForm(t *testing.T) {
	t.Parallel()

	form := contactForm()
	form.CrossField = []model.CrossFieldRule{
		{Field: "end", Operator: model.OpGreaterThan, CompareTo: "start", TargetFields: []string{"vat"}, ErrorMessage: "Bad range"},
		{Field: "end", Operator: model.OpGreaterThan, CompareTo: "start", TargetFields: []string{"vat"}, ErrorMessage: " Bad range "},
	}
	report, err := New().Validate(context.Background(), form, map[string]any{
		"kind": "person", "email": "a@b.co", "phone": "+1 555 0100", "start": 3, "end": 1,
	}, model.TriggerSubmit)
	require.NoError(t, err)
	assert.Empty(t, report.Fields)
	assert.Equal(t, []string{"Bad range"}, report.Form)
	assert.False(t, report.Valid)
}

func TestValidatePasses(t *testing.T) {
	t.Parallel()

	report, err := New().Validate(context.Background(), contactForm(), map[string]any{
		"kind": "business", "email": "a@b.co", "vat": "ES123", "start": 1, "end": 2,
	}, model.TriggerSubmit)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Fields)
}

func TestValidateRunsAsyncValidators(t *testing.T) {
	t.Parallel()

	engine := validation.New()
	var calls atomic.Int32
	engine.RegisterAsyncValidator("unique", func(ctx context.Context, value any, _ validation.Context) (bool, error) {
		calls.Add(1)
		return value != "taken", nil
	})
	form := model.FormSchema{
		ID: "signup",
		Fields: []model.Field{
			{Name: "username", Validation: model.ValidationRules{Custom: &model.CustomRule{Rule: "unique"}, ErrorMessage: "Taken"}},
			{Name: "alias", Validation: model.ValidationRules{Custom: &model.CustomRule{Rule: "unique"}, ErrorMessage: "Taken"}},
		},
	}
	o := New(WithValidationEngine(engine), WithConcurrency(1))
	report, err := o.Validate(context.Background(), form, map[string]any{"username": "taken", "alias": "free"}, model.TriggerSubmit)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"username": {"Taken"}}, report.Fields)
	assert.EqualValues(t, 2, calls.Load())
}

func TestValidateCanceled(t *testing.T) {
	t.Parallel()

	engine := validation.New()
	engine.RegisterAsyncValidator("slow", func(ctx context.Context, _ any, _ validation.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})
	form := model.FormSchema{ID: "f", Fields: []model.Field{
		{Name: "a", Validation: model.ValidationRules{Custom: &model.CustomRule{Rule: "slow"}}},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(WithValidationEngine(engine)).Validate(ctx, form, map[string]any{"a": "x"}, model.TriggerSubmit)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOptionsStaticAndUnknown(t *testing.T) {
	t.Parallel()

	o := New()
	opts, err := o.Options(context.Background(), contactForm(), "kind", nil)
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = o.Options(context.Background(), contactForm(), "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func lookupForm() model.FormSchema {
	return model.FormSchema{
		ID: "address",
		Fields: []model.Field{
			{Name: "country"},
			{Name: "city", Type: model.FieldTypeLookup, Lookup: &model.FieldLookup{
				Ref:           "cities",
				Params:        map[string]any{"limit": 10, "country": "fallback"},
				DynamicParams: map[string]string{"country": "{{country}}", "q": "{{self}}"},
			}},
		},
		Lookups: []model.LookupDefinition{{Ref: "cities", TTL: model.IntPtr(60)}},
	}
}

func TestOptionsResolvesDynamicParams(t *testing.T) {
	t.Parallel()

	var got []map[string]any
	transport := lookup.TransportFunc(func(_ context.Context, req lookup.Request) ([]model.LookupOption, error) {
		got = append(got, req.Params)
		return []model.LookupOption{{Value: "mad", Label: "Madrid"}}, nil
	})
	service, err := lookup.New(transport)
	require.NoError(t, err)

	o := New(WithLookupService(service))
	opts, err := o.Options(context.Background(), lookupForm(), "city", map[string]any{"country": "ES", "city": "ma"})
	require.NoError(t, err)
	assert.Equal(t, []model.LookupOption{{Value: "mad", Label: "Madrid"}}, opts)

	_, err = o.Options(context.Background(), lookupForm(), "city", map[string]any{"city": ""})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, map[string]any{"limit": 10, "country": "ES", "q": "ma"}, got[0])
	assert.Equal(t, map[string]any{"limit": 10}, got[1], "empty dynamic sources are omitted")

	def, ok := service.Definition("cities")
	require.True(t, ok)
	assert.Equal(t, 60, def.TTLSeconds())
}

func TestOptionsRequiresService(t *testing.T) {
	t.Parallel()

	_, err := New().Options(context.Background(), lookupForm(), "city", nil)
	assert.ErrorIs(t, err, ErrNoLookupService)
}

func TestOptionsAppliesEndpointOverride(t *testing.T) {
	t.Parallel()

	var endpoint *model.EndpointConfig
	var params map[string]any
	transport := lookup.TransportFunc(func(_ context.Context, req lookup.Request) ([]model.LookupOption, error) {
		endpoint = req.Definition.Endpoint
		params = req.Params
		return nil, nil
	})
	service, err := lookup.New(transport)
	require.NoError(t, err)

	form := lookupForm()
	form.Fields[1].Lookup.DynamicParams = nil
	o := New(WithLookupService(service), WithEndpointOverrides([]EndpointOverride{{
		SchemaID:  "address",
		FieldName: "city",
		Endpoint: model.EndpointConfig{
			URL:           "https://api.example.com/cities",
			DynamicParams: map[string]string{"country": "{{country}}"},
		},
	}}))
	_, err = o.Options(context.Background(), form, "city", map[string]any{"country": "PT"})
	require.NoError(t, err)
	require.NotNil(t, endpoint)
	assert.Equal(t, "https://api.example.com/cities", endpoint.URL)
	// The binding's static country wins over the endpoint's dynamic one.
	assert.Equal(t, map[string]any{"limit": 10, "country": "fallback"}, params)
}

func TestInvalidEndpointOverrideSurfaces(t *testing.T) {
	t.Parallel()

	service, err := lookup.New(lookup.NewMux())
	require.NoError(t, err)
	o := New(WithLookupService(service), WithEndpointOverrides([]EndpointOverride{{SchemaID: "address"}}))
	_, err = o.Options(context.Background(), lookupForm(), "city", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing field name")
}

func TestValidateCollapsesRepeatedOverride(t *testing.T) {
	t.Parallel()

	rules := model.ValidationRules{MinLength: model.IntPtr(5), Email: true, ErrorMessage: "Bad"}
	direct := validation.New().ValidateField("abc", rules, validation.Context{Field: "code"})
	require.Equal(t, []string{"Bad", "Bad"}, direct.Errors)

	form := model.FormSchema{ID: "codes", Fields: []model.Field{{Name: "code", Validation: rules}}}
	report, err := New().Validate(context.Background(), form, map[string]any{"code": "abc"}, model.TriggerSubmit)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, map[string][]string{"code": {"Bad"}}, report.Fields)
}

func TestNormalizeMessages(t *testing.T) {
	t.Parallel()

	assert.Nil(t, normalizeMessages(nil))
	assert.Nil(t, normalizeMessages([]string{" ", ""}))
	assert.Equal(t, []string{"a", "b"}, normalizeMessages([]string{" a", "b", "a ", ""}))
}
