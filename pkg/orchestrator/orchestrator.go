package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formrules/internal/coerce"
	"github.com/goliatone/go-formrules/pkg/condition"
	"github.com/goliatone/go-formrules/pkg/logic"
	"github.com/goliatone/go-formrules/pkg/lookup"
	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/schema"
	"github.com/goliatone/go-formrules/pkg/validation"
)

var (
	// ErrUnknownField is returned when a schema has no field with the given name.
	ErrUnknownField = errors.New("orchestrator: unknown field")
	// ErrNoLookupService is returned by Options for lookup-backed fields when
	// no lookup service is configured.
	ErrNoLookupService = errors.New("orchestrator: no lookup service configured")
)

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithValidationEngine injects the validation engine.
func WithValidationEngine(engine *validation.Engine) Option {
	return func(o *Orchestrator) {
		if engine != nil {
			o.validation = engine
		}
	}
}

// WithLogicEngine injects the logic engine.
func WithLogicEngine(engine *logic.Engine) Option {
	return func(o *Orchestrator) {
		if engine != nil {
			o.logic = engine
		}
	}
}

// WithLookupService enables Options for lookup-backed fields.
func WithLookupService(service *lookup.Service) Option {
	return func(o *Orchestrator) {
		o.lookups = service
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConcurrency bounds how many fields validate at once. Defaults to
// GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// Orchestrator evaluates form schemas. It holds no per-call state and is safe
// for concurrent use.
type Orchestrator struct {
	validation  *validation.Engine
	logic       *logic.Engine
	lookups     *lookup.Service
	logger      *zap.Logger
	concurrency int
	overrides   map[overrideKey]model.EndpointConfig

	initialiseErr error
}

// New constructs an Orchestrator. Engines not supplied are created with their
// defaults.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:      zap.NewNop(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.validation == nil {
		o.validation = validation.New()
	}
	if o.logic == nil {
		o.logic = logic.New()
	}
	return o
}

// Validation returns the validation engine, for registering validators.
func (o *Orchestrator) Validation() *validation.Engine {
	return o.validation
}

// FormState is the resolved logic state of every field and section.
type FormState struct {
	Fields   map[string]logic.FieldState `json:"fields"`
	Sections map[string]logic.FieldState `json:"sections,omitempty"`
}

// State resolves visibility, required and disabled for every field. A field
// in a hidden section is hidden regardless of its own rule.
func (o *Orchestrator) State(form model.FormSchema, data map[string]any) FormState {
	state := FormState{Fields: make(map[string]logic.FieldState, len(form.Fields))}
	if len(form.Sections) > 0 {
		state.Sections = make(map[string]logic.FieldState, len(form.Sections))
		for _, section := range form.Sections {
			state.Sections[section.ID] = o.logic.ResolveSection(section, data)
		}
	}
	for _, field := range form.Fields {
		fs := o.logic.Resolve(field, data)
		if section, ok := state.Sections[field.Section]; ok && field.Section != "" {
			if !section.Visible {
				fs.Visible = false
				fs.Disabled = false
			} else if section.Disabled {
				fs.Disabled = true
			}
		}
		state.Fields[field.Name] = fs
	}
	return state
}

// Report is the outcome of validating a form. Fields holds only failing
// fields; Form holds messages that could not be attached to a visible field.
//
// Messages are trimmed and deduplicated per field in first-seen order, so a
// field whose blanket errorMessage replaced several failing checks reports
// it once. Call the validation engine directly to see one message per check.
type Report struct {
	Valid  bool                `json:"valid"`
	Fields map[string][]string `json:"fields"`
	Form   []string            `json:"form,omitempty"`
}

// ValidateOption adjusts a single Validate call.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	locale string
}

// WithLocale selects the message locale.
func WithLocale(locale string) ValidateOption {
	return func(c *validateConfig) {
		c.locale = strings.TrimSpace(locale)
	}
}

// Validate checks every visible field whose trigger matches. The submit
// trigger (and the empty trigger) validates every visible field and every
// cross-field rule; blur and change validate only fields configured for that
// trigger, and the cross-field rules touching them. Required is the static
// rule OR the dynamic one.
//
// The returned error is non-nil only when ctx ends before async validators
// finish.
func (o *Orchestrator) Validate(ctx context.Context, form model.FormSchema, data map[string]any, trigger model.Trigger, opts ...ValidateOption) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := validateConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if trigger == "" {
		trigger = model.TriggerSubmit
	}

	state := o.State(form, data)
	selected := make([]model.Field, 0, len(form.Fields))
	checked := make(map[string]struct{}, len(form.Fields))
	for _, field := range form.Fields {
		fs := state.Fields[field.Name]
		if !fs.Visible {
			continue
		}
		if trigger != model.TriggerSubmit && field.Validation.ValidateOn.Effective() != trigger {
			continue
		}
		selected = append(selected, field)
		checked[field.Name] = struct{}{}
	}

	results := make([]model.ValidationResult, len(selected))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.concurrency)
	for idx, field := range selected {
		idx, field := idx, field
		group.Go(func() error {
			rules := field.Validation
			rules.Required = state.Fields[field.Name].Required
			value, _ := condition.Lookup(data, field.Name)
			result, err := o.validation.ValidateFieldAsync(groupCtx, value, rules, validation.Context{
				Field:  field.Name,
				Data:   data,
				Locale: cfg.locale,
			})
			if err != nil {
				return fmt.Errorf("orchestrator: validate %s: %w", field.Name, err)
			}
			results[idx] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Fields: make(map[string][]string)}
	for idx, field := range selected {
		if msgs := normalizeMessages(results[idx].Errors); len(msgs) > 0 {
			report.Fields[field.Name] = msgs
		}
	}

	rules := form.CrossField
	if trigger != model.TriggerSubmit {
		rules = touching(rules, checked)
	}
	for idx, result := range o.validation.ValidateCrossField(rules, data) {
		if result.IsValid {
			continue
		}
		attached := false
		for _, target := range rules[idx].Targets() {
			if fs, ok := state.Fields[target]; ok && fs.Visible {
				report.Fields[target] = normalizeMessages(append(report.Fields[target], result.Errors...))
				attached = true
			}
		}
		if !attached {
			report.Form = append(report.Form, result.Errors...)
		}
	}
	report.Form = normalizeMessages(report.Form)
	report.Valid = len(report.Fields) == 0 && len(report.Form) == 0

	o.logger.Debug("form validated",
		zap.String("schema", form.ID),
		zap.String("trigger", string(trigger)),
		zap.Int("fields", len(selected)),
		zap.Int("failing", len(report.Fields)),
		zap.Bool("valid", report.Valid),
	)
	return report, nil
}

func touching(rules []model.CrossFieldRule, checked map[string]struct{}) []model.CrossFieldRule {
	out := make([]model.CrossFieldRule, 0, len(rules))
	for _, rule := range rules {
		_, a := checked[rule.Field]
		_, b := checked[rule.CompareTo]
		if a || b {
			out = append(out, rule)
		}
	}
	return out
}

// Options returns the choices for fieldName. Fields with static options
// return them as is; lookup-backed fields resolve through the lookup
// service with the binding's static params overlaid by its dynamic params,
// then any dynamic params the endpoint declares that the binding does not.
// A dynamic param whose source value is missing or empty is omitted.
func (o *Orchestrator) Options(ctx context.Context, form model.FormSchema, fieldName string, data map[string]any) ([]model.LookupOption, error) {
	field, ok := form.Field(fieldName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, fieldName)
	}
	if field.Lookup == nil {
		return field.Options, nil
	}
	if o.initialiseErr != nil {
		return nil, o.initialiseErr
	}
	if o.lookups == nil {
		return nil, ErrNoLookupService
	}

	binding := *field.Lookup
	if err := o.define(form, field, binding.Ref); err != nil {
		return nil, err
	}
	params := LookupParams(binding, field.Name, data)
	if def, ok := o.lookups.Definition(binding.Ref); ok && def.Endpoint != nil {
		for name, raw := range def.Endpoint.DynamicParams {
			if _, bound := binding.DynamicParams[name]; bound {
				continue
			}
			if _, exists := params[name]; exists {
				continue
			}
			if value, ok := resolveDynamic(raw, field.Name, data); ok {
				params[name] = value
			}
		}
	}
	return o.lookups.GetLookup(ctx, binding.Ref, params)
}

// LookupParams builds the params sent for binding: static params first, then
// resolved dynamic params.
func LookupParams(binding model.FieldLookup, fieldName string, data map[string]any) map[string]any {
	params := make(map[string]any, len(binding.Params)+len(binding.DynamicParams))
	for name, value := range binding.Params {
		params[name] = value
	}
	names := make([]string, 0, len(binding.DynamicParams))
	for name := range binding.DynamicParams {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if value, ok := resolveDynamic(binding.DynamicParams[name], fieldName, data); ok {
			params[name] = value
		} else {
			delete(params, name)
		}
	}
	return params
}

func resolveDynamic(raw, fieldName string, data map[string]any) (any, bool) {
	self, _ := condition.Lookup(data, fieldName)
	value, ok := schema.ResolveParam(raw, self, data)
	if !ok || coerce.IsEmpty(value) {
		return nil, false
	}
	return value, true
}

// define registers the schema's definition for ref with the lookup service
// the first time it is needed. An endpoint override fills in a definition
// that has no endpoint, whether it came from the schema or the service.
func (o *Orchestrator) define(form model.FormSchema, field model.Field, ref string) error {
	override, overridden := o.override(form.ID, field.Name)
	def, known := o.lookups.Definition(ref)
	if known && (def.Endpoint != nil || !overridden) {
		return nil
	}
	if !known {
		var declared bool
		def, declared = form.Lookup(ref)
		if !declared && !overridden {
			return nil
		}
		def.Ref = ref
	}
	if def.Endpoint == nil && overridden {
		endpoint := override
		def.Endpoint = &endpoint
	}
	if err := o.lookups.Define(def); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}

// normalizeMessages trims, drops blanks and removes duplicates while
// preserving order.
func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
