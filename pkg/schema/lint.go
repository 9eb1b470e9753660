package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-formrules/pkg/condition/expr"
	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/validation"
)

// Issue is a single lint finding. Path locates the offending node in the
// same dotted form diagnostics use.
type Issue struct {
	Path    string `json:"path"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// ValidatorSet reports whether a custom validator is registered.
// *validation.Registry satisfies it.
type ValidatorSet interface {
	Has(name string) bool
}

// LintOption configures Lint.
type LintOption func(*linter)

// WithValidators enables checks of custom rule names against set.
func WithValidators(set ValidatorSet) LintOption {
	return func(l *linter) {
		l.validators = set
	}
}

// WithKnownLookups declares lookup refs served outside the schema, for
// example by an in-process transport.
func WithKnownLookups(refs ...string) LintOption {
	return func(l *linter) {
		for _, ref := range refs {
			if ref = strings.TrimSpace(ref); ref != "" {
				l.lookups[ref] = struct{}{}
			}
		}
	}
}

type linter struct {
	schema     model.FormSchema
	validators ValidatorSet
	fields     map[string]struct{}
	sections   map[string]struct{}
	lookups    map[string]struct{}
	issues     []Issue
}

// Lint reports authoring mistakes that decode cleanly but would evaluate
// fail-closed or never fire at runtime. Issues are ordered by path.
func Lint(schema model.FormSchema, opts ...LintOption) []Issue {
	l := &linter{
		schema:   schema,
		fields:   make(map[string]struct{}, len(schema.Fields)),
		sections: make(map[string]struct{}, len(schema.Sections)),
		lookups:  make(map[string]struct{}, len(schema.Lookups)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	if schema.ID == "" {
		l.add("id", "", "schema id is empty")
	}
	for _, def := range schema.Lookups {
		l.lookups[def.Ref] = struct{}{}
	}
	for idx, section := range schema.Sections {
		path := fmt.Sprintf("sections[%d]", idx)
		if section.ID == "" {
			l.add(path, "", "section id is empty")
			continue
		}
		if _, dup := l.sections[section.ID]; dup {
			l.add(path, "", fmt.Sprintf("duplicate section id %q", section.ID))
		}
		l.sections[section.ID] = struct{}{}
	}
	for idx, field := range schema.Fields {
		if field.Name == "" {
			l.add(fmt.Sprintf("fields[%d]", idx), "", "field name is empty")
			continue
		}
		if _, dup := l.fields[field.Name]; dup {
			l.add("fields."+field.Name, field.Name, "duplicate field name")
		}
		l.fields[field.Name] = struct{}{}
	}

	for _, section := range schema.Sections {
		if section.ID != "" {
			l.logic("sections."+section.ID+".logic", "", section.Logic)
		}
	}
	for _, field := range schema.Fields {
		if field.Name != "" {
			l.field(field)
		}
	}
	for idx, rule := range schema.CrossField {
		l.crossField(idx, rule)
	}

	sort.SliceStable(l.issues, func(i, j int) bool {
		return l.issues[i].Path < l.issues[j].Path
	})
	return l.issues
}

func (l *linter) add(path, field, message string) {
	l.issues = append(l.issues, Issue{Path: path, Field: field, Message: message})
}

func (l *linter) field(field model.Field) {
	base := "fields." + field.Name
	if field.Section != "" {
		if _, ok := l.sections[field.Section]; !ok {
			l.add(base+".section", field.Name, fmt.Sprintf("section %q is not declared", field.Section))
		}
	}
	l.rules(base+".validation", field.Name, field.Validation)
	l.logic(base+".logic", field.Name, field.Logic)

	if field.Type == model.FieldTypeLookup && field.Lookup == nil {
		l.add(base+".lookup", field.Name, "lookup field has no lookup binding")
	}
	if field.Lookup != nil {
		l.lookup(base+".lookup", field.Name, *field.Lookup)
	}
}

func (l *linter) rules(path, field string, rules model.ValidationRules) {
	if rules.Pattern != "" {
		if _, err := validation.CompilePattern(rules.Pattern); err != nil {
			l.add(path+".pattern", field, fmt.Sprintf("invalid pattern %q", rules.Pattern))
		}
	}
	if rules.MinLength != nil && *rules.MinLength < 0 {
		l.add(path+".minLength", field, "minLength is negative")
	}
	if rules.MaxLength != nil && *rules.MaxLength < 0 {
		l.add(path+".maxLength", field, "maxLength is negative")
	}
	if rules.MinLength != nil && rules.MaxLength != nil && *rules.MinLength > *rules.MaxLength {
		l.add(path+".minLength", field, fmt.Sprintf("minLength %d exceeds maxLength %d", *rules.MinLength, *rules.MaxLength))
	}
	if rules.Min != nil && rules.Max != nil && *rules.Min > *rules.Max {
		l.add(path+".min", field, fmt.Sprintf("min %v exceeds max %v", *rules.Min, *rules.Max))
	}
	if !rules.ValidateOn.Valid() {
		l.add(path+".validateOn", field, fmt.Sprintf("unknown trigger %q", rules.ValidateOn))
	}
	if rules.Custom != nil {
		name := strings.TrimSpace(rules.Custom.Rule)
		switch {
		case name == "":
			l.add(path+".custom.rule", field, "custom rule name is empty")
		case l.validators != nil && !l.validators.Has(name):
			l.add(path+".custom.rule", field, fmt.Sprintf("validator %q is not registered", name))
		}
	}
}

func (l *linter) logic(path, field string, logic model.FieldLogic) {
	for _, axis := range logic.Rules() {
		l.condition(path+"."+axis.Axis+".when", field, axis.Rule.When)
	}
}

func (l *linter) condition(path, field string, cond model.Condition) {
	cond.Walk(func(suffix string, node model.Condition) bool {
		at := path + suffix
		switch node.Kind() {
		case model.KindLeaf:
			l.leaf(at, field, node)
		case model.KindExpr:
			compiled, err := expr.Compile(node.Expr)
			if err != nil {
				l.add(at, field, fmt.Sprintf("invalid expression: %v", err))
				return false
			}
			l.condition(at, field, compiled)
		case model.KindInvalid:
			l.add(at, field, "condition has no recognised shape")
		}
		return true
	})
}

func (l *linter) leaf(path, field string, node model.Condition) {
	if strings.TrimSpace(node.Field) == "" {
		l.add(path+".field", field, "condition field is empty")
	} else if !l.knownField(node.Field) {
		l.add(path+".field", field, fmt.Sprintf("condition references unknown field %q", node.Field))
	}
	if !node.Operator.Known() {
		l.add(path+".operator", field, fmt.Sprintf("unknown operator %q", node.Operator))
	}
}

// knownField accepts a declared field or a dotted path rooted at one.
func (l *linter) knownField(name string) bool {
	if _, ok := l.fields[name]; ok {
		return true
	}
	if root, _, ok := strings.Cut(name, "."); ok {
		_, known := l.fields[root]
		return known
	}
	return false
}

func (l *linter) lookup(path, field string, binding model.FieldLookup) {
	if binding.Ref == "" {
		l.add(path+".ref", field, "lookup ref is empty")
		return
	}
	if _, ok := l.lookups[binding.Ref]; !ok {
		l.add(path+".ref", field, fmt.Sprintf("lookup %q is not declared", binding.Ref))
	}
	names := make([]string, 0, len(binding.DynamicParams))
	for name := range binding.DynamicParams {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ref, ok := ParamReference(binding.DynamicParams[name])
		if !ok {
			l.add(path+".dynamicParams."+name, field, "dynamic param must be a {{field}} reference")
			continue
		}
		if ref != SelfReference && !l.knownField(ref) {
			l.add(path+".dynamicParams."+name, field, fmt.Sprintf("dynamic param references unknown field %q", ref))
		}
	}
}

func (l *linter) crossField(idx int, rule model.CrossFieldRule) {
	path := fmt.Sprintf("crossField[%d]", idx)
	if !model.CrossFieldOperator(rule.Operator) {
		l.add(path+".operator", rule.Field, fmt.Sprintf("unsupported cross-field operator %q", rule.Operator))
	}
	for _, ref := range []struct{ key, name string }{{"field", rule.Field}, {"compareTo", rule.CompareTo}} {
		switch {
		case ref.name == "":
			l.add(path+"."+ref.key, rule.Field, ref.key+" is empty")
		case !l.knownField(ref.name):
			l.add(path+"."+ref.key, rule.Field, fmt.Sprintf("references unknown field %q", ref.name))
		}
	}
	for tIdx, target := range rule.TargetFields {
		if !l.knownField(target) {
			l.add(fmt.Sprintf("%s.targetFields[%d]", path, tIdx), rule.Field, fmt.Sprintf("references unknown field %q", target))
		}
	}
}
