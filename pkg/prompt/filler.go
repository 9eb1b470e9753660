// Package prompt fills a form schema interactively. Fields are asked in
// schema order and the logic state is recomputed after every answer, so a
// field that becomes hidden is never asked and one that becomes required is
// enforced.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formrules/internal/coerce"
	"github.com/goliatone/go-formrules/pkg/condition"
	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/orchestrator"
	"github.com/goliatone/go-formrules/pkg/validation"
)

// skipOption is offered first in selects for optional fields.
const skipOption = "(skip)"

// Option configures a Filler.
type Option func(*Filler)

// WithPromptDriver overrides the survey driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithOrchestrator supplies the orchestrator used for logic state,
// validation and lookup options.
func WithOrchestrator(o *orchestrator.Orchestrator) Option {
	return func(f *Filler) {
		if o != nil {
			f.orchestrator = o
		}
	}
}

// WithLocale selects the validation message locale.
func WithLocale(locale string) Option {
	return func(f *Filler) {
		f.locale = strings.TrimSpace(locale)
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Filler) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Filler prompts for each field of a schema.
type Filler struct {
	driver       PromptDriver
	orchestrator *orchestrator.Orchestrator
	locale       string
	logger       *zap.Logger
}

// New constructs a Filler with the survey driver writing to stderr and a
// default orchestrator.
func New(opts ...Option) *Filler {
	f := &Filler{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver(nil)
	}
	if f.orchestrator == nil {
		f.orchestrator = orchestrator.New()
	}
	return f
}

// Fill asks for every visible, enabled field and returns the collected data,
// starting from prefill. Prefilled values become prompt defaults. Aborting
// the prompt returns ErrAborted.
func (f *Filler) Fill(ctx context.Context, form model.FormSchema, prefill map[string]any) (map[string]any, error) {
	if ctx == nil {
		return nil, errors.New("prompt: context is required")
	}
	if f.driver == nil {
		return nil, ErrNoDriver
	}
	values := make(map[string]any, len(prefill))
	for key, value := range prefill {
		values[key] = value
	}

	for _, field := range form.Fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state := f.orchestrator.State(form, values)
		fs := state.Fields[field.Name]
		if !fs.Visible || fs.Disabled {
			f.logger.Debug("field skipped", zap.String("field", field.Name), zap.Bool("visible", fs.Visible))
			continue
		}
		rules := field.Validation
		rules.Required = fs.Required
		if err := f.promptField(ctx, form, field, rules, values); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func (f *Filler) promptField(ctx context.Context, form model.FormSchema, field model.Field, rules model.ValidationRules, values map[string]any) error {
	switch field.Type {
	case model.FieldTypeCheckbox:
		return f.promptConfirm(ctx, field, rules, values)
	case model.FieldTypeSelect, model.FieldTypeLookup:
		options, err := f.orchestrator.Options(ctx, form, field.Name, values)
		switch {
		case errors.Is(err, orchestrator.ErrNoLookupService):
			f.logger.Debug("no lookup service, asking free text", zap.String("field", field.Name))
		case err != nil:
			return fmt.Errorf("prompt: options for %s: %w", field.Name, err)
		}
		if len(options) > 0 {
			return f.promptSelect(ctx, field, rules, options, values)
		}
	}
	return f.promptText(ctx, field, rules, values)
}

// check runs the sync validation engine against value as if it were set.
func (f *Filler) check(field model.Field, rules model.ValidationRules, value any, values map[string]any) error {
	data := make(map[string]any, len(values)+1)
	for key, v := range values {
		data[key] = v
	}
	data[field.Name] = value
	result := f.orchestrator.Validation().ValidateField(value, rules, validation.Context{
		Field:  field.Name,
		Data:   data,
		Locale: f.locale,
	})
	if result.IsValid {
		return nil
	}
	return errors.New(strings.Join(result.Errors, "; "))
}

func (f *Filler) promptText(ctx context.Context, field model.Field, rules model.ValidationRules, values map[string]any) error {
	label := field.DisplayLabel()
	defaultVal := defaultString(values, field)
	numeric := field.Type == model.FieldTypeNumber

	parse := func(raw string) (any, error) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return nil, nil
		}
		if numeric {
			n, err := strconv.ParseFloat(trimmed, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", trimmed)
			}
			return n, nil
		}
		return raw, nil
	}
	validator := func(raw string) error {
		value, err := parse(raw)
		if err != nil {
			return err
		}
		return f.check(field, rules, value, values)
	}

	for {
		var (
			response string
			err      error
		)
		if field.Type == model.FieldTypeTextarea {
			response, err = f.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: defaultVal})
		} else {
			response, err = f.driver.Input(ctx, InputConfig{Message: label, Default: defaultVal, Validator: validator})
		}
		if err != nil {
			return err
		}
		if err := validator(response); err != nil {
			_ = f.driver.Info(ctx, fmt.Sprintf("Invalid %s: %v", field.Name, err))
			continue
		}
		value, _ := parse(response)
		set(values, field.Name, value)
		return nil
	}
}

func (f *Filler) promptConfirm(ctx context.Context, field model.Field, rules model.ValidationRules, values map[string]any) error {
	defaultVal := false
	if v, ok := current(values, field); ok {
		defaultVal, _ = v.(bool)
	}
	for {
		resp, err := f.driver.Confirm(ctx, ConfirmConfig{Message: field.DisplayLabel(), Default: defaultVal})
		if err != nil {
			return err
		}
		// An unchecked required checkbox counts as missing.
		var value any = resp
		if !resp && rules.Required {
			value = nil
		}
		if err := f.check(field, rules, value, values); err != nil {
			_ = f.driver.Info(ctx, fmt.Sprintf("Invalid %s: %v", field.Name, err))
			continue
		}
		values[field.Name] = resp
		return nil
	}
}

func (f *Filler) promptSelect(ctx context.Context, field model.Field, rules model.ValidationRules, options []model.LookupOption, values map[string]any) error {
	labels := make([]string, 0, len(options)+1)
	offset := 0
	if !rules.Required {
		labels = append(labels, skipOption)
		offset = 1
	}
	defaultIdx := -1
	cur, hasCurrent := current(values, field)
	for i, option := range options {
		label := strings.TrimSpace(option.Label)
		if label == "" {
			label = coerce.String(option.Value)
		}
		labels = append(labels, label)
		if hasCurrent && coerce.LooseEqual(option.Value, cur) {
			defaultIdx = i + offset
		}
	}

	for {
		idx, err := f.driver.Select(ctx, SelectConfig{
			Message:      field.DisplayLabel(),
			Options:      labels,
			DefaultIndex: defaultIdx,
		})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(labels) {
			_ = f.driver.Info(ctx, fmt.Sprintf("Invalid %s selection", field.Name))
			continue
		}
		var value any
		if idx >= offset {
			value = options[idx-offset].Value
		}
		if err := f.check(field, rules, value, values); err != nil {
			_ = f.driver.Info(ctx, fmt.Sprintf("Invalid %s: %v", field.Name, err))
			continue
		}
		set(values, field.Name, value)
		return nil
	}
}

func current(values map[string]any, field model.Field) (any, bool) {
	if v, ok := condition.Lookup(values, field.Name); ok && v != nil {
		return v, true
	}
	if field.Default != nil {
		return field.Default, true
	}
	return nil, false
}

func defaultString(values map[string]any, field model.Field) string {
	v, ok := current(values, field)
	if !ok {
		return ""
	}
	return coerce.String(v)
}

// set stores value under name; a nil value removes the key so the field reads
// as missing.
func set(values map[string]any, name string, value any) {
	if value == nil {
		delete(values, name)
		return
	}
	values[name] = value
}
