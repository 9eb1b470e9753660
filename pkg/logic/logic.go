// Package logic answers the per-axis questions a renderer asks before
// drawing a field: is it visible, is it disabled, is it required.
package logic

import (
	"github.com/goliatone/go-formrules/pkg/condition"
	"github.com/goliatone/go-formrules/pkg/diag"
	"github.com/goliatone/go-formrules/pkg/model"
)

// Axis defaults applied when no rule is attached.
const (
	DefaultVisible  = true
	DefaultDisabled = false
	DefaultRequired = false
)

// Option configures an Engine.
type Option func(*Engine)

// WithEvaluator shares a condition evaluator, and with it the compiled
// expression cache.
func WithEvaluator(eval *condition.Evaluator) Option {
	return func(e *Engine) {
		if eval != nil {
			e.eval = eval
		}
	}
}

// WithDiagnostics builds the engine's evaluator with sink. It is ignored when
// WithEvaluator is also supplied.
func WithDiagnostics(sink diag.Sink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// Engine evaluates logic rules. It is stateless apart from the evaluator's
// expression cache and is safe for concurrent use.
type Engine struct {
	eval *condition.Evaluator
	sink diag.Sink
}

// New constructs an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.eval == nil {
		e.eval = condition.New(condition.WithDiagnostics(e.sink))
	}
	return e
}

// FieldState is the resolved logic state of a field or section.
type FieldState struct {
	Visible  bool `json:"visible"`
	Required bool `json:"required"`
	Disabled bool `json:"disabled"`
}

// EvaluateVisibility returns true when rule is nil.
func (e *Engine) EvaluateVisibility(rule *model.LogicRule, data map[string]any) bool {
	return e.at("logic.visible", rule, data, DefaultVisible)
}

// EvaluateDisabled returns false when rule is nil.
func (e *Engine) EvaluateDisabled(rule *model.LogicRule, data map[string]any) bool {
	return e.at("logic.disabled", rule, data, DefaultDisabled)
}

// EvaluateRequired returns false when rule is nil. The result augments the
// static required flag, it never clears it; see Resolve.
func (e *Engine) EvaluateRequired(rule *model.LogicRule, data map[string]any) bool {
	return e.at("logic.required", rule, data, DefaultRequired)
}

// Resolve computes the state of field. Required is the static flag OR the
// dynamic rule. A hidden field is never reported as disabled.
func (e *Engine) Resolve(field model.Field, data map[string]any) FieldState {
	prefix := "fields." + field.Name + "."
	state := FieldState{
		Visible: e.at(prefix+"logic.visible", field.Logic.Visible, data, DefaultVisible),
	}
	state.Required = field.Validation.Required || e.at(prefix+"logic.required", field.Logic.Required, data, DefaultRequired)
	if state.Visible {
		state.Disabled = e.at(prefix+"logic.disabled", field.Logic.Disabled, data, DefaultDisabled)
	}
	return state
}

// ResolveSection computes the state of a section. Sections carry no static
// required flag.
func (e *Engine) ResolveSection(section model.Section, data map[string]any) FieldState {
	prefix := "sections." + section.ID + "."
	state := FieldState{
		Visible:  e.at(prefix+"logic.visible", section.Logic.Visible, data, DefaultVisible),
		Required: e.at(prefix+"logic.required", section.Logic.Required, data, DefaultRequired),
	}
	if state.Visible {
		state.Disabled = e.at(prefix+"logic.disabled", section.Logic.Disabled, data, DefaultDisabled)
	}
	return state
}

func (e *Engine) at(path string, rule *model.LogicRule, data map[string]any, fallback bool) bool {
	if rule == nil {
		return fallback
	}
	return e.eval.EvaluateAt(path, rule.When, data)
}
