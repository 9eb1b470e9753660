// Package validation runs the declarative rules attached to a field and
// produces a ValidationResult.
//
// Checks run in a fixed order: emptiness, required, then pattern, minLength,
// maxLength, min, max, email, phone and custom. Every failing check after
// the emptiness gate contributes one message.
package validation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-formrules/internal/coerce"
	"github.com/goliatone/go-formrules/pkg/diag"
	"github.com/goliatone/go-formrules/pkg/model"
)

// InvalidPatternMessage is emitted when a pattern does not compile.
const InvalidPatternMessage = "Invalid validation pattern"

// UnregisteredMessage returns the error emitted for a custom rule naming an
// unknown validator.
func UnregisteredMessage(name string) string {
	return fmt.Sprintf("Validator '%s' not registered", name)
}

// Engine validates field values. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	registry *Registry
	sink     diag.Sink
	messages *messageRenderer

	patterns sync.Map
}

type compiledPattern struct {
	re  *regexp2.Regexp
	err error
}

// New constructs an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry: NewRegistry(),
		sink:     diag.Nop(),
		messages: newMessageRenderer(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Registry exposes the engine's validator registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// RegisterCustomValidator stores fn under name, replacing any earlier entry.
func (e *Engine) RegisterCustomValidator(name string, fn ValidatorFunc) {
	e.registry.Register(name, fn)
}

// RegisterAsyncValidator stores an asynchronous validator under name.
// ValidateField skips it; ValidateFieldAsync awaits it.
func (e *Engine) RegisterAsyncValidator(name string, fn AsyncValidatorFunc) {
	e.registry.RegisterAsync(name, fn)
}

// ValidateField runs rules against value synchronously. Async custom
// validators are not evaluated on this path; their slot passes and a
// diagnostic is reported.
func (e *Engine) ValidateField(value any, rules model.ValidationRules, vctx Context) model.ValidationResult {
	errs, done := e.checkBuiltins(value, rules, vctx)
	if done || !hasCustom(rules) {
		return model.NewResult(errs...)
	}

	name := strings.TrimSpace(rules.Custom.Rule)
	entry, ok := e.registry.lookup(name)
	switch {
	case !ok:
		errs = append(errs, e.unregistered(name, vctx))
	case entry.sync == nil:
		e.report(diag.KindAsyncInSync, vctx, "custom", "async validator skipped on the synchronous path", fmt.Errorf("validator %q", name))
	case !e.callSync(entry.sync, value, vctx):
		errs = append(errs, e.customMessage(value, rules, vctx))
	}
	return model.NewResult(errs...)
}

// ValidateFieldAsync runs the same checks as ValidateField and then awaits
// the custom validator, sync or async. Built-in checks complete before the
// custom validator starts. An error is returned only when ctx is done before
// the custom validator resolves.
func (e *Engine) ValidateFieldAsync(ctx context.Context, value any, rules model.ValidationRules, vctx Context) (model.ValidationResult, error) {
	errs, done := e.checkBuiltins(value, rules, vctx)
	if done || !hasCustom(rules) {
		return model.NewResult(errs...), nil
	}

	name := strings.TrimSpace(rules.Custom.Rule)
	entry, ok := e.registry.lookup(name)
	if !ok {
		errs = append(errs, e.unregistered(name, vctx))
		return model.NewResult(errs...), nil
	}

	var passed bool
	if entry.async != nil {
		var err error
		passed, err = e.await(ctx, entry.async, value, vctx)
		if err != nil {
			return model.ValidationResult{}, err
		}
	} else {
		passed = e.callSync(entry.sync, value, vctx)
	}
	if !passed {
		errs = append(errs, e.customMessage(value, rules, vctx))
	}
	return model.NewResult(errs...), nil
}

func hasCustom(rules model.ValidationRules) bool {
	return rules.Custom != nil && strings.TrimSpace(rules.Custom.Rule) != ""
}

// checkBuiltins runs everything except the custom validator. done is true
// when the emptiness gate decided the result.
func (e *Engine) checkBuiltins(value any, rules model.ValidationRules, vctx Context) (errs []string, done bool) {
	params := messageParams(value, rules, vctx)

	if coerce.IsEmpty(value) {
		if rules.Required {
			return []string{e.builtin(MessageRequired, rules, vctx, params)}, true
		}
		return nil, true
	}

	text := coerce.String(value)

	if rules.Pattern != "" {
		re, err := e.pattern(rules.Pattern)
		if err != nil {
			e.report(diag.KindInvalidPattern, vctx, "pattern", "validation pattern does not compile", err)
			errs = append(errs, InvalidPatternMessage)
		} else if matched, err := re.MatchString(text); err != nil {
			e.report(diag.KindInvalidPattern, vctx, "pattern", "validation pattern match failed", err)
			errs = append(errs, InvalidPatternMessage)
		} else if !matched {
			errs = append(errs, e.builtin(MessagePattern, rules, vctx, params))
		}
	}

	if rules.MinLength != nil || rules.MaxLength != nil {
		length := Length(text)
		if rules.MinLength != nil && length < *rules.MinLength {
			errs = append(errs, e.builtin(MessageMinLength, rules, vctx, params))
		}
		if rules.MaxLength != nil && length > *rules.MaxLength {
			errs = append(errs, e.builtin(MessageMaxLength, rules, vctx, params))
		}
	}

	if rules.Min != nil || rules.Max != nil {
		number, ok := coerce.Number(value)
		if !ok {
			errs = append(errs, e.builtin(MessageNumber, rules, vctx, params))
		} else {
			if rules.Min != nil && number < *rules.Min {
				errs = append(errs, e.builtin(MessageMin, rules, vctx, params))
			}
			if rules.Max != nil && number > *rules.Max {
				errs = append(errs, e.builtin(MessageMax, rules, vctx, params))
			}
		}
	}

	if rules.Email && !IsEmail(text) {
		errs = append(errs, e.builtin(MessageEmail, rules, vctx, params))
	}
	if rules.Phone && !IsPhone(text) {
		errs = append(errs, e.builtin(MessagePhone, rules, vctx, params))
	}
	return errs, false
}

func (e *Engine) pattern(src string) (*regexp2.Regexp, error) {
	if cached, ok := e.patterns.Load(src); ok {
		entry := cached.(compiledPattern)
		return entry.re, entry.err
	}
	re, err := CompilePattern(src)
	e.patterns.Store(src, compiledPattern{re: re, err: err})
	return re, err
}

func (e *Engine) callSync(fn ValidatorFunc, value any, vctx Context) (passed bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			passed = false
			e.report(diag.KindValidatorPanic, vctx, "custom", "custom validator panicked", fmt.Errorf("%v", recovered))
		}
	}()
	return fn(value, vctx)
}

func (e *Engine) await(ctx context.Context, fn AsyncValidatorFunc, value any, vctx Context) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	type outcome struct {
		passed bool
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if recovered := recover(); recovered != nil {
				out = outcome{}
				e.report(diag.KindValidatorPanic, vctx, "custom", "custom validator panicked", fmt.Errorf("%v", recovered))
			}
			done <- out
		}()
		out.passed, out.err = fn(ctx, value, vctx)
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() != nil {
			return false, ctx.Err()
		}
		return out.err == nil && out.passed, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (e *Engine) builtin(kind MessageKind, rules model.ValidationRules, vctx Context, params pongo2.Context) string {
	tpl := rules.ErrorMessage
	if strings.TrimSpace(tpl) == "" {
		tpl = e.messages.template(kind, vctx.Locale)
	}
	return e.messages.render(tpl, params)
}

func (e *Engine) customMessage(value any, rules model.ValidationRules, vctx Context) string {
	tpl := ""
	if rules.Custom != nil {
		tpl = rules.Custom.ErrorMessage
	}
	if strings.TrimSpace(tpl) == "" {
		tpl = rules.ErrorMessage
	}
	if strings.TrimSpace(tpl) == "" {
		tpl = e.messages.template(MessageCustom, vctx.Locale)
	}
	return e.messages.render(tpl, messageParams(value, rules, vctx))
}

func (e *Engine) unregistered(name string, vctx Context) string {
	e.report(diag.KindUnknownValidator, vctx, "custom", "custom validator is not registered", fmt.Errorf("validator %q", name))
	return UnregisteredMessage(name)
}

func (e *Engine) report(kind diag.Kind, vctx Context, check, message string, err error) {
	path := "validation." + check
	if vctx.Field != "" {
		path = "fields." + vctx.Field + "." + path
	}
	e.sink.Report(diag.Event{Kind: kind, Path: path, Message: message, Err: err})
}

// messageParams exposes the rule bounds and the value to message templates.
// Values are pre-formatted so 3.0 renders as "3".
func messageParams(value any, rules model.ValidationRules, vctx Context) pongo2.Context {
	params := pongo2.Context{
		"field": pongo2.AsSafeValue(vctx.Field),
		"value": pongo2.AsSafeValue(coerce.String(value)),
	}
	if rules.MinLength != nil {
		params["minLength"] = pongo2.AsSafeValue(fmt.Sprint(*rules.MinLength))
	}
	if rules.MaxLength != nil {
		params["maxLength"] = pongo2.AsSafeValue(fmt.Sprint(*rules.MaxLength))
	}
	if rules.Min != nil {
		params["min"] = pongo2.AsSafeValue(coerce.FormatNumber(*rules.Min))
	}
	if rules.Max != nil {
		params["max"] = pongo2.AsSafeValue(coerce.FormatNumber(*rules.Max))
	}
	return params
}
