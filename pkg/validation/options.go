package validation

import "github.com/goliatone/go-formrules/pkg/diag"

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry shares a validator registry between engines. Without it each
// engine owns a fresh registry.
func WithRegistry(reg *Registry) Option {
	return func(e *Engine) {
		if reg != nil {
			e.registry = reg
		}
	}
}

// WithDiagnostics routes rule misconfiguration reports to sink.
func WithDiagnostics(sink diag.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithTranslator resolves default messages through t, using the locale from
// the validation Context.
func WithTranslator(t Translator) Option {
	return func(e *Engine) {
		e.messages.translator = t
	}
}

// WithMissingTranslationHandler replaces the fallback used when a translation
// is unavailable.
func WithMissingTranslationHandler(handler MissingTranslationHandler) Option {
	return func(e *Engine) {
		if handler != nil {
			e.messages.onMissing = handler
		}
	}
}

// WithMessage replaces the built-in template for kind.
func WithMessage(kind MessageKind, template string) Option {
	return func(e *Engine) {
		e.messages.overrides[kind] = template
	}
}
