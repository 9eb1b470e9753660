// Package diag carries rule misconfiguration reports out of the engines.
// Engines never return errors for malformed rules; they degrade to a failing
// result and describe the problem to a Sink.
package diag

import (
	"sync"

	"go.uber.org/zap"
)

// Kind classifies a diagnostic.
type Kind string

const (
	// KindUnknownOperator flags a condition leaf with an operator outside the
	// vocabulary.
	KindUnknownOperator Kind = "unknown_operator"
	// KindMissingField flags a condition leaf without a field key.
	KindMissingField Kind = "missing_field"
	// KindInvalidCondition flags a condition that is neither a leaf nor a group.
	KindInvalidCondition Kind = "invalid_condition"
	// KindInvalidExpression flags a shorthand expression that does not compile.
	KindInvalidExpression Kind = "invalid_expression"
	// KindUnknownValidator flags a custom rule naming an unregistered validator.
	KindUnknownValidator Kind = "unknown_validator"
	// KindAsyncInSync flags an async validator skipped by the sync path.
	KindAsyncInSync Kind = "async_in_sync"
	// KindInvalidPattern flags a pattern that does not compile.
	KindInvalidPattern Kind = "invalid_pattern"
	// KindValidatorPanic flags a custom validator that panicked.
	KindValidatorPanic Kind = "validator_panic"
	// KindInvalidOperator flags a cross-field rule with an unsupported operator.
	KindInvalidOperator Kind = "invalid_operator"
)

// Event describes a single misconfiguration.
type Event struct {
	Kind    Kind
	Path    string
	Message string
	Err     error
}

// Sink receives diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Report(Event)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(Event)

// Report delegates to the underlying function.
func (fn SinkFunc) Report(event Event) {
	if fn != nil {
		fn(event)
	}
}

// Nop discards every event.
func Nop() Sink { return SinkFunc(func(Event) {}) }

type zapSink struct {
	logger *zap.Logger
}

// Zap routes diagnostics to logger at warn level.
func Zap(logger *zap.Logger) Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return zapSink{logger: logger}
}

func (s zapSink) Report(event Event) {
	fields := []zap.Field{
		zap.String("kind", string(event.Kind)),
	}
	if event.Path != "" {
		fields = append(fields, zap.String("path", event.Path))
	}
	if event.Err != nil {
		fields = append(fields, zap.Error(event.Err))
	}
	s.logger.Warn(event.Message, fields...)
}

// Recorder keeps every reported event. Useful in tests and in lint tooling.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Report stores the event.
func (r *Recorder) Report(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	events := r.Events()
	out := make([]Kind, 0, len(events))
	for _, event := range events {
		out = append(out, event.Kind)
	}
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Multi fans events out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	return SinkFunc(func(event Event) {
		for _, sink := range filtered {
			sink.Report(event)
		}
	})
}
