// Package condition evaluates Condition trees against form data.
//
// Evaluation never fails: malformed conditions evaluate to false and are
// reported to the configured diag.Sink.
package condition

import (
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-formrules/internal/coerce"
	"github.com/goliatone/go-formrules/pkg/condition/expr"
	"github.com/goliatone/go-formrules/pkg/diag"
	"github.com/goliatone/go-formrules/pkg/model"
)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithDiagnostics routes misconfiguration reports to sink.
func WithDiagnostics(sink diag.Sink) Option {
	return func(e *Evaluator) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// Evaluator evaluates conditions. It caches compiled shorthand expressions and
// is safe for concurrent use.
type Evaluator struct {
	sink diag.Sink

	mu       sync.RWMutex
	compiled map[string]compiledExpr
}

type compiledExpr struct {
	cond model.Condition
	err  error
}

// New constructs an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		sink:     diag.Nop(),
		compiled: make(map[string]compiledExpr),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Evaluate reports whether cond holds for data.
func (e *Evaluator) Evaluate(cond model.Condition, data map[string]any) bool {
	return e.EvaluateAt("", cond, data)
}

// EvaluateAt is Evaluate with a path prefix used in diagnostics, for example
// "fields.vatNumber.logic.visible".
func (e *Evaluator) EvaluateAt(path string, cond model.Condition, data map[string]any) bool {
	if path == "" {
		path = "when"
	}
	return e.eval(path, cond, data)
}

func (e *Evaluator) eval(path string, cond model.Condition, data map[string]any) bool {
	switch cond.Kind() {
	case model.KindLeaf:
		return e.evalLeaf(path, cond, data)
	case model.KindAnd:
		for idx, child := range cond.And {
			if !e.eval(fmt.Sprintf("%s.and[%d]", path, idx), child, data) {
				return false
			}
		}
		return true
	case model.KindOr:
		for idx, child := range cond.Or {
			if e.eval(fmt.Sprintf("%s.or[%d]", path, idx), child, data) {
				return true
			}
		}
		return false
	case model.KindExpr:
		compiled, err := e.compile(cond.Expr)
		if err != nil {
			e.report(diag.KindInvalidExpression, path, "condition expression does not compile", err)
			return false
		}
		return e.eval(path, compiled, data)
	default:
		e.report(diag.KindInvalidCondition, path, "condition is neither a leaf nor a group", nil)
		return false
	}
}

func (e *Evaluator) evalLeaf(path string, cond model.Condition, data map[string]any) bool {
	if strings.TrimSpace(cond.Field) == "" {
		e.report(diag.KindMissingField, path, "condition leaf has no field", nil)
		return false
	}
	actual, _ := Lookup(data, cond.Field)
	result, ok := Compare(cond.Operator, actual, cond.Value)
	if !ok {
		e.report(diag.KindUnknownOperator, path, "condition operator is not supported", fmt.Errorf("operator %q", cond.Operator))
		return false
	}
	return result
}

func (e *Evaluator) compile(src string) (model.Condition, error) {
	e.mu.RLock()
	entry, ok := e.compiled[src]
	e.mu.RUnlock()
	if ok {
		return entry.cond, entry.err
	}

	cond, err := expr.Compile(src)
	e.mu.Lock()
	e.compiled[src] = compiledExpr{cond: cond, err: err}
	e.mu.Unlock()
	return cond, err
}

func (e *Evaluator) report(kind diag.Kind, path, message string, err error) {
	e.sink.Report(diag.Event{Kind: kind, Path: path, Message: message, Err: err})
}

// Compare applies op to actual and expected. ok is false when op is not part
// of the vocabulary.
func Compare(op model.Operator, actual, expected any) (result bool, ok bool) {
	switch op {
	case model.OpEquals:
		return coerce.LooseEqual(actual, expected), true
	case model.OpNotEquals:
		return !coerce.LooseEqual(actual, expected), true
	case model.OpGreaterThan, model.OpLessThan:
		a, aok := coerce.Number(actual)
		b, bok := coerce.Number(expected)
		if !aok || !bok {
			return false, true
		}
		if op == model.OpGreaterThan {
			return a > b, true
		}
		return a < b, true
	case model.OpContains:
		if items, isList := actual.([]any); isList {
			for _, item := range items {
				if coerce.LooseEqual(item, expected) {
					return true, true
				}
			}
			return false, true
		}
		return strings.Contains(coerce.String(actual), coerce.String(expected)), true
	case model.OpStartsWith:
		return strings.HasPrefix(coerce.String(actual), coerce.String(expected)), true
	case model.OpIsEmpty:
		return coerce.IsEmpty(actual), true
	case model.OpIsNotEmpty:
		return !coerce.IsEmpty(actual), true
	default:
		return false, false
	}
}

// Lookup reads path from data. An exact key match wins; otherwise the path is
// split on dots and walked through nested maps.
func Lookup(data map[string]any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if len(data) == 0 || path == "" {
		return nil, false
	}
	if v, ok := data[path]; ok {
		return v, true
	}

	var current any = data
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, false
		}
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		default:
			return nil, false
		}
	}
	return current, true
}
