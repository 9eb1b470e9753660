// Package formrules evaluates declarative form schemas: field visibility,
// required and disabled logic, validation and option lookups. The engines
// live under pkg/; this package re-exports the types most callers need and
// wires the common case.
package formrules

import (
	"context"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/orchestrator"
)

// FormSchema is a complete form definition.
type FormSchema = model.FormSchema

// EndpointConfig describes a remote lookup endpoint.
type EndpointConfig = model.EndpointConfig

// EndpointMapping remaps endpoint payload fields.
type EndpointMapping = model.EndpointMapping

// EndpointOverride configures endpoint metadata for a single form field.
type EndpointOverride = orchestrator.EndpointOverride

// Report is the outcome of validating a whole form.
type Report = orchestrator.Report

// FormState is the resolved logic state of a form.
type FormState = orchestrator.FormState

// NewOrchestrator exposes the orchestrator constructor from the module root.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// WithEndpointOverrides registers endpoint overrides alongside other
// orchestrator options.
func WithEndpointOverrides(overrides []EndpointOverride) orchestrator.Option {
	return orchestrator.WithEndpointOverrides(overrides)
}

// Validate loads the schema at path and validates data on submit with a
// default orchestrator.
func Validate(ctx context.Context, path string, data map[string]any, options ...orchestrator.Option) (Report, error) {
	form, err := LoadSchema(path)
	if err != nil {
		return Report{}, err
	}
	return orchestrator.New(options...).Validate(ctx, form, data, model.TriggerSubmit)
}
