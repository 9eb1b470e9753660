package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-formrules/pkg/model"
)

// EndpointOverride supplies endpoint metadata for a lookup-backed field whose
// schema declares no endpoint for its ref, typically because the schema was
// imported from an OpenAPI document without x-endpoint extensions.
type EndpointOverride struct {
	SchemaID  string
	FieldName string
	Endpoint  model.EndpointConfig
}

type overrideKey struct {
	schema string
	field  string
}

// WithEndpointOverrides registers endpoint overrides. Overrides are scoped per
// schema and only applied when the field's lookup definition lacks an
// endpoint. Invalid overrides surface as an error from Options.
func WithEndpointOverrides(overrides []EndpointOverride) Option {
	cloned := cloneEndpointOverrides(overrides)
	return func(o *Orchestrator) {
		if len(cloned) == 0 || o == nil {
			return
		}
		if o.overrides == nil {
			o.overrides = make(map[overrideKey]model.EndpointConfig, len(cloned))
		}
		for _, override := range cloned {
			if err := validateEndpointOverride(override); err != nil {
				o.initialiseErr = appendInitialiseError(o.initialiseErr, err)
				continue
			}
			key := overrideKey{schema: strings.TrimSpace(override.SchemaID), field: strings.TrimSpace(override.FieldName)}
			o.overrides[key] = override.Endpoint
		}
	}
}

func (o *Orchestrator) override(schemaID, fieldName string) (model.EndpointConfig, bool) {
	if len(o.overrides) == 0 {
		return model.EndpointConfig{}, false
	}
	endpoint, ok := o.overrides[overrideKey{schema: schemaID, field: fieldName}]
	return endpoint, ok
}

func cloneEndpointOverrides(overrides []EndpointOverride) []EndpointOverride {
	if len(overrides) == 0 {
		return nil
	}
	cloned := make([]EndpointOverride, 0, len(overrides))
	for _, override := range overrides {
		copied := override
		copied.Endpoint.Params = cloneStringMap(override.Endpoint.Params)
		copied.Endpoint.DynamicParams = cloneStringMap(override.Endpoint.DynamicParams)
		cloned = append(cloned, copied)
	}
	return cloned
}

func cloneStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func validateEndpointOverride(override EndpointOverride) error {
	if strings.TrimSpace(override.SchemaID) == "" {
		return errors.New("orchestrator: endpoint override missing schema id")
	}
	if strings.TrimSpace(override.FieldName) == "" {
		return fmt.Errorf("orchestrator: endpoint override %q missing field name", override.SchemaID)
	}
	if strings.TrimSpace(override.Endpoint.URL) == "" {
		return fmt.Errorf("orchestrator: endpoint override %q for %s missing endpoint url", override.SchemaID, override.FieldName)
	}
	return nil
}

func appendInitialiseError(existing, next error) error {
	if existing == nil {
		return next
	}
	return fmt.Errorf("%v; %w", existing, next)
}
