package model

import (
	"encoding/json"
	"fmt"
)

// DefaultLookupTTL is the cache lifetime, in seconds, applied when a lookup
// definition does not override it.
const DefaultLookupTTL = 3600

// LookupOption is a single selectable entry returned by a lookup source.
// Keys other than value and label are preserved in Extra.
type LookupOption struct {
	Value any
	Label string
	Extra map[string]any
}

// MarshalJSON flattens Extra next to value and label.
func (o LookupOption) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(o.Extra)+2)
	for key, value := range o.Extra {
		out[key] = value
	}
	out["value"] = o.Value
	out["label"] = o.Label
	return json.Marshal(out)
}

// UnmarshalJSON collects unknown keys into Extra.
func (o *LookupOption) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("model: decode lookup option: %w", err)
	}
	o.Value = raw["value"]
	switch label := raw["label"].(type) {
	case nil:
		o.Label = ""
	case string:
		o.Label = label
	default:
		o.Label = fmt.Sprint(label)
	}
	delete(raw, "value")
	delete(raw, "label")
	o.Extra = nil
	if len(raw) > 0 {
		o.Extra = raw
	}
	return nil
}

// LookupDefinition names a remote option source. TTL is expressed in seconds;
// nil applies DefaultLookupTTL and 0 disables caching for the source.
type LookupDefinition struct {
	Ref      string          `json:"ref" yaml:"ref" mapstructure:"ref" validate:"required"`
	TTL      *int            `json:"ttl,omitempty" yaml:"ttl,omitempty" mapstructure:"ttl" validate:"omitempty,gte=0"`
	Endpoint *EndpointConfig `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint" validate:"omitempty"`
}

// TTLSeconds returns the effective TTL.
func (d LookupDefinition) TTLSeconds() int {
	if d.TTL == nil {
		return DefaultLookupTTL
	}
	return *d.TTL
}

// EndpointConfig describes how an HTTP transport resolves a lookup. Params are
// sent with every request; DynamicParams map query keys to `{{field}}`
// references into the current form data.
type EndpointConfig struct {
	URL           string            `json:"url" yaml:"url" mapstructure:"url" validate:"required,uri"`
	Method        string            `json:"method,omitempty" yaml:"method,omitempty" mapstructure:"method" validate:"omitempty,oneof=GET POST get post"`
	ResultsPath   string            `json:"resultsPath,omitempty" yaml:"resultsPath,omitempty" mapstructure:"resultsPath"`
	Params        map[string]string `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
	DynamicParams map[string]string `json:"dynamicParams,omitempty" yaml:"dynamicParams,omitempty" mapstructure:"dynamicParams"`
	Mapping       EndpointMapping   `json:"mapping,omitempty" yaml:"mapping,omitempty" mapstructure:"mapping"`
}

// EndpointMapping remaps response payload fields onto value and label.
type EndpointMapping struct {
	Value string `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
	Label string `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
}
