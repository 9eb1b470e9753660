// Package schema parses, loads, lints and watches form schema documents.
//
// A document is JSON, JSON with comments and trailing commas, or YAML. All
// three decode through the same JSON shape rules, so conditions written in
// YAML are held to exactly the constraints of their JSON form.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formrules/pkg/condition/expr"
	"github.com/goliatone/go-formrules/pkg/model"
)

// Format names the syntax a document was parsed as.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatYAML  Format = "yaml"
)

// ErrEmptyDocument is returned for blank input.
var ErrEmptyDocument = errors.New("schema: document is empty")

// ParseError reports a document that could not be decoded.
type ParseError struct {
	Source string
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("schema: parse %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("schema: parse %s as %s: %v", e.Source, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes data into a FormSchema. source labels errors only.
func Parse(data []byte, source string) (model.FormSchema, error) {
	schema, _, err := ParseFormat(data, source)
	return schema, err
}

// ParseFormat is Parse that also reports the detected format.
func ParseFormat(data []byte, source string) (model.FormSchema, Format, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return model.FormSchema{}, "", &ParseError{Source: source, Err: ErrEmptyDocument}
	}

	payload, format, err := toJSON(data)
	if err != nil {
		return model.FormSchema{}, format, &ParseError{Source: source, Format: format, Err: err}
	}

	var schema model.FormSchema
	if err := json.Unmarshal(payload, &schema); err != nil {
		return model.FormSchema{}, format, &ParseError{Source: source, Format: format, Err: err}
	}
	normalise(&schema)
	if err := compileExpressions(schema); err != nil {
		return model.FormSchema{}, format, &ParseError{Source: source, Format: format, Err: err}
	}
	return schema, format, nil
}

func toJSON(data []byte) ([]byte, Format, error) {
	if json.Valid(data) {
		return data, FormatJSON, nil
	}
	if stripped := jsonc.ToJSON(data); json.Valid(stripped) {
		return stripped, FormatJSONC, nil
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, FormatYAML, err
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, FormatYAML, fmt.Errorf("expected a mapping at the document root, got %T", raw)
	}
	normalised, err := normaliseYAML(raw)
	if err != nil {
		return nil, FormatYAML, err
	}
	payload, err := json.Marshal(normalised)
	if err != nil {
		return nil, FormatYAML, err
	}
	return payload, FormatYAML, nil
}

// normaliseYAML converts yaml.v3 values into their encoding/json equivalents.
func normaliseYAML(value any) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			converted, err := normaliseYAML(item)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			name, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("mapping key %v is not a string", key)
			}
			converted, err := normaliseYAML(item)
			if err != nil {
				return nil, err
			}
			out[name] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			converted, err := normaliseYAML(item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	default:
		return value, nil
	}
}

func normalise(schema *model.FormSchema) {
	schema.ID = strings.TrimSpace(schema.ID)
	for i := range schema.Fields {
		schema.Fields[i].Name = strings.TrimSpace(schema.Fields[i].Name)
		schema.Fields[i].Section = strings.TrimSpace(schema.Fields[i].Section)
	}
	for i := range schema.Sections {
		schema.Sections[i].ID = strings.TrimSpace(schema.Sections[i].ID)
	}
	for i := range schema.Lookups {
		schema.Lookups[i].Ref = strings.TrimSpace(schema.Lookups[i].Ref)
	}
}

// compileExpressions rejects shorthand expressions with syntax errors.
func compileExpressions(schema model.FormSchema) error {
	check := func(path string, logic model.FieldLogic) error {
		for _, axis := range logic.Rules() {
			var err error
			axis.Rule.When.Walk(func(suffix string, node model.Condition) bool {
				if err != nil {
					return false
				}
				if node.Kind() == model.KindExpr {
					if _, compileErr := expr.Compile(node.Expr); compileErr != nil {
						err = fmt.Errorf("%s.%s.when%s: %w", path, axis.Axis, suffix, compileErr)
					}
				}
				return true
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	for _, section := range schema.Sections {
		if err := check("sections."+section.ID+".logic", section.Logic); err != nil {
			return err
		}
	}
	for _, field := range schema.Fields {
		if err := check("fields."+field.Name+".logic", field.Logic); err != nil {
			return err
		}
	}
	return nil
}
