// Package openapi derives form schemas from OpenAPI 3 request bodies.
//
// Each request-body property becomes a field. Standard constraints map onto
// ValidationRules one to one, and an `x-formrules` extension object on the
// property (or the operation) carries anything OpenAPI cannot express:
// validation overrides, logic rules, lookup bindings, cross-field rules.
package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formrules/pkg/model"
)

const (
	// ExtensionKey names the vendor extension read from properties and
	// operations.
	ExtensionKey = "x-formrules"
	// EndpointExtensionKey declares an HTTP lookup on a property.
	EndpointExtensionKey = "x-endpoint"
)

// ErrOperationNotFound is returned when operationID is absent.
var ErrOperationNotFound = errors.New("openapi: operation not found")

// Option configures an import.
type Option func(*importer)

// WithExternalRefs allows $ref to leave the document.
func WithExternalRefs(allow bool) Option {
	return func(i *importer) {
		i.externalRefs = allow
	}
}

// WithValidation validates the document before importing it.
func WithValidation(enabled bool) Option {
	return func(i *importer) {
		i.validate = enabled
	}
}

// WithDecorators runs decorators, in order, over every imported schema.
func WithDecorators(decorators ...model.Decorator) Option {
	return func(i *importer) {
		for _, d := range decorators {
			if d != nil {
				i.decorators = append(i.decorators, d)
			}
		}
	}
}

type importer struct {
	externalRefs bool
	validate     bool
	decorators   []model.Decorator
}

func newImporter(opts []Option) importer {
	cfg := importer{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Operation summarises an importable operation.
type Operation struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Operations lists the operations in raw, sorted by id. Operations without
// an operationId are keyed "<method>:<path>".
func Operations(ctx context.Context, raw []byte, opts ...Option) ([]Operation, error) {
	spec, err := load(ctx, raw, newImporter(opts))
	if err != nil {
		return nil, err
	}
	var out []Operation
	walkOperations(spec, func(id, method, path string, _ *openapi3.Operation) bool {
		out = append(out, Operation{ID: id, Method: method, Path: path})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Import builds the form schema for operationID.
func Import(ctx context.Context, raw []byte, operationID string, opts ...Option) (model.FormSchema, error) {
	cfg := newImporter(opts)
	spec, err := load(ctx, raw, cfg)
	if err != nil {
		return model.FormSchema{}, err
	}

	operationID = strings.TrimSpace(operationID)
	var found *openapi3.Operation
	walkOperations(spec, func(id, _, _ string, op *openapi3.Operation) bool {
		if id == operationID {
			found = op
			return false
		}
		return true
	})
	if found == nil {
		return model.FormSchema{}, fmt.Errorf("%w: %q", ErrOperationNotFound, operationID)
	}

	title := strings.TrimSpace(found.Summary)
	if title == "" {
		title = operationID
	}
	schema := model.FormSchema{ID: operationID, Title: title, Fields: []model.Field{}}

	body := requestSchema(found.RequestBody)
	if body != nil {
		b := &builder{schema: &schema, operationID: operationID}
		if err := b.object("", body); err != nil {
			return model.FormSchema{}, err
		}
	}
	if err := applyOperationExtension(&schema, found.Extensions); err != nil {
		return model.FormSchema{}, fmt.Errorf("openapi: %s: %w", operationID, err)
	}
	for _, d := range cfg.decorators {
		if err := d.Decorate(&schema); err != nil {
			return model.FormSchema{}, fmt.Errorf("openapi: %s: decorate: %w", operationID, err)
		}
	}
	return schema, nil
}

func load(ctx context.Context, raw []byte, cfg importer) (*openapi3.T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}

	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: cfg.externalRefs}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if cfg.validate {
		if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi: validate: %w", err)
		}
	}
	return spec, nil
}

func walkOperations(spec *openapi3.T, fn func(id, method, path string, op *openapi3.Operation) bool) {
	if spec.Paths == nil {
		return
	}
	paths := spec.Paths.InMatchingOrder()
	sort.Strings(paths)
	for _, path := range paths {
		item := spec.Paths.Value(path)
		if item == nil {
			continue
		}
		for _, method := range []string{"GET", "PUT", "POST", "DELETE", "PATCH"} {
			op := item.GetOperation(method)
			if op == nil {
				continue
			}
			id := op.OperationID
			if id == "" {
				id = strings.ToLower(method) + ":" + path
			}
			if !fn(id, method, path, op) {
				return
			}
		}
	}
}

func requestSchema(body *openapi3.RequestBodyRef) *openapi3.Schema {
	if body == nil || body.Value == nil {
		return nil
	}
	content := body.Value.Content
	for _, mediaType := range []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"} {
		if mt, ok := content[mediaType]; ok && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	keys := make([]string, 0, len(content))
	for key := range content {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if mt := content[key]; mt != nil && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

type builder struct {
	schema      *model.FormSchema
	operationID string
}

// object appends a field per property of src. Nested objects flatten into
// dotted names.
func (b *builder) object(prefix string, src *openapi3.Schema) error {
	properties, required := flatten(src)
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref := properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		prop := ref.Value
		fullName := name
		if prefix != "" {
			fullName = prefix + "." + name
		}
		if len(prop.Properties) > 0 {
			if err := b.object(fullName, prop); err != nil {
				return err
			}
			continue
		}
		field, err := b.field(fullName, prop, required[name])
		if err != nil {
			return fmt.Errorf("openapi: %s: field %s: %w", b.operationID, fullName, err)
		}
		b.schema.Fields = append(b.schema.Fields, field)
	}
	return nil
}

// flatten merges allOf members into one property set.
func flatten(src *openapi3.Schema) (openapi3.Schemas, map[string]bool) {
	properties := openapi3.Schemas{}
	required := map[string]bool{}
	var walk func(*openapi3.Schema)
	walk = func(s *openapi3.Schema) {
		if s == nil {
			return
		}
		for _, member := range s.AllOf {
			if member != nil {
				walk(member.Value)
			}
		}
		for name, prop := range s.Properties {
			properties[name] = prop
		}
		for _, name := range s.Required {
			required[name] = true
		}
	}
	walk(src)
	return properties, required
}

func (b *builder) field(name string, prop *openapi3.Schema, required bool) (model.Field, error) {
	field := model.Field{
		Name:    name,
		Label:   strings.TrimSpace(prop.Title),
		Type:    fieldType(prop),
		Default: prop.Default,
	}
	rules := model.ValidationRules{Required: required, Pattern: prop.Pattern}
	if prop.MinLength > 0 {
		rules.MinLength = model.IntPtr(int(prop.MinLength))
	}
	if prop.MaxLength != nil {
		rules.MaxLength = model.IntPtr(int(*prop.MaxLength))
	}
	if prop.Min != nil {
		rules.Min = model.FloatPtr(*prop.Min)
	}
	if prop.Max != nil {
		rules.Max = model.FloatPtr(*prop.Max)
	}
	switch strings.ToLower(prop.Format) {
	case "email":
		rules.Email = true
	case "phone", "tel":
		rules.Phone = true
	}
	field.Validation = rules

	for _, value := range prop.Enum {
		field.Options = append(field.Options, model.LookupOption{Value: value, Label: fmt.Sprint(value)})
	}

	if raw, ok := prop.Extensions[EndpointExtensionKey]; ok {
		if err := b.endpoint(&field, raw); err != nil {
			return model.Field{}, err
		}
	}
	if raw, ok := prop.Extensions[ExtensionKey]; ok {
		if err := applyFieldExtension(&field, raw); err != nil {
			return model.Field{}, err
		}
	}
	return field, nil
}

func fieldType(prop *openapi3.Schema) model.FieldType {
	switch {
	case len(prop.Enum) > 0:
		return model.FieldTypeSelect
	case prop.Type.Is(openapi3.TypeBoolean):
		return model.FieldTypeCheckbox
	case prop.Type.Is(openapi3.TypeInteger), prop.Type.Is(openapi3.TypeNumber):
		return model.FieldTypeNumber
	}
	switch strings.ToLower(prop.Format) {
	case "email":
		return model.FieldTypeEmail
	case "phone", "tel":
		return model.FieldTypePhone
	case "date", "date-time":
		return model.FieldTypeDate
	case "textarea":
		return model.FieldTypeTextarea
	}
	return model.FieldTypeText
}

// endpoint registers an HTTP lookup under "<operationID>.<field>" and binds
// the field to it.
func (b *builder) endpoint(field *model.Field, raw any) error {
	var endpoint model.EndpointConfig
	if err := remarshal(raw, &endpoint); err != nil {
		return fmt.Errorf("%s: %w", EndpointExtensionKey, err)
	}
	if strings.TrimSpace(endpoint.URL) == "" {
		return fmt.Errorf("%s: url is required", EndpointExtensionKey)
	}
	ref := b.operationID + "." + field.Name
	b.schema.Lookups = append(b.schema.Lookups, model.LookupDefinition{Ref: ref, Endpoint: &endpoint})
	field.Type = model.FieldTypeLookup
	field.Lookup = &model.FieldLookup{Ref: ref, DynamicParams: endpoint.DynamicParams}
	return nil
}

type fieldExtension struct {
	Label      string             `json:"label"`
	Type       model.FieldType    `json:"type"`
	Section    string             `json:"section"`
	Validation json.RawMessage    `json:"validation"`
	Logic      *model.FieldLogic  `json:"logic"`
	Lookup     *model.FieldLookup `json:"lookup"`
}

// applyFieldExtension overlays x-formrules keys on the derived field. The
// validation object is decoded over the derived rules, so keys it names win
// and the rest are kept.
func applyFieldExtension(field *model.Field, raw any) error {
	var ext fieldExtension
	if err := remarshal(raw, &ext); err != nil {
		return fmt.Errorf("%s: %w", ExtensionKey, err)
	}
	if ext.Label != "" {
		field.Label = ext.Label
	}
	if ext.Type != "" {
		field.Type = ext.Type
	}
	if ext.Section != "" {
		field.Section = ext.Section
	}
	if len(ext.Validation) > 0 {
		if err := json.Unmarshal(ext.Validation, &field.Validation); err != nil {
			return fmt.Errorf("%s.validation: %w", ExtensionKey, err)
		}
	}
	if ext.Logic != nil {
		field.Logic = *ext.Logic
	}
	if ext.Lookup != nil {
		field.Lookup = ext.Lookup
		if field.Type == model.FieldTypeText {
			field.Type = model.FieldTypeLookup
		}
	}
	return nil
}

type operationExtension struct {
	Sections   []model.Section          `json:"sections"`
	CrossField []model.CrossFieldRule   `json:"crossField"`
	Lookups    []model.LookupDefinition `json:"lookups"`
}

func applyOperationExtension(schema *model.FormSchema, extensions map[string]any) error {
	raw, ok := extensions[ExtensionKey]
	if !ok {
		return nil
	}
	var ext operationExtension
	if err := remarshal(raw, &ext); err != nil {
		return fmt.Errorf("%s: %w", ExtensionKey, err)
	}
	schema.Sections = append(schema.Sections, ext.Sections...)
	schema.CrossField = append(schema.CrossField, ext.CrossField...)
	schema.Lookups = append(schema.Lookups, ext.Lookups...)
	return nil
}

// remarshal decodes an extension value (already parsed by kin-openapi)
// through encoding/json so model types keep their JSON shape rules.
func remarshal(raw any, out any) error {
	if msg, ok := raw.(json.RawMessage); ok {
		return json.Unmarshal(msg, out)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
