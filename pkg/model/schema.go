package model

import "strings"

// FieldType is a renderer-facing hint; the engines only treat lookup-backed
// and selection types specially.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeEmail    FieldType = "email"
	FieldTypePhone    FieldType = "phone"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeSelect   FieldType = "select"
	FieldTypeLookup   FieldType = "lookup"
	FieldTypeCheckbox FieldType = "checkbox"
)

// FormSchema is the final schema handed to the engines after template merging.
type FormSchema struct {
	ID         string             `json:"id" yaml:"id"`
	Title      string             `json:"title,omitempty" yaml:"title,omitempty"`
	Sections   []Section          `json:"sections,omitempty" yaml:"sections,omitempty"`
	Fields     []Field            `json:"fields" yaml:"fields"`
	CrossField []CrossFieldRule   `json:"crossField,omitempty" yaml:"crossField,omitempty"`
	Lookups    []LookupDefinition `json:"lookups,omitempty" yaml:"lookups,omitempty"`
}

// Section groups fields. A hidden section hides every field assigned to it.
type Section struct {
	ID    string     `json:"id" yaml:"id"`
	Title string     `json:"title,omitempty" yaml:"title,omitempty"`
	Logic FieldLogic `json:"logic,omitempty" yaml:"logic,omitempty"`
}

// Field is a single input in the schema.
type Field struct {
	Name       string          `json:"name" yaml:"name"`
	Type       FieldType       `json:"type,omitempty" yaml:"type,omitempty"`
	Label      string          `json:"label,omitempty" yaml:"label,omitempty"`
	Section    string          `json:"section,omitempty" yaml:"section,omitempty"`
	Default    any             `json:"default,omitempty" yaml:"default,omitempty"`
	Validation ValidationRules `json:"validation,omitempty" yaml:"validation,omitempty"`
	Logic      FieldLogic      `json:"logic,omitempty" yaml:"logic,omitempty"`
	Lookup     *FieldLookup    `json:"lookup,omitempty" yaml:"lookup,omitempty"`
	Options    []LookupOption  `json:"options,omitempty" yaml:"options,omitempty"`
}

// FieldLookup binds a field to a lookup definition. DynamicParams values are
// `{{field}}` references resolved against form data; `{{self}}` refers to the
// field's own value.
type FieldLookup struct {
	Ref           string            `json:"ref" yaml:"ref"`
	Params        map[string]any    `json:"params,omitempty" yaml:"params,omitempty"`
	DynamicParams map[string]string `json:"dynamicParams,omitempty" yaml:"dynamicParams,omitempty"`
}

// DisplayLabel falls back to the field name when no label is configured.
func (f Field) DisplayLabel() string {
	if label := strings.TrimSpace(f.Label); label != "" {
		return label
	}
	return f.Name
}

// Field returns the named field.
func (s FormSchema) Field(name string) (Field, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Section returns the section with the given id.
func (s FormSchema) Section(id string) (Section, bool) {
	for _, section := range s.Sections {
		if section.ID == id {
			return section, true
		}
	}
	return Section{}, false
}

// Lookup returns the lookup definition registered under ref.
func (s FormSchema) Lookup(ref string) (LookupDefinition, bool) {
	for _, def := range s.Lookups {
		if def.Ref == ref {
			return def, true
		}
	}
	return LookupDefinition{}, false
}
