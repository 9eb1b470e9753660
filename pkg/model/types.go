package model

import "encoding/json"

// Trigger names the interaction that causes a field to be validated.
type Trigger string

const (
	TriggerBlur   Trigger = "blur"
	TriggerChange Trigger = "change"
	TriggerSubmit Trigger = "submit"
)

// Valid reports whether the trigger is one of the recognised values. The zero
// value is treated as TriggerBlur by Effective.
func (t Trigger) Valid() bool {
	switch t {
	case "", TriggerBlur, TriggerChange, TriggerSubmit:
		return true
	default:
		return false
	}
}

// Effective returns the trigger with the blur default applied.
func (t Trigger) Effective() Trigger {
	if t == "" {
		return TriggerBlur
	}
	return t
}

// ValidationRules is the declarative rule set attached to a field. Numeric
// bounds are pointers so that an explicit 0 is distinguishable from an absent
// constraint. Values are owned by the schema and treated as read-only.
type ValidationRules struct {
	Required     bool        `json:"required,omitempty" yaml:"required,omitempty"`
	Pattern      string      `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	MinLength    *int        `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength    *int        `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Min          *float64    `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64    `json:"max,omitempty" yaml:"max,omitempty"`
	Email        bool        `json:"email,omitempty" yaml:"email,omitempty"`
	Phone        bool        `json:"phone,omitempty" yaml:"phone,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
	Custom       *CustomRule `json:"custom,omitempty" yaml:"custom,omitempty"`
	ValidateOn   Trigger     `json:"validateOn,omitempty" yaml:"validateOn,omitempty"`
}

// CustomRule references a validator registered by name.
type CustomRule struct {
	Rule         string `json:"rule" yaml:"rule"`
	ErrorMessage string `json:"errorMessage" yaml:"errorMessage"`
}

// Empty reports whether no constraint is configured.
func (r ValidationRules) Empty() bool {
	return !r.Required && r.Pattern == "" && r.MinLength == nil && r.MaxLength == nil &&
		r.Min == nil && r.Max == nil && !r.Email && !r.Phone && r.Custom == nil
}

// ValidationResult is the outcome of validating a single value. IsValid is
// always equal to len(Errors) == 0; use NewResult to build one.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// NewResult builds a result whose validity is derived from errors.
func NewResult(errors ...string) ValidationResult {
	if len(errors) == 0 {
		return ValidationResult{IsValid: true, Errors: []string{}}
	}
	return ValidationResult{IsValid: false, Errors: append([]string{}, errors...)}
}

// Valid returns a passing result.
func Valid() ValidationResult {
	return NewResult()
}

// MarshalJSON keeps the invariant on the wire and never emits a null errors
// array.
func (r ValidationResult) MarshalJSON() ([]byte, error) {
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	return json.Marshal(struct {
		IsValid bool     `json:"isValid"`
		Errors  []string `json:"errors"`
	}{IsValid: len(errs) == 0, Errors: errs})
}

// IntPtr returns a pointer to v. Handy when building rules in code.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }
