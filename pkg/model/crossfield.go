package model

// CrossFieldRule compares Field against CompareTo using the condition operator
// vocabulary (greaterThan, lessThan, equals, notEquals, contains). A failing
// rule attaches ErrorMessage to every entry of TargetFields, or to Field when
// TargetFields is empty.
type CrossFieldRule struct {
	Field        string   `json:"field" yaml:"field"`
	Operator     Operator `json:"operator" yaml:"operator"`
	CompareTo    string   `json:"compareTo" yaml:"compareTo"`
	TargetFields []string `json:"targetFields,omitempty" yaml:"targetFields,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

// Targets returns the fields that receive the rule's error.
func (r CrossFieldRule) Targets() []string {
	if len(r.TargetFields) == 0 {
		if r.Field == "" {
			return nil
		}
		return []string{r.Field}
	}
	return append([]string{}, r.TargetFields...)
}

// CrossFieldOperator reports whether op is allowed in cross-field rules.
func CrossFieldOperator(op Operator) bool {
	switch op {
	case OpGreaterThan, OpLessThan, OpEquals, OpNotEquals, OpContains:
		return true
	default:
		return false
	}
}
