package validation

import (
	"fmt"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-formrules/internal/coerce"
	"github.com/goliatone/go-formrules/pkg/condition"
	"github.com/goliatone/go-formrules/pkg/diag"
	"github.com/goliatone/go-formrules/pkg/model"
)

// UnsupportedOperatorMessage returns the error emitted for a cross-field rule
// whose operator cannot compare two fields.
func UnsupportedOperatorMessage(op model.Operator) string {
	return fmt.Sprintf("Unsupported cross-field operator '%s'", op)
}

var operatorPhrases = map[model.Operator]string{
	model.OpGreaterThan: "greater than",
	model.OpLessThan:    "less than",
	model.OpEquals:      "equal to",
	model.OpNotEquals:   "different from",
	model.OpContains:    "a value containing",
}

// ValidateCrossField evaluates each rule against data and returns one result
// per rule, in order. A rule passes when either side is empty; presence is
// the job of the required check.
func (e *Engine) ValidateCrossField(rules []model.CrossFieldRule, data map[string]any) []model.ValidationResult {
	results := make([]model.ValidationResult, 0, len(rules))
	for idx, rule := range rules {
		results = append(results, e.crossField(idx, rule, data))
	}
	return results
}

func (e *Engine) crossField(idx int, rule model.CrossFieldRule, data map[string]any) model.ValidationResult {
	if !model.CrossFieldOperator(rule.Operator) {
		e.sink.Report(diag.Event{
			Kind:    diag.KindInvalidOperator,
			Path:    fmt.Sprintf("crossField[%d]", idx),
			Message: "cross-field operator is not supported",
			Err:     fmt.Errorf("operator %q", rule.Operator),
		})
		return model.NewResult(UnsupportedOperatorMessage(rule.Operator))
	}

	actual, _ := condition.Lookup(data, rule.Field)
	other, _ := condition.Lookup(data, rule.CompareTo)
	if coerce.IsEmpty(actual) || coerce.IsEmpty(other) {
		return model.NewResult()
	}

	if passed, _ := condition.Compare(rule.Operator, actual, other); passed {
		return model.NewResult()
	}

	tpl := rule.ErrorMessage
	if tpl == "" {
		tpl = e.messages.template(MessageCompare, "")
	}
	return model.NewResult(e.messages.render(tpl, pongo2.Context{
		"field":     pongo2.AsSafeValue(rule.Field),
		"compareTo": pongo2.AsSafeValue(rule.CompareTo),
		"phrase":    pongo2.AsSafeValue(operatorPhrases[rule.Operator]),
		"value":     pongo2.AsSafeValue(coerce.String(actual)),
		"other":     pongo2.AsSafeValue(coerce.String(other)),
	}))
}
