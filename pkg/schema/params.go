package schema

import (
	"regexp"
	"strings"

	"github.com/goliatone/go-formrules/pkg/condition"
)

// SelfReference is the dynamic param placeholder for the field's own value.
const SelfReference = "self"

var paramReference = regexp.MustCompile(`^\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}$`)

// ParamReference extracts the field name from a "{{field}}" placeholder.
func ParamReference(raw string) (string, bool) {
	match := paramReference.FindStringSubmatch(strings.TrimSpace(raw))
	if match == nil {
		return "", false
	}
	return match[1], true
}

// ResolveParam substitutes a "{{field}}" placeholder from data. self is the
// value used for {{self}}. Values that are not placeholders pass through.
func ResolveParam(raw string, self any, data map[string]any) (any, bool) {
	ref, ok := ParamReference(raw)
	if !ok {
		return raw, true
	}
	if ref == SelfReference {
		return self, true
	}
	return condition.Lookup(data, ref)
}
