package lookup

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CacheKey returns the deterministic cache key for ref and params. Params are
// sorted by name and their values JSON-encoded, so {a:1,b:2} and {b:2,a:1}
// produce the same key: "cities?a=1&b=2".
func CacheKey(ref string, params map[string]any) string {
	if len(params) == 0 {
		return ref
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(ref)
	b.WriteByte('?')
	for idx, name := range names {
		if idx > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(encodeParam(params[name]))
	}
	return b.String()
}

func encodeParam(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(value))
	}
	return string(data)
}

// KeyMatchesRef reports whether key belongs to ref: either the bare ref or a
// parameterised variant of it. "cities" matches "cities?country=\"RS\"" but
// not "citiesLarge".
func KeyMatchesRef(key, ref string) bool {
	return key == ref || strings.HasPrefix(key, ref+"?")
}

// RefOf extracts the ref part of a cache key.
func RefOf(key string) string {
	ref, _, _ := strings.Cut(key, "?")
	return ref
}
