package cli

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"

	"github.com/goliatone/go-formrules/pkg/validation"
)

// catalogTranslator serves validation messages from the config's messages
// table, matching request locales against the configured tags. Catalog keys
// are message kinds without the "validation." prefix, compared
// case-insensitively since viper lowercases config keys.
type catalogTranslator struct {
	tags     []language.Tag
	catalogs []map[string]string
	matcher  language.Matcher
}

func newCatalogTranslator(messages map[string]map[string]string) (validation.Translator, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	locales := make([]string, 0, len(messages))
	for locale := range messages {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	t := &catalogTranslator{}
	for _, locale := range locales {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("messages: invalid locale %q: %w", locale, err)
		}
		t.tags = append(t.tags, tag)
		catalog := make(map[string]string, len(messages[locale]))
		for key, msg := range messages[locale] {
			catalog[strings.ToLower(key)] = msg
		}
		t.catalogs = append(t.catalogs, catalog)
	}
	t.matcher = language.NewMatcher(t.tags)
	return t, nil
}

func (t *catalogTranslator) Translate(locale, key string, _ ...any) (string, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return "", fmt.Errorf("messages: invalid locale %q: %w", locale, err)
	}
	_, idx, confidence := t.matcher.Match(tag)
	if confidence == language.No {
		return "", fmt.Errorf("messages: no catalog for %q", locale)
	}
	msg, ok := t.catalogs[idx][strings.ToLower(strings.TrimPrefix(key, "validation."))]
	if !ok {
		return "", fmt.Errorf("messages: %q missing in %s", key, t.tags[idx])
	}
	return msg, nil
}
