package validation

import (
	"errors"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// MessageKind identifies the check that produced a message.
type MessageKind string

const (
	MessageRequired  MessageKind = "required"
	MessagePattern   MessageKind = "pattern"
	MessageMinLength MessageKind = "minLength"
	MessageMaxLength MessageKind = "maxLength"
	MessageMin       MessageKind = "min"
	MessageMax       MessageKind = "max"
	MessageNumber    MessageKind = "number"
	MessageEmail     MessageKind = "email"
	MessagePhone     MessageKind = "phone"
	MessageCustom    MessageKind = "custom"
	MessageCompare   MessageKind = "crossField"
)

// TranslationKey returns the key looked up in a Translator, for example
// "validation.minLength".
func (k MessageKind) TranslationKey() string {
	return "validation." + string(k)
}

var defaultMessages = map[MessageKind]string{
	MessageRequired:  "This field is required",
	MessagePattern:   "Invalid format",
	MessageMinLength: "Must be at least {{ minLength }} characters",
	MessageMaxLength: "Must be at most {{ maxLength }} characters",
	MessageMin:       "Must be at least {{ min }}",
	MessageMax:       "Must be at most {{ max }}",
	MessageNumber:    "Must be a valid number",
	MessageEmail:     "Enter a valid email address",
	MessagePhone:     "Enter a valid phone number",
	MessageCustom:    "Invalid value",
	MessageCompare:   "{{ field }} must be {{ phrase }} {{ compareTo }}",
}

// DefaultMessage returns the built-in template for kind.
func DefaultMessage(kind MessageKind) string {
	return defaultMessages[kind]
}

// Translator resolves localized message templates.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// TranslatorFunc adapts a function into a Translator.
type TranslatorFunc func(locale, key string, args ...any) (string, error)

// Translate delegates to the underlying function.
func (fn TranslatorFunc) Translate(locale, key string, args ...any) (string, error) {
	return fn(locale, key, args...)
}

// MissingTranslationHandler picks the template used when a translation is
// unavailable. fallback is the built-in template.
type MissingTranslationHandler func(locale, key, fallback string, err error) string

// ErrMissingTranslator is passed to the missing handler when no Translator is
// configured.
var ErrMissingTranslator = errors.New("validation: translator not configured")

func missingTranslationDefault(_, _, fallback string, _ error) string {
	return fallback
}

type messageRenderer struct {
	translator Translator
	onMissing  MissingTranslationHandler
	overrides  map[MessageKind]string

	mu    sync.RWMutex
	cache map[string]*pongo2.Template
}

func newMessageRenderer() *messageRenderer {
	return &messageRenderer{
		onMissing: missingTranslationDefault,
		overrides: make(map[MessageKind]string),
		cache:     make(map[string]*pongo2.Template),
	}
}

// template returns the template for kind in locale: a configured override,
// then the translator, then the built-in default.
func (m *messageRenderer) template(kind MessageKind, locale string) string {
	fallback := defaultMessages[kind]
	if override, ok := m.overrides[kind]; ok && strings.TrimSpace(override) != "" {
		fallback = override
	}
	if m.translator == nil {
		if m.onMissing == nil || locale == "" {
			return fallback
		}
		return m.onMissing(locale, kind.TranslationKey(), fallback, ErrMissingTranslator)
	}
	msg, err := m.translator.Translate(locale, kind.TranslationKey())
	if err == nil && strings.TrimSpace(msg) != "" {
		return msg
	}
	if m.onMissing != nil {
		return m.onMissing(locale, kind.TranslationKey(), fallback, err)
	}
	return fallback
}

// render executes tpl with params. Sources that fail to compile or execute are
// returned verbatim.
func (m *messageRenderer) render(tpl string, params pongo2.Context) string {
	if !strings.Contains(tpl, "{{") && !strings.Contains(tpl, "{%") {
		return tpl
	}

	m.mu.RLock()
	compiled, ok := m.cache[tpl]
	m.mu.RUnlock()
	if !ok {
		var err error
		compiled, err = pongo2.FromString(tpl)
		if err != nil {
			return tpl
		}
		m.mu.Lock()
		m.cache[tpl] = compiled
		m.mu.Unlock()
	}

	out, err := compiled.Execute(params)
	if err != nil {
		return tpl
	}
	return out
}
