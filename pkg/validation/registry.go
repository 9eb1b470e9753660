package validation

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Context is passed to custom validators alongside the value.
type Context struct {
	// Field is the name of the field being validated.
	Field string
	// Data is the whole form, read-only.
	Data map[string]any
	// Locale selects translated messages when a Translator is configured.
	Locale string
}

// ValidatorFunc is a synchronous custom validator.
type ValidatorFunc func(value any, vctx Context) bool

// AsyncValidatorFunc is a custom validator that may block, for example on a
// remote uniqueness check. A returned error counts as a failed check.
type AsyncValidatorFunc func(ctx context.Context, value any, vctx Context) (bool, error)

type registration struct {
	sync  ValidatorFunc
	async AsyncValidatorFunc
}

// Registry maps validator names to implementations. Registering a name twice
// replaces the earlier entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register stores a synchronous validator under name.
func (r *Registry) Register(name string, fn ValidatorFunc) {
	if fn == nil {
		return
	}
	r.store(name, registration{sync: fn})
}

// RegisterAsync stores an asynchronous validator under name.
func (r *Registry) RegisterAsync(name string, fn AsyncValidatorFunc) {
	if fn == nil {
		return
	}
	r.store(name, registration{async: fn})
}

func (r *Registry) store(name string, entry registration) {
	if r == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]registration)
	}
	r.entries[trimmed] = entry
}

func (r *Registry) lookup(name string) (registration, bool) {
	if r == nil {
		return registration{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[strings.TrimSpace(name)]
	return entry, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// IsAsync reports whether name is registered as an asynchronous validator.
func (r *Registry) IsAsync(name string) bool {
	entry, ok := r.lookup(name)
	return ok && entry.async != nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
