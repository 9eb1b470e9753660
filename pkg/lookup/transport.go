package lookup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formrules/pkg/model"
)

// Request is what a Transport receives for one lookup.
type Request struct {
	Ref    string
	Params map[string]any
	// Definition is the registered definition for Ref, or a zero value with
	// only Ref set.
	Definition model.LookupDefinition
}

// Transport fetches option lists. Timeouts are the transport's concern.
type Transport interface {
	Fetch(ctx context.Context, req Request) ([]model.LookupOption, error)
}

// TransportFunc adapts a function into a Transport.
type TransportFunc func(ctx context.Context, req Request) ([]model.LookupOption, error)

// Fetch delegates to the underlying function.
func (fn TransportFunc) Fetch(ctx context.Context, req Request) ([]model.LookupOption, error) {
	return fn(ctx, req)
}

// Mux routes requests to per-ref transports.
type Mux struct {
	mu       sync.RWMutex
	routes   map[string]Transport
	fallback Transport
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{routes: make(map[string]Transport)}
}

// Handle routes ref to t, replacing any earlier route.
func (m *Mux) Handle(ref string, t Transport) {
	ref = strings.TrimSpace(ref)
	if ref == "" || t == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.routes == nil {
		m.routes = make(map[string]Transport)
	}
	m.routes[ref] = t
}

// HandleFunc routes ref to fn.
func (m *Mux) HandleFunc(ref string, fn func(ctx context.Context, req Request) ([]model.LookupOption, error)) {
	if fn == nil {
		return
	}
	m.Handle(ref, TransportFunc(fn))
}

// Fallback sets the transport used for refs without a route, typically an
// HTTPTransport serving endpoint definitions.
func (m *Mux) Fallback(t Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = t
}

// Refs lists the routed refs in sorted order.
func (m *Mux) Refs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	refs := make([]string, 0, len(m.routes))
	for ref := range m.routes {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

func (m *Mux) Fetch(ctx context.Context, req Request) ([]model.LookupOption, error) {
	m.mu.RLock()
	t, ok := m.routes[req.Ref]
	fallback := m.fallback
	m.mu.RUnlock()
	if ok {
		return t.Fetch(ctx, req)
	}
	if fallback != nil {
		return fallback.Fetch(ctx, req)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLookup, req.Ref)
}
