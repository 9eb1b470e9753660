// Package lookup resolves option lists for lookup-backed fields through an
// injected Transport, caching results per ref and params and collapsing
// concurrent identical requests into one transport call.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-formrules/pkg/model"
)

// Option configures a Service.
type Option func(*Service)

// WithStore replaces the default MemoryStore.
func WithStore(store Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets the logger used for cache and flight events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultTTL sets the TTL applied to refs whose definition does not set
// one. Zero disables caching for those refs.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithDefinitions registers lookup definitions at construction.
func WithDefinitions(defs ...model.LookupDefinition) Option {
	return func(s *Service) {
		s.pending = append(s.pending, defs...)
	}
}

// Service resolves and caches lookups. It is safe for concurrent use.
type Service struct {
	transport  Transport
	store      Store
	logger     *zap.Logger
	now        func() time.Time
	defaultTTL time.Duration
	validate   *validator.Validate

	group   singleflight.Group
	waiting atomic.Int64

	mu          sync.Mutex
	generation  uint64
	refVersions map[string]uint64
	defs        map[string]model.LookupDefinition
	pending     []model.LookupDefinition
}

// New constructs a Service backed by transport. It fails when a definition
// supplied through WithDefinitions is invalid.
func New(transport Transport, opts ...Option) (*Service, error) {
	if transport == nil {
		return nil, errors.New("lookup: transport is required")
	}
	s := &Service{
		transport:   transport,
		store:       NewMemoryStore(),
		logger:      zap.NewNop(),
		now:         time.Now,
		defaultTTL:  time.Duration(model.DefaultLookupTTL) * time.Second,
		validate:    validator.New(),
		refVersions: make(map[string]uint64),
		defs:        make(map[string]model.LookupDefinition),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	pending := s.pending
	s.pending = nil
	for _, def := range pending {
		if err := s.Define(def); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Define registers or replaces the definition for def.Ref.
func (s *Service) Define(def model.LookupDefinition) error {
	def.Ref = strings.TrimSpace(def.Ref)
	if err := s.validate.Struct(def); err != nil {
		return fmt.Errorf("lookup: invalid definition %q: %w", def.Ref, err)
	}
	s.mu.Lock()
	s.defs[def.Ref] = def
	s.mu.Unlock()
	return nil
}

// Definition returns the registered definition for ref.
func (s *Service) Definition(ref string) (model.LookupDefinition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.defs[ref]
	return def, ok
}

// GetLookup returns the options for ref and params. A fresh cache entry is
// served without calling the transport; otherwise concurrent callers for the
// same key share one transport call and receive the same slice, which they
// must treat as read-only. Failures are returned to every waiter as *Error
// and never cached.
//
// A caller whose ctx ends stops waiting, but the shared transport call keeps
// running for the remaining waiters.
func (s *Service) GetLookup(ctx context.Context, ref string, params map[string]any) ([]model.LookupOption, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("lookup: ref is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := CacheKey(ref, params)
	if data, ok := s.cached(ctx, key); ok {
		s.logger.Debug("lookup cache hit", zap.String("key", key))
		return data, nil
	}

	s.mu.Lock()
	generation, version := s.generation, s.refVersions[ref]
	s.mu.Unlock()

	flightKey := fmt.Sprintf("%d.%d|%s", generation, version, key)
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flightKey, func() (any, error) {
		return s.fetch(flightCtx, ref, key, cloneParams(params), generation, version)
	})
	s.waiting.Add(1)
	defer s.waiting.Add(-1)

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("lookup request deduplicated", zap.String("key", key))
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.LookupOption), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) fetch(ctx context.Context, ref, key string, params map[string]any, generation, version uint64) ([]model.LookupOption, error) {
	if data, ok := s.cached(ctx, key); ok {
		return data, nil
	}

	def, ok := s.Definition(ref)
	if !ok {
		def = model.LookupDefinition{Ref: ref}
	}

	s.logger.Debug("lookup cache miss", zap.String("key", key))
	data, err := s.call(ctx, Request{Ref: ref, Params: params, Definition: def})
	if err != nil {
		var lookupErr *Error
		if !errors.As(err, &lookupErr) {
			err = &Error{Ref: ref, Err: err}
		}
		s.logger.Debug("lookup transport failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	if data == nil {
		data = []model.LookupOption{}
	}

	ttl := s.defaultTTL
	if def.TTL != nil {
		ttl = time.Duration(*def.TTL) * time.Second
	}
	if ttl <= 0 {
		return data, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation || s.refVersions[ref] != version {
		s.logger.Debug("lookup result discarded after invalidation", zap.String("key", key))
		return data, nil
	}
	if err := s.store.Set(ctx, key, CacheEntry{Data: data, Timestamp: s.now(), TTL: ttl}); err != nil {
		s.logger.Warn("lookup cache store failed", zap.String("key", key), zap.Error(err))
		return data, nil
	}
	s.logger.Debug("lookup cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return data, nil
}

func (s *Service) call(ctx context.Context, req Request) (data []model.LookupOption, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			data, err = nil, fmt.Errorf("transport panicked: %v", recovered)
		}
	}()
	return s.transport.Fetch(ctx, req)
}

// Waiting reports how many GetLookup callers are attached to a transport
// call that has not resolved yet.
func (s *Service) Waiting() int {
	return int(s.waiting.Load())
}

// cached returns a fresh entry for key, evicting a stale one.
func (s *Service) cached(ctx context.Context, key string) ([]model.LookupOption, bool) {
	entry, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("lookup cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if !entry.Fresh(s.now()) {
		s.evict(ctx, key, entry.Timestamp)
		return nil, false
	}
	return entry.Data, true
}

// evict deletes key only while it still holds the stale entry stamped at
// stale. Stores happen under s.mu, so a result cached since the read survives.
func (s *Service) evict(ctx context.Context, key string, stale time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("lookup cache read failed", zap.String("key", key), zap.Error(err))
		return
	}
	if !ok || !current.Timestamp.Equal(stale) {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("lookup cache evict failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every cached variant of ref. Requests for ref already in
// flight still resolve their waiters but do not populate the cache.
func (s *Service) Invalidate(ref string) {
	ref = strings.TrimSpace(ref)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refVersions[ref]++
	if err := s.store.DeleteRef(context.Background(), ref); err != nil {
		s.logger.Warn("lookup invalidate failed", zap.String("ref", ref), zap.Error(err))
	}
}

// ClearAll empties the cache. In-flight requests are not cancelled; their
// results reach their waiters but are not cached.
func (s *Service) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if err := s.store.Clear(context.Background()); err != nil {
		s.logger.Warn("lookup clear failed", zap.Error(err))
	}
}

func cloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
