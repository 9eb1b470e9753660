package lookup

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-formrules/pkg/model"
)

// CacheEntry is a cached option list.
type CacheEntry struct {
	Data      []model.LookupOption
	Timestamp time.Time
	TTL       time.Duration
}

// Fresh reports whether the entry is still valid at now.
func (e CacheEntry) Fresh(now time.Time) bool {
	return now.Sub(e.Timestamp) < e.TTL
}

// Store persists cache entries. Freshness is decided by the Service; stores
// only keep what they are given. Implementations must be safe for concurrent
// use.
type Store interface {
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry CacheEntry) error
	Delete(ctx context.Context, key string) error
	// DeleteRef removes every key belonging to ref, see KeyMatchesRef.
	DeleteRef(ctx context.Context, ref string) error
	Clear(ctx context.Context) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]CacheEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (CacheEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[string]CacheEntry)
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) DeleteRef(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if KeyMatchesRef(key, ref) {
			delete(s.entries, key)
		}
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]CacheEntry)
	return nil
}

// Len returns the number of stored entries, fresh or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
