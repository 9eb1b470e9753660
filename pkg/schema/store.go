package schema

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formrules/pkg/model"
)

// Store holds loaded schemas keyed by id. It is safe for concurrent use;
// Put replaces an existing entry, which is how hot reloads land.
type Store struct {
	mu      sync.RWMutex
	schemas map[string]entry
}

type entry struct {
	schema model.FormSchema
	source Source
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{schemas: make(map[string]entry)}
}

// Put adds or replaces schema. A schema without an id is rejected.
func (s *Store) Put(schema model.FormSchema, src Source) error {
	id := strings.TrimSpace(schema.ID)
	if id == "" {
		return fmt.Errorf("schema: %s defines a schema without an id", location(src))
	}
	if src == nil {
		src = SourceInline("")
	}
	s.mu.Lock()
	s.schemas[id] = entry{schema: schema, source: src}
	s.mu.Unlock()
	return nil
}

func (s *Store) add(schema model.FormSchema, src Source) error {
	if schema.ID == "" {
		return fmt.Errorf("schema: %s defines a schema without an id", location(src))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, exists := s.schemas[schema.ID]; exists {
		return fmt.Errorf("schema: duplicate schema %q (%s and %s)", schema.ID, location(existing.source), location(src))
	}
	s.schemas[schema.ID] = entry{schema: schema, source: src}
	return nil
}

// Get returns the schema registered under id.
func (s *Store) Get(id string) (model.FormSchema, bool) {
	if s == nil {
		return model.FormSchema{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.schemas[id]
	return e.schema, ok
}

// Source reports where the schema registered under id came from.
func (s *Store) Source(id string) (Source, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.schemas[id]
	return e.source, ok
}

// IDs returns the registered ids in sorted order.
func (s *Store) IDs() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.schemas))
	for id := range s.schemas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports the number of schemas.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.schemas)
}

// LoadFile parses a single schema document from disk.
func LoadFile(path string) (model.FormSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FormSchema{}, fmt.Errorf("schema: read %s: %w", path, err)
	}
	return Parse(data, filepath.Clean(path))
}

// LoadFS walks fsys and parses every schema file into a Store. Duplicate ids
// across files are errors. A nil fsys yields an empty store.
func LoadFS(fsys fs.FS) (*Store, error) {
	store := NewStore()
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !IsSchemaFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}
		schema, err := Parse(data, path)
		if err != nil {
			return err
		}
		return store.add(schema, SourceFromFS(path))
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// IsSchemaFile reports whether path has a recognised schema extension.
func IsSchemaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func location(src Source) string {
	if src == nil {
		return "<inline>"
	}
	return src.Location()
}
