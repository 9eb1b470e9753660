// Package redisstore is a lookup.Store backed by Redis. Entries are CBOR
// encoded with deterministic options and expire natively after their TTL;
// the lookup Service still applies its own freshness check.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-formrules/pkg/lookup"
	"github.com/goliatone/go-formrules/pkg/model"
)

const (
	defaultPrefix   = "formrules:lookup:"
	defaultScanSize = 100
)

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key. Defaults to "formrules:lookup:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithScanCount tunes the COUNT hint used when scanning for prefix deletes.
func WithScanCount(count int64) Option {
	return func(s *Store) {
		if count > 0 {
			s.scanCount = count
		}
	}
}

// Store implements lookup.Store.
type Store struct {
	client    redis.UniversalClient
	prefix    string
	scanCount int64
	enc       cbor.EncMode
	dec       cbor.DecMode
}

var _ lookup.Store = (*Store)(nil)

// New wraps client.
func New(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("redisstore: client is required")
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("redisstore: cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("redisstore: cbor decoder: %w", err)
	}
	s := &Store{
		client:    client,
		prefix:    defaultPrefix,
		scanCount: defaultScanSize,
		enc:       enc,
		dec:       dec,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

type wireOption struct {
	Value any            `cbor:"v"`
	Label string         `cbor:"l"`
	Extra map[string]any `cbor:"x,omitempty"`
}

type wireEntry struct {
	Data        []wireOption `cbor:"d"`
	TimestampMs int64        `cbor:"t"`
	TTLMs       int64        `cbor:"ttl"`
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

func (s *Store) Get(ctx context.Context, key string) (lookup.CacheEntry, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return lookup.CacheEntry{}, false, nil
	}
	if err != nil {
		return lookup.CacheEntry{}, false, fmt.Errorf("redisstore: get %q: %w", key, err)
	}

	var wire wireEntry
	if err := s.dec.Unmarshal(raw, &wire); err != nil {
		return lookup.CacheEntry{}, false, fmt.Errorf("redisstore: decode %q: %w", key, err)
	}
	data := make([]model.LookupOption, 0, len(wire.Data))
	for _, opt := range wire.Data {
		data = append(data, model.LookupOption{Value: opt.Value, Label: opt.Label, Extra: opt.Extra})
	}
	return lookup.CacheEntry{
		Data:      data,
		Timestamp: time.UnixMilli(wire.TimestampMs),
		TTL:       time.Duration(wire.TTLMs) * time.Millisecond,
	}, true, nil
}

func (s *Store) Set(ctx context.Context, key string, entry lookup.CacheEntry) error {
	wire := wireEntry{
		Data:        make([]wireOption, 0, len(entry.Data)),
		TimestampMs: entry.Timestamp.UnixMilli(),
		TTLMs:       entry.TTL.Milliseconds(),
	}
	for _, opt := range entry.Data {
		wire.Data = append(wire.Data, wireOption{Value: opt.Value, Label: opt.Label, Extra: opt.Extra})
	}
	raw, err := s.enc.Marshal(wire)
	if err != nil {
		return fmt.Errorf("redisstore: encode %q: %w", key, err)
	}
	if err := s.client.Set(ctx, s.key(key), raw, entry.TTL).Err(); err != nil {
		return fmt.Errorf("redisstore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redisstore: delete %q: %w", key, err)
	}
	return nil
}

// DeleteRef removes the bare ref key and every "ref?..." variant.
func (s *Store) DeleteRef(ctx context.Context, ref string) error {
	if err := s.Delete(ctx, ref); err != nil {
		return err
	}
	return s.deleteMatching(ctx, s.refPattern(ref))
}

// Clear removes every key under the store prefix.
func (s *Store) Clear(ctx context.Context) error {
	return s.deleteMatching(ctx, s.prefixPattern())
}

// refPattern matches the "ref?..." variants of ref under the prefix. Both
// parts are escaped so a prefix or ref holding glob characters matches
// literally.
func (s *Store) refPattern(ref string) string {
	return escapeGlob(s.prefix) + escapeGlob(ref) + "\\?*"
}

func (s *Store) prefixPattern() string {
	return escapeGlob(s.prefix) + "*"
}

func (s *Store) deleteMatching(ctx context.Context, pattern string) error {
	iter := s.client.Scan(ctx, 0, pattern, s.scanCount).Iterator()
	batch := make([]string, 0, s.scanCount)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redisstore: delete batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= s.scanCount {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redisstore: scan %q: %w", pattern, err)
	}
	return flush()
}

// escapeGlob escapes the characters Redis MATCH patterns treat specially.
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
