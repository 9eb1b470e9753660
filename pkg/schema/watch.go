package schema

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-formrules/pkg/model"
)

// DefaultDebounce coalesces the burst of events editors emit per save.
const DefaultDebounce = 100 * time.Millisecond

// ReloadFunc receives the freshly parsed schema, or the error that stopped
// it from loading. The previous schema stays in effect on error.
type ReloadFunc func(schema model.FormSchema, err error)

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

// Watch reloads the schema at path whenever it is written, created or
// renamed into place, and calls onChange with the result. The parent
// directory is watched so atomic-rename saves are seen. Watch blocks until
// ctx is done.
func Watch(ctx context.Context, path string, onChange ReloadFunc, opts ...WatchOption) error {
	if onChange == nil {
		return fmt.Errorf("schema: watch %s: onChange is required", path)
	}
	cfg := watchConfig{debounce: DefaultDebounce}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("schema: watch %s: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("schema: watch %s: %w", path, err)
	}
	defer func() {
		_ = watcher.Close()
	}()
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("schema: watch %s: %w", path, err)
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(cfg.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onChange(model.FormSchema{}, fmt.Errorf("schema: watch %s: %w", path, err))
		case <-timer.C:
			schema, err := LoadFile(target)
			onChange(schema, err)
		}
	}
}
