package timezones

import "net/http"

type EmptySearchMode string

const (
	EmptySearchNone EmptySearchMode = "none"
	EmptySearchTop  EmptySearchMode = "top"
)

const (
	defaultRoutePath = "/api/timezones"
	defaultLimit     = 50
	defaultMaxLimit  = 200
)

type GuardFunc func(r *http.Request) error

// Options configures searches for both the transport and the handler.
type Options struct {
	RoutePath       string
	SearchParam     string
	RegionParam     string
	LimitParam      string
	DefaultLimit    int
	MaxLimit        int
	EmptySearchMode EmptySearchMode
	Guard           GuardFunc

	Zones []string

	catalog *Catalog
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		RoutePath:       defaultRoutePath,
		SearchParam:     "q",
		RegionParam:     "region",
		LimitParam:      "limit",
		DefaultLimit:    defaultLimit,
		MaxLimit:        defaultMaxLimit,
		EmptySearchMode: EmptySearchTop,
	}
}

// NewOptions applies fns over DefaultOptions and restores defaults for any
// value left blank or non-positive.
func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn != nil {
			fn(&opts)
		}
	}
	defaults := DefaultOptions()
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaults.DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = defaults.MaxLimit
	}
	if opts.EmptySearchMode == "" {
		opts.EmptySearchMode = defaults.EmptySearchMode
	}
	if opts.RoutePath == "" {
		opts.RoutePath = defaults.RoutePath
	}
	if opts.SearchParam == "" {
		opts.SearchParam = defaults.SearchParam
	}
	if opts.RegionParam == "" {
		opts.RegionParam = defaults.RegionParam
	}
	if opts.LimitParam == "" {
		opts.LimitParam = defaults.LimitParam
	}
	opts.catalog = nil
	if opts.Zones != nil {
		opts.Zones = append([]string{}, opts.Zones...)
		opts.catalog = NewCatalog(opts.Zones)
	}
	return opts
}

func WithRoutePath(path string) OptionFn {
	return func(o *Options) {
		o.RoutePath = path
	}
}

func WithSearchParam(name string) OptionFn {
	return func(o *Options) {
		o.SearchParam = name
	}
}

// WithRegionParam names the param that restricts results to one region.
func WithRegionParam(name string) OptionFn {
	return func(o *Options) {
		o.RegionParam = name
	}
}

func WithLimitParam(name string) OptionFn {
	return func(o *Options) {
		o.LimitParam = name
	}
}

func WithDefaultLimit(limit int) OptionFn {
	return func(o *Options) {
		o.DefaultLimit = limit
	}
}

func WithMaxLimit(limit int) OptionFn {
	return func(o *Options) {
		o.MaxLimit = limit
	}
}

func WithEmptySearchMode(mode EmptySearchMode) OptionFn {
	return func(o *Options) {
		o.EmptySearchMode = mode
	}
}

// WithGuard rejects handler requests for which guard returns an error. An
// error implementing StatusCode() chooses the response status.
func WithGuard(guard GuardFunc) OptionFn {
	return func(o *Options) {
		o.Guard = guard
	}
}

// WithZones replaces the embedded list.
func WithZones(zones []string) OptionFn {
	return func(o *Options) {
		if zones == nil {
			o.Zones = nil
			return
		}
		o.Zones = append([]string{}, zones...)
	}
}

func (o Options) source() (*Catalog, error) {
	if o.catalog != nil {
		return o.catalog, nil
	}
	return DefaultCatalog()
}

func clampLimit(limit int, opts Options) int {
	if limit < 0 {
		return 0
	}
	if limit == 0 {
		limit = opts.DefaultLimit
	}
	if opts.MaxLimit > 0 && limit > opts.MaxLimit {
		return opts.MaxLimit
	}
	return limit
}
