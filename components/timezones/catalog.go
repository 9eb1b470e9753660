package timezones

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formrules/pkg/model"
)

//go:embed data/iana_timezones.txt
var dataFS embed.FS

const embeddedList = "data/iana_timezones.txt"

// Zone is one IANA name split at its first and last slash. "UTC" has no
// region and is its own city.
type Zone struct {
	Name   string
	Region string
	City   string
}

// Option maps the zone to a lookup option carrying the region in Extra.
func (z Zone) Option() model.LookupOption {
	option := model.LookupOption{Value: z.Name, Label: z.Name}
	if z.Region != "" {
		option.Extra = map[string]any{"region": z.Region}
	}
	return option
}

func newZone(name string) Zone {
	zone := Zone{Name: name, City: name}
	if region, _, ok := strings.Cut(name, "/"); ok {
		zone.Region = region
		zone.City = name[strings.LastIndex(name, "/")+1:]
	}
	return zone
}

// Catalog is an immutable, name-sorted set of zones. It is safe for
// concurrent use.
type Catalog struct {
	zones []Zone
	names []string
	cities []string
}

// NewCatalog trims, dedupes and sorts names. Blank entries are dropped.
func NewCatalog(names []string) *Catalog {
	seen := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}
	sort.Strings(unique)

	c := &Catalog{
		zones: make([]Zone, len(unique)),
		names: make([]string, len(unique)),
		cities: make([]string, len(unique)),
	}
	for i, name := range unique {
		zone := newZone(name)
		c.zones[i] = zone
		c.names[i] = strings.ToLower(zone.Name)
		c.cities[i] = strings.ToLower(zone.City)
	}
	return c
}

// ReadCatalog reads one zone per line. Blank lines and lines starting with
// '#' are skipped.
func ReadCatalog(r io.Reader) (*Catalog, error) {
	if r == nil {
		return nil, fmt.Errorf("timezones: missing reader")
	}
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("timezones: read list: %w", err)
	}
	return NewCatalog(names), nil
}

var embedded = sync.OnceValues(func() (*Catalog, error) {
	f, err := dataFS.Open(embeddedList)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadCatalog(f)
})

// DefaultCatalog returns the embedded IANA list, parsed once.
func DefaultCatalog() (*Catalog, error) {
	return embedded()
}

func (c *Catalog) Len() int { return len(c.zones) }

// Zones returns a copy of the catalog in name order.
func (c *Catalog) Zones() []Zone {
	return append([]Zone(nil), c.zones...)
}

// Regions lists the distinct regions in name order.
func (c *Catalog) Regions() []string {
	var regions []string
	for _, zone := range c.zones {
		if zone.Region == "" {
			continue
		}
		if n := len(regions); n == 0 || regions[n-1] != zone.Region {
			regions = append(regions, zone.Region)
		}
	}
	return regions
}

// Query narrows a catalog search. Region matches case-insensitively and
// restricts results to one region. A zero Limit uses the default.
type Query struct {
	Text   string
	Region string
	Limit  int
}

type rank int

const (
	rankNamePrefix rank = iota
	rankCityPrefix
	rankContains
)

type match struct {
	index int
	rank  rank
}

// Search ranks zones whose name contains Text: name prefixes first, then
// city prefixes ("lis" finds Europe/Lisbon), then any other match. Ties
// keep name order. An empty Text lists the first zones when opts allow it
// or when a Region is given.
func (c *Catalog) Search(q Query, opts Options) []model.LookupOption {
	limit := clampLimit(q.Limit, opts)
	if limit == 0 {
		return []model.LookupOption{}
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))
	region := strings.TrimSpace(q.Region)
	if text == "" && region == "" && opts.EmptySearchMode != EmptySearchTop {
		return []model.LookupOption{}
	}

	matches := make([]match, 0, 32)
	for i, zone := range c.zones {
		if region != "" && !strings.EqualFold(zone.Region, region) {
			continue
		}
		switch {
		case text == "" || strings.HasPrefix(c.names[i], text):
			matches = append(matches, match{index: i, rank: rankNamePrefix})
		case strings.HasPrefix(c.cities[i], text):
			matches = append(matches, match{index: i, rank: rankCityPrefix})
		case strings.Contains(c.names[i], text):
			matches = append(matches, match{index: i, rank: rankContains})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].rank < matches[j].rank
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]model.LookupOption, 0, len(matches))
	for _, m := range matches {
		out = append(out, c.zones[m.index].Option())
	}
	return out
}
