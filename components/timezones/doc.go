// Package timezones is an in-process lookup source over the IANA timezone
// list embedded under data/iana_timezones.txt.
//
// A Catalog holds the parsed zones split into region and city and ranks
// searches over them. Transport answers lookup requests directly; Handler
// serves the same search as JSON ({"data": [...]}) so an HTTP lookup
// definition built by Definition can reach it remotely, passing the field's
// own value as the search term. Both accept a region param to narrow results.
package timezones
