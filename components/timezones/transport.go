package timezones

import (
	"context"
	"strings"

	"github.com/goliatone/go-formrules/internal/coerce"
	"github.com/goliatone/go-formrules/pkg/lookup"
	"github.com/goliatone/go-formrules/pkg/model"
)

// DefaultRef is the lookup ref timezone fields conventionally use.
const DefaultRef = "timezones"

// Transport resolves lookups in-process. The search term, region and limit
// are read from the request params named by SearchParam, RegionParam and
// LimitParam.
func Transport(fns ...OptionFn) lookup.TransportFunc {
	opts := NewOptions(fns...)
	return func(ctx context.Context, req lookup.Request) ([]model.LookupOption, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		catalog, err := opts.source()
		if err != nil {
			return nil, err
		}
		return catalog.Search(Query{
			Text:   stringParam(req.Params[opts.SearchParam]),
			Region: stringParam(req.Params[opts.RegionParam]),
			Limit:  limitParam(req.Params[opts.LimitParam]),
		}, opts), nil
	}
}

// Definition returns an HTTP lookup definition pointing at a Handler mounted
// under baseURL. The search param is bound to the field's own value.
func Definition(ref, baseURL string, fns ...OptionFn) model.LookupDefinition {
	opts := NewOptions(fns...)
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = DefaultRef
	}
	return model.LookupDefinition{
		Ref: ref,
		Endpoint: &model.EndpointConfig{
			URL:         strings.TrimRight(baseURL, "/") + mountPath("", opts.RoutePath),
			Method:      "GET",
			ResultsPath: "data",
			Params: map[string]string{
				opts.LimitParam: coerce.FormatNumber(float64(opts.DefaultLimit)),
			},
			DynamicParams: map[string]string{
				opts.SearchParam: "{{self}}",
			},
			Mapping: model.EndpointMapping{Value: "value", Label: "label"},
		},
	}
}

func stringParam(raw any) string {
	if raw == nil {
		return ""
	}
	return coerce.String(raw)
}

func limitParam(raw any) int {
	if raw == nil {
		return 0
	}
	n, ok := coerce.Number(raw)
	if !ok {
		return 0
	}
	return int(n)
}
