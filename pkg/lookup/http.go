package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formrules/internal/coerce"
	"github.com/goliatone/go-formrules/pkg/model"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithTimeout bounds each request. Zero disables the transport timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(t *HTTPTransport) {
		if timeout >= 0 {
			t.timeout = timeout
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(name, value string) HTTPOption {
	return func(t *HTTPTransport) {
		if strings.TrimSpace(name) != "" {
			t.headers.Set(name, value)
		}
	}
}

// HTTPTransport resolves lookups whose definition carries an endpoint.
//
// GET requests send params as the query string; POST requests send them as a
// JSON object. The response is decoded as JSON, the list at
// endpoint.resultsPath is extracted and each item is mapped to a
// LookupOption through endpoint.mapping.
type HTTPTransport struct {
	client  *http.Client
	timeout time.Duration
	headers http.Header
}

// NewHTTPTransport constructs an HTTPTransport.
func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		client:  http.DefaultClient,
		timeout: defaultHTTPTimeout,
		headers: make(http.Header),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *HTTPTransport) Fetch(ctx context.Context, req Request) ([]model.LookupOption, error) {
	endpoint := req.Definition.Endpoint
	if endpoint == nil || strings.TrimSpace(endpoint.URL) == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoEndpoint, req.Ref)
	}

	reqCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	httpReq, err := t.newRequest(reqCtx, *endpoint, mergeParams(endpoint.Params, req.Params))
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Ref: req.Ref, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("lookup: decode %q response: %w", req.Ref, err)
	}

	items, err := extractResults(payload, endpoint.ResultsPath)
	if err != nil {
		return nil, fmt.Errorf("lookup: %q: %w", req.Ref, err)
	}
	return mapOptions(items, endpoint.Mapping), nil
}

func (t *HTTPTransport) newRequest(ctx context.Context, endpoint model.EndpointConfig, params map[string]any) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(endpoint.Method))
	if method == "" {
		method = http.MethodGet
	}

	var (
		httpReq *http.Request
		err     error
	)
	switch method {
	case http.MethodGet:
		target, parseErr := url.Parse(endpoint.URL)
		if parseErr != nil {
			return nil, fmt.Errorf("lookup: invalid endpoint url: %w", parseErr)
		}
		query := target.Query()
		for name, value := range params {
			query.Set(name, coerce.String(value))
		}
		target.RawQuery = query.Encode()
		httpReq, err = http.NewRequestWithContext(ctx, method, target.String(), nil)
	case http.MethodPost:
		payload, marshalErr := json.Marshal(params)
		if marshalErr != nil {
			return nil, fmt.Errorf("lookup: encode params: %w", marshalErr)
		}
		httpReq, err = http.NewRequestWithContext(ctx, method, endpoint.URL, bytes.NewReader(payload))
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
	default:
		return nil, fmt.Errorf("lookup: unsupported endpoint method %q", method)
	}
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", "application/json")
	for name, values := range t.headers {
		for _, value := range values {
			httpReq.Header.Add(name, value)
		}
	}
	return httpReq, nil
}

// mergeParams overlays call params on the endpoint's static params.
func mergeParams(static map[string]string, call map[string]any) map[string]any {
	out := make(map[string]any, len(static)+len(call))
	for name, value := range static {
		out[name] = value
	}
	for name, value := range call {
		out[name] = value
	}
	return out
}

func extractResults(payload any, path string) ([]any, error) {
	current := payload
	path = strings.TrimSpace(path)
	if path != "" {
		for _, part := range strings.Split(path, ".") {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("results path %q does not resolve", path)
			}
			current, ok = obj[part]
			if !ok {
				return nil, fmt.Errorf("results path %q does not resolve", path)
			}
		}
	}
	switch typed := current.(type) {
	case []any:
		return typed, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected a list of results, got %T", current)
	}
}

func mapOptions(items []any, mapping model.EndpointMapping) []model.LookupOption {
	valueKey := firstNonEmpty(mapping.Value, "value")
	labelKey := firstNonEmpty(mapping.Label, "label")

	options := make([]model.LookupOption, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			options = append(options, model.LookupOption{Value: item, Label: SanitizeLabel(coerce.String(item))})
			continue
		}

		vKey, lKey := valueKey, labelKey
		if _, ok := obj[vKey]; !ok && mapping.Value == "" {
			vKey = "id"
		}
		if _, ok := obj[lKey]; !ok && mapping.Label == "" {
			lKey = "name"
		}
		value := obj[vKey]
		label, hasLabel := obj[lKey]
		if !hasLabel {
			label = value
		}

		var extra map[string]any
		for key, v := range obj {
			if key == vKey || key == lKey {
				continue
			}
			if extra == nil {
				extra = make(map[string]any)
			}
			extra[key] = v
		}
		options = append(options, model.LookupOption{
			Value: value,
			Label: SanitizeLabel(coerce.String(label)),
			Extra: extra,
		})
	}
	return options
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var (
	labelPolicyOnce sync.Once
	labelPolicy     *bluemonday.Policy
)

// SanitizeLabel strips markup from a remote label and returns plain text.
func SanitizeLabel(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	labelPolicyOnce.Do(func() {
		labelPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(labelPolicy.Sanitize(trimmed)))
}
