package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tidwall/jsonc"
	"go.uber.org/zap"

	"github.com/goliatone/go-formrules/components/timezones"
	"github.com/goliatone/go-formrules/pkg/diag"
	"github.com/goliatone/go-formrules/pkg/logic"
	"github.com/goliatone/go-formrules/pkg/lookup"
	"github.com/goliatone/go-formrules/pkg/lookup/redisstore"
	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/orchestrator"
	"github.com/goliatone/go-formrules/pkg/schema"
	"github.com/goliatone/go-formrules/pkg/validation"
)

// runtime bundles the engines a command needs. close releases the redis
// client when one was opened.
type runtime struct {
	orchestrator *orchestrator.Orchestrator
	lookups      *lookup.Service
	close        func() error
}

func (o *RootOptions) newRuntime(defs ...model.LookupDefinition) (*runtime, error) {
	logger := o.log()
	sink := diag.Zap(logger)

	translator, err := newCatalogTranslator(o.config.Messages)
	if err != nil {
		return nil, err
	}
	validationOpts := []validation.Option{validation.WithDiagnostics(sink)}
	if translator != nil {
		validationOpts = append(validationOpts, validation.WithTranslator(translator))
	}

	mux := lookup.NewMux()
	mux.Handle(timezones.DefaultRef, timezones.Transport())
	mux.Fallback(lookup.NewHTTPTransport(lookup.WithTimeout(o.config.Lookup.Timeout)))

	rt := &runtime{close: func() error { return nil }}
	lookupOpts := []lookup.Option{
		lookup.WithLogger(logger.Named("lookup")),
		lookup.WithDefaultTTL(time.Duration(o.config.Lookup.TTL) * time.Second),
		lookup.WithDefinitions(o.config.Lookup.Endpoints...),
		lookup.WithDefinitions(defs...),
	}
	if addr := strings.TrimSpace(o.config.Lookup.Redis.Addr); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: o.config.Lookup.Redis.Password,
			DB:       o.config.Lookup.Redis.DB,
		})
		var storeOpts []redisstore.Option
		if prefix := strings.TrimSpace(o.config.Lookup.Redis.Prefix); prefix != "" {
			storeOpts = append(storeOpts, redisstore.WithPrefix(prefix))
		}
		store, err := redisstore.New(client, storeOpts...)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		lookupOpts = append(lookupOpts, lookup.WithStore(store))
		rt.close = client.Close
		logger.Debug("lookup cache backed by redis", zap.String("addr", addr))
	}

	service, err := lookup.New(mux, lookupOpts...)
	if err != nil {
		_ = rt.close()
		return nil, err
	}
	rt.lookups = service
	rt.orchestrator = orchestrator.New(
		orchestrator.WithValidationEngine(validation.New(validationOpts...)),
		orchestrator.WithLogicEngine(logic.New(logic.WithDiagnostics(sink))),
		orchestrator.WithLookupService(service),
		orchestrator.WithLogger(logger.Named("orchestrator")),
	)
	return rt, nil
}

// knownLookups lists refs resolvable without a schema declaration.
func (o *RootOptions) knownLookups() []string {
	refs := []string{timezones.DefaultRef}
	for _, def := range o.config.Lookup.Endpoints {
		refs = append(refs, def.Ref)
	}
	return refs
}

func loadSchema(path string) (model.FormSchema, error) {
	form, err := schema.LoadFile(path)
	if err != nil {
		return model.FormSchema{}, WrapExitError(ExitCommandError, "load schema", err)
	}
	return form, nil
}

// readData decodes a JSON (or JSONC) object from path, or from stdin when
// path is "-".
func readData(path string, stdin io.Reader) (map[string]any, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read data", err)
	}
	data := map[string]any{}
	if strings.TrimSpace(string(raw)) == "" {
		return data, nil
	}
	if err := json.Unmarshal(jsonc.ToJSON(raw), &data); err != nil {
		return nil, WrapExitError(ExitCommandError, "read data", fmt.Errorf("%s: %w", path, err))
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
