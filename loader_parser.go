package formrules

import (
	"context"

	"github.com/goliatone/go-formrules/pkg/schema"
	"github.com/goliatone/go-formrules/pkg/schema/openapi"
)

// LoadSchema reads a JSON, JSONC or YAML schema file.
func LoadSchema(path string) (FormSchema, error) {
	return schema.LoadFile(path)
}

// ParseSchema decodes a schema document; source labels errors.
func ParseSchema(data []byte, source string) (FormSchema, error) {
	return schema.Parse(data, source)
}

// ImportOpenAPI derives a schema from the request body of an OpenAPI 3
// operation.
func ImportOpenAPI(ctx context.Context, document []byte, operationID string, options ...openapi.Option) (FormSchema, error) {
	return openapi.Import(ctx, document, operationID, options...)
}
