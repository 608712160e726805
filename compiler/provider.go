package compiler

import (
	"context"

	"github.com/fhirschema/go-fhirschema/converter"
)

// SchemaProvider loads already-converted schemas by name or URL. Absent a
// resolver for a given name, GetSchemaByName/GetSchemaByURL return
// (nil, false) — compilation
// reports that as an unresolvable schema, never panics.
type SchemaProvider interface {
	GetSchemaByName(ctx context.Context, name string) (*converter.Schema, bool)
	GetSchemaByURL(ctx context.Context, url string) (*converter.Schema, bool)
}
