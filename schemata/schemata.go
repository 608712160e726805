// Package schemata implements the collect/follow algorithm that expands a
// root schema set into the schemata a given node of a resource instance
// must be validated against.
package schemata

import (
	"context"
	"strings"

	"github.com/fhirschema/go-fhirschema/compiler"
)

// Set maps a schema key (its name or URL, whichever the caller resolved it
// by) to the compiled schema.
type Set map[string]*compiler.CompiledSchema

// Resolver fetches compiled schemas on demand, keeping the schemata
// algorithm independent of any particular cache/provider wiring.
type Resolver struct {
	Compile func(ctx context.Context, nameOrURL string) (*compiler.CompiledSchema, bool)
}

func isResourceOrComplexKind(kind string) bool {
	return kind == "resource" || kind == "complex-type"
}

// Collect expands rootKeys into the full schemata set reachable by
// following `base` links, restricted to resource/complex-type kind
// schemas only — pulling in a descendant element's type schema here would
// let unrelated array/required declarations leak into the root context.
func (r *Resolver) Collect(ctx context.Context, rootKeys []string) Set {
	set := Set{}
	for _, key := range rootKeys {
		if schema, ok := r.Compile(ctx, key); ok {
			set[key] = schema
		}
	}

	for {
		before := len(set)
		r.collectOperation(ctx, set)
		if len(set) == before {
			break
		}
	}
	return set
}

func (r *Resolver) collectOperation(ctx context.Context, set Set) {
	for _, schema := range set {
		if !isResourceOrComplexKind(schema.Kind) {
			continue
		}
		if schema.Base == "" {
			continue
		}
		if _, ok := set[schema.Base]; ok {
			continue
		}
		if base, ok := r.Compile(ctx, schema.Base); ok {
			set[schema.Base] = base
		}
	}
}

// CollectElementTypeSchemas continues the base-chain walk after a Follow
// descent, for complex-type/primitive-type kind schemas reached via the
// element's own type — the same fixed-point loop as Collect, scoped to the
// schemata set Follow just built.
func (r *Resolver) CollectElementTypeSchemas(ctx context.Context, set Set) {
	for {
		before := len(set)
		for _, schema := range set {
			if schema.Kind != "complex-type" && schema.Kind != "primitive-type" {
				continue
			}
			if schema.Base == "" {
				continue
			}
			if _, ok := set[schema.Base]; ok {
				continue
			}
			if base, ok := r.Compile(ctx, schema.Base); ok {
				set[schema.Base] = base
			}
		}
		if len(set) == before {
			break
		}
	}
}

// elementToSchema wraps a bare element (no declared type, no nested
// elements) into a synthetic schema of kind "element", so the walker can
// validate its primitive value / constraints uniformly.
func elementToSchema(el *compiler.CompiledElement) *compiler.CompiledSchema {
	return &compiler.CompiledSchema{
		Name:        "element:" + el.Name,
		Kind:        "element",
		Elements:    el.Children,
		Constraints: el.Constraints,
	}
}

// Follow builds a brand-new schemata set for descending into the named
// child element of current: inline-nested schemas, the element's declared
// type schema, elementReference targets, a bare "element" schema when
// there's neither, and the "Element" schema for `_`-prefixed primitive
// -extension siblings.
func (r *Resolver) Follow(ctx context.Context, current Set, elementName string) Set {
	next := Set{}

	for _, schema := range current {
		el, ok := schema.Elements[elementName]
		if !ok {
			continue
		}

		inlineKind := el.TypeInfo.Kind == compiler.TypeBackboneElement || el.TypeInfo.Kind == compiler.TypeComplex
		if len(el.Children) > 0 && inlineKind {
			next["inline:"+elementName] = elementToSchema(el)
		}

		if el.TypeName != "" {
			if typeSchema, ok := r.Compile(ctx, el.TypeName); ok {
				next[el.TypeName] = typeSchema
			}
		}

		for _, target := range el.ElementReference {
			if refSchema, ok := r.Compile(ctx, target); ok {
				next[target] = refSchema
			}
		}

		if el.TypeName == "" && len(el.Children) == 0 {
			next["synthetic:"+elementName] = elementToSchema(el)
		}
	}

	if strings.HasPrefix(elementName, "_") {
		base := strings.TrimPrefix(elementName, "_")
		for _, schema := range current {
			if _, ok := schema.Elements[base]; ok {
				if elSchema, ok := r.Compile(ctx, "Element"); ok {
					next["Element"] = elSchema
				}
				break
			}
		}
	}

	return next
}
