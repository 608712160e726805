package compiler

import (
	"context"
	"fmt"
	"sync"

	"github.com/fhirschema/go-fhirschema/converter"
	"github.com/fhirschema/go-fhirschema/primitive"
)

// CompileError reports a failure resolving or merging a schema's
// inheritance chain; like conversion errors, these abort the whole
// operation rather than degrading to a diagnostic.
type CompileError struct {
	SchemaName string
	Msg        string
}

func (e *CompileError) Error() string {
	if e.SchemaName != "" {
		return fmt.Sprintf("compile schema %q: %s", e.SchemaName, e.Msg)
	}
	return fmt.Sprintf("compile error: %s", e.Msg)
}

// Compiler resolves base chains, merges, inlines types, and caches the
// result keyed by schema name. A single builder runs per key; concurrent
// requests for the same key coalesce onto that one build.
type Compiler struct {
	provider SchemaProvider
	cache    *lruCache

	mu       sync.Mutex
	inflight map[string]*buildGroup
}

type buildGroup struct {
	done   chan struct{}
	result *CompiledSchema
	err    error
}

// New returns a Compiler backed by a bounded LRU cache of the given
// capacity (0 selects a sensible default).
func New(provider SchemaProvider, cacheCapacity int) *Compiler {
	if cacheCapacity <= 0 {
		cacheCapacity = 500
	}
	return &Compiler{
		provider: provider,
		cache:    newLRUCache(cacheCapacity),
		inflight: map[string]*buildGroup{},
	}
}

// Compile returns the cached compiled schema for name, building it if
// necessary. At most one goroutine builds a given name at a time; others
// observe that build's result.
func (c *Compiler) Compile(ctx context.Context, name string) (*CompiledSchema, error) {
	if cached, ok := c.cache.Get(name); ok {
		return cached, nil
	}

	c.mu.Lock()
	if g, ok := c.inflight[name]; ok {
		c.mu.Unlock()
		select {
		case <-g.done:
			return g.result, g.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g := &buildGroup{done: make(chan struct{})}
	c.inflight[name] = g
	c.mu.Unlock()

	compiled, err := c.compileInternal(ctx, name)

	g.result, g.err = compiled, err
	close(g.done)

	c.mu.Lock()
	delete(c.inflight, name)
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	c.cache.Set(name, compiled)
	return compiled, nil
}

func (c *Compiler) compileInternal(ctx context.Context, name string) (*CompiledSchema, error) {
	schema, ok := c.provider.GetSchemaByName(ctx, name)
	if !ok {
		return nil, &CompileError{SchemaName: name, Msg: "schema not found"}
	}

	chain, err := c.resolveChain(ctx, schema)
	if err != nil {
		return nil, err
	}
	merged := c.mergeChain(chain)

	elements, err := c.expandElements(ctx, merged.Elements)
	if err != nil {
		return nil, err
	}

	required := map[string]bool{}
	for _, r := range merged.Required {
		required[r] = true
	}
	excluded := map[string]bool{}
	for _, e := range merged.Excluded {
		excluded[e] = true
	}

	return &CompiledSchema{
		URL:         schema.URL,
		Name:        schema.Name,
		Base:        schema.Base,
		Elements:    elements,
		Constraints: c.collectConstraints(chain),
		Required:    required,
		Excluded:    excluded,
		IsResource:  schema.Kind == "resource",
		Kind:        schema.Kind,
	}, nil
}

// resolveChain follows base references from schema up to its root ancestor,
// then returns the chain base-first, cycle-protected by a visited set.
func (c *Compiler) resolveChain(ctx context.Context, schema *converter.Schema) ([]*converter.Schema, error) {
	chain := []*converter.Schema{schema}
	visited := map[string]bool{schema.URL: true}
	current := schema

	for current.Base != "" {
		if visited[current.Base] {
			break
		}
		visited[current.Base] = true

		base, ok := c.provider.GetSchemaByURL(ctx, current.Base)
		if !ok {
			break
		}
		chain = append(chain, base)
		current = base
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (c *Compiler) mergeChain(chain []*converter.Schema) *converter.Schema {
	if len(chain) == 0 {
		return &converter.Schema{}
	}
	merged := cloneSchemaShallow(chain[0])
	for _, overlay := range chain[1:] {
		merged = mergeSchemas(merged, overlay)
	}
	return merged
}

func cloneSchemaShallow(s *converter.Schema) *converter.Schema {
	cp := *s
	return &cp
}

func mergeSchemas(base, overlay *converter.Schema) *converter.Schema {
	result := *base
	result.URL = overlay.URL
	result.Name = overlay.Name

	if overlay.Elements != nil {
		merged := result.Elements
		if merged == nil {
			merged = map[string]*converter.Element{}
		} else {
			merged = cloneElementMap(merged)
		}
		for key, el := range overlay.Elements {
			if baseEl, ok := merged[key]; ok {
				merged[key] = mergeElements(baseEl, el)
			} else {
				merged[key] = el
			}
		}
		result.Elements = merged
	}

	if overlay.Required != nil {
		result.Required = unionStrings(result.Required, overlay.Required)
	}
	if overlay.Excluded != nil {
		result.Excluded = unionStrings(result.Excluded, overlay.Excluded)
	}
	if overlay.Constraint != nil {
		merged := map[string]converter.StructureDefinitionConstraint{}
		for k, v := range result.Constraint {
			merged[k] = v
		}
		for k, v := range overlay.Constraint {
			merged[k] = v
		}
		result.Constraint = merged
	}

	return &result
}

func cloneElementMap(m map[string]*converter.Element) map[string]*converter.Element {
	out := make(map[string]*converter.Element, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func unionStrings(base, add []string) []string {
	seen := map[string]bool{}
	out := append([]string(nil), base...)
	for _, b := range base {
		seen[b] = true
	}
	for _, a := range add {
		if !seen[a] {
			out = append(out, a)
			seen[a] = true
		}
	}
	return out
}

func mergeElements(base, overlay *converter.Element) *converter.Element {
	result := *base

	if overlay.Min != nil {
		result.Min = overlay.Min
	}
	if overlay.Max != nil {
		result.Max = overlay.Max
	}
	result.Array = overlay.Array || base.Array
	if overlay.Binding != nil {
		result.Binding = overlay.Binding
	}
	if overlay.Pattern != nil {
		result.Pattern = overlay.Pattern
	}
	if overlay.MustSupport {
		result.MustSupport = true
	}
	if overlay.Refers != nil {
		result.Refers = overlay.Refers
	}
	if overlay.Type != "" {
		result.Type = overlay.Type
	}

	if overlay.Elements != nil {
		nested := cloneElementMap(result.Elements)
		if nested == nil {
			nested = map[string]*converter.Element{}
		}
		for key, el := range overlay.Elements {
			if baseEl, ok := nested[key]; ok {
				nested[key] = mergeElements(baseEl, el)
			} else {
				nested[key] = el
			}
		}
		result.Elements = nested
	}

	if overlay.Constraint != nil {
		merged := map[string]converter.StructureDefinitionConstraint{}
		for k, v := range result.Constraint {
			merged[k] = v
		}
		for k, v := range overlay.Constraint {
			merged[k] = v
		}
		result.Constraint = merged
	}

	return &result
}

func (c *Compiler) expandElements(ctx context.Context, elements map[string]*converter.Element) (map[string]*CompiledElement, error) {
	if elements == nil {
		return map[string]*CompiledElement{}, nil
	}
	result := make(map[string]*CompiledElement, len(elements))
	for name, el := range elements {
		compiled, err := c.expandElement(ctx, name, el)
		if err != nil {
			return nil, err
		}
		result[name] = compiled
	}
	return result, nil
}

func (c *Compiler) expandElement(ctx context.Context, name string, el *converter.Element) (*CompiledElement, error) {
	typeInfo := determineTypeInfo(el)
	children := map[string]*CompiledElement{}

	switch typeInfo.Kind {
	case TypeBackboneElement, TypeComplex:
		if el.Elements != nil {
			var err error
			children, err = c.expandElements(ctx, el.Elements)
			if err != nil {
				return nil, err
			}
		} else if el.Type != "" && !primitive.IsPrimitiveType(el.Type) && el.Type != "Resource" && el.Type != "Reference" {
			if typeSchema, err := c.Compile(ctx, el.Type); err == nil {
				children = typeSchema.Elements
			}
		}
	}

	return &CompiledElement{
		Name:             name,
		TypeName:         el.Type,
		TypeInfo:         typeInfo,
		IsArray:          el.Array,
		Min:              derefInt(el.Min),
		Max:              el.Max,
		Children:         children,
		Binding:          compileBinding(el.Binding),
		ReferenceTargets: el.Refers,
		Constraints:      extractElementConstraints(el),
		Pattern:          patternValue(el.Pattern),
		Choices:          el.Choices,
		ChoiceOf:         el.ChoiceOf,
		Slicing:          c.compileSlicing(ctx, el.Slicing),
		Short:            el.Short,
		MustSupport:      el.MustSupport,
		IsModifier:       el.IsModifier,
		ElementReference: el.ElementReference,
	}, nil
}

func determineTypeInfo(el *converter.Element) CompiledTypeInfo {
	if el.Elements != nil {
		return CompiledTypeInfo{Kind: TypeBackboneElement}
	}
	if el.Type == "" {
		return CompiledTypeInfo{Kind: TypeComplex}
	}
	if primitive.IsPrimitiveType(el.Type) {
		return CompiledTypeInfo{Kind: TypePrimitive, Primitive: el.Type}
	}
	switch el.Type {
	case "Reference":
		return CompiledTypeInfo{Kind: TypeReference}
	case "Resource":
		return CompiledTypeInfo{Kind: TypeResource}
	case "Extension":
		return CompiledTypeInfo{Kind: TypeExtension}
	case "BackboneElement":
		return CompiledTypeInfo{Kind: TypeBackboneElement}
	default:
		return CompiledTypeInfo{Kind: TypeComplex}
	}
}

func extractElementConstraints(el *converter.Element) []CompiledConstraint {
	if len(el.Constraint) == 0 {
		return nil
	}
	out := make([]CompiledConstraint, 0, len(el.Constraint))
	for key, c := range el.Constraint {
		out = append(out, CompiledConstraint{Key: key, Expression: c.Expression, Human: c.Human, Severity: c.Severity})
	}
	return out
}

// collectConstraints gathers constraints from every schema in the resolved
// chain, not just the merged schema — ancestor declarations are preserved
// even when an overlay redeclares the same key (see DESIGN.md's constraint
// collection note).
func (c *Compiler) collectConstraints(chain []*converter.Schema) []CompiledConstraint {
	var out []CompiledConstraint
	for _, schema := range chain {
		for key, constraint := range schema.Constraint {
			out = append(out, CompiledConstraint{
				Key: key, Expression: constraint.Expression,
				Human: constraint.Human, Severity: constraint.Severity,
			})
		}
	}
	return out
}

func compileBinding(b *converter.StructureDefinitionBinding) *CompiledBinding {
	if b == nil {
		return nil
	}
	return &CompiledBinding{ValueSet: b.ValueSet, Strength: b.Strength, Description: b.BindingName}
}

func (c *Compiler) compileSlicing(ctx context.Context, s *converter.Slicing) *CompiledSlicing {
	if s == nil {
		return nil
	}
	slices := make(map[string]*CompiledSlice, len(s.Slices))
	for name, sl := range s.Slices {
		var compiledSchema *CompiledElement
		if sl.Schema != nil {
			compiledSchema, _ = c.expandElement(ctx, name, sl.Schema)
		}
		slices[name] = &CompiledSlice{Match: sl.Match, Schema: compiledSchema, Min: derefInt(sl.Min), Max: sl.Max}
	}
	ordered := false
	if s.Ordered != nil {
		ordered = *s.Ordered
	}
	return &CompiledSlicing{Discriminator: s.Discriminator, Rules: s.Rules, Ordered: ordered, Slices: slices}
}

func patternValue(p *converter.Pattern) any {
	if p == nil {
		return nil
	}
	return p.Value
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
