package engine

import (
	"context"

	"github.com/fhirschema/go-fhirschema/converter"
	"github.com/fhirschema/go-fhirschema/service"
)

// profileSchemaSource adapts a service.ProfileResolver into a
// compiler.SchemaProvider, converting each fetched StructureDefinition into a
// converter.Schema on demand. The compiler's own cache means a given name or
// URL is translated at most once per compiler (barring eviction); the
// Validator builds a new compiler each time one of its services is set.
type profileSchemaSource struct {
	resolver service.ProfileResolver
}

func newProfileSchemaSource(resolver service.ProfileResolver) *profileSchemaSource {
	return &profileSchemaSource{resolver: resolver}
}

// GetSchemaByName resolves name as a resource type first, falling back to a
// direct URL fetch for complex/primitive types addressed by their type name
// rather than a canonical URL (e.g. "HumanName", "string").
func (s *profileSchemaSource) GetSchemaByName(ctx context.Context, name string) (*converter.Schema, bool) {
	if s == nil || s.resolver == nil {
		return nil, false
	}
	sd, err := s.resolver.FetchStructureDefinitionByType(ctx, name)
	if err != nil || sd == nil {
		sd, err = s.resolver.FetchStructureDefinition(ctx, name)
		if err != nil || sd == nil {
			return nil, false
		}
	}
	return s.translate(sd)
}

func (s *profileSchemaSource) GetSchemaByURL(ctx context.Context, url string) (*converter.Schema, bool) {
	if s == nil || s.resolver == nil {
		return nil, false
	}
	sd, err := s.resolver.FetchStructureDefinition(ctx, url)
	if err != nil || sd == nil {
		return nil, false
	}
	return s.translate(sd)
}

func (s *profileSchemaSource) translate(sd *service.StructureDefinition) (*converter.Schema, bool) {
	doc := &converter.InputDocument{
		Name:           sd.Name,
		TypeName:       sd.Type,
		URL:            sd.URL,
		Kind:           sd.Kind,
		BaseDefinition: sd.BaseDefinition,
		Differential:   convertElements(sd.Differential),
		Snapshot:       convertElements(sd.Snapshot),
	}
	if len(doc.Differential) == 0 {
		// Differential-less definitions (common for hand-authored base
		// resources fetched from a store that only kept the snapshot) diff
		// cleanly against nothing: the full snapshot stands in as the set of
		// elements this schema introduces.
		doc.Differential = doc.Snapshot
	}
	if sd.BaseDefinition != "" {
		doc.Derivation = "constraint"
	} else {
		doc.Derivation = "specialization"
	}
	if sd.Kind == "resource" && sd.BaseDefinition == "" {
		// a base resource definition's own root is a specialization of
		// DomainResource/Resource, never a profile constraint.
		doc.Derivation = "specialization"
	}

	schema, err := converter.Translate(doc)
	if err != nil {
		return nil, false
	}
	return schema, true
}

func convertElements(in []service.ElementDefinition) []*converter.StructureDefinitionElement {
	if len(in) == 0 {
		return nil
	}
	out := make([]*converter.StructureDefinitionElement, 0, len(in))
	for i := range in {
		out = append(out, convertElement(&in[i], i))
	}
	return out
}

func convertElement(e *service.ElementDefinition, index int) *converter.StructureDefinitionElement {
	min := e.Min
	el := &converter.StructureDefinitionElement{
		Path:             e.Path,
		Min:              &min,
		Max:              e.Max,
		SliceName:        e.SliceName,
		ContentReference: e.ContentReference,
		MustSupport:      e.MustSupport,
		IsModifier:       e.IsModifier,
		IsSummary:        e.IsSummary,
		Index:            index,
		Short:            e.Short,
	}

	for _, t := range e.Types {
		el.Type = append(el.Type, converter.StructureDefinitionType{
			Code:          t.Code,
			Profile:       t.Profile,
			TargetProfile: t.TargetProfile,
		})
	}

	if e.Binding != nil {
		el.Binding = &converter.StructureDefinitionBinding{
			Strength:    e.Binding.Strength,
			ValueSet:    e.Binding.ValueSet,
			Description: e.Binding.Description,
		}
	}

	if e.Slicing != nil {
		ordered := e.Slicing.Ordered
		sl := &converter.StructureDefinitionSlicing{
			Rules:   e.Slicing.Rules,
			Ordered: &ordered,
		}
		for _, d := range e.Slicing.Discriminator {
			sl.Discriminator = append(sl.Discriminator, converter.StructureDefinitionDiscriminator{
				Type: d.Type,
				Path: d.Path,
			})
		}
		el.Slicing = sl
	}

	for _, c := range e.Constraints {
		el.Constraint = append(el.Constraint, converter.StructureDefinitionConstraint{
			Key:        c.Key,
			Severity:   c.Severity,
			Human:      c.Human,
			Expression: c.Expression,
		})
	}

	// e.Fixed/e.Pattern carry the raw fixed/pattern value but not the wire
	// fixed<Type>/pattern<Type> key that names its type, which
	// service.ElementDefinition does not preserve; pattern-value constraint
	// checking is not implemented by the walker, so this is left unmapped
	// rather than guessed at.

	return el
}
