// Package compiler resolves a converted schema's inheritance chain, merges
// it, inlines referenced type schemas, and produces a validation-ready
// CompiledSchema, backed by a bounded cache shared across validations.
package compiler

import "github.com/fhirschema/go-fhirschema/converter"

// TypeInfoKind tags a CompiledElement's type classification.
type TypeInfoKind int

const (
	TypeComplex TypeInfoKind = iota
	TypeBackboneElement
	TypePrimitive
	TypeReference
	TypeResource
	TypeExtension
)

// CompiledTypeInfo is the tagged classification of one element's type.
type CompiledTypeInfo struct {
	Kind      TypeInfoKind
	Primitive string // populated only when Kind == TypePrimitive
}

// CompiledBinding is a resolved value-set binding.
type CompiledBinding struct {
	ValueSet    string
	Strength    string
	Description string
}

// CompiledConstraint is one FHIRPath invariant attached to a schema or
// element.
type CompiledConstraint struct {
	Key        string
	Expression string
	Human      string
	Severity   string
}

// CompiledDiscriminator mirrors the converter's discriminator descriptor.
type CompiledDiscriminator = converter.StructureDefinitionDiscriminator

// CompiledSlice is one resolved slicing entry.
type CompiledSlice struct {
	Match  map[string]any
	Schema *CompiledElement
	Min    int
	Max    *int
}

// CompiledSlicing is the compiled slicing table for an element.
type CompiledSlicing struct {
	Discriminator []CompiledDiscriminator
	Rules         string
	Ordered       bool
	Slices        map[string]*CompiledSlice
}

// CompiledElement is one entry of a CompiledSchema's elements map, with all
// type references resolved inline to the depth the validator needs.
type CompiledElement struct {
	Name             string
	TypeName         string
	TypeInfo         CompiledTypeInfo
	IsArray          bool
	Min              int
	Max              *int
	Children         map[string]*CompiledElement
	Binding          *CompiledBinding
	ReferenceTargets []string
	Constraints      []CompiledConstraint
	Pattern          any
	Choices          []string
	ChoiceOf         string
	Slicing          *CompiledSlicing
	Short            string
	MustSupport      bool
	IsModifier       bool
	ElementReference []string
}

// CompiledSchema is the post-merge, post-inline form consumed by the
// validator.
type CompiledSchema struct {
	URL         string
	Name        string
	Base        string
	Elements    map[string]*CompiledElement
	Constraints []CompiledConstraint
	Required    map[string]bool
	Excluded    map[string]bool
	IsResource  bool
	Kind        string
}
