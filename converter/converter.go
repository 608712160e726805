package converter

import (
	"fmt"
	"sort"
	"strings"
)

// InputDocument is the driver's view of one StructureDefinition: header
// metadata plus its differential (the elements actually converted) and
// snapshot (consulted only to recover choice-variant bindings).
type InputDocument struct {
	Name             string
	TypeName         string
	URL              string
	Version          string
	Description      string
	Kind             string // resource | complex-type | primitive-type | logical
	Derivation       string // specialization | constraint
	BaseDefinition   string
	Differential     []*StructureDefinitionElement
	Snapshot         []*StructureDefinitionElement
}

// ConvertError reports a failure during conversion; conversion failures
// abort the whole operation (see top-level error handling design).
type ConvertError struct {
	URL string
	Msg string
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("convert %s: %s", e.URL, e.Msg)
}

func determineClass(doc *InputDocument) string {
	if doc.Kind == "resource" && doc.Derivation == "constraint" {
		return "profile"
	}
	if doc.TypeName == "Extension" {
		return "extension"
	}
	return doc.Kind
}

func buildResourceHeader(doc *InputDocument) *Schema {
	schema := &Schema{
		Name:       doc.Name,
		Type:       doc.TypeName,
		URL:        doc.URL,
		Kind:       doc.Kind,
		Derivation: doc.Derivation,
		Class:      determineClass(doc),
	}
	if doc.BaseDefinition != "" && doc.TypeName != "Element" {
		schema.Base = doc.BaseDefinition
	}
	return schema
}

func getDifferential(doc *InputDocument) []*StructureDefinitionElement {
	out := make([]*StructureDefinitionElement, 0, len(doc.Differential))
	for _, el := range doc.Differential {
		if strings.Contains(el.Path, ".") {
			out = append(out, el)
		}
	}
	return out
}

func sortElementsByIndex(elements map[string]*Element) {
	for _, el := range elements {
		if el.Elements != nil {
			sortElementsByIndex(el.Elements)
		}
	}
}

func orderedElementNames(elements map[string]*Element) []string {
	names := make([]string, 0, len(elements))
	for name := range elements {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return elements[names[i]].Index < elements[names[j]].Index
	})
	return names
}

// normalizeSchema sorts every required list lexicographically (at the root
// and in nested elements) and sets an empty root extensions map to nil.
// Elements maps are Go maps and keep no order: sortElementsByIndex only
// walks them, and source order is carried by each Element's Index. No
// sentinel is written for an empty extensions map.
func normalizeSchema(schema *Schema) {
	sortElementsByIndex(schema.Elements)
	sort.Strings(schema.Required)
	if schema.Extensions != nil && len(schema.Extensions) == 0 {
		schema.Extensions = nil
	}
	normalizeElementTree(schema.Elements)
}

func normalizeElementTree(elements map[string]*Element) {
	for _, el := range elements {
		sort.Strings(el.Required)
		if el.Elements != nil {
			normalizeElementTree(el.Elements)
		}
	}
}

func snapshotByPath(doc *InputDocument) map[string]*StructureDefinitionElement {
	m := make(map[string]*StructureDefinitionElement, len(doc.Snapshot))
	for _, el := range doc.Snapshot {
		m[el.Path] = el
	}
	return m
}

// Translate runs the full converter pipeline over one StructureDefinition's
// differential, producing a nested Schema document. Conversion failures are
// returned as errors rather than diagnostics.
func Translate(doc *InputDocument) (*Schema, error) {
	if doc.Kind == "primitive-type" {
		return buildResourceHeader(doc), nil
	}

	header := buildResourceHeader(doc)
	elements := getDifferential(doc)

	src := &SourceDocument{URL: doc.URL, Kind: doc.Kind, SnapshotByPath: snapshotByPath(doc)}

	stack := []*Element{{Elements: map[string]*Element{}}}
	var prevPath []PathComponent
	queue := append([]*StructureDefinitionElement(nil), elements...)
	index := 0

	for len(queue) > 0 {
		el := queue[0]
		queue = queue[1:]

		if IsChoiceElement(el) {
			expanded := ExpandChoiceElement(el)
			if len(expanded) > 0 {
				queue = append(expanded, queue...)
			}
			index++
			continue
		}

		parsed := ParsePath(el)
		enriched := EnrichPath(prevPath, parsed)
		actions := CalculateActions(prevPath, enriched)

		transformed := TransformElement(el, src)
		transformed.Index = index
		index++

		stack = ApplyActions(stack, actions, transformed)
		prevPath = enriched
	}

	finalActions := CalculateActions(prevPath, nil)
	dummy := &Element{Index: index}
	stack = ApplyActions(stack, finalActions, dummy)

	if len(stack) != 1 {
		return nil, &ConvertError{URL: doc.URL, Msg: fmt.Sprintf("invalid stack state: expected 1 frame, got %d", len(stack))}
	}

	root := stack[0]
	header.Elements = root.Elements
	header.Required = root.Required
	header.Excluded = root.Excluded
	header.Extensions = root.Extensions
	header.Constraint = root.Constraint
	header.Choices = root.Choices

	normalizeSchema(header)
	return header, nil
}
