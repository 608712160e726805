package converter

import (
	"sort"
	"strconv"
	"strings"
)

const (
	bindingNameExt = "http://hl7.org/fhir/StructureDefinition/elementdefinition-bindingName"
	defaultTypeExt = "http://hl7.org/fhir/StructureDefinition/elementdefinition-defaulttype"
	fhirTypeExt    = "http://hl7.org/fhir/StructureDefinition/structuredefinition-fhir-type"
)

var patternTypeNames = map[string]string{
	"Instant": "instant", "Time": "time", "Date": "date", "DateTime": "dateTime",
	"Decimal": "decimal", "Boolean": "boolean", "Integer": "integer", "String": "string",
	"Uri": "uri", "Base64Binary": "base64Binary", "Code": "code", "Id": "id",
	"Oid": "oid", "UnsignedInt": "unsignedInt", "PositiveInt": "positiveInt",
	"Markdown": "markdown", "Url": "url", "Canonical": "canonical", "Uuid": "uuid",
}

func patternTypeNormalize(typeName string) string {
	if v, ok := patternTypeNames[typeName]; ok {
		return v
	}
	return typeName
}

// SourceDocument is the minimal view of a StructureDefinition the element
// transformer needs beyond the single element being transformed: its own
// canonical URL, kind, and (for choice-variant binding recovery) its
// snapshot element list keyed by full path.
type SourceDocument struct {
	URL            string
	Kind           string
	SnapshotByPath map[string]*StructureDefinitionElement
}

func buildReferenceTargets(types []StructureDefinitionType) []string {
	var refers []string
	for _, t := range types {
		refers = append(refers, t.TargetProfile...)
	}
	if len(refers) == 0 {
		return nil
	}
	sort.Strings(refers)
	out := refers[:0:0]
	for i, r := range refers {
		if i == 0 || r != refers[i-1] {
			out = append(out, r)
		}
	}
	return out
}

func preprocessElement(el *StructureDefinitionElement) *StructureDefinitionElement {
	processed := *el
	if len(el.Type) > 0 && el.Type[0].Code == "Reference" {
		processed.Type = []StructureDefinitionType{{Code: "Reference"}}
	}
	return &processed
}

func extensionValueString(exts []any, key string) (string, bool) {
	for _, e := range exts {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

// IsArrayElement reports array cardinality per §4.3: max == "*", or
// min >= 2, or max parses to >= 2.
func IsArrayElement(el *StructureDefinitionElement) bool {
	if el.Max == "*" {
		return true
	}
	if el.Min != nil && *el.Min >= 2 {
		return true
	}
	if v, ok := parseMaxInt(el.Max); ok && v >= 2 {
		return true
	}
	return false
}

// IsRequiredElement reports whether min == 1 (non-array required flag).
func IsRequiredElement(el *StructureDefinitionElement) bool {
	return el.Min != nil && *el.Min == 1
}

func buildElementBinding(out *Element, def, orig *StructureDefinitionElement, doc *SourceDocument) {
	normalize := func(b *StructureDefinitionBinding) *StructureDefinitionBinding {
		r := &StructureDefinitionBinding{Strength: b.Strength, ValueSet: b.ValueSet}
		return r
	}

	if len(out.Choices) > 0 {
		out.Binding = nil
		return
	}

	if out.ChoiceOf != "" {
		if doc != nil && doc.SnapshotByPath != nil {
			declPath := out.ChoiceOf + "[x]"
			for path, decl := range doc.SnapshotByPath {
				if strings.HasSuffix(path, declPath) && decl.Binding != nil {
					out.Binding = normalize(decl.Binding)
					return
				}
			}
		}
		return
	}

	if def.Binding != nil && def.Binding.ValueSet != "" {
		out.Binding = normalize(def.Binding)
	}
}

func buildElementConstraints(out *Element, def *StructureDefinitionElement) {
	if len(def.Constraint) == 0 {
		return
	}
	out.Constraint = make(map[string]StructureDefinitionConstraint, len(def.Constraint))
	for _, c := range def.Constraint {
		out.Constraint[c.Key] = c
	}
}

func buildElementType(out *Element, def *StructureDefinitionElement, doc *SourceDocument) {
	if len(def.Type) == 0 {
		return
	}
	first := def.Type[0]
	if exts, ok := def.Extension[fhirTypeExt]; ok {
		if v, ok := extensionValueString(exts, "valueUrl"); ok {
			out.Type = v
			return
		}
	}
	out.Type = first.Code

	if doc != nil && doc.Kind == "logical" {
		if exts, ok := def.Extension[defaultTypeExt]; ok {
			if v, ok := extensionValueString(exts, "valueUrl"); ok {
				out.DefaultType = v
			}
		}
	}
}

func buildElementExtension(out *Element, def *StructureDefinitionElement) {
	if len(def.Type) == 0 {
		return
	}
	first := def.Type[0]
	if first.Code == "Extension" && len(first.Profile) > 0 {
		out.URL = first.Profile[0]
		if def.Min != nil {
			out.Min = def.Min
		}
		if def.Max != "" && def.Max != "*" {
			if v, err := strconv.Atoi(def.Max); err == nil {
				out.Max = &v
			}
		}
	}
}

func buildElementCardinality(out *Element, def *StructureDefinitionElement) {
	if out.URL != "" {
		return
	}
	isArray := IsArrayElement(def)
	isRequired := IsRequiredElement(def)

	out.Min = nil
	out.Max = nil

	if isArray {
		out.Array = true
		if def.Min != nil && *def.Min > 0 {
			out.Min = def.Min
		}
		if def.Max != "" && def.Max != "*" {
			if v, err := strconv.Atoi(def.Max); err == nil {
				out.Max = &v
			}
		}
	}

	if isRequired {
		out.required = true
	}
}

func contentReferenceToElementReference(reference string, doc *SourceDocument) []string {
	ref := strings.TrimPrefix(reference, "#")
	parts := strings.Split(ref, ".")
	result := []string{doc.URL}
	for _, part := range parts[1:] {
		result = append(result, "elements", part)
	}
	return result
}

func buildElementContentReference(out *Element, def *StructureDefinitionElement, doc *SourceDocument) {
	if def.ContentReference == "" {
		return
	}
	out.ElementReference = contentReferenceToElementReference(def.ContentReference, doc)
}

func processPatterns(out *Element, def *StructureDefinitionElement) {
	assign := func(key string, prefix string, value any) {
		typeName := patternTypeNormalize(strings.TrimPrefix(key, prefix))
		out.Pattern = &Pattern{Type: typeName, Value: value}
		if out.Type == "" {
			out.Type = typeName
		}
	}
	for key, value := range def.Patterns {
		if strings.HasPrefix(key, "pattern") {
			assign(key, "pattern", value)
		}
	}
	for key, value := range def.Fixed {
		if strings.HasPrefix(key, "fixed") {
			assign(key, "fixed", value)
		}
	}
}

// TransformElement converts one StructureDefinitionElement into a converted
// Element, following the preprocess → binding → constraints →
// content-reference → extension → cardinality → type → patterns pipeline.
func TransformElement(el *StructureDefinitionElement, doc *SourceDocument) *Element {
	refers := el.Refers()
	pre := preprocessElement(el)

	out := &Element{
		Refers:      refers,
		ChoiceOf:    el.ChoiceOf,
		Choices:     el.Choices,
		MustSupport: el.MustSupport,
		IsModifier:  el.IsModifier,
		IsSummary:   el.IsSummary,
		Index:       el.Index,
		Short:       el.Short,
	}

	buildElementBinding(out, pre, el, doc)
	buildElementConstraints(out, pre)
	buildElementContentReference(out, pre, doc)
	buildElementExtension(out, pre)
	buildElementCardinality(out, pre)
	buildElementType(out, pre, doc)
	processPatterns(out, el)

	return out
}

// Refers exposes the reference-target list computed during preprocessing.
func (el *StructureDefinitionElement) Refers() []string {
	if len(el.Type) == 0 || el.Type[0].Code != "Reference" {
		return nil
	}
	return buildReferenceTargets(el.Type)
}
