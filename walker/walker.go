package walker

import (
	"context"
	"reflect"
	"strconv"
	"strings"

	fhirvalidator "github.com/fhirschema/go-fhirschema"
	"github.com/fhirschema/go-fhirschema/binding"
	"github.com/fhirschema/go-fhirschema/compiler"
	"github.com/fhirschema/go-fhirschema/constraint"
	"github.com/fhirschema/go-fhirschema/primitive"
	"github.com/fhirschema/go-fhirschema/reference"
	"github.com/fhirschema/go-fhirschema/schemata"
	"github.com/fhirschema/go-fhirschema/service"
)

// Walker performs the schemata-based recursive validation pass: at every
// object node it re-derives the applicable schemata via schemata.Follow,
// checks for unknown/required/excluded elements, array-vs-scalar cardinality,
// primitive formats, bindings, slicing discriminators, references, and
// constraints.
type Walker struct {
	Resolver   *schemata.Resolver
	Binding    *binding.Checker
	Constraint *constraint.Runner
	Reference  *reference.Checker
	FHIRPath   service.FHIRPathEvaluator // used only for 3+ segment slicing discriminators
}

// New creates a Walker. Binding, Constraint, Reference, and FHIRPath may be
// nil/zero to disable the corresponding checks.
func New(resolver *schemata.Resolver, bindingChecker *binding.Checker, constraintRunner *constraint.Runner) *Walker {
	return &Walker{Resolver: resolver, Binding: bindingChecker, Constraint: constraintRunner}
}

// Walk validates resource against the schemata set rooted at rootKeys (the
// resource type plus any declared meta.profile URLs), appending Issues to
// result.
func (w *Walker) Walk(ctx context.Context, resource map[string]any, rootKeys []string, result *fhirvalidator.Result) {
	resourceType, _ := resource["resourceType"].(string)

	root := w.Resolver.Collect(ctx, rootKeys)
	if len(root) == 0 {
		result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeNotFound).
			FS(fhirvalidator.FS1002UnknownSchema).
			Diagnostics("no schema found for " + strings.Join(rootKeys, ", ")).
			Path([]string{resourceType}).
			Build())
		return
	}

	rc := AcquireContext()
	defer rc.Release()
	rc.Node = resource
	rc.Key = resourceType
	rc.Path = []string{resourceType}
	rc.Schemata = root
	rc.Root = resource
	rc.ResourceType = resourceType
	rc.Depth = 0

	w.walkObject(ctx, rc, result)
}

func mergeElements(set schemata.Set) (elements map[string]*compiler.CompiledElement, required, excluded map[string]bool) {
	elements = map[string]*compiler.CompiledElement{}
	required = map[string]bool{}
	excluded = map[string]bool{}
	for _, schema := range set {
		for name, el := range schema.Elements {
			if _, ok := elements[name]; !ok {
				elements[name] = el
			}
		}
		for name := range schema.Required {
			required[name] = true
		}
		for name := range schema.Excluded {
			excluded[name] = true
		}
	}
	return elements, required, excluded
}

func elementConstraints(set schemata.Set) []compiler.CompiledConstraint {
	var out []compiler.CompiledConstraint
	for _, schema := range set {
		out = append(out, schema.Constraints...)
	}
	return out
}

func (w *Walker) walkObject(ctx context.Context, rc *WalkContext, result *fhirvalidator.Result) {
	if ctx.Err() != nil {
		return
	}
	data := rc.AsObject()
	if data == nil {
		return
	}

	elements, required, excluded := mergeElements(rc.Schemata)
	seenBase := map[string]bool{}

	for key, value := range data {
		if key == "resourceType" {
			continue
		}

		el, known := elements[key]
		if !known && strings.HasPrefix(key, "_") {
			if _, ok := elements[strings.TrimPrefix(key, "_")]; ok {
				// primitive-extension sibling (e.g. "_status"); no separate
				// cardinality/type checks of its own.
				continue
			}
		}

		baseName := key
		if known && el.ChoiceOf != "" {
			baseName = el.ChoiceOf
		}
		seenBase[baseName] = true

		if excluded[key] {
			result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeStructure).
				FS(fhirvalidator.FS1001UnknownElement).
				Diagnostics("excluded element '" + key + "'").
				Path(appended(rc.Path, key)).
				Build())
			continue
		}
		if !known {
			result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeStructure).
				FS(fhirvalidator.FS1001UnknownElement).
				Diagnostics("unknown element '" + key + "'").
				Path(appended(rc.Path, key)).
				Build())
			continue
		}

		w.checkCardinalityAndDescend(ctx, rc, key, value, el, result)
	}

	for name := range required {
		if seenBase[name] {
			continue
		}
		result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeRequired).
			FS(fhirvalidator.FS1011CardinalityViolation).
			Diagnostics("missing required element '" + name + "'").
			Path(appended(rc.Path, name)).
			Build())
	}

	if w.Constraint != nil {
		if cs := elementConstraints(rc.Schemata); len(cs) > 0 {
			w.Constraint.Run(ctx, rc.Node, cs, rc.PathCopy(), result)
		}
	}
}

func (w *Walker) checkCardinalityAndDescend(ctx context.Context, rc *WalkContext, key string, value any, el *compiler.CompiledElement, result *fhirvalidator.Result) {
	items, isArray := value.([]any)
	childPath := appended(rc.Path, key)

	if el.IsArray && !isArray {
		result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeStructure).
			FS(fhirvalidator.FS1003ExpectedArray).
			Diagnostics("element '" + key + "' expects an array").
			Path(childPath).
			ExpectedGot("array", goType(value)).
			Build())
		return
	}
	if !el.IsArray && isArray {
		result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeStructure).
			FS(fhirvalidator.FS1004UnexpectedArray).
			Diagnostics("element '" + key + "' does not expect an array").
			Path(childPath).
			ExpectedGot(expectedTypeName(el), "array").
			Build())
		return
	}

	if !isArray {
		w.descend(ctx, rc, key, value, el, childPath, -1, result)
		return
	}

	if el.Min > 0 && len(items) < el.Min {
		result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeRequired).
			FS(fhirvalidator.FS1011CardinalityViolation).
			Diagnostics("element '" + key + "' has fewer than the minimum " + strconv.Itoa(el.Min) + " occurrences").
			Path(childPath).
			Build())
	}
	if el.Max != nil && len(items) > *el.Max {
		result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeInvalid).
			FS(fhirvalidator.FS1011CardinalityViolation).
			Diagnostics("element '" + key + "' exceeds the maximum " + strconv.Itoa(*el.Max) + " occurrences").
			Path(childPath).
			Build())
	}

	sliceCounts := map[string]int{}
	for i, item := range items {
		itemPath := appended(childPath, "["+strconv.Itoa(i)+"]")

		if el.Slicing != nil {
			matched := w.matchSlice(ctx, item, el.Slicing)
			switch len(matched) {
			case 0:
				if el.Slicing.Rules == "closed" {
					result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeInvariant).
						FS(fhirvalidator.FS1007SlicingUnmatched).
						Diagnostics("item does not match any slice of closed slicing on '" + key + "'").
						Path(itemPath).
						Build())
				}
			case 1:
				sliceCounts[matched[0]]++
			default:
				result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeInvariant).
					FS(fhirvalidator.FS1008SlicingAmbiguous).
					Diagnostics("item matches multiple slices: " + strings.Join(matched, ", ")).
					Path(itemPath).
					Build())
			}
		}

		w.descend(ctx, rc, key, item, el, itemPath, i, result)
	}

	if el.Slicing != nil {
		for name, slice := range el.Slicing.Slices {
			count := sliceCounts[name]
			if slice.Min > 0 && count < slice.Min {
				result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeInvariant).
					FS(fhirvalidator.FS1009SliceCardinality).
					Diagnostics("slice '" + name + "' of '" + key + "' has fewer than the minimum " + strconv.Itoa(slice.Min) + " occurrences").
					Path(childPath).
					Build())
			}
			if slice.Max != nil && count > *slice.Max {
				result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeInvariant).
					FS(fhirvalidator.FS1009SliceCardinality).
					Diagnostics("slice '" + name + "' of '" + key + "' exceeds the maximum " + strconv.Itoa(*slice.Max) + " occurrences").
					Path(childPath).
					Build())
			}
		}
	}
}

func (w *Walker) descend(ctx context.Context, parent *WalkContext, key string, value any, el *compiler.CompiledElement, path []string, arrayIndex int, result *fhirvalidator.Result) {
	if value == nil {
		return
	}

	if w.Binding != nil && el.Binding != nil {
		w.Binding.Check(ctx, value, el.Binding, path, result)
	}

	typeName := el.TypeName
	if typeName == "" {
		typeName = el.TypeInfo.Primitive
	}
	if typeName != "" && primitive.IsPrimitiveType(typeName) {
		w.checkPrimitive(typeName, value, path, result)
	}

	if w.Reference != nil && typeName == "Reference" {
		w.Reference.Check(ctx, value, el.ReferenceTargets, path, parent.Root, result)
	}

	obj, isObject := value.(map[string]any)
	if !isObject {
		return
	}

	// A polymorphic Resource-typed element (Bundle.entry.resource,
	// DomainResource.contained) carries its own resourceType; follow into
	// that concrete schema instead of the static, abstract "Resource" type.
	followKey := key
	if typeName == "Resource" || typeName == "" {
		if rt, ok := obj["resourceType"].(string); ok && rt != "" {
			next := w.Resolver.Collect(ctx, []string{rt})
			if len(next) > 0 {
				w.descendInto(ctx, parent, obj, key, next, path, arrayIndex, result)
				return
			}
		}
	}

	next := w.Resolver.Follow(ctx, parent.Schemata, followKey)
	if len(next) == 0 {
		return
	}
	w.Resolver.CollectElementTypeSchemas(ctx, next)
	w.descendInto(ctx, parent, obj, key, next, path, arrayIndex, result)
}

func (w *Walker) descendInto(ctx context.Context, parent *WalkContext, obj map[string]any, key string, next schemata.Set, path []string, arrayIndex int, result *fhirvalidator.Result) {
	cc := AcquireContext()
	defer cc.Release()
	cc.Node = obj
	cc.Key = key
	cc.Path = path
	cc.Schemata = next
	cc.Root = parent.Root
	cc.Parent = parent
	cc.IsArrayItem = arrayIndex >= 0
	cc.ArrayIndex = arrayIndex
	cc.ResourceType = parent.ResourceType
	cc.Depth = parent.Depth + 1

	w.walkObject(ctx, cc, result)
}

func (w *Walker) checkPrimitive(typeName string, value any, path []string, result *fhirvalidator.Result) {
	check := primitive.CheckFormat(typeName, value)
	if !check.Valid {
		result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeValue).
			FS(fhirvalidator.FS1006WrongType).
			Diagnostics("value does not match the format of type '" + typeName + "'").
			Path(path).
			ExpectedGot(typeName, goType(value)).
			Build())
		return
	}
	if check.SchemeWarn {
		result.AddIssue(fhirvalidator.Warning(fhirvalidator.IssueTypeValue).
			FS(fhirvalidator.FS1006WrongType).
			Diagnostics("non-http(s) scheme used for type '" + typeName + "'").
			Path(path).
			Build())
	}
}

// --- slicing discriminator matching ---

func (w *Walker) matchSlice(ctx context.Context, item any, slicing *compiler.CompiledSlicing) []string {
	var matched []string
	for name, slice := range slicing.Slices {
		if w.sliceMatches(ctx, item, slicing.Discriminator, slice.Match) {
			matched = append(matched, name)
		}
	}
	return matched
}

func (w *Walker) sliceMatches(ctx context.Context, item any, discriminators []compiler.CompiledDiscriminator, match map[string]any) bool {
	if len(discriminators) == 0 {
		return false
	}

	for _, d := range discriminators {
		path := strings.TrimSpace(d.Path)
		if path == "" {
			return false
		}

		if path == "$this" {
			itemMap, ok := item.(map[string]any)
			if !ok {
				return false
			}
			for k, v := range match {
				if !reflect.DeepEqual(itemMap[k], v) {
					return false
				}
			}
			continue
		}

		parts := strings.Split(path, ".")
		expected, ok := valueAtPath(match, parts)
		if !ok {
			// Discriminator data deeper than the compiler could capture at
			// build time (3+ segment paths) — fall back to the configured
			// FHIRPath evaluator, else this slice can't be matched and is
			// skipped rather than flagged as an error.
			if w.FHIRPath == nil {
				return false
			}
			ok2, err := w.FHIRPath.Evaluate(ctx, path, item)
			if err != nil || !ok2 {
				return false
			}
			continue
		}

		actual, ok := valueAtPath(item, parts)
		if !ok || !reflect.DeepEqual(actual, expected) {
			return false
		}
	}
	return true
}

func valueAtPath(root any, parts []string) (any, bool) {
	cur := root
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// --- small helpers ---

func appended(path []string, seg string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = seg
	return out
}

func goType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}

func expectedTypeName(el *compiler.CompiledElement) string {
	if el.TypeName != "" {
		return el.TypeName
	}
	return "object"
}
