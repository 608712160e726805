// Package binding validates FHIR terminology bindings — code, Coding, and
// CodeableConcept values checked against a bound ValueSet via a pluggable
// service.TerminologyService.
package binding

import (
	"context"
	"strconv"

	fhirvalidator "github.com/fhirschema/go-fhirschema"
	"github.com/fhirschema/go-fhirschema/compiler"
	"github.com/fhirschema/go-fhirschema/service"
)

const (
	strengthRequired   = "required"
	strengthExtensible = "extensible"
)

// Checker validates bound values against a terminology service. A nil or
// zero-value Terminology means bindings are never checked — callers opt in
// by wiring a real service.TerminologyService, never silently passed by a
// permissive default.
type Checker struct {
	Terminology service.TerminologyService
}

// New creates a Checker. term may be nil to disable binding checks.
func New(term service.TerminologyService) *Checker {
	return &Checker{Terminology: term}
}

// Check validates value against binding, reporting FS1006 issues (reusing
// the wrong-type code: a code outside its bound ValueSet is, in FHIR Schema
// terms, a value whose terminology-level type doesn't match the schema).
// Only required and extensible bindings are enforced; preferred and example
// bindings are informational and never produce issues, matching the
// teacher's semantics.
func (c *Checker) Check(ctx context.Context, value any, bind *compiler.CompiledBinding, path []string, result *fhirvalidator.Result) {
	if c == nil || c.Terminology == nil || bind == nil {
		return
	}
	if bind.Strength != strengthRequired && bind.Strength != strengthExtensible {
		return
	}
	if bind.ValueSet == "" {
		return
	}

	switch v := value.(type) {
	case string:
		c.checkCode(ctx, "", v, bind, path, result)
	case map[string]any:
		c.checkComplex(ctx, v, bind, path, result)
	case []any:
		for i, item := range v {
			itemPath := append(append([]string{}, path...), indexSegment(i))
			c.Check(ctx, item, bind, itemPath, result)
		}
	}
}

func (c *Checker) checkComplex(ctx context.Context, val map[string]any, bind *compiler.CompiledBinding, path []string, result *fhirvalidator.Result) {
	if codingRaw, ok := val["coding"]; ok {
		c.checkCodeableConcept(ctx, val, codingRaw, bind, path, result)
		return
	}

	// bare Coding
	if _, ok := val["system"]; ok {
		system, _ := val["system"].(string)
		code, _ := val["code"].(string)
		if code != "" {
			c.checkCode(ctx, system, code, bind, path, result)
		}
		return
	}

	// text-only CodeableConcept: no coding to validate against a required
	// binding is itself a violation; extensible bindings allow free text.
	if text, ok := val["text"]; ok && text != nil {
		if bind.Strength == strengthRequired {
			c.report(bind.Strength, path, "value has no coding to validate against required binding "+bind.ValueSet, result)
		}
	}
}

func (c *Checker) checkCodeableConcept(ctx context.Context, _ map[string]any, codingRaw any, bind *compiler.CompiledBinding, path []string, result *fhirvalidator.Result) {
	codings, ok := codingRaw.([]any)
	if !ok || len(codings) == 0 {
		return
	}

	anyValid := false
	for i, item := range codings {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		system, _ := m["system"].(string)
		code, _ := m["code"].(string)
		if code == "" {
			continue
		}
		itemPath := append(append([]string{}, path...), "coding", indexSegment(i))

		res, err := c.Terminology.ValidateCode(ctx, system, code, bind.ValueSet)
		if err == nil && res != nil && res.Valid {
			anyValid = true
			continue
		}
		if bind.Strength == strengthRequired {
			c.report(bind.Strength, itemPath, "code '"+code+"' from system '"+system+"' not found in required binding "+bind.ValueSet, result)
		}
	}

	// Extensible: at least one coding in the array must validate, unless
	// none of the codings belong to the bound system at all (not checked
	// here — that nuance needs ValueSet membership-by-system, which the
	// terminology service's ValidateCode already accounts for per-call).
	if bind.Strength == strengthExtensible && !anyValid && len(codings) > 0 {
		c.report(bind.Strength, path, "no coding in CodeableConcept validates against extensible binding "+bind.ValueSet, result)
	}
}

func (c *Checker) checkCode(ctx context.Context, system, code string, bind *compiler.CompiledBinding, path []string, result *fhirvalidator.Result) {
	if code == "" {
		return
	}
	res, err := c.Terminology.ValidateCode(ctx, system, code, bind.ValueSet)
	if err == nil && res != nil && res.Valid {
		return
	}
	switch bind.Strength {
	case strengthRequired:
		c.report(bind.Strength, path, "code '"+code+"' not found in required binding "+bind.ValueSet, result)
	case strengthExtensible:
		c.report(bind.Strength, path, "code '"+code+"' not found in extensible binding "+bind.ValueSet, result)
	}
}

func (c *Checker) report(strength string, path []string, msg string, result *fhirvalidator.Result) {
	builder := fhirvalidator.Error(fhirvalidator.IssueTypeCodeInvalid)
	if strength == strengthExtensible {
		builder = fhirvalidator.Warning(fhirvalidator.IssueTypeCodeInvalid)
	}
	result.AddIssue(builder.
		FS(fhirvalidator.FS1006WrongType).
		Diagnostics(msg).
		Path(path).
		Build())
}

func indexSegment(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}
