// Package reference validates FHIR Reference values: wire format, the
// declared target-type restriction, and optional contained/external
// resolution via a pluggable service.ReferenceResolver.
package reference

import (
	"context"
	"strings"

	fhirvalidator "github.com/fhirschema/go-fhirschema"
	"github.com/fhirschema/go-fhirschema/service"
)

// Mode controls how deep reference validation goes.
type Mode int

const (
	// ModeNone disables reference validation entirely.
	ModeNone Mode = iota
	// ModeTypeOnly validates format and target-type restriction only.
	ModeTypeOnly
	// ModeResolve additionally resolves the reference via Resolver.
	ModeResolve
)

// Checker validates Reference-typed values. A nil Checker, or one with
// Mode == ModeNone, is a no-op.
type Checker struct {
	Resolver service.ReferenceResolver
	Mode     Mode
}

// New creates a Checker. resolver may be nil; with Mode == ModeResolve and a
// nil resolver, only contained-reference resolution (which needs no
// resolver) is attempted.
func New(resolver service.ReferenceResolver, mode Mode) *Checker {
	return &Checker{Resolver: resolver, Mode: mode}
}

// Check validates value (a Reference object) against targets, the element's
// declared TargetProfile URLs. root is the top-level resource, consulted for
// contained-reference resolution.
func (c *Checker) Check(ctx context.Context, value any, targets []string, path []string, root map[string]any, result *fhirvalidator.Result) {
	if c == nil || c.Mode == ModeNone {
		return
	}
	refMap, ok := value.(map[string]any)
	if !ok {
		return
	}

	reference, _ := refMap["reference"].(string)
	explicitType, _ := refMap["type"].(string)

	if reference == "" {
		if _, hasIdentifier := refMap["identifier"]; hasIdentifier {
			return
		}
		if _, hasDisplay := refMap["display"]; hasDisplay {
			c.report(fhirvalidator.SeverityWarning, path, "reference has only 'display' without 'reference' or 'identifier'", result)
		}
		return
	}

	c.checkFormat(reference, path, result)

	targetType := c.extractTargetType(reference, explicitType)
	if targetType != "" && len(targets) > 0 {
		c.checkTargetType(targetType, targets, path, result)
	}

	if c.Mode == ModeResolve {
		c.resolve(ctx, reference, path, root, result)
	}
}

func (c *Checker) checkFormat(reference string, path []string, result *fhirvalidator.Result) {
	if strings.HasPrefix(reference, "#") {
		if len(reference) < 2 {
			c.report(fhirvalidator.SeverityError, path, "invalid contained reference: missing id", result)
		}
		return
	}
	if strings.HasPrefix(reference, "urn:uuid:") || strings.HasPrefix(reference, "urn:oid:") {
		return
	}
	if strings.HasPrefix(reference, "http://") || strings.HasPrefix(reference, "https://") {
		return
	}

	parts := strings.Split(reference, "/")
	if len(parts) < 2 {
		c.report(fhirvalidator.SeverityError, path, "invalid reference format '"+reference+"' (expected ResourceType/id)", result)
		return
	}
	resourceType := parts[len(parts)-2]
	if resourceType != "" && resourceType[0] >= 'a' && resourceType[0] <= 'z' {
		c.report(fhirvalidator.SeverityWarning, path, "reference resource type '"+resourceType+"' should be capitalized", result)
	}
}

func (c *Checker) extractTargetType(reference, explicitType string) string {
	if explicitType != "" {
		return explicitType
	}
	if strings.HasPrefix(reference, "#") || strings.HasPrefix(reference, "urn:") {
		return ""
	}

	ref := strings.Split(reference, "?")[0]
	ref = strings.Split(ref, "#")[0]
	parts := strings.Split(ref, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return ""
}

// checkTargetType compares targetType against targets, the element's raw
// TargetProfile URLs (e.g. "http://hl7.org/fhir/StructureDefinition/Patient").
func (c *Checker) checkTargetType(targetType string, targets []string, path []string, result *fhirvalidator.Result) {
	allowed := false
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		name := t
		if idx := strings.LastIndex(t, "/"); idx >= 0 {
			name = t[idx+1:]
		}
		names = append(names, name)
		if name == targetType || name == "Resource" {
			allowed = true
		}
	}
	if !allowed {
		c.report(fhirvalidator.SeverityError, path, "reference to '"+targetType+"' is not allowed; allowed types: "+strings.Join(names, ", "), result)
	}
}

func (c *Checker) resolve(ctx context.Context, reference string, path []string, root map[string]any, result *fhirvalidator.Result) {
	if strings.HasPrefix(reference, "#") {
		if !isContained(root, reference[1:]) {
			c.report(fhirvalidator.SeverityError, path, "contained resource '"+reference[1:]+"' not found", result)
		}
		return
	}
	if c.Resolver == nil {
		return
	}
	resolved, err := c.Resolver.ResolveReference(ctx, reference)
	if err != nil {
		c.report(fhirvalidator.SeverityWarning, path, "unable to resolve reference '"+reference+"': "+err.Error(), result)
		return
	}
	if resolved == nil {
		c.report(fhirvalidator.SeverityWarning, path, "reference '"+reference+"' could not be resolved", result)
	}
}

func isContained(root map[string]any, id string) bool {
	contained, ok := root["contained"].([]any)
	if !ok {
		return false
	}
	for _, item := range contained {
		res, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if resID, _ := res["id"].(string); resID == id {
			return true
		}
	}
	return false
}

func (c *Checker) report(severity fhirvalidator.IssueSeverity, path []string, msg string, result *fhirvalidator.Result) {
	result.AddIssue(fhirvalidator.NewIssue(severity, fhirvalidator.IssueTypeValue).
		FS(fhirvalidator.FS1006WrongType).
		Diagnostics(msg).
		Path(path).
		Build())
}
