package reference

import (
	"context"
	"errors"
	"strings"
	"testing"

	fv "github.com/fhirschema/go-fhirschema"
	"github.com/fhirschema/go-fhirschema/service"
)

type fakeResolver struct {
	resolved *service.ResolvedReference
	err      error
}

func (f *fakeResolver) ResolveReference(ctx context.Context, reference string) (*service.ResolvedReference, error) {
	return f.resolved, f.err
}

func checkNoIssues(t *testing.T, result *fv.Result) {
	t.Helper()
	if len(result.Issues) != 0 {
		t.Errorf("expected no issues, got %v", result.Issues)
	}
}

func checkHasIssueContaining(t *testing.T, result *fv.Result, substr string) {
	t.Helper()
	for _, iss := range result.Issues {
		if strings.Contains(iss.Diagnostics, substr) {
			return
		}
	}
	t.Errorf("expected an issue containing %q, got %v", substr, result.Issues)
}

func TestChecker_ModeNone_NoOp(t *testing.T) {
	c := New(nil, ModeNone)
	result := fv.AcquireResult()
	c.Check(context.Background(), map[string]any{"reference": "bad ref"}, nil, []string{"x"}, nil, result)
	checkNoIssues(t, result)
}

func TestChecker_NilChecker_NoOp(t *testing.T) {
	var c *Checker
	result := fv.AcquireResult()
	c.Check(context.Background(), map[string]any{"reference": "bad ref"}, nil, []string{"x"}, nil, result)
	checkNoIssues(t, result)
}

func TestChecker_ValidRelativeReference(t *testing.T) {
	c := New(nil, ModeTypeOnly)
	result := fv.AcquireResult()
	value := map[string]any{"reference": "Patient/123"}
	c.Check(context.Background(), value, []string{"http://hl7.org/fhir/StructureDefinition/Patient"}, []string{"subject"}, nil, result)
	checkNoIssues(t, result)
}

func TestChecker_LowercaseResourceTypeWarns(t *testing.T) {
	c := New(nil, ModeTypeOnly)
	result := fv.AcquireResult()
	value := map[string]any{"reference": "patient/123"}
	c.Check(context.Background(), value, nil, []string{"subject"}, nil, result)
	checkHasIssueContaining(t, result, "should be capitalized")
}

func TestChecker_InvalidFormatErrors(t *testing.T) {
	c := New(nil, ModeTypeOnly)
	result := fv.AcquireResult()
	value := map[string]any{"reference": "not-a-reference"}
	c.Check(context.Background(), value, nil, []string{"subject"}, nil, result)
	checkHasIssueContaining(t, result, "invalid reference format")
}

func TestChecker_DisallowedTargetType(t *testing.T) {
	c := New(nil, ModeTypeOnly)
	result := fv.AcquireResult()
	value := map[string]any{"reference": "Observation/123"}
	c.Check(context.Background(), value, []string{"http://hl7.org/fhir/StructureDefinition/Patient"}, []string{"subject"}, nil, result)
	checkHasIssueContaining(t, result, "is not allowed")
}

func TestChecker_AllowedWhenTargetIsAbstractResource(t *testing.T) {
	c := New(nil, ModeTypeOnly)
	result := fv.AcquireResult()
	value := map[string]any{"reference": "Observation/123"}
	c.Check(context.Background(), value, []string{"http://hl7.org/fhir/StructureDefinition/Resource"}, []string{"subject"}, nil, result)
	checkNoIssues(t, result)
}

func TestChecker_DisplayOnlyWarns(t *testing.T) {
	c := New(nil, ModeTypeOnly)
	result := fv.AcquireResult()
	value := map[string]any{"display": "Dr. Smith"}
	c.Check(context.Background(), value, nil, []string{"performer"}, nil, result)
	checkHasIssueContaining(t, result, "without 'reference' or 'identifier'")
}

func TestChecker_IdentifierOnlyIsFine(t *testing.T) {
	c := New(nil, ModeTypeOnly)
	result := fv.AcquireResult()
	value := map[string]any{"identifier": map[string]any{"system": "http://example.org", "value": "123"}}
	c.Check(context.Background(), value, nil, []string{"performer"}, nil, result)
	checkNoIssues(t, result)
}

func TestChecker_ContainedReferenceResolved(t *testing.T) {
	c := New(nil, ModeResolve)
	result := fv.AcquireResult()
	root := map[string]any{
		"resourceType": "Observation",
		"contained": []any{
			map[string]any{"resourceType": "Patient", "id": "p1"},
		},
	}
	value := map[string]any{"reference": "#p1"}
	c.Check(context.Background(), value, nil, []string{"subject"}, root, result)
	checkNoIssues(t, result)
}

func TestChecker_ContainedReferenceMissing(t *testing.T) {
	c := New(nil, ModeResolve)
	result := fv.AcquireResult()
	root := map[string]any{"resourceType": "Observation"}
	value := map[string]any{"reference": "#missing"}
	c.Check(context.Background(), value, nil, []string{"subject"}, root, result)
	checkHasIssueContaining(t, result, "not found")
}

func TestChecker_ExternalResolveFailure(t *testing.T) {
	c := New(&fakeResolver{err: errors.New("network error")}, ModeResolve)
	result := fv.AcquireResult()
	value := map[string]any{"reference": "Patient/123"}
	c.Check(context.Background(), value, nil, []string{"subject"}, nil, result)
	checkHasIssueContaining(t, result, "unable to resolve")
}

func TestChecker_ExternalResolveSuccess(t *testing.T) {
	c := New(&fakeResolver{resolved: &service.ResolvedReference{Found: true}}, ModeResolve)
	result := fv.AcquireResult()
	value := map[string]any{"reference": "Patient/123"}
	c.Check(context.Background(), value, nil, []string{"subject"}, nil, result)
	checkNoIssues(t, result)
}
