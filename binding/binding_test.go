package binding

import (
	"context"
	"testing"

	fhirvalidator "github.com/fhirschema/go-fhirschema"
	"github.com/fhirschema/go-fhirschema/compiler"
	"github.com/fhirschema/go-fhirschema/service"
)

// fakeTerminology validates a fixed set of system|code pairs against a
// single ValueSet; anything else is reported invalid.
type fakeTerminology struct {
	valid map[string]bool
}

func (f *fakeTerminology) ValidateCode(ctx context.Context, system, code, valueSetURL string) (*service.ValidateCodeResult, error) {
	ok := f.valid[system+"|"+code]
	return &service.ValidateCodeResult{Valid: ok, Code: code, System: system}, nil
}

func (f *fakeTerminology) ExpandValueSet(ctx context.Context, url string) (*service.ValueSetExpansion, error) {
	return &service.ValueSetExpansion{URL: url}, nil
}

func requiredBinding() *compiler.CompiledBinding {
	return &compiler.CompiledBinding{Strength: strengthRequired, ValueSet: "http://hl7.org/fhir/ValueSet/administrative-gender"}
}

func extensibleBinding() *compiler.CompiledBinding {
	return &compiler.CompiledBinding{Strength: strengthExtensible, ValueSet: "http://hl7.org/fhir/ValueSet/observation-category"}
}

func TestChecker_NilTerminology_NoOp(t *testing.T) {
	c := New(nil)
	result := fhirvalidator.NewResult()
	c.Check(context.Background(), "male", requiredBinding(), nil, result)
	if len(result.Issues) != 0 {
		t.Fatalf("expected no issues with nil terminology service, got %d", len(result.Issues))
	}
}

func TestChecker_RequiredBinding_ValidCode(t *testing.T) {
	term := &fakeTerminology{valid: map[string]bool{"|male": true}}
	c := New(term)
	result := fhirvalidator.NewResult()
	c.Check(context.Background(), "male", requiredBinding(), nil, result)
	if len(result.Issues) != 0 {
		t.Fatalf("expected no issues for a valid code, got %d", len(result.Issues))
	}
}

func TestChecker_RequiredBinding_InvalidCode_IsError(t *testing.T) {
	term := &fakeTerminology{}
	c := New(term)
	result := fhirvalidator.NewResult()
	c.Check(context.Background(), "bogus", requiredBinding(), []string{"Patient", "gender"}, result)
	if len(result.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(result.Issues))
	}
	if !result.Issues[0].IsError() {
		t.Error("expected a required-binding violation to be an error")
	}
}

func TestChecker_ExtensibleBinding_InvalidCode_IsWarning(t *testing.T) {
	term := &fakeTerminology{}
	c := New(term)
	result := fhirvalidator.NewResult()
	c.Check(context.Background(), "bogus", extensibleBinding(), []string{"Observation", "category"}, result)
	if len(result.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(result.Issues))
	}
	if result.Issues[0].IsError() {
		t.Error("expected an extensible-binding violation to be a warning, not an error")
	}
}

func TestChecker_CodeableConcept_OneValidCoding_NoIssue(t *testing.T) {
	term := &fakeTerminology{valid: map[string]bool{"sys|ok": true}}
	c := New(term)
	result := fhirvalidator.NewResult()

	value := map[string]any{
		"coding": []any{
			map[string]any{"system": "sys", "code": "ok"},
			map[string]any{"system": "sys", "code": "bad"},
		},
	}
	c.Check(context.Background(), value, extensibleBinding(), nil, result)
	if len(result.Issues) != 0 {
		t.Fatalf("expected no issues when at least one coding validates against an extensible binding, got %d", len(result.Issues))
	}
}

func TestChecker_CodeableConcept_TextOnly_RequiredBinding_IsError(t *testing.T) {
	term := &fakeTerminology{}
	c := New(term)
	result := fhirvalidator.NewResult()

	value := map[string]any{"text": "free text"}
	c.Check(context.Background(), value, requiredBinding(), nil, result)
	if len(result.Issues) != 1 {
		t.Fatalf("expected 1 issue for text-only value under a required binding, got %d", len(result.Issues))
	}
	if !result.Issues[0].IsError() {
		t.Error("expected text-only under a required binding to be an error")
	}
}

func TestChecker_CodeableConcept_TextOnly_ExtensibleBinding_NoIssue(t *testing.T) {
	term := &fakeTerminology{}
	c := New(term)
	result := fhirvalidator.NewResult()

	value := map[string]any{"text": "free text"}
	c.Check(context.Background(), value, extensibleBinding(), nil, result)
	if len(result.Issues) != 0 {
		t.Fatalf("expected text-only under an extensible binding to be allowed, got %d issues", len(result.Issues))
	}
}

func TestChecker_UnboundStrength_Skipped(t *testing.T) {
	term := &fakeTerminology{}
	c := New(term)
	result := fhirvalidator.NewResult()
	bind := &compiler.CompiledBinding{Strength: "preferred", ValueSet: "http://example.org/vs"}
	c.Check(context.Background(), "anything", bind, nil, result)
	if len(result.Issues) != 0 {
		t.Fatalf("expected preferred-strength bindings to never produce issues, got %d", len(result.Issues))
	}
}
