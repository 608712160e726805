package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/fhirschema/go-fhirschema/service"
)

type fakeResolver struct {
	byType map[string]*service.StructureDefinition
	byURL  map[string]*service.StructureDefinition
}

func (f *fakeResolver) FetchStructureDefinitionByType(ctx context.Context, resourceType string) (*service.StructureDefinition, error) {
	if sd, ok := f.byType[resourceType]; ok {
		return sd, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeResolver) FetchStructureDefinition(ctx context.Context, url string) (*service.StructureDefinition, error) {
	if sd, ok := f.byURL[url]; ok {
		return sd, nil
	}
	return nil, errors.New("not found")
}

func patientStructureDefinition() *service.StructureDefinition {
	return &service.StructureDefinition{
		URL:  "http://hl7.org/fhir/StructureDefinition/Patient",
		Name: "Patient",
		Type: "Patient",
		Kind: "resource",
		Snapshot: []service.ElementDefinition{
			{Path: "Patient", Min: 0, Max: "*"},
			{Path: "Patient.active", Min: 0, Max: "1", Types: []service.TypeRef{{Code: "boolean"}}},
		},
	}
}

func TestSchemaSource_GetSchemaByName_ResolvesByType(t *testing.T) {
	resolver := &fakeResolver{
		byType: map[string]*service.StructureDefinition{"Patient": patientStructureDefinition()},
	}
	src := newProfileSchemaSource(resolver)

	schema, ok := src.GetSchemaByName(context.Background(), "Patient")
	if !ok {
		t.Fatal("expected schema to be found")
	}
	if schema.Type != "Patient" {
		t.Errorf("Type = %q; want Patient", schema.Type)
	}
	if _, ok := schema.Elements["active"]; !ok {
		t.Errorf("expected an 'active' element, got %v", schema.Elements)
	}
}

func TestSchemaSource_GetSchemaByName_FallsBackToURL(t *testing.T) {
	sd := patientStructureDefinition()
	resolver := &fakeResolver{
		byType: map[string]*service.StructureDefinition{},
		byURL:  map[string]*service.StructureDefinition{sd.URL: sd},
	}
	src := newProfileSchemaSource(resolver)

	schema, ok := src.GetSchemaByName(context.Background(), sd.URL)
	if !ok {
		t.Fatal("expected schema to be found via URL fallback")
	}
	if schema.URL != sd.URL {
		t.Errorf("URL = %q; want %q", schema.URL, sd.URL)
	}
}

func TestSchemaSource_GetSchemaByName_NotFound(t *testing.T) {
	src := newProfileSchemaSource(&fakeResolver{})
	if _, ok := src.GetSchemaByName(context.Background(), "NoSuchType"); ok {
		t.Error("expected not found")
	}
}

func TestSchemaSource_GetSchemaByURL(t *testing.T) {
	sd := patientStructureDefinition()
	resolver := &fakeResolver{byURL: map[string]*service.StructureDefinition{sd.URL: sd}}
	src := newProfileSchemaSource(resolver)

	schema, ok := src.GetSchemaByURL(context.Background(), sd.URL)
	if !ok {
		t.Fatal("expected schema to be found")
	}
	if schema.Name != "Patient" {
		t.Errorf("Name = %q; want Patient", schema.Name)
	}
}

func TestSchemaSource_NilResolver(t *testing.T) {
	src := newProfileSchemaSource(nil)
	if _, ok := src.GetSchemaByName(context.Background(), "Patient"); ok {
		t.Error("expected nil resolver to never find a schema")
	}
	if _, ok := src.GetSchemaByURL(context.Background(), "http://example.org/x"); ok {
		t.Error("expected nil resolver to never find a schema")
	}
}

func TestSchemaSource_EmptyDifferentialFallsBackToSnapshot(t *testing.T) {
	sd := patientStructureDefinition() // no Differential set
	resolver := &fakeResolver{byType: map[string]*service.StructureDefinition{"Patient": sd}}
	src := newProfileSchemaSource(resolver)

	schema, ok := src.GetSchemaByName(context.Background(), "Patient")
	if !ok {
		t.Fatal("expected schema to be found")
	}
	if _, ok := schema.Elements["active"]; !ok {
		t.Error("expected the snapshot-derived 'active' element to survive the differential fallback")
	}
}

func TestSchemaSource_ProfileSetsConstraintDerivation(t *testing.T) {
	sd := patientStructureDefinition()
	sd.BaseDefinition = "http://hl7.org/fhir/StructureDefinition/Patient"
	sd.URL = "http://example.org/fhir/StructureDefinition/my-patient"
	resolver := &fakeResolver{byType: map[string]*service.StructureDefinition{"my-patient": sd}}
	src := newProfileSchemaSource(resolver)

	schema, ok := src.GetSchemaByName(context.Background(), "my-patient")
	if !ok {
		t.Fatal("expected schema to be found")
	}
	if schema.Derivation != "constraint" {
		t.Errorf("Derivation = %q; want constraint", schema.Derivation)
	}
}
