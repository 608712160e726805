// Package context provides the SpecContext which manages FHIR version-specific
// resources for validation.
//
// SpecContext automatically loads StructureDefinitions, CodeSystems, and ValueSets
// for the selected FHIR version. With the default PackageSourceAuto it tries the
// package registry first and falls back to the embedded FHIR specification files.
//
// Usage:
//
//	ctx := context.Background()
//	specCtx, err := fhircontext.New(ctx, fv.R4, fhircontext.Options{
//	    LoadTerminology: true,
//	})
//	if err != nil {
//	    return err
//	}
//
//	// Use specCtx.Profiles for profile resolution
//	// Use specCtx.Terminology for code validation
package context
