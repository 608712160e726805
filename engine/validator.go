// Package engine provides the main FHIR validation engine.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	fv "github.com/fhirschema/go-fhirschema"
	"github.com/fhirschema/go-fhirschema/binding"
	"github.com/fhirschema/go-fhirschema/compiler"
	"github.com/fhirschema/go-fhirschema/constraint"
	"github.com/fhirschema/go-fhirschema/reference"
	"github.com/fhirschema/go-fhirschema/schemata"
	"github.com/fhirschema/go-fhirschema/service"
	"github.com/fhirschema/go-fhirschema/stream"
	"github.com/fhirschema/go-fhirschema/walker"
	"github.com/fhirschema/go-fhirschema/worker"
)

// Validator is the main FHIR resource validator.
// It wires a schema compiler, terminology/constraint checkers, and the
// recursive walker, and coordinates them over a parsed resource.
type Validator struct {
	// Configuration
	version fv.FHIRVersion
	options *fv.Options

	// Services
	profileService     service.ProfileResolver
	terminologyService service.TerminologyService
	referenceResolver  service.ReferenceResolver
	fhirPathEvaluator  service.FHIRPathEvaluator

	// Schema pipeline
	schemaSource *profileSchemaSource
	compiler     *compiler.Compiler
	resolver     *schemata.Resolver
	walk         *walker.Walker

	// Metrics
	metrics *fv.Metrics

	// Worker pool for batch validation
	workerPoolOnce sync.Once
	batch          *worker.BatchValidator
}

// New creates a new Validator with the specified FHIR version and options.
func New(ctx context.Context, version fv.FHIRVersion, opts ...fv.Option) (*Validator, error) {
	options := fv.DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	v := &Validator{
		version: version,
		options: options,
		metrics: fv.NewMetrics(),
	}

	v.buildEngine()

	return v, nil
}

// buildEngine (re)constructs the compiler/resolver/checker/walker stack from
// the validator's currently configured services and options. Every Set*
// method below calls this so a service swapped in mid-life takes effect
// immediately.
func (v *Validator) buildEngine() {
	v.schemaSource = newProfileSchemaSource(v.profileService)

	cacheSize := v.options.StructureDefCacheSize
	v.compiler = compiler.New(v.schemaSource, cacheSize)

	v.resolver = &schemata.Resolver{
		Compile: func(ctx context.Context, name string) (*compiler.CompiledSchema, bool) {
			cs, err := v.compiler.Compile(ctx, name)
			if err != nil {
				return nil, false
			}
			return cs, true
		},
	}

	var bindingChecker *binding.Checker
	if v.options.ValidateTerminology && v.terminologyService != nil {
		bindingChecker = binding.New(v.terminologyService)
	} else {
		bindingChecker = binding.New(nil)
	}

	var constraintRunner *constraint.Runner
	if v.options.ValidateConstraints && v.fhirPathEvaluator != nil {
		constraintRunner = constraint.New(asConstraintsEvaluator(v.fhirPathEvaluator))
	} else {
		constraintRunner = constraint.New(nil)
	}

	refMode := reference.ModeNone
	if v.options.ValidateReferences {
		refMode = reference.ModeTypeOnly
		if v.referenceResolver != nil {
			refMode = reference.ModeResolve
		}
	}

	w := walker.New(v.resolver, bindingChecker, constraintRunner)
	w.FHIRPath = v.fhirPathEvaluator
	w.Reference = reference.New(v.referenceResolver, refMode)
	v.walk = w
}

// asConstraintsEvaluator adapts a plain service.FHIRPathEvaluator into a
// service.ConstraintsEvaluator, preferring a native batch implementation
// (e.g. *service.FHIRPathAdapter) when the evaluator already provides one.
func asConstraintsEvaluator(eval service.FHIRPathEvaluator) service.ConstraintsEvaluator {
	if ce, ok := eval.(service.ConstraintsEvaluator); ok {
		return ce
	}
	return &perExpressionEvaluator{eval: eval}
}

// perExpressionEvaluator satisfies service.ConstraintsEvaluator for an
// evaluator with no shared-plan benefit, by looping Evaluate per expression.
type perExpressionEvaluator struct {
	eval service.FHIRPathEvaluator
}

func (p *perExpressionEvaluator) EvaluateConstraints(ctx context.Context, resource any, expressions map[string]string) []service.ConstraintResult {
	results := make([]service.ConstraintResult, 0, len(expressions))
	for key, expr := range expressions {
		ok, err := p.eval.Evaluate(ctx, expr, resource)
		results = append(results, service.ConstraintResult{Key: key, Valid: ok, Error: err})
	}
	return results
}

// SetProfileService sets the profile resolution service.
func (v *Validator) SetProfileService(svc service.ProfileResolver) {
	v.profileService = svc
	v.buildEngine()
}

// SetTerminologyService sets the terminology service.
func (v *Validator) SetTerminologyService(svc service.TerminologyService) {
	v.terminologyService = svc
	v.buildEngine()
}

// SetReferenceResolver sets the reference resolver service.
func (v *Validator) SetReferenceResolver(svc service.ReferenceResolver) {
	v.referenceResolver = svc
	v.buildEngine()
}

// SetFHIRPathEvaluator sets the FHIRPath evaluator for constraint validation.
func (v *Validator) SetFHIRPathEvaluator(eval service.FHIRPathEvaluator) {
	v.fhirPathEvaluator = eval
	v.buildEngine()
}

// Validate validates a FHIR resource.
func (v *Validator) Validate(ctx context.Context, resource []byte) (*fv.Result, error) {
	start := time.Now()

	var resourceMap map[string]any
	if err := json.Unmarshal(resource, &resourceMap); err != nil {
		result := fv.AcquireResult()
		result.AddError(fv.IssueTypeStructure, fmt.Sprintf("Invalid JSON: %v", err), "")
		v.metrics.RecordValidation(time.Since(start), false)
		return result, nil
	}

	return v.ValidateMap(ctx, resourceMap)
}

// ValidateBytes satisfies worker.Validator, letting a Validator drive a
// worker.Pool directly.
func (v *Validator) ValidateBytes(ctx context.Context, resource []byte) (*fv.Result, error) {
	return v.Validate(ctx, resource)
}

// ValidateMap validates a FHIR resource that's already been parsed to a map.
func (v *Validator) ValidateMap(ctx context.Context, resourceMap map[string]any) (*fv.Result, error) {
	return v.validate(ctx, resourceMap, nil)
}

// ValidateWithProfiles validates a resource against specific profiles,
// skipping meta.profile extraction.
func (v *Validator) ValidateWithProfiles(ctx context.Context, resource []byte, profiles ...string) (*fv.Result, error) {
	start := time.Now()

	var resourceMap map[string]any
	if err := json.Unmarshal(resource, &resourceMap); err != nil {
		result := fv.AcquireResult()
		result.AddError(fv.IssueTypeStructure, fmt.Sprintf("Invalid JSON: %v", err), "")
		v.metrics.RecordValidation(time.Since(start), false)
		return result, nil
	}

	return v.validate(ctx, resourceMap, profiles)
}

// validate is the shared core of ValidateMap/ValidateWithProfiles: resolve
// the resource type, determine the root schema keys (declared profiles take
// precedence, the base resource type always participates), and walk.
func (v *Validator) validate(ctx context.Context, resourceMap map[string]any, explicitProfiles []string) (*fv.Result, error) {
	start := time.Now()

	resourceType, ok := resourceMap["resourceType"].(string)
	if !ok || resourceType == "" {
		result := fv.AcquireResult()
		result.AddError(fv.IssueTypeStructure, "Resource must have a 'resourceType' element", "")
		v.metrics.RecordValidation(time.Since(start), false)
		return result, nil
	}

	profiles := explicitProfiles
	if profiles == nil && v.options.ValidateMetaProfiles {
		profiles = v.extractMetaProfiles(resourceMap)
	}

	rootKeys := append([]string{resourceType}, profiles...)

	result := fv.AcquireResult()
	if v.walk == nil {
		v.buildEngine()
	}
	v.walk.Walk(ctx, resourceMap, rootKeys, result)

	if v.options.StrictMode {
		for i := range result.Issues {
			if result.Issues[i].Severity == fv.SeverityWarning {
				result.Issues[i].Severity = fv.SeverityError
				result.Valid = false
			}
		}
	}

	v.metrics.RecordValidation(time.Since(start), result.Valid)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// extractMetaProfiles extracts profile URLs from resource.meta.profile.
func (v *Validator) extractMetaProfiles(resourceMap map[string]any) []string {
	meta, ok := resourceMap["meta"].(map[string]any)
	if !ok {
		return nil
	}

	profileArray, ok := meta["profile"].([]any)
	if !ok {
		return nil
	}

	profiles := make([]string, 0, len(profileArray))
	for _, p := range profileArray {
		if profileURL, ok := p.(string); ok && profileURL != "" {
			profiles = append(profiles, profileURL)
		}
	}

	return profiles
}

// ValidateBatch validates multiple resources in parallel, preserving
// input order in the returned slice.
func (v *Validator) ValidateBatch(ctx context.Context, resources [][]byte) []*fv.Result {
	v.workerPoolOnce.Do(func() {
		workers := v.options.WorkerCount
		if workers <= 0 {
			workers = 4
		}
		v.batch = worker.NewBatchValidator(v.Validate, workers)
	})

	batchResult := v.batch.ValidateBatch(ctx, resources)

	// BatchValidator.ValidateBatch always returns Results positionally
	// aligned with the input slice, sequential or parallel path alike.
	results := make([]*fv.Result, len(resources))
	for i, jr := range batchResult.Results {
		if jr == nil {
			continue
		}
		if jr.Error != nil {
			r := fv.AcquireResult()
			r.AddError(fv.IssueTypeProcessing, jr.Error.Error(), "")
			results[i] = r
			continue
		}
		results[i] = jr.Result
	}
	return results
}

// Metrics returns the validator's metrics.
func (v *Validator) Metrics() *fv.Metrics {
	return v.metrics
}

// Version returns the FHIR version this validator is configured for.
func (v *Validator) Version() fv.FHIRVersion {
	return v.version
}

// Options returns the validator's options.
func (v *Validator) Options() *fv.Options {
	return v.options
}

// Close releases resources held by the validator.
func (v *Validator) Close() error {
	return nil
}

// QuickValidate performs fast validation with minimal checks: resourceType
// presence and id format only. Useful for initial screening of resources.
func (v *Validator) QuickValidate(ctx context.Context, resource []byte) (*fv.Result, error) {
	var resourceMap map[string]any
	if err := json.Unmarshal(resource, &resourceMap); err != nil {
		result := fv.AcquireResult()
		result.AddError(fv.IssueTypeStructure, fmt.Sprintf("Invalid JSON: %v", err), "")
		return result, nil
	}

	result := fv.AcquireResult()

	resourceType, ok := resourceMap["resourceType"].(string)
	if !ok || resourceType == "" {
		result.AddError(fv.IssueTypeStructure, "Resource must have a 'resourceType' element", "")
		return result, nil
	}

	if id, ok := resourceMap["id"].(string); ok {
		if !validID(id) {
			result.AddError(fv.IssueTypeValue, fmt.Sprintf("Invalid id format: '%s'", id), "id")
		}
	}

	return result, nil
}

// validID reports whether id is a conformant FHIR resource id: 1-64
// characters drawn from [A-Za-z0-9-.].
func validID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if !((c >= 'A' && c <= 'Z') ||
			(c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') ||
			c == '-' || c == '.') {
			return false
		}
	}
	return true
}

// ValidateBundleStream validates a bundle from an io.Reader in a streaming
// fashion, for bundles too large to load entirely into memory. Results are
// emitted as entries are processed, in order.
func (v *Validator) ValidateBundleStream(ctx context.Context, r io.Reader) <-chan *stream.EntryResult {
	sv := stream.NewBundleValidator(v.Validate).
		WithWorkerCount(v.options.WorkerCount).
		WithBufferSize(100)

	return sv.ValidateStream(ctx, r)
}

// ValidateBundleStreamParallel validates bundle entries in parallel while
// preserving order, for better throughput on large bundles.
func (v *Validator) ValidateBundleStreamParallel(ctx context.Context, r io.Reader) <-chan *stream.EntryResult {
	sv := stream.NewBundleValidator(v.Validate).
		WithWorkerCount(v.options.WorkerCount).
		WithBufferSize(100)

	return sv.ValidateStreamParallel(ctx, r)
}

// AggregateBundleResults collects all results from a streaming bundle validation.
func AggregateBundleResults(results <-chan *stream.EntryResult) *stream.BundleStreamResult {
	return stream.Aggregate(results)
}
