// Package constraint runs the FHIRPath invariants attached to a compiled
// schema against a resource node, producing FS1010 diagnostics for any
// that fail.
package constraint

import (
	"context"

	"github.com/fhirschema/go-fhirschema/compiler"
	fhirvalidator "github.com/fhirschema/go-fhirschema"
	"github.com/fhirschema/go-fhirschema/service"
)

// bestPractice constraints are warnings about authoring style (narrative
// presence) rather than data correctness; the
// teacher's pkg/constraint skips the same set.
var bestPractice = map[string]bool{
	"dom-6": true,
}

// Runner evaluates constraints via a pluggable batch FHIRPath evaluator.
// With no evaluator configured, Run is a no-op — constraint validation is
// opt-in and requires a service.ConstraintsEvaluator.
type Runner struct {
	Evaluator service.ConstraintsEvaluator
}

// New creates a Runner. evaluator may be nil to disable constraint checking.
func New(evaluator service.ConstraintsEvaluator) *Runner {
	return &Runner{Evaluator: evaluator}
}

// Run evaluates every non-best-practice constraint in constraints against
// node, appending an FS1010 issue to result for each failing or erroring
// expression. path is the current walked element path used for reporting.
func (r *Runner) Run(ctx context.Context, node any, constraints []compiler.CompiledConstraint, path []string, result *fhirvalidator.Result) {
	if r == nil || r.Evaluator == nil || len(constraints) == 0 {
		return
	}

	exprs := make(map[string]string, len(constraints))
	byKey := make(map[string]compiler.CompiledConstraint, len(constraints))
	for _, c := range constraints {
		if c.Expression == "" || bestPractice[c.Key] {
			continue
		}
		exprs[c.Key] = c.Expression
		byKey[c.Key] = c
	}
	if len(exprs) == 0 {
		return
	}

	for _, outcome := range r.Evaluator.EvaluateConstraints(ctx, node, exprs) {
		c := byKey[outcome.Key]

		if outcome.Error != nil {
			result.AddIssue(fhirvalidator.Error(fhirvalidator.IssueTypeInvariant).
				FS(fhirvalidator.FS1010ConstraintViolation).
				Diagnostics("constraint " + c.Key + " failed to evaluate: " + outcome.Error.Error()).
				Path(path).
				Constraint(c.Key).
				Build())
			continue
		}

		if outcome.Valid {
			continue
		}

		severity := fhirvalidator.SeverityError
		issueType := fhirvalidator.IssueTypeInvariant
		if c.Severity == "warning" {
			severity = fhirvalidator.SeverityWarning
		}

		msg := c.Human
		if msg == "" {
			msg = "constraint failed: " + c.Expression
		}

		result.AddIssue(fhirvalidator.NewIssue(severity, issueType).
			FS(fhirvalidator.FS1010ConstraintViolation).
			Diagnostics(msg).
			Path(path).
			Constraint(c.Key).
			Build())
	}
}
