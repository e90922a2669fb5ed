package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const reviewQuery = "data.proctor.review.allow"

// Default review policy: instructors may review any flag.
const defaultRegoPolicy = `package proctor.review

default allow := false

allow if {
	input.user.role == "instructor"
}
`

// OPAEvaluator evaluates the tamper review policy using OPA Rego.
type OPAEvaluator struct {
	compiler *ast.Compiler
}

// NewOPAEvaluator compiles policySource (or the built-in policy when empty) once.
// The source must define data.proctor.review.allow.
func NewOPAEvaluator(policySource string) (*OPAEvaluator, error) {
	if policySource == "" {
		policySource = defaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"review.rego": policySource})
	if err != nil {
		return nil, fmt.Errorf("compile review policy: %w", err)
	}
	return &OPAEvaluator{compiler: compiler}, nil
}

// LoadPolicyFile reads a Rego file. An empty path returns the built-in policy.
func LoadPolicyFile(path string) (string, error) {
	if path == "" {
		return defaultRegoPolicy, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read review policy: %w", err)
	}
	return string(b), nil
}

// HealthCheck evaluates the compiled policy against a minimal input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	minimalInput := map[string]interface{}{
		"user": map[string]interface{}{"id": "", "role": ""},
		"flag": map[string]interface{}{"id": "", "kind": "", "reviewed": false},
	}
	if _, err := e.eval(ctx, minimalInput); err != nil {
		return fmt.Errorf("eval review policy: %w", err)
	}
	return nil
}

// AllowReview evaluates data.proctor.review.allow. A missing or non-boolean result denies.
func (e *OPAEvaluator) AllowReview(ctx context.Context, in ReviewInput) (bool, error) {
	if in.Reviewer == nil || in.Flag == nil {
		return false, errors.New("review input requires reviewer and flag")
	}
	return e.eval(ctx, buildInput(in))
}

func (e *OPAEvaluator) eval(ctx context.Context, input map[string]interface{}) (bool, error) {
	q := rego.New(
		rego.Query(reviewQuery),
		rego.Compiler(e.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, errors.New("policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy result is %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

func buildInput(in ReviewInput) map[string]interface{} {
	f := in.Flag
	flag := map[string]interface{}{
		"id":            f.ID,
		"device_id":     f.DeviceID,
		"assignment_id": f.AssignmentID,
		"kind":          string(f.Kind),
		"seq":           f.Seq,
		"reviewed":      f.Reviewed,
	}
	return map[string]interface{}{
		"user": map[string]interface{}{
			"id":   in.Reviewer.ID,
			"role": string(in.Reviewer.Role),
		},
		"flag": flag,
	}
}
