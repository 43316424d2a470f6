// Package policy evaluates turn admission rules with OPA.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

// TurnInput is the document a turn policy is evaluated against.
type TurnInput struct {
	SessionID      string `json:"session_id"`
	Character      string `json:"character"`
	Provider       string `json:"provider"`
	UserName       string `json:"user_name"`
	Input          string `json:"input"`
	InputLength    int    `json:"input_length"`
	MaxInputLength int    `json:"max_input_length"`
	Stream         bool   `json:"stream"`
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Decision string
	Reason   string
}

// Allowed reports whether the turn may proceed.
func (d Decision) Allowed() bool {
	return d.Decision != domain.DecisionBlock
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
// The module must live in package turn_policy and define decision and,
// optionally, reason.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.turn_policy"),
		rego.Module("turn_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy module from path, or DefaultPolicy when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate checks whether a turn is admitted.
func (e *Engine) Evaluate(ctx context.Context, input TurnInput) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Decision: domain.DecisionAllow, Reason: "default"}, nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{Decision: domain.DecisionAllow, Reason: "unexpected return type"}, nil
	}

	d := Decision{Decision: domain.DecisionAllow}
	if s, ok := doc["decision"].(string); ok {
		d.Decision = s
	}
	if s, ok := doc["reason"].(string); ok {
		d.Reason = s
	}
	return d, nil
}

// DefaultPolicy admits every turn unless a positive input limit is exceeded.
const DefaultPolicy = `
package turn_policy

default decision = "allow"

decision = "block" {
	input.max_input_length > 0
	input.input_length > input.max_input_length
}

reason = "input too long" {
	decision == "block"
}
`
