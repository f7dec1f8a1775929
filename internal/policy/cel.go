package policy

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
)

// CompiledRule wraps a pre-compiled CEL AST + program for repeated,
// lock-free evaluation against an EvalContext.
type CompiledRule struct {
	Expression string
	program    cel.Program
}

// CELEvaluator compiles and evaluates CEL expressions against EvalContext
// values. Expressions see three top-level variables: `action` (string),
// `payload` (the action's structured payload), and `context` (ambient
// request/business context) — both maps of dynamic-typed values so domain
// policy authors can write conditions like `payload.amount > 1000` or
// `context.department == "legal"` without a fixed schema.
type CELEvaluator struct {
	env    *cel.Env
	logger *slog.Logger
}

// NewCELEvaluator creates a CELEvaluator with the standard variable
// declarations available in policy conditions.
func NewCELEvaluator(logger *slog.Logger) (*CELEvaluator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("context", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CELEvaluator{
		env:    env,
		logger: logger.With("component", "policy.CELEvaluator"),
	}, nil
}

// CompileExpression parses, type-checks, and builds a reusable program for
// a CEL expression. This should be called at load time, not in the hot path.
func (c *CELEvaluator) CompileExpression(expr string) (CompiledRule, error) {
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return CompiledRule{}, fmt.Errorf("CEL compile error in %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return CompiledRule{}, fmt.Errorf("CEL expression %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := c.env.Program(ast)
	if err != nil {
		return CompiledRule{}, fmt.Errorf("CEL program creation failed for %q: %w", expr, err)
	}

	c.logger.Debug("compiled CEL expression", "expression", expr)
	return CompiledRule{Expression: expr, program: prg}, nil
}

// Evaluate runs a pre-compiled CEL rule against the given EvalContext.
// Returns true if the condition matches (i.e. the policy should fire).
func (c *CELEvaluator) Evaluate(rule CompiledRule, ctx EvalContext) (bool, error) {
	payload := ctx.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	context := ctx.Context
	if context == nil {
		context = map[string]interface{}{}
	}

	vars := map[string]interface{}{
		"action":  ctx.Action,
		"payload": payload,
		"context": context,
	}

	out, _, err := rule.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error for %q: %w", rule.Expression, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression %q returned non-bool: %T", rule.Expression, out.Value())
	}

	return result, nil
}

// CELPredicate compiles expr once and returns a Predicate that fires the
// given verdict/reason when it evaluates true. This is how domain policies
// mix CEL conditions into a RulePolicy's predicate list alongside Go
// closures for logic that CEL can't express cleanly.
func CELPredicate(celEval *CELEvaluator, expr string, verdict Verdict, severity Severity, reason string) (Predicate, error) {
	rule, err := celEval.CompileExpression(expr)
	if err != nil {
		return nil, err
	}

	return func(ctx EvalContext) (PolicyResult, bool) {
		matched, err := celEval.Evaluate(rule, ctx)
		if err != nil {
			return PolicyResult{
				Verdict:   VerdictDeny,
				Severity:  severity,
				Reason:    fmt.Sprintf("CEL evaluation error, failing closed: %v", err),
				RiskDelta: severity.scale(),
			}, true
		}
		if !matched {
			return PolicyResult{}, false
		}

		result := PolicyResult{Verdict: verdict, Severity: severity, Reason: reason}
		switch verdict {
		case VerdictDeny:
			result.RiskDelta = severity.scale()
		case VerdictEscalate:
			result.RiskDelta = severity.scale() * 0.75
		case VerdictWarn:
			result.RiskDelta = severity.scale() * 0.3
		}
		return result, true
	}, nil
}
