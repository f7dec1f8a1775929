package policy

import "fmt"

const receiptRequiredFloor = 100.0

// NewExpenseApprovalPolicy builds the Finance category's expense gate: a
// threshold policy on `amount` for warn/escalate (500/2000), plus a rule
// policy covering the two fail-closed cases a plain numeric threshold can't
// express — a deny-level amount without a CFO override, and any
// above-floor expense missing a receipt.
func NewExpenseApprovalPolicy() (*ThresholdPolicy, *RulePolicy) {
	warn, escalate := 500.0, 2000.0
	const denyCeiling = 10000.0

	threshold := NewThresholdPolicy("ExpenseApprovalPolicy.amount", CategoryFinance, SeverityMedium, "amount", &warn, &escalate, nil)

	gate := NewRulePolicy("ExpenseApprovalPolicy.gate", CategoryFinance, SeverityHigh,
		func(ctx EvalContext) (PolicyResult, bool) {
			amount, ok := payloadNumber(ctx.Payload, "amount")
			if !ok || amount <= denyCeiling {
				return PolicyResult{}, false
			}
			if override, ok := payloadBool(ctx.Payload, "cfo_override"); ok && override {
				return PolicyResult{}, false
			}
			return denyResult("ExpenseApprovalPolicy.gate", CategoryFinance, SeverityCritical,
				fmt.Sprintf("expense of %.2f exceeds the %.2f ceiling without a CFO override", amount, denyCeiling)), true
		},
		func(ctx EvalContext) (PolicyResult, bool) {
			amount, ok := payloadNumber(ctx.Payload, "amount")
			if !ok || amount <= receiptRequiredFloor {
				return PolicyResult{}, false
			}
			if hasReceipt, ok := payloadBool(ctx.Payload, "has_receipt"); ok && hasReceipt {
				return PolicyResult{}, false
			}
			if override, ok := payloadBool(ctx.Payload, "cfo_override"); ok && override {
				return PolicyResult{}, false
			}
			return denyResult("ExpenseApprovalPolicy.gate", CategoryFinance, SeverityHigh,
				fmt.Sprintf("expense of %.2f requires a receipt above the %.2f floor", amount, receiptRequiredFloor)), true
		},
	)

	return threshold, gate
}
