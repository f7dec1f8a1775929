package policy

import "fmt"

// SalaryBand is the compensation range approved for a job level without
// escalation.
type SalaryBand struct {
	Min, Max float64
}

// SALARY_BANDS mirrors the per-level compensation ranges HR policy
// enforces; exported as a variable rather than a constant map so a
// deployment can override bands without recompiling.
var SALARY_BANDS = map[string]SalaryBand{
	"L1": {Min: 60000, Max: 90000},
	"L2": {Min: 85000, Max: 120000},
	"L3": {Min: 110000, Max: 150000},
	"L4": {Min: 140000, Max: 190000},
	"L5": {Min: 180000, Max: 250000},
	"L6": {Min: 240000, Max: 350000},
}

// NewCompensationPolicy builds the HR compensation gate: a salary above the
// declared level's band maximum escalates to VP/HR approval.
func NewCompensationPolicy() *RulePolicy {
	return NewRulePolicy("CompensationPolicy", CategoryHR, SeverityMedium, func(ctx EvalContext) (PolicyResult, bool) {
		salary, ok := payloadNumber(ctx.Payload, "salary")
		if !ok {
			return PolicyResult{}, false
		}
		level, ok := payloadString(ctx.Payload, "level")
		if !ok {
			return PolicyResult{}, false
		}
		band, ok := SALARY_BANDS[level]
		if !ok {
			return PolicyResult{}, false
		}
		if salary <= band.Max {
			return PolicyResult{}, false
		}
		return escalateResult("CompensationPolicy", CategoryHR, SeverityMedium,
			fmt.Sprintf("salary %.2f exceeds %s band maximum %.2f, requires VP/HR approval", salary, level, band.Max)), true
	})
}

// NewHiringCompliancePolicy requires a completed background check and an
// approved requisition before an offer action proceeds.
func NewHiringCompliancePolicy() *RulePolicy {
	return NewRulePolicy("HiringCompliancePolicy", CategoryHR, SeverityHigh, func(ctx EvalContext) (PolicyResult, bool) {
		if ctx.Action != "extend_offer" {
			return PolicyResult{}, false
		}
		if cleared, ok := payloadBool(ctx.Payload, "background_check_cleared"); !ok || !cleared {
			return denyResult("HiringCompliancePolicy", CategoryHR, SeverityHigh, "offer blocked pending background check"), true
		}
		if approved, ok := payloadBool(ctx.Payload, "requisition_approved"); !ok || !approved {
			return denyResult("HiringCompliancePolicy", CategoryHR, SeverityHigh, "offer blocked, requisition not approved"), true
		}
		return PolicyResult{}, false
	})
}

// NewTerminationPolicy requires legal sign-off on involuntary terminations
// and escalates terminations of employees currently under a performance
// improvement plan within its protected window.
func NewTerminationPolicy() *RulePolicy {
	return NewRulePolicy("TerminationPolicy", CategoryHR, SeverityHigh, func(ctx EvalContext) (PolicyResult, bool) {
		if ctx.Action != "terminate_employee" {
			return PolicyResult{}, false
		}
		voluntary, _ := payloadBool(ctx.Payload, "voluntary")
		if voluntary {
			return PolicyResult{}, false
		}
		if signedOff, ok := payloadBool(ctx.Payload, "legal_signoff"); !ok || !signedOff {
			return denyResult("TerminationPolicy", CategoryHR, SeverityHigh, "involuntary termination requires legal sign-off"), true
		}
		if onPIP, ok := payloadBool(ctx.Payload, "on_active_pip"); ok && onPIP {
			return escalateResult("TerminationPolicy", CategoryHR, SeverityMedium, "termination during an active PIP requires HR business partner review"), true
		}
		return PolicyResult{}, false
	})
}

// NewLeaveManagementPolicy flags leave requests that would exceed the
// employee's remaining balance.
func NewLeaveManagementPolicy() *RulePolicy {
	return NewRulePolicy("LeaveManagementPolicy", CategoryHR, SeverityLow, func(ctx EvalContext) (PolicyResult, bool) {
		if ctx.Action != "request_leave" {
			return PolicyResult{}, false
		}
		requested, ok := payloadNumber(ctx.Payload, "days_requested")
		if !ok {
			return PolicyResult{}, false
		}
		balance, ok := payloadNumber(ctx.Payload, "days_balance")
		if !ok {
			return PolicyResult{}, false
		}
		if requested <= balance {
			return PolicyResult{}, false
		}
		return warnResult("LeaveManagementPolicy", CategoryHR, SeverityLow,
			fmt.Sprintf("requested %.1f days exceeds remaining balance of %.1f", requested, balance)), true
	})
}
