package policy

// NewVendorApprovalPolicy is a registry policy over approved vendor IDs:
// a purchase action against a vendor not on the approved list is denied.
func NewVendorApprovalPolicy() *RegistryPolicy {
	return NewRegistryPolicy("VendorApprovalPolicy", CategoryProcurement, SeverityHigh, ModeAllowlist,
		"vendor_id", VerdictDeny, "vendor is not on the approved vendor list").
		ForActions("create_purchase_order", "issue_payment")
}

// NewRateLimitPolicy is a generic threshold policy over a rolling action
// count supplied in the payload's `recent_action_count` field (populated by
// the caller from a RateLimiter). Exceeding the configured ceiling warns;
// exceeding twice the ceiling escalates.
func NewRateLimitPolicy(ceiling float64) *ThresholdPolicy {
	escalate := ceiling * 2
	return NewThresholdPolicy("RateLimitPolicy", CategoryOperations, SeverityLow, "recent_action_count", &ceiling, &escalate, nil)
}

// NewConflictOfInterestPolicy escalates a purchase order or payment when
// the submitting agent's requester matches the vendor's registered contact
// — a condition naturally expressed as a CEL comparison between two
// dynamic payload fields rather than a fixed Go predicate.
func NewConflictOfInterestPolicy(evaluator *CELEvaluator) (*RulePolicy, error) {
	pred, err := CELPredicate(evaluator,
		`(action == "create_purchase_order" || action == "issue_payment") && payload.requester_id == payload.vendor_contact_id`,
		VerdictEscalate, SeverityHigh,
		"requester matches the vendor's registered contact",
	)
	if err != nil {
		return nil, err
	}
	return NewRulePolicy("ConflictOfInterestPolicy", CategoryProcurement, SeverityHigh, pred), nil
}
