package policy

import "fmt"

// NewContractReviewPolicy escalates contracts above a value threshold or
// containing non-standard terms for legal review before execution.
func NewContractReviewPolicy() *RulePolicy {
	return NewRulePolicy("ContractReviewPolicy", CategoryLegal, SeverityMedium, func(ctx EvalContext) (PolicyResult, bool) {
		if ctx.Action != "execute_contract" {
			return PolicyResult{}, false
		}
		if reviewed, ok := payloadBool(ctx.Payload, "legal_reviewed"); ok && reviewed {
			return PolicyResult{}, false
		}
		nonStandard, _ := payloadBool(ctx.Payload, "non_standard_terms")
		value, hasValue := payloadNumber(ctx.Payload, "contract_value")
		if nonStandard {
			return escalateResult("ContractReviewPolicy", CategoryLegal, SeverityHigh, "contract has non-standard terms and has not been legally reviewed"), true
		}
		if hasValue && value > 50000 {
			return escalateResult("ContractReviewPolicy", CategoryLegal, SeverityMedium,
				fmt.Sprintf("contract value %.2f requires legal review before execution", value)), true
		}
		return PolicyResult{}, false
	})
}

// NewNDAEnforcementPolicy is a registry policy over active NDA
// counterparties: sharing confidential information with a counterparty
// that is not on the active-NDA list is denied.
func NewNDAEnforcementPolicy() *RegistryPolicy {
	return NewRegistryPolicy("NDAEnforcementPolicy", CategoryLegal, SeverityCritical, ModeAllowlist,
		"counterparty", VerdictDeny, "no active NDA on file for counterparty")
}

// NewIPProtectionPolicy denies attempts to share source code or patent
// filings externally without an approved IP release.
func NewIPProtectionPolicy() *RulePolicy {
	return NewRulePolicy("IPProtectionPolicy", CategoryLegal, SeverityCritical, func(ctx EvalContext) (PolicyResult, bool) {
		if ctx.Action != "share_external" {
			return PolicyResult{}, false
		}
		assetType, ok := payloadString(ctx.Payload, "asset_type")
		if !ok || (assetType != "source_code" && assetType != "patent_filing") {
			return PolicyResult{}, false
		}
		if released, ok := payloadBool(ctx.Payload, "ip_release_approved"); ok && released {
			return PolicyResult{}, false
		}
		return denyResult("IPProtectionPolicy", CategoryLegal, SeverityCritical,
			fmt.Sprintf("external sharing of %s requires an approved IP release", assetType)), true
	})
}

// NewLitigationHoldPolicy is a registry policy over document IDs under an
// active litigation hold: any deletion or destruction action against a
// held document is denied regardless of requester.
func NewLitigationHoldPolicy() *RegistryPolicy {
	return NewRegistryPolicy("LitigationHoldPolicy", CategoryLegal, SeverityCritical, ModeBlocklist,
		"document_id", VerdictDeny, "document is under an active litigation hold").
		ForActions("delete_document", "destroy_document")
}
