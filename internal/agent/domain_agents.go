package agent

import (
	"context"

	"github.com/armoriq/sentinel/internal/policy"
	"github.com/armoriq/sentinel/internal/tirs"
)

// Capability name constants, grounded on the teacher's AgentCapability
// enumeration (finance/legal/it/hr/procurement/operations).
const (
	CapProcessExpense    = "process_expense"
	CapApproveExpense    = "approve_expense"
	CapVerifyInvoice     = "verify_invoice"
	CapSchedulePayment   = "schedule_payment"
	CapReconcileAccounts = "reconcile_accounts"

	CapReviewContract    = "review_contract"
	CapDraftNDA          = "draft_nda"
	CapCheckIP           = "check_ip"
	CapLitigationSearch  = "litigation_search"
	CapApproveTerms      = "approve_terms"

	CapProvisionAccess = "provision_access"
	CapRevokeAccess    = "revoke_access"
	CapCreateTicket    = "create_ticket"
	CapResolveIncident = "resolve_incident"
	CapDeployChange    = "deploy_change"

	CapSearchCandidates = "search_candidates"
	CapScreenResume     = "screen_resume"
	CapScheduleInterview = "schedule_interview"
	CapGenerateOffer    = "generate_offer"
	CapVerifyI9         = "verify_i9"
	CapOnboardEmployee  = "onboard_employee"
	CapOffboardEmployee = "offboard_employee"
	CapProcessPayroll   = "process_payroll"

	CapApproveVendor   = "approve_vendor"
	CapCreatePO        = "create_po"
	CapInventoryCheck  = "inventory_check"
	CapReceiveGoods    = "receive_goods"

	CapCreateIncident       = "create_incident"
	CapManageChange         = "manage_change"
	CapSLAMonitoring        = "sla_monitoring"
	CapScheduleMaintenance  = "schedule_maintenance"
)

// domainExecutor is a minimal reference Executor that echoes back an
// acknowledgement for each action, standing in for the real business
// logic a production deployment would supply.
type domainExecutor struct {
	domain string
}

func (d domainExecutor) ExecuteAction(ctx context.Context, action string, payload, actionContext map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{
		"domain":  d.domain,
		"action":  action,
		"applied": payload,
	}, nil
}

// NewFinanceAgent builds the reference Finance domain agent.
func NewFinanceAgent(compliance *policy.Engine, t *tirs.TIRS) *Agent {
	cfg := Config{
		Name:             "finance",
		AgentType:        "finance",
		Capabilities:     []string{CapProcessExpense, CapApproveExpense, CapVerifyInvoice, CapSchedulePayment, CapReconcileAccounts},
		PolicyCategories: []policy.Category{policy.CategoryFinance},
	}
	return New(cfg, domainExecutor{domain: "finance"}, compliance, t, nil)
}

// NewLegalAgent builds the reference Legal domain agent.
func NewLegalAgent(compliance *policy.Engine, t *tirs.TIRS) *Agent {
	cfg := Config{
		Name:             "legal",
		AgentType:        "legal",
		Capabilities:     []string{CapReviewContract, CapDraftNDA, CapCheckIP, CapLitigationSearch, CapApproveTerms},
		PolicyCategories: []policy.Category{policy.CategoryLegal},
	}
	return New(cfg, domainExecutor{domain: "legal"}, compliance, t, nil)
}

// NewITAgent builds the reference IT domain agent.
func NewITAgent(compliance *policy.Engine, t *tirs.TIRS) *Agent {
	cfg := Config{
		Name:             "it",
		AgentType:        "it",
		Capabilities:     []string{CapProvisionAccess, CapRevokeAccess, CapCreateTicket, CapResolveIncident, CapDeployChange},
		PolicyCategories: []policy.Category{policy.CategoryIT, policy.CategoryMessaging},
	}
	return New(cfg, domainExecutor{domain: "it"}, compliance, t, nil)
}

// NewHRAgent builds the reference HR domain agent.
func NewHRAgent(compliance *policy.Engine, t *tirs.TIRS) *Agent {
	cfg := Config{
		Name:      "hr",
		AgentType: "hr",
		Capabilities: []string{
			CapSearchCandidates, CapScreenResume, CapScheduleInterview, CapGenerateOffer,
			CapVerifyI9, CapOnboardEmployee, CapOffboardEmployee, CapProcessPayroll,
		},
		PolicyCategories: []policy.Category{policy.CategoryHR},
	}
	return New(cfg, domainExecutor{domain: "hr"}, compliance, t, nil)
}

// NewProcurementAgent builds the reference Procurement domain agent.
func NewProcurementAgent(compliance *policy.Engine, t *tirs.TIRS) *Agent {
	cfg := Config{
		Name:             "procurement",
		AgentType:        "procurement",
		Capabilities:     []string{CapApproveVendor, CapCreatePO, CapInventoryCheck, CapReceiveGoods},
		PolicyCategories: []policy.Category{policy.CategoryProcurement},
	}
	return New(cfg, domainExecutor{domain: "procurement"}, compliance, t, nil)
}

// NewOperationsAgent builds the reference Operations domain agent.
func NewOperationsAgent(compliance *policy.Engine, t *tirs.TIRS) *Agent {
	cfg := Config{
		Name:             "operations",
		AgentType:        "operations",
		Capabilities:     []string{CapCreateIncident, CapManageChange, CapSLAMonitoring, CapScheduleMaintenance},
		PolicyCategories: []policy.Category{policy.CategoryOperations},
	}
	return New(cfg, domainExecutor{domain: "operations"}, compliance, t, nil)
}

// RegisterAll wires every reference domain agent onto a router, returning
// them keyed by agent ID for gateway dispatch.
func RegisterAll(compliance *policy.Engine, t *tirs.TIRS, register func(agentID string, capabilities []string)) map[string]*Agent {
	agents := []*Agent{
		NewFinanceAgent(compliance, t),
		NewLegalAgent(compliance, t),
		NewITAgent(compliance, t),
		NewHRAgent(compliance, t),
		NewProcurementAgent(compliance, t),
		NewOperationsAgent(compliance, t),
	}

	byID := make(map[string]*Agent, len(agents))
	for _, a := range agents {
		byID[a.AgentID()] = a
		if register != nil {
			register(a.AgentID(), a.Capabilities())
		}
	}
	return byID
}
