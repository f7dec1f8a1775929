package mdloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidationResult holds the outcome of a ValidateAll check.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// OK returns true if there are no errors.
func (v *ValidationResult) OK() bool {
	return len(v.Errors) == 0
}

// Summary returns a human-readable summary of the validation result.
func (v *ValidationResult) Summary() string {
	var b strings.Builder
	if v.OK() {
		fmt.Fprintf(&b, "Validation passed (%d warnings)\n", len(v.Warnings))
	} else {
		fmt.Fprintf(&b, "Validation failed: %d errors, %d warnings\n", len(v.Errors), len(v.Warnings))
	}
	for _, e := range v.Errors {
		fmt.Fprintf(&b, "  ERROR: %s\n", e)
	}
	for _, w := range v.Warnings {
		fmt.Fprintf(&b, "  WARN:  %s\n", w)
	}
	return b.String()
}

// PolicyRef describes a policy to validate. Used by ValidateAll to check
// that a policy's documented rationale (POLICY.md) is present when the
// config declares one.
type PolicyRef struct {
	Name    string // policy name from config
	Context string // path to POLICY.md (relative to policies dir); empty if undocumented
}

// StatusPlaybookRef describes a TIRS status that is configured to surface a
// playbook in its alert. Used by ValidateAll to check that the referenced
// playbooks/<STATUS>.md file exists.
type StatusPlaybookRef struct {
	Status      string // "throttled", "paused", "killed", "resurrected"
	HasPlaybook bool   // true if alerting config wants a playbook surfaced
}

// ValidateAll checks that all referenced Markdown files exist and that the
// directory structure is well-formed. It is used by `sentinel doctor` and
// `sentinel policy validate`.
//
// Checks performed:
//   - Every policy with a non-empty Context has its referenced POLICY.md
//   - Every status with HasPlaybook has a corresponding playbooks/<STATUS>.md
func ValidateAll(
	policiesDir, playbooksDir string,
	policies []PolicyRef,
	statuses []StatusPlaybookRef,
) *ValidationResult {
	result := &ValidationResult{}

	validatePolicies(policiesDir, policies, result)
	validatePlaybooks(playbooksDir, statuses, result)

	return result
}

// validatePolicies checks that every documented policy has its POLICY.md.
func validatePolicies(policiesDir string, policies []PolicyRef, result *ValidationResult) {
	for _, p := range policies {
		if p.Context == "" {
			continue
		}

		policyMD := filepath.Join(policiesDir, p.Context, "POLICY.md")
		if _, err := os.Stat(policyMD); os.IsNotExist(err) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("policy %q: referenced POLICY.md not found at %s", p.Name, policyMD))
		}
	}
}

// validatePlaybooks checks that every status configured to surface a
// playbook has a corresponding playbooks/<STATUS>.md file.
func validatePlaybooks(playbooksDir string, statuses []StatusPlaybookRef, result *ValidationResult) {
	for _, s := range statuses {
		if !s.HasPlaybook {
			continue
		}

		filename := strings.ToUpper(s.Status) + ".md"
		playbookPath := filepath.Join(playbooksDir, filename)
		if _, err := os.Stat(playbookPath); os.IsNotExist(err) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("status %q: playbook enabled but %s not found", s.Status, playbookPath))
		}
	}
}
