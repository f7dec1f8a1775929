package mdloader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidationResultOK(t *testing.T) {
	v := &ValidationResult{}
	if !v.OK() {
		t.Fatal("expected OK with no errors")
	}
	v.Errors = append(v.Errors, "boom")
	if v.OK() {
		t.Fatal("expected not OK with an error present")
	}
}

func TestValidationResultSummary(t *testing.T) {
	v := &ValidationResult{Errors: []string{"bad thing"}, Warnings: []string{"minor thing"}}
	s := v.Summary()
	if !strings.Contains(s, "bad thing") || !strings.Contains(s, "minor thing") {
		t.Fatalf("expected summary to include both messages, got: %s", s)
	}
}

func TestValidateAllPasses(t *testing.T) {
	dir := t.TempDir()
	policiesDir := filepath.Join(dir, "policies")
	playbooksDir := filepath.Join(dir, "playbooks")

	policyDir := filepath.Join(policiesDir, "ExpenseApprovalPolicy")
	if err := os.MkdirAll(policyDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(policyDir, "POLICY.md"), []byte("doc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.MkdirAll(playbooksDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(playbooksDir, "KILLED.md"), []byte("doc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result := ValidateAll(policiesDir, playbooksDir,
		[]PolicyRef{{Name: "ExpenseApprovalPolicy", Context: "ExpenseApprovalPolicy"}},
		[]StatusPlaybookRef{{Status: "killed", HasPlaybook: true}},
	)
	if !result.OK() {
		t.Fatalf("expected validation to pass, got: %s", result.Summary())
	}
}

func TestValidateAllMissingPolicyDoc(t *testing.T) {
	dir := t.TempDir()
	result := ValidateAll(filepath.Join(dir, "policies"), filepath.Join(dir, "playbooks"),
		[]PolicyRef{{Name: "ExpenseApprovalPolicy", Context: "ExpenseApprovalPolicy"}},
		nil,
	)
	if result.OK() {
		t.Fatal("expected a missing POLICY.md to be an error")
	}
}

func TestValidateAllSkipsUndocumentedPolicy(t *testing.T) {
	dir := t.TempDir()
	result := ValidateAll(filepath.Join(dir, "policies"), filepath.Join(dir, "playbooks"),
		[]PolicyRef{{Name: "RedactionPolicy"}}, // no Context: not required to have docs
		nil,
	)
	if !result.OK() {
		t.Fatalf("expected an undocumented policy to be skipped, got: %s", result.Summary())
	}
}

func TestValidateAllMissingPlaybook(t *testing.T) {
	dir := t.TempDir()
	result := ValidateAll(filepath.Join(dir, "policies"), filepath.Join(dir, "playbooks"),
		nil,
		[]StatusPlaybookRef{{Status: "paused", HasPlaybook: true}},
	)
	if result.OK() {
		t.Fatal("expected a missing playbook to be an error")
	}
}

func TestValidateAllSkipsStatusWithoutPlaybook(t *testing.T) {
	dir := t.TempDir()
	result := ValidateAll(filepath.Join(dir, "policies"), filepath.Join(dir, "playbooks"),
		nil,
		[]StatusPlaybookRef{{Status: "throttled", HasPlaybook: false}},
	)
	if !result.OK() {
		t.Fatalf("expected a status with no playbook configured to be skipped, got: %s", result.Summary())
	}
}
