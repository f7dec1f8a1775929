package policy

import (
	"regexp"
)

// redactionPattern pairs a compiled regex with the replacement it triggers.
// Credential patterns are adapted from common secret-scanning prefixes
// (cloud provider keys, VCS personal access tokens, PEM blocks); the SSN
// pattern matches the conventional NNN-NN-NNNN shape.
type redactionPattern struct {
	name  string
	regex *regexp.Regexp
}

var redactionPatterns = []redactionPattern{
	{"aws_access_key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"github_token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}\b`)},
	{"gitlab_token", regexp.MustCompile(`\bglpat-[A-Za-z0-9_-]{20,}\b`)},
	{"slack_token", regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`)},
	{"generic_api_key", regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`)},
	{"stripe_live_key", regexp.MustCompile(`\bsk_live_[A-Za-z0-9]{10,}\b`)},
	{"pem_block", regexp.MustCompile(`-----BEGIN [A-Z ]+PRIVATE KEY-----`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
}

// redactText returns text with every match of every pattern replaced by
// "[REDACTED]", along with the distinct pattern names that fired.
func redactText(text string) (string, []string) {
	var hit []string
	seen := make(map[string]bool)
	out := text
	for _, p := range redactionPatterns {
		if p.regex.MatchString(out) {
			out = p.regex.ReplaceAllString(out, "[REDACTED]")
			if !seen[p.name] {
				seen[p.name] = true
				hit = append(hit, p.name)
			}
		}
	}
	return out, hit
}

// NewRedactionPolicy builds the IT/Messaging Modify policy that scans an
// outbound payload's `body` field for credential- and SSN-shaped content
// and rewrites matches to "[REDACTED]" rather than blocking the action
// outright — adapted from the teacher's prompt-injection scanner, re-themed
// from inbound-LLM-input detection to outbound-content scanning.
func NewRedactionPolicy() *RulePolicy {
	return NewRulePolicy("OutboundRedactionPolicy", CategoryMessaging, SeverityMedium, func(ctx EvalContext) (PolicyResult, bool) {
		body, ok := payloadString(ctx.Payload, "body")
		if !ok || body == "" {
			return PolicyResult{}, false
		}
		redacted, hit := redactText(body)
		if len(hit) == 0 {
			return PolicyResult{}, false
		}
		return PolicyResult{
			Verdict:         VerdictModify,
			RiskDelta:       SeverityMedium.scale() * 0.5,
			Reason:          "outbound content contained sensitive patterns: " + joinStrings(hit),
			ModifiedPayload: map[string]interface{}{"body": redacted},
		}, true
	})
}

func joinStrings(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
