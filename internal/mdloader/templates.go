package mdloader

import "fmt"

// PolicyMDTemplate returns a starter POLICY.md for the given Compliance
// policy name. This file is the human-readable rationale behind a policy —
// shown to an approver reviewing an Escalate verdict and, when configured,
// folded into the Reasoning Oracle's system prompt as extra context.
func PolicyMDTemplate(policyName string) string {
	return fmt.Sprintf(`# Policy: %s

## Purpose

Describe what this policy protects and why it exists.

## Evaluation Criteria

When evaluating an agent action against this policy, consider:

1. **Scope**: Is the action within the acting agent's declared capabilities?
2. **Magnitude**: Does the action exceed a threshold (amount, headcount, access level)?
3. **Reversibility**: Can the action be undone if it turns out to be wrong?
4. **Precedent**: Is this consistent with past allowed actions for this category?

## Allow When

- The action is within the declared policy category's normal operating range
- The risk is low and the action is reversible

## Escalate When

- The action exceeds a configured threshold but isn't an outright violation
- A human approver should weigh in before the action proceeds

## Deny When

- The action violates a hard rule (e.g. an active litigation hold, an
  unapproved vendor, a blocked registry entry)
- The risk is disproportionate to the task

## Notes

Add any policy-specific context here. This file is hot-reloaded; editing it
takes effect on the next reference without a restart.
`, policyName)
}

// PlaybookTemplate returns a starter playbook MD for the given TIRS agent
// status. The playbook is surfaced in the alert payload when an agent
// transitions into that status, giving the on-call reviewer a structured
// checklist for triage.
//
// Supported statuses: "throttled", "paused", "killed", "resurrected".
// Unknown statuses return a generic playbook.
func PlaybookTemplate(status string) string {
	switch status {
	case "throttled":
		return throttledPlaybook()
	case "paused":
		return pausedPlaybook()
	case "killed":
		return killedPlaybook()
	case "resurrected":
		return resurrectedPlaybook()
	default:
		return genericPlaybook(status)
	}
}

func throttledPlaybook() string {
	return `# Playbook: Agent Throttled

## Trigger

TIRS moved this agent to Throttled: its drift risk score has crossed the
throttle threshold but not yet the pause threshold.

## Triage Steps

1. Pull the agent's recent intent history and look for the dominant risk
   contributor (embedding drift, capability surprisal, violation rate,
   velocity anomaly, context deviation).
2. Check whether a recent handoff or workflow step introduced an
   unfamiliar capability for this agent.
3. Decide whether the drift reflects a legitimate new workload (benign) or
   an early sign of compromised/misconfigured behavior (malign).

## Remediation Options

- **Acknowledge and monitor**: if the drift looks benign, no action needed;
  TIRS will recover the agent's status as its risk score decays.
- **Manually pause**: if in doubt, pause the agent ahead of TIRS doing so
  automatically, and route its current workflow steps to a peer agent with
  the same capability.
`
}

func pausedPlaybook() string {
	return `# Playbook: Agent Paused

## Trigger

TIRS moved this agent to Paused: its drift risk score crossed the pause
threshold. The agent cannot execute further actions until resumed.

## Triage Steps

1. Review the forensic snapshot captured at the moment of the transition:
   risk history tail, intent history tail, and policies triggered.
2. Determine whether the pause was caused by a single severe event or an
   accumulation of smaller deviations.
3. Check the hash chain of the agent's snapshots for integrity before
   trusting the snapshot content.

## Remediation Options

- **Resume**: if the review clears the agent, resume it; TIRS resets the
  decayed risk baseline on resume.
- **Keep paused and escalate**: if the cause is unclear, keep the agent
  paused and route an approval request to the relevant domain approver.
- **Kill**: if the snapshot shows a clear policy violation or a malign
  fingerprint match, kill the agent instead of resuming it.
`
}

func killedPlaybook() string {
	return `# Playbook: Agent Killed

## Trigger

TIRS killed this agent: either a critical-severity policy violation fired,
or the risk score crossed the kill threshold with a malign fingerprint
match against a known drift pattern.

## Triage Steps

1. Pull every forensic snapshot for this agent and verify the hash chain
   is intact before relying on any of them as evidence.
2. Identify the specific policy or pattern that triggered the kill and
   confirm it against the raw intent history, not just the summary.
3. Check whether other agents share the same capability set and may be
   exposed to the same root cause.

## Remediation Options

- **Resurrect**: only after the root cause is understood and remediated;
  resurrection requires explicit human approval and resets TIRS history
  for the agent.
- **Retire**: if the agent's role is no longer needed, unregister it from
  the Capability Router instead of resurrecting it.
`
}

func resurrectedPlaybook() string {
	return `# Playbook: Agent Resurrected

## Trigger

A killed agent was explicitly resurrected by a human approver.

## Triage Steps

1. Confirm the resurrection approval record names the approver and the
   remediation that was applied before resurrection.
2. Verify the agent's capability set and policy categories are still
   correct — a resurrection is a good time to tighten an overly broad
   capability grant.
3. Set a short-interval watch on the agent's risk score for the first
   batch of actions after resurrection.

## Remediation Options

- **Resume normal operation**: if the remediation is sound, let the agent
  rejoin the Capability Router's candidate pool at normal priority.
- **Probation**: route only low-risk actions to the agent for a cooldown
  period before restoring full routing weight.
`
}

func genericPlaybook(status string) string {
	return fmt.Sprintf(`# Playbook: %s

## Trigger

This playbook is shown when an agent transitions to the %q TIRS status.

## Triage Steps

1. Review the agent's recent intent and risk-score history
2. Check which policies, if any, were triggered around the transition
3. Decide on the appropriate remediation

## Remediation Options

- Monitor
- Pause or resume
- Kill or resurrect, depending on severity
`, status, status)
}
