// Package reasoning wraps the optional external Reasoning Oracle (§6):
// an LLM-backed second opinion invoked only when TIRS risk or Compliance
// verdict crosses the escalation gate, using the Anthropic Go SDK as the
// transport in place of the teacher's raw OpenAI-compatible HTTP client.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Recommendation is the oracle's verdict on a pending action.
type Recommendation string

const (
	RecommendProceed  Recommendation = "proceed"
	RecommendEscalate Recommendation = "escalate"
	RecommendDeny     Recommendation = "deny"
)

// AssessInput carries everything the oracle needs to reason about one
// action, mirroring the teacher's AIJudgeInput shape.
type AssessInput struct {
	AgentID     string
	Action      string
	Payload     map[string]interface{}
	Context     map[string]interface{}
	TIRSScore   float64
	TIRSLevel   string
	Model       string
}

// AssessResult is the oracle's structured reply.
type AssessResult struct {
	Recommendation Recommendation
	Confidence     float64
	Reasoning      string
}

// Oracle calls the Anthropic API to assess borderline actions.
type Oracle struct {
	client       anthropic.Client
	defaultModel anthropic.Model
	timeout      time.Duration
}

// New constructs an Oracle. apiKey is passed through to the SDK client via
// option.WithAPIKey; an empty key lets the SDK fall back to its usual
// ANTHROPIC_API_KEY environment lookup.
func New(apiKey string, timeout time.Duration) *Oracle {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Oracle{
		client:       anthropic.NewClient(opts...),
		defaultModel: anthropic.ModelClaude3_5HaikuLatest,
		timeout:      timeout,
	}
}

// ShouldInvoke implements the §6 gating rule: the oracle is only consulted
// when TIRS risk is at least 0.5 or the compliance verdict escalated.
func ShouldInvoke(tirsScore float64, complianceEscalated bool) bool {
	return tirsScore >= 0.5 || complianceEscalated
}

// Assess sends the action context to the model and parses its structured
// verdict, clamping confidence into [0,1] the way the teacher's AI judge
// clamps its own confidence field.
func (o *Oracle) Assess(ctx context.Context, input AssessInput) (*AssessResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	model := o.defaultModel
	if input.Model != "" {
		model = anthropic.Model(input.Model)
	}

	system := buildSystemPrompt()
	user := buildUserPrompt(input)

	message, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		System: []anthropic.TextBlockParam{{Text: system}},
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning: oracle call failed for agent %q: %w", input.AgentID, err)
	}

	raw := extractText(message)
	result, err := parseAssessResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("reasoning: failed to parse oracle response: %w (raw: %s)", err, truncate(raw, 200))
	}
	return result, nil
}

func extractText(message *anthropic.Message) string {
	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func buildSystemPrompt() string {
	return `You are a risk reasoning oracle for an enterprise AI agent guardrail system.

Given an action, its payload, and the behavioral risk signals already computed by the runtime, decide whether the action should proceed, be escalated for human approval, or be denied outright.

Respond with a single JSON object, no markdown fencing, no extra text:
{"recommendation": "proceed"|"escalate"|"deny", "confidence": <0.0-1.0>, "reasoning": "<concise explanation>"}`
}

func buildUserPrompt(input AssessInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Action Under Review\n\n")
	fmt.Fprintf(&b, "- **Agent**: %s\n", input.AgentID)
	fmt.Fprintf(&b, "- **Action**: %s\n", input.Action)
	fmt.Fprintf(&b, "- **TIRS risk score**: %.3f (%s)\n", input.TIRSScore, input.TIRSLevel)

	if len(input.Payload) > 0 {
		if payloadJSON, err := json.MarshalIndent(input.Payload, "  ", "  "); err == nil {
			fmt.Fprintf(&b, "\n### Payload\n\n```json\n  %s\n```\n", string(payloadJSON))
		}
	}
	if len(input.Context) > 0 {
		fmt.Fprintf(&b, "\n### Context\n\n")
		for k, v := range input.Context {
			fmt.Fprintf(&b, "- **%s**: %v\n", k, v)
		}
	}
	fmt.Fprintf(&b, "\nShould this action proceed? Respond with JSON.")
	return b.String()
}

type assessResponseJSON struct {
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

func parseAssessResponse(raw string) (*AssessResult, error) {
	cleaned := raw
	if idx := strings.Index(cleaned, "{"); idx >= 0 {
		cleaned = cleaned[idx:]
	}
	if idx := strings.LastIndex(cleaned, "}"); idx >= 0 {
		cleaned = cleaned[:idx+1]
	}

	var parsed assessResponseJSON
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	rec := Recommendation(parsed.Recommendation)
	switch rec {
	case RecommendProceed, RecommendEscalate, RecommendDeny:
	default:
		rec = RecommendEscalate
	}

	return &AssessResult{Recommendation: rec, Confidence: confidence, Reasoning: parsed.Reasoning}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// CanOverrideTIRS implements §6: the oracle may override a TIRS pause only
// when the TIRS score is below critical and its own confidence is at
// least 0.9, and it may never override a Compliance Deny.
func (r AssessResult) CanOverrideTIRS(tirsScore float64, tirsCritical float64) bool {
	return r.Recommendation == RecommendProceed && tirsScore < tirsCritical && r.Confidence >= 0.9
}
