// Package iap defines the optional external Identity & Access Proxy
// interface (§6): a pluggable second opinion on an action that, when
// unreachable or timed out, is treated as "unknown" and the caller falls
// back to the local Compliance + TIRS decision.
package iap

import (
	"context"
	"time"
)

// Verdict mirrors the Compliance verdict vocabulary so callers can merge
// an IAP response into the same precedence rules.
type Verdict string

const (
	VerdictAllow    Verdict = "allow"
	VerdictDeny     Verdict = "deny"
	VerdictModify   Verdict = "modify"
	VerdictEscalate Verdict = "escalate"
	VerdictUnknown  Verdict = "unknown"
)

// Result is the IAP's response to one Verify call.
type Result struct {
	Allowed         bool
	Verdict         Verdict
	Reason          string
	ModifiedPayload map[string]interface{}
	Token           string
}

// Client is the interface external IAP integrations implement. A timeout
// or transport failure must be surfaced as VerdictUnknown, never as an
// error that aborts the caller's pipeline.
type Client interface {
	Verify(ctx context.Context, agentID, action string, payload map[string]interface{}) (Result, error)
}

// NoOp is the default Client: it always reports unknown, directing every
// caller back to the local Compliance + TIRS decision per §6.
type NoOp struct{}

// Verify always returns an unknown verdict without contacting anything.
func (NoOp) Verify(ctx context.Context, agentID, action string, payload map[string]interface{}) (Result, error) {
	return Result{Allowed: true, Verdict: VerdictUnknown, Reason: "no IAP configured"}, nil
}

// WithTimeout wraps a Client so a slow external call degrades to
// VerdictUnknown instead of blocking the caller past deadline.
func WithTimeout(c Client, timeout time.Duration) Client {
	return timeoutClient{inner: c, timeout: timeout}
}

type timeoutClient struct {
	inner   Client
	timeout time.Duration
}

func (t timeoutClient) Verify(ctx context.Context, agentID, action string, payload map[string]interface{}) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		result, err := t.inner.Verify(ctx, agentID, action, payload)
		ch <- outcome{result, err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			return Result{Allowed: true, Verdict: VerdictUnknown, Reason: "iap transport error, falling back to local decision"}, nil
		}
		return o.result, nil
	case <-ctx.Done():
		return Result{Allowed: true, Verdict: VerdictUnknown, Reason: "iap timeout, falling back to local decision"}, nil
	}
}
