package iap

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoOpReturnsUnknown(t *testing.T) {
	c := NoOp{}
	result, err := c.Verify(context.Background(), "agent-1", "do_thing", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Verdict != VerdictUnknown {
		t.Fatalf("expected unknown verdict, got %v", result.Verdict)
	}
}

type slowClient struct{ delay time.Duration }

func (s slowClient) Verify(ctx context.Context, agentID, action string, payload map[string]interface{}) (Result, error) {
	select {
	case <-time.After(s.delay):
		return Result{Allowed: false, Verdict: VerdictDeny}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func TestWithTimeoutFallsBackOnSlowClient(t *testing.T) {
	c := WithTimeout(slowClient{delay: 50 * time.Millisecond}, 5*time.Millisecond)
	result, err := c.Verify(context.Background(), "agent-1", "do_thing", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Verdict != VerdictUnknown {
		t.Fatalf("expected timeout to fall back to unknown, got %v", result.Verdict)
	}
}

type erroringClient struct{}

func (erroringClient) Verify(ctx context.Context, agentID, action string, payload map[string]interface{}) (Result, error) {
	return Result{}, errors.New("connection refused")
}

func TestWithTimeoutFallsBackOnTransportError(t *testing.T) {
	c := WithTimeout(erroringClient{}, time.Second)
	result, err := c.Verify(context.Background(), "agent-1", "do_thing", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Verdict != VerdictUnknown {
		t.Fatalf("expected transport error to fall back to unknown, got %v", result.Verdict)
	}
}

func TestWithTimeoutPassesThroughFastSuccess(t *testing.T) {
	c := WithTimeout(slowClient{delay: time.Millisecond}, 50*time.Millisecond)
	result, err := c.Verify(context.Background(), "agent-1", "do_thing", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Verdict != VerdictDeny {
		t.Fatalf("expected the inner client's verdict to pass through, got %v", result.Verdict)
	}
}
