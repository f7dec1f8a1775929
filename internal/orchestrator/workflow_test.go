package orchestrator

import (
	"context"
	"errors"
	"testing"
)

func TestSequentialWorkflowRunsInOrderAndSharesContext(t *testing.T) {
	var order []string
	executor := func(ctx context.Context, step *WorkflowStep, shared map[string]interface{}) (map[string]interface{}, error) {
		order = append(order, step.Name)
		return map[string]interface{}{"ok": true}, nil
	}
	engine := NewWorkflowEngine(executor, 0)

	wf := &Workflow{ID: "wf1", Name: "test"}
	wf.AddStep("step1", "do_one", nil, "hr")
	wf.AddStep("step2", "do_two", nil, "hr")
	engine.RegisterWorkflow(wf)

	result, err := engine.Execute(context.Background(), "wf1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if len(order) != 2 || order[0] != "step1" || order[1] != "step2" {
		t.Fatalf("expected sequential order step1,step2, got %v", order)
	}
}

func TestSequentialWorkflowAbortsOnFailure(t *testing.T) {
	var order []string
	executor := func(ctx context.Context, step *WorkflowStep, shared map[string]interface{}) (map[string]interface{}, error) {
		order = append(order, step.Name)
		if step.Name == "step1" {
			return nil, errors.New("boom")
		}
		return map[string]interface{}{}, nil
	}
	engine := NewWorkflowEngine(executor, 0)

	wf := &Workflow{ID: "wf2", Name: "test"}
	wf.AddStep("step1", "do_one", nil, "hr")
	wf.AddStep("step2", "do_two", nil, "hr")
	engine.RegisterWorkflow(wf)

	result, _ := engine.Execute(context.Background(), "wf2", nil)
	if result.Success {
		t.Fatal("expected failure")
	}
	if len(order) != 1 {
		t.Fatalf("expected step2 never to run, ran: %v", order)
	}
}

func TestParallelWorkflowRespectsDependsOn(t *testing.T) {
	executor := func(ctx context.Context, step *WorkflowStep, shared map[string]interface{}) (map[string]interface{}, error) {
		if step.Name == "finalize" {
			if _, ok := shared["a"]; !ok {
				t.Error("finalize ran before its dependency a completed")
			}
			if _, ok := shared["b"]; !ok {
				t.Error("finalize ran before its dependency b completed")
			}
		}
		return map[string]interface{}{"done": true}, nil
	}
	engine := NewWorkflowEngine(executor, 4)

	wf := &Workflow{ID: "wf3", Name: "test", Parallel: true}
	wf.AddStep("a", "do_a", nil, "hr")
	wf.AddStep("b", "do_b", nil, "it")
	wf.AddStep("finalize", "do_final", nil, "hr", "a", "b")
	engine.RegisterWorkflow(wf)

	result, err := engine.Execute(context.Background(), "wf3", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}
}

func TestParallelWorkflowCancelsRemainingOnFailure(t *testing.T) {
	executor := func(ctx context.Context, step *WorkflowStep, shared map[string]interface{}) (map[string]interface{}, error) {
		if step.Name == "a" {
			return nil, errors.New("a failed")
		}
		return map[string]interface{}{}, nil
	}
	engine := NewWorkflowEngine(executor, 4)

	wf := &Workflow{ID: "wf4", Name: "test", Parallel: true}
	wf.AddStep("a", "do_a", nil, "hr")
	wf.AddStep("finalize", "do_final", nil, "hr", "a")
	engine.RegisterWorkflow(wf)

	result, _ := engine.Execute(context.Background(), "wf4", nil)
	if result.Success {
		t.Fatal("expected failure")
	}

	var finalizeStatus StepStatus
	for _, s := range result.Steps {
		if s.Name == "finalize" {
			finalizeStatus = s.Status
		}
	}
	if finalizeStatus != StepSkipped {
		t.Fatalf("expected finalize to be skipped, got %s", finalizeStatus)
	}
}

func TestExecuteUnknownWorkflowErrors(t *testing.T) {
	engine := NewWorkflowEngine(func(ctx context.Context, step *WorkflowStep, shared map[string]interface{}) (map[string]interface{}, error) {
		return nil, nil
	}, 0)

	_, err := engine.Execute(context.Background(), "nope", nil)
	if err == nil {
		t.Fatal("expected error for unknown workflow")
	}
}
