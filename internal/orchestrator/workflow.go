package orchestrator

import (
	"context"
	"fmt"
	"sync"
)

// StepStatus captures one workflow step's outcome.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// WorkflowStep describes one unit of work inside a workflow.
type WorkflowStep struct {
	Name         string
	Action       string
	Payload      map[string]interface{}
	AgentType    string
	DependsOn    []string
	Status       StepStatus
	Result       map[string]interface{}
	Error        string
}

// Workflow is an ordered or DAG-shaped collection of steps.
type Workflow struct {
	ID       string
	Name     string
	Parallel bool
	Steps    []*WorkflowStep
}

// AddStep appends a step definition to the workflow.
func (w *Workflow) AddStep(name, action string, payload map[string]interface{}, agentType string, dependsOn ...string) {
	w.Steps = append(w.Steps, &WorkflowStep{
		Name:      name,
		Action:    action,
		Payload:   payload,
		AgentType: agentType,
		DependsOn: dependsOn,
		Status:    StepPending,
	})
}

// WorkflowResult is the aggregate outcome of a workflow run.
type WorkflowResult struct {
	WorkflowID string
	Success    bool
	Steps      []*WorkflowStep
	Error      string
}

// StepExecutor executes a single workflow step against a routed agent. The
// gateway supplies this so the engine stays decoupled from the concrete
// agent registry and handoff verifier.
type StepExecutor func(ctx context.Context, step *WorkflowStep, sharedContext map[string]interface{}) (map[string]interface{}, error)

// WorkflowEngine registers and executes sequential/parallel workflows.
type WorkflowEngine struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
	execute   StepExecutor
	maxConcurrency int
}

// NewWorkflowEngine wires an engine against the step executor supplied by
// the gateway, per SPEC_FULL §4.12. maxConcurrency bounds in-flight steps
// for parallel workflows; zero or negative disables the bound.
func NewWorkflowEngine(executor StepExecutor, maxConcurrency int) *WorkflowEngine {
	return &WorkflowEngine{
		workflows:      make(map[string]*Workflow),
		execute:        executor,
		maxConcurrency: maxConcurrency,
	}
}

// RegisterWorkflow adds a workflow template to the engine's registry.
func (e *WorkflowEngine) RegisterWorkflow(wf *Workflow) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[wf.ID] = wf
}

// ListWorkflows returns the IDs of all registered workflows.
func (e *WorkflowEngine) ListWorkflows() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.workflows))
	for id := range e.workflows {
		out = append(out, id)
	}
	return out
}

// Execute runs a registered workflow by ID, dispatching to the sequential
// or parallel runner per its Parallel flag.
func (e *WorkflowEngine) Execute(ctx context.Context, workflowID string, parameters map[string]interface{}) (WorkflowResult, error) {
	e.mu.RLock()
	tmpl, ok := e.workflows[workflowID]
	e.mu.RUnlock()
	if !ok {
		return WorkflowResult{}, fmt.Errorf("orchestrator: unknown workflow %q", workflowID)
	}

	wf := cloneWorkflow(tmpl)
	shared := make(map[string]interface{}, len(parameters))
	for k, v := range parameters {
		shared[k] = v
	}

	if wf.Parallel {
		return e.runParallel(ctx, wf, shared), nil
	}
	return e.runSequential(ctx, wf, shared), nil
}

func cloneWorkflow(src *Workflow) *Workflow {
	wf := &Workflow{ID: src.ID, Name: src.Name, Parallel: src.Parallel}
	for _, s := range src.Steps {
		wf.Steps = append(wf.Steps, &WorkflowStep{
			Name:      s.Name,
			Action:    s.Action,
			Payload:   s.Payload,
			AgentType: s.AgentType,
			DependsOn: s.DependsOn,
			Status:    StepPending,
		})
	}
	return wf
}

// runSequential executes steps in declared order, aborting the remainder
// on first failure.
func (e *WorkflowEngine) runSequential(ctx context.Context, wf *Workflow, shared map[string]interface{}) WorkflowResult {
	for _, step := range wf.Steps {
		select {
		case <-ctx.Done():
			step.Status = StepSkipped
			return WorkflowResult{WorkflowID: wf.ID, Success: false, Steps: wf.Steps, Error: ctx.Err().Error()}
		default:
		}

		step.Status = StepRunning
		result, err := e.execute(ctx, step, shared)
		if err != nil {
			step.Status = StepFailed
			step.Error = err.Error()
			return WorkflowResult{WorkflowID: wf.ID, Success: false, Steps: wf.Steps, Error: fmt.Sprintf("step %q failed: %v", step.Name, err)}
		}
		step.Status = StepSuccess
		step.Result = result
		shared[step.Name] = result
	}
	return WorkflowResult{WorkflowID: wf.ID, Success: true, Steps: wf.Steps}
}

// runParallel runs steps concurrently once their DependsOn set has
// completed successfully; a failure cancels all not-yet-started steps and
// waits for in-flight ones to drain.
func (e *WorkflowEngine) runParallel(ctx context.Context, wf *Workflow, shared map[string]interface{}) WorkflowResult {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failed   bool
		firstErr string
		sem      chan struct{}
	)
	if e.maxConcurrency > 0 {
		sem = make(chan struct{}, e.maxConcurrency)
	}

	remaining := make(map[string]*WorkflowStep, len(wf.Steps))
	for _, s := range wf.Steps {
		remaining[s.Name] = s
	}

	done := make(chan struct{})
	var runStep func(step *WorkflowStep)
	var launchReady func()

	launchReady = func() {
		mu.Lock()
		var ready []*WorkflowStep
		for name, step := range remaining {
			if step.Status != StepPending {
				continue
			}
			if dependenciesSatisfied(step, wf.Steps) {
				step.Status = StepRunning
				ready = append(ready, step)
				delete(remaining, name)
			}
		}
		mu.Unlock()
		for _, step := range ready {
			wg.Add(1)
			go runStep(step)
		}
	}

	runStep = func(step *WorkflowStep) {
		defer wg.Done()
		if sem != nil {
			sem <- struct{}{}
			defer func() { <-sem }()
		}

		select {
		case <-runCtx.Done():
			mu.Lock()
			step.Status = StepSkipped
			mu.Unlock()
			return
		default:
		}

		result, err := e.execute(runCtx, step, shared)
		mu.Lock()
		if err != nil {
			step.Status = StepFailed
			step.Error = err.Error()
			if !failed {
				failed = true
				firstErr = fmt.Sprintf("step %q failed: %v", step.Name, err)
				cancel()
			}
		} else {
			step.Status = StepSuccess
			step.Result = result
			shared[step.Name] = result
		}
		mu.Unlock()
		launchReady()
	}

	launchReady()
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		cancel()
		<-done
	}

	mu.Lock()
	defer mu.Unlock()
	for _, step := range remaining {
		step.Status = StepSkipped
	}

	return WorkflowResult{WorkflowID: wf.ID, Success: !failed, Steps: wf.Steps, Error: firstErr}
}

func dependenciesSatisfied(step *WorkflowStep, all []*WorkflowStep) bool {
	if len(step.DependsOn) == 0 {
		return true
	}
	byName := make(map[string]*WorkflowStep, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	for _, dep := range step.DependsOn {
		d, ok := byName[dep]
		if !ok || d.Status != StepSuccess {
			return false
		}
	}
	return true
}
