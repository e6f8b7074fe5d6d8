package workflow

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kestrelai/assistant/pkg/models"
)

type fakeExecutor struct {
	calls   []models.ToolCall
	results map[string]models.ToolResult
	errs    map[string]error
}

func (f *fakeExecutor) Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error) {
	f.calls = append(f.calls, call)
	if err, ok := f.errs[call.Name]; ok {
		return models.ToolResult{}, err
	}
	if result, ok := f.results[call.Name]; ok {
		return result, nil
	}
	return models.ToolResult{Content: "ok"}, nil
}

func TestRunnerRunsStepsInOrder(t *testing.T) {
	exec := &fakeExecutor{results: map[string]models.ToolResult{}}
	r := NewRunner(exec, nil)
	def := models.WorkflowDefinition{
		Steps: []models.WorkflowStep{
			{Name: "first", Tool: "tool_a"},
			{Name: "second", Tool: "tool_b"},
		},
	}

	results := r.Run(context.Background(), def, nil)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Status != models.StepSuccess || results[1].Status != models.StepSuccess {
		t.Fatalf("got statuses %v, %v, want both success", results[0].Status, results[1].Status)
	}
	if len(exec.calls) != 2 || exec.calls[0].Name != "tool_a" || exec.calls[1].Name != "tool_b" {
		t.Fatalf("got calls %v, want tool_a then tool_b", exec.calls)
	}
}

func TestRunnerStopsAfterToolError(t *testing.T) {
	exec := &fakeExecutor{errs: map[string]error{"tool_a": context.DeadlineExceeded}}
	r := NewRunner(exec, nil)
	def := models.WorkflowDefinition{
		Steps: []models.WorkflowStep{
			{Name: "first", Tool: "tool_a"},
			{Name: "second", Tool: "tool_b"},
		},
	}

	results := r.Run(context.Background(), def, nil)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (halted after error)", len(results))
	}
	if results[0].Status != models.StepError {
		t.Fatalf("got status %v, want error", results[0].Status)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("second step should not have run, got %d calls", len(exec.calls))
	}
}

func TestRunnerStopsAfterResultIsError(t *testing.T) {
	exec := &fakeExecutor{results: map[string]models.ToolResult{
		"tool_a": {IsError: true, Content: "boom"},
	}}
	r := NewRunner(exec, nil)
	def := models.WorkflowDefinition{
		Steps: []models.WorkflowStep{
			{Name: "first", Tool: "tool_a"},
			{Name: "second", Tool: "tool_b"},
		},
	}

	results := r.Run(context.Background(), def, nil)
	if len(results) != 1 || results[0].Status != models.StepError || results[0].Error != "boom" {
		t.Fatalf("got %+v, want a single error result with message 'boom'", results)
	}
}

func TestRunnerSkipsStepOnApprovalDenial(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewRunner(exec, func(ctx context.Context, step models.WorkflowStep) bool { return false })
	def := models.WorkflowDefinition{
		Steps: []models.WorkflowStep{
			{Name: "gated", Tool: "tool_a", RequiresApproval: true},
			{Name: "after", Tool: "tool_b"},
		},
	}

	results := r.Run(context.Background(), def, nil)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (skip then continue)", len(results))
	}
	if results[0].Status != models.StepSkipped || results[0].Reason != "approval_denied" {
		t.Fatalf("got %+v, want skipped/approval_denied", results[0])
	}
	if results[1].Status != models.StepSuccess {
		t.Fatalf("got %+v, want the following step to still run", results[1])
	}
	if len(exec.calls) != 1 || exec.calls[0].Name != "tool_b" {
		t.Fatalf("got calls %v, want only tool_b", exec.calls)
	}
}

func TestRunnerThreadsPreviousOutputAndSeedContext(t *testing.T) {
	exec := &fakeExecutor{results: map[string]models.ToolResult{
		"tool_a": {Content: "first-output"},
	}}
	r := NewRunner(exec, nil)
	def := models.WorkflowDefinition{
		Steps: []models.WorkflowStep{
			{Name: "first", Tool: "tool_a"},
			{Name: "second", Tool: "tool_b", Args: map[string]any{"seed_key": "step-default"}},
		},
	}

	r.Run(context.Background(), def, map[string]any{"seed_key": "seed-value"})

	var secondInput map[string]any
	if err := json.Unmarshal(exec.calls[1].Input, &secondInput); err != nil {
		t.Fatalf("unmarshal second input: %v", err)
	}
	if secondInput["previous_output"] != "first-output" {
		t.Errorf("got previous_output %v, want first-output", secondInput["previous_output"])
	}
	if secondInput["seed_key"] != "seed-value" {
		t.Errorf("got seed_key %v, want seed context to win over step args", secondInput["seed_key"])
	}
}
