// Package workflow loads and runs declarative multi-step tool sequences
// with approval gates and context threading between steps.
package workflow

import (
	"context"
	"encoding/json"

	"github.com/kestrelai/assistant/pkg/models"
)

// ApprovalFunc consults an installed approval callback for a step that
// requires one. A nil ApprovalFunc means no gate is installed and every
// requires_approval step is treated as approved.
type ApprovalFunc func(ctx context.Context, step models.WorkflowStep) bool

// ToolExecutor funnels a step's tool call through the shared registry so
// permissions and audit apply exactly as they do for an LLM-issued call.
type ToolExecutor interface {
	Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error)
}

// Runner drives one WorkflowDefinition to completion.
type Runner struct {
	executor ToolExecutor
	approve  ApprovalFunc
}

// NewRunner builds a runner over a tool executor (already scoped to a
// session) and an optional approval gate.
func NewRunner(executor ToolExecutor, approve ApprovalFunc) *Runner {
	return &Runner{executor: executor, approve: approve}
}

// Run walks def's steps in order, accumulating a context map seeded from
// seedContext. Per §4.12: a denied approval skips that step (status
// "skipped", reason "approval_denied") and the loop continues; a tool
// error halts the workflow and subsequent steps are not attempted.
func (r *Runner) Run(ctx context.Context, def models.WorkflowDefinition, seedContext map[string]any) []models.StepResult {
	runCtx := make(map[string]any, len(seedContext)+1)
	for k, v := range seedContext {
		runCtx[k] = v
	}

	results := make([]models.StepResult, 0, len(def.Steps))
	for _, step := range def.Steps {
		if step.RequiresApproval && r.approve != nil && !r.approve(ctx, step) {
			results = append(results, models.StepResult{
				Step:   step.Name,
				Status: models.StepSkipped,
				Reason: "approval_denied",
			})
			continue
		}

		merged := mergeArgs(step.Args, runCtx)
		input, err := json.Marshal(merged)
		if err != nil {
			results = append(results, models.StepResult{Step: step.Name, Status: models.StepError, Error: err.Error()})
			break
		}

		result, err := r.executor.Execute(ctx, models.ToolCall{Name: step.Tool, Input: input})
		if err != nil {
			results = append(results, models.StepResult{Step: step.Name, Status: models.StepError, Error: err.Error()})
			break
		}
		if result.IsError {
			results = append(results, models.StepResult{Step: step.Name, Status: models.StepError, Error: result.Content})
			break
		}

		results = append(results, models.StepResult{Step: step.Name, Status: models.StepSuccess, Output: result.Content})
		runCtx["previous_output"] = result.Content
	}
	return results
}

// mergeArgs overlays ctx onto step args, with ctx winning on key collision.
func mergeArgs(args map[string]any, ctx map[string]any) map[string]any {
	merged := make(map[string]any, len(args)+len(ctx))
	for k, v := range args {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	return merged
}
