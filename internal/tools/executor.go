package tools

import (
	"context"

	"github.com/kestrelai/assistant/internal/llm"
	"github.com/kestrelai/assistant/pkg/models"
)

// AsLLMTools converts the registry's definitions into the shape LLM
// adapters advertise to the model.
func (r *Registry) AsLLMTools() []llm.ToolDefinition {
	defs := r.Definitions()
	out := make([]llm.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, llm.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return out
}

// Executor wraps a Registry (optionally scoped by Filter) as an
// llm.ToolExecutor, binding the session id and approver override used for
// every call driven through a particular conversation.
type Executor struct {
	Registry  *Registry
	SessionID string
	Approver  Approver
	// Filter, when non-nil, restricts which tool names may run; calls for
	// any other name are rejected without touching the real tool. This is
	// how the agent runner scopes a delegated agent's tool view (§4.7)
	// without the registry itself knowing about scoping.
	Filter func(toolName string) bool
}

func (e *Executor) Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error) {
	if e.Filter != nil && !e.Filter(call.Name) {
		return models.ToolResult{
			ToolCallID: call.ID,
			Content:    "Tool '" + call.Name + "' is not available to this agent.",
			IsError:    true,
		}, nil
	}
	return e.Registry.Execute(ctx, call, e.SessionID, e.Approver)
}
