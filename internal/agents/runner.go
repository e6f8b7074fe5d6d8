package agents

import (
	"context"
	"strings"

	"github.com/kestrelai/assistant/internal/llm"
	"github.com/kestrelai/assistant/internal/tools"
	"github.com/kestrelai/assistant/pkg/models"
)

// delegationToolNames are stripped from a scoped agent's tool view unless
// the agent explicitly declares CanDelegate, preventing accidental
// recursion through the orchestrator.
var delegationToolNames = map[string]bool{
	"delegate_to_agent": true,
	"delegate_parallel": true,
	"list_agents":       true,
}

// Router is the subset of *llm.Router the runner needs, named as an
// interface so tests can substitute a fake adapter stream.
type Router interface {
	StreamWithToolLoop(ctx context.Context, req llm.CompletionRequest) <-chan llm.StreamEvent
}

// Runner drives one isolated agent conversation: its own system prompt,
// its own message history, and a tool view scoped to the agent's
// allowed/denied lists.
type Runner struct {
	router   Router
	registry *tools.Registry
}

// NewRunner builds a runner over the shared router and tool registry; both
// are reused as-is, with scoping applied per run rather than per instance.
func NewRunner(router Router, registry *tools.Registry) *Runner {
	return &Runner{router: router, registry: registry}
}

// RunOptions carries the per-call parameters to Run beyond the agent and
// task text.
type RunOptions struct {
	Context          string
	BaseSystemPrompt string
	ApproverOverride tools.Approver
	SessionID        string
}

// Run drives one agent conversation to completion. It never mutates any
// caller session — the messages it builds live only for this call.
func (r *Runner) Run(ctx context.Context, agent models.AgentDefinition, task string, opts RunOptions) models.AgentResult {
	system := buildSystemPrompt(opts.BaseSystemPrompt, agent)
	userContent := buildUserContent(opts.Context, task)

	filter := buildToolFilter(agent)
	executor := &tools.Executor{
		Registry:  r.registry,
		SessionID: opts.SessionID,
		Approver:  opts.ApproverOverride,
		Filter:    filter,
	}

	allTools := r.registry.AsLLMTools()
	scopedTools := make([]llm.ToolDefinition, 0, len(allTools))
	for _, t := range allTools {
		if filter(t.Name) {
			scopedTools = append(scopedTools, t)
		}
	}

	maxRounds := agent.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 10
	}

	req := llm.CompletionRequest{
		System:        system,
		Messages:      []models.Message{{Role: models.RoleUser, Content: userContent}},
		Tools:         scopedTools,
		Executor:      executor,
		Model:         agent.Model,
		MaxToolRounds: maxRounds,
	}

	result := models.AgentResult{AgentName: agent.Name}
	var text strings.Builder

	for ev := range r.router.StreamWithToolLoop(ctx, req) {
		switch ev.Type {
		case llm.EventTextDelta:
			text.WriteString(ev.Text)
		case llm.EventToolUseComplete:
			if ev.ToolCall != nil {
				result.ToolCallsMade = append(result.ToolCallsMade, *ev.ToolCall)
			}
		case llm.EventMessageComplete:
			result.Response = ev.Text
		case llm.EventError:
			result.Error = ev.Error
		}
	}

	if result.Response == "" && result.Error == "" {
		result.Response = text.String()
	}
	return result
}

func buildSystemPrompt(base string, agent models.AgentDefinition) string {
	if agent.SystemPrompt == "" {
		return base
	}
	role := "# Agent Role: " + agent.Name + "\n\n" + agent.SystemPrompt
	if base == "" {
		return role
	}
	return base + "\n\n" + role
}

func buildUserContent(context, task string) string {
	if context == "" {
		return task
	}
	return "Context:\n" + context + "\n\nTask:\n" + task
}

// buildToolFilter implements §4.7 step 3: allowed_tools wins outright when
// non-empty; otherwise denied_tools excludes; delegation tools are removed
// unless the agent can itself delegate.
func buildToolFilter(agent models.AgentDefinition) func(string) bool {
	allowed := toSet(agent.AllowedTools)
	denied := toSet(agent.DeniedTools)

	return func(name string) bool {
		if len(allowed) > 0 {
			if !allowed[name] {
				return false
			}
		} else if denied[name] {
			return false
		}
		if !agent.CanDelegate && delegationToolNames[name] {
			return false
		}
		return true
	}
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
