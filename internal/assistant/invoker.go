// Package assistant drives the primary, undelegated conversation: the one
// an "assistant"-type scheduled job runs against,
// as opposed to a named sub-agent invoked through the orchestrator.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/kestrelai/assistant/internal/agents"
	"github.com/kestrelai/assistant/pkg/models"
)

// SessionManager is the subset of *session.Manager the invoker needs,
// named as an interface so a session-less invoker can substitute nil.
type SessionManager interface {
	Get(ctx context.Context, key string) (*models.Session, error)
	Append(ctx context.Context, key string, msg models.Message) (*models.Session, error)
}

// Invoker drives one primary-assistant turn, satisfying
// scheduler.AssistantInvoker and anything else that needs a bare
// "prompt in, text out" call against the full (unscoped) tool registry.
type Invoker struct {
	runner           *agents.Runner
	sessions         SessionManager
	baseSystemPrompt string
	model            string
	maxToolRounds    int
}

// New builds an Invoker. baseSystemPrompt is prefixed to every turn, the
// way it is for a delegated agent's scoped system prompt. sessions may be
// nil, in which case every turn runs with no prior context.
func New(runner *agents.Runner, sessions SessionManager, baseSystemPrompt, model string, maxToolRounds int) *Invoker {
	return &Invoker{
		runner:           runner,
		sessions:         sessions,
		baseSystemPrompt: baseSystemPrompt,
		model:            model,
		maxToolRounds:    maxToolRounds,
	}
}

// Invoke runs one turn for prompt under sessionID's isolated tool view
// (full registry, no delegation scoping) and returns the response text.
// When a SessionManager is configured, prior turns for sessionID are
// folded in as context and the new exchange is appended afterward.
func (inv *Invoker) Invoke(ctx context.Context, sessionID, prompt string) (string, error) {
	runOpts := agents.RunOptions{
		BaseSystemPrompt: inv.baseSystemPrompt,
		SessionID:        sessionID,
	}
	if inv.sessions != nil {
		if sess, err := inv.sessions.Get(ctx, sessionID); err == nil && sess != nil {
			runOpts.Context = renderHistory(sess.Messages)
		}
	}

	def := models.AgentDefinition{
		Name:          "assistant",
		Model:         inv.model,
		MaxToolRounds: inv.maxToolRounds,
		CanDelegate:   true,
	}
	result := inv.runner.Run(ctx, def, prompt, runOpts)
	if result.Error != "" {
		return "", fmt.Errorf("assistant turn failed: %s", result.Error)
	}

	if inv.sessions != nil {
		_, _ = inv.sessions.Append(ctx, sessionID, models.Message{Role: models.RoleUser, Content: prompt})
		_, _ = inv.sessions.Append(ctx, sessionID, models.Message{Role: models.RoleAssistant, Content: result.Response})
	}
	return result.Response, nil
}

func renderHistory(messages []models.Message) string {
	if len(messages) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
