// Package orchestrator exposes delegation to the LLM as tools
// (list_agents, delegate_to_agent, delegate_parallel, task_status) and
// drives foreground, parallel, and detached background agent runs on top
// of the agent runner.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kestrelai/assistant/internal/agents"
	"github.com/kestrelai/assistant/internal/tools"
	"github.com/kestrelai/assistant/pkg/models"
)

// MaxDelegationDepth bounds how many levels deep a delegation chain may go
// before delegate_to_agent starts refusing.
const MaxDelegationDepth = 2

// AgentSource looks up and lists declarative agent definitions; satisfied
// by *agents.Loader.
type AgentSource interface {
	GetAgent(name string) (models.AgentDefinition, bool)
	List() []models.AgentDefinition
}

// Orchestrator wires the agent runner to the delegation tool surface.
type Orchestrator struct {
	loader          AgentSource
	runner          *agents.Runner
	background      *backgroundStore
	backgroundEnabled bool
	logger          *slog.Logger
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithBackgroundDelegation enables the task_status tool and background
// mode, sized to capacity resident tasks.
func WithBackgroundDelegation(capacity int) Option {
	return func(o *Orchestrator) {
		o.backgroundEnabled = true
		o.background = newBackgroundStore(capacity)
	}
}

// New builds an orchestrator over a shared agent loader and runner.
func New(loader AgentSource, runner *agents.Runner, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{loader: loader, runner: runner, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// delegateArgs is the shape of delegate_to_agent's and delegate_parallel's
// input: {agent_name, task, context?, background?}. delegate_parallel wraps
// a list of these.
type delegateArgs struct {
	AgentName  string `json:"agent_name"`
	Task       string `json:"task"`
	Context    string `json:"context,omitempty"`
	Background bool   `json:"background,omitempty"`
}

// RegisterTools installs the orchestrator's tools on a registry. sessionID
// scopes each delegated run; baseSystemPrompt is prefixed to every agent's
// own system prompt.
func (o *Orchestrator) RegisterTools(reg *tools.Registry, sessionID string, baseSystemPrompt string) {
	reg.Register(tools.Definition{
		Name:           "list_agents",
		Description:    "List the agents available for delegation, by name and description.",
		ActionCategory: tools.ActionRead,
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			return o.listAgents(), nil
		},
	})

	reg.Register(tools.Definition{
		Name:           "delegate_to_agent",
		Description:    "Delegate a task to a named agent, optionally running it in the background.",
		ActionCategory: tools.ActionWrite,
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			args, err := decodeDelegateArgs(input)
			if err != nil {
				return "", err
			}
			return o.delegate(ctx, sessionID, baseSystemPrompt, args)
		},
	})

	reg.Register(tools.Definition{
		Name:           "delegate_parallel",
		Description:    "Delegate N tasks to agents concurrently; returns each result in input order.",
		ActionCategory: tools.ActionWrite,
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			return o.delegateParallel(ctx, sessionID, baseSystemPrompt, input)
		},
	})

	if o.backgroundEnabled {
		reg.Register(tools.Definition{
			Name:           "task_status",
			Description:    "Check the status of a background-delegated task by id.",
			ActionCategory: tools.ActionRead,
			Handler: func(ctx context.Context, input map[string]any) (string, error) {
				return o.taskStatus(input), nil
			},
		})
	}
}

func (o *Orchestrator) listAgents() string {
	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	defs := o.loader.List()
	out := make([]entry, 0, len(defs))
	for _, d := range defs {
		out = append(out, entry{Name: d.Name, Description: d.Description})
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// delegate implements foreground and background delegation (§4.8). The
// depth guard and delivery callback are read from ctx as task-local
// carriers, never package state.
func (o *Orchestrator) delegate(ctx context.Context, sessionID, baseSystemPrompt string, args delegateArgs) (string, error) {
	def, ok := o.loader.GetAgent(args.AgentName)
	if !ok {
		return fmt.Sprintf("Unknown agent: %s", args.AgentName), nil
	}

	if args.Background && o.backgroundEnabled {
		return o.delegateBackground(ctx, sessionID, baseSystemPrompt, def, args), nil
	}

	if depthFromContext(ctx) >= MaxDelegationDepth {
		return "Delegation depth limit reached; cannot delegate further from this context.", nil
	}
	childCtx := withIncrementedDepth(ctx)

	result := o.runner.Run(childCtx, def, args.Task, agents.RunOptions{
		Context:          args.Context,
		BaseSystemPrompt: baseSystemPrompt,
		SessionID:        sessionID,
	})
	return formatResult(result), nil
}

// delegateBackground records a pending task, captures the task-local
// delivery callback, and fires a detached run with an auto-approve
// permission policy. The goroutine never touches the caller's context
// beyond what it read before returning.
func (o *Orchestrator) delegateBackground(ctx context.Context, sessionID, baseSystemPrompt string, def models.AgentDefinition, args delegateArgs) string {
	deliver, hasDeliver := deliveryFromContext(ctx)
	task := o.background.create(def.Name, args.Task, time.Now().Unix())

	go func() {
		bgCtx := context.Background()
		o.background.update(task.ID, func(t *models.BackgroundTask) { t.Status = models.BackgroundRunning })

		result := o.runner.Run(bgCtx, def, args.Task, agents.RunOptions{
			Context:          args.Context,
			BaseSystemPrompt: baseSystemPrompt,
			SessionID:        sessionID,
			ApproverOverride: tools.AutoApprove,
		})

		finishedAt := time.Now().Unix()
		var message string
		if result.Error != "" {
			o.background.update(task.ID, func(t *models.BackgroundTask) {
				t.Status = models.BackgroundError
				t.Error = result.Error
				t.FinishedAt = finishedAt
			})
			message = fmt.Sprintf("Background task %s (%s) failed: %s", task.ID, def.Name, result.Error)
		} else {
			o.background.update(task.ID, func(t *models.BackgroundTask) {
				t.Status = models.BackgroundDone
				t.Result = result.Response
				t.FinishedAt = finishedAt
			})
			message = fmt.Sprintf("Background task %s (%s) finished: %s", task.ID, def.Name, result.Response)
		}

		if hasDeliver {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Warn("background delivery callback panicked", "task_id", task.ID, "panic", r)
				}
			}()
			deliver(message)
		}
	}()

	return fmt.Sprintf("Started background task %s for agent %s.", task.ID, def.Name)
}

func (o *Orchestrator) delegateParallel(ctx context.Context, sessionID, baseSystemPrompt string, input map[string]any) (string, error) {
	raw, ok := input["delegations"]
	if !ok {
		return "", fmt.Errorf("delegate_parallel requires a \"delegations\" array")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("invalid delegations payload: %w", err)
	}
	var batch []delegateArgs
	if err := json.Unmarshal(b, &batch); err != nil {
		return "", fmt.Errorf("invalid delegations payload: %w", err)
	}

	if depthFromContext(ctx) >= MaxDelegationDepth {
		return "Delegation depth limit reached; cannot delegate further from this context.", nil
	}
	childCtx := withIncrementedDepth(ctx)

	results := make([]string, len(batch))
	done := make(chan struct{}, len(batch))
	for i, args := range batch {
		i, args := i, args
		go func() {
			defer func() { done <- struct{}{} }()
			def, ok := o.loader.GetAgent(args.AgentName)
			if !ok {
				results[i] = fmt.Sprintf("Unknown agent: %s", args.AgentName)
				return
			}
			result := o.runner.Run(childCtx, def, args.Task, agents.RunOptions{
				Context:          args.Context,
				BaseSystemPrompt: baseSystemPrompt,
				SessionID:        sessionID,
			})
			results[i] = formatResult(result)
		}()
	}
	for range batch {
		<-done
	}

	b, _ = json.Marshal(results)
	return string(b), nil
}

func (o *Orchestrator) taskStatus(input map[string]any) string {
	id, _ := input["task_id"].(string)
	task := o.background.get(id)
	if task == nil {
		return fmt.Sprintf(`{"error":"unknown or evicted task: %s"}`, id)
	}
	b, _ := json.Marshal(task)
	return string(b)
}

func decodeDelegateArgs(input map[string]any) (delegateArgs, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return delegateArgs{}, err
	}
	var args delegateArgs
	if err := json.Unmarshal(b, &args); err != nil {
		return delegateArgs{}, err
	}
	if args.AgentName == "" {
		return delegateArgs{}, fmt.Errorf("agent_name is required")
	}
	return args, nil
}

func formatResult(result models.AgentResult) string {
	if result.Error != "" {
		return fmt.Sprintf("Agent %s failed: %s", result.AgentName, result.Error)
	}
	return result.Response
}
