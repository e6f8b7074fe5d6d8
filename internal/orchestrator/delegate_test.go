package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kestrelai/assistant/internal/agents"
	"github.com/kestrelai/assistant/internal/llm"
	"github.com/kestrelai/assistant/internal/tools"
	"github.com/kestrelai/assistant/pkg/models"
)

type fakeDelegateRouter struct {
	response string
	errMsg   string
}

func (f *fakeDelegateRouter) StreamWithToolLoop(ctx context.Context, req llm.CompletionRequest) <-chan llm.StreamEvent {
	ch := make(chan llm.StreamEvent, 1)
	if f.errMsg != "" {
		ch <- llm.StreamEvent{Type: llm.EventError, Error: f.errMsg}
	} else {
		ch <- llm.StreamEvent{Type: llm.EventMessageComplete, Text: f.response}
	}
	close(ch)
	return ch
}

func newTestOrchestratorRunner(response, errMsg string) *agents.Runner {
	registry := tools.NewRegistry(tools.NewClassifier(nil), nil, "/workspace", nil)
	return agents.NewRunner(&fakeDelegateRouter{response: response, errMsg: errMsg}, registry)
}

func TestRegisterToolsInstallsDelegationTools(t *testing.T) {
	registry := tools.NewRegistry(tools.NewClassifier(nil), nil, "/workspace", nil)
	o := New(&fakeAgentSource{agents: map[string]models.AgentDefinition{}}, newTestOrchestratorRunner("ok", ""), nil)

	o.RegisterTools(registry, "sess-1", "base prompt")

	names := map[string]bool{}
	for _, d := range registry.Definitions() {
		names[d.Name] = true
	}
	for _, want := range []string{"list_agents", "delegate_to_agent", "delegate_parallel"} {
		if !names[want] {
			t.Fatalf("expected tool %q to be registered", want)
		}
	}
	if names["task_status"] {
		t.Fatal("task_status should not be registered without WithBackgroundDelegation")
	}
}

func TestRegisterToolsInstallsTaskStatusWhenBackgroundEnabled(t *testing.T) {
	registry := tools.NewRegistry(tools.NewClassifier(nil), nil, "/workspace", nil)
	o := New(&fakeAgentSource{agents: map[string]models.AgentDefinition{}}, newTestOrchestratorRunner("ok", ""), nil, WithBackgroundDelegation(5))

	o.RegisterTools(registry, "sess-1", "base")

	found := false
	for _, d := range registry.Definitions() {
		if d.Name == "task_status" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected task_status to be registered when background delegation is enabled")
	}
}

func TestDelegateReturnsUnknownAgentMessage(t *testing.T) {
	o := New(&fakeAgentSource{agents: map[string]models.AgentDefinition{}}, newTestOrchestratorRunner("ok", ""), nil)

	got, err := o.delegate(context.Background(), "sess", "base", delegateArgs{AgentName: "ghost", Task: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Unknown agent: ghost" {
		t.Fatalf("got %q", got)
	}
}

func TestDelegateRunsForegroundAndFormatsResponse(t *testing.T) {
	o := New(&fakeAgentSource{agents: map[string]models.AgentDefinition{
		"researcher": {Name: "researcher"},
	}}, newTestOrchestratorRunner("found it", ""), nil)

	got, err := o.delegate(context.Background(), "sess", "base", delegateArgs{AgentName: "researcher", Task: "find X"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "found it" {
		t.Fatalf("got %q", got)
	}
}

func TestDelegateFormatsRunnerError(t *testing.T) {
	o := New(&fakeAgentSource{agents: map[string]models.AgentDefinition{
		"researcher": {Name: "researcher"},
	}}, newTestOrchestratorRunner("", "provider down"), nil)

	got, err := o.delegate(context.Background(), "sess", "base", delegateArgs{AgentName: "researcher", Task: "find X"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Agent researcher failed: provider down" {
		t.Fatalf("got %q", got)
	}
}

func TestDelegateRefusesPastMaxDepth(t *testing.T) {
	o := New(&fakeAgentSource{agents: map[string]models.AgentDefinition{
		"researcher": {Name: "researcher"},
	}}, newTestOrchestratorRunner("should not run", ""), nil)

	ctx := context.Background()
	for i := 0; i < MaxDelegationDepth; i++ {
		ctx = withIncrementedDepth(ctx)
	}

	got, err := o.delegate(ctx, "sess", "base", delegateArgs{AgentName: "researcher", Task: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Delegation depth limit reached; cannot delegate further from this context." {
		t.Fatalf("got %q", got)
	}
}

func TestDelegateParallelRunsAllAndPreservesOrder(t *testing.T) {
	o := New(&fakeAgentSource{agents: map[string]models.AgentDefinition{
		"a": {Name: "a"},
		"b": {Name: "b"},
	}}, newTestOrchestratorRunner("done", ""), nil)

	input := map[string]any{"delegations": []map[string]any{
		{"agent_name": "a", "task": "t1"},
		{"agent_name": "ghost", "task": "t2"},
		{"agent_name": "b", "task": "t3"},
	}}
	out, err := o.delegateParallel(context.Background(), "sess", "base", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var results []string
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0] != "done" || results[1] != "Unknown agent: ghost" || results[2] != "done" {
		t.Fatalf("got %v", results)
	}
}

func TestDelegateParallelRequiresDelegationsField(t *testing.T) {
	o := New(&fakeAgentSource{}, newTestOrchestratorRunner("ok", ""), nil)
	if _, err := o.delegateParallel(context.Background(), "sess", "base", map[string]any{}); err == nil {
		t.Fatal("expected an error when delegations is missing")
	}
}

func TestDelegateParallelRefusesPastMaxDepth(t *testing.T) {
	o := New(&fakeAgentSource{agents: map[string]models.AgentDefinition{"a": {Name: "a"}}}, newTestOrchestratorRunner("ok", ""), nil)

	ctx := context.Background()
	for i := 0; i < MaxDelegationDepth; i++ {
		ctx = withIncrementedDepth(ctx)
	}

	input := map[string]any{"delegations": []map[string]any{{"agent_name": "a", "task": "t"}}}
	got, err := o.delegateParallel(ctx, "sess", "base", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Delegation depth limit reached; cannot delegate further from this context." {
		t.Fatalf("got %q", got)
	}
}

func TestDelegateBackgroundCompletesAndIsQueryableViaTaskStatus(t *testing.T) {
	o := New(&fakeAgentSource{agents: map[string]models.AgentDefinition{
		"researcher": {Name: "researcher"},
	}}, newTestOrchestratorRunner("background result", ""), nil, WithBackgroundDelegation(5))

	msg, err := o.delegate(context.Background(), "sess", "base", delegateArgs{AgentName: "researcher", Task: "x", Background: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	taskID := extractTaskID(msg)
	if taskID == "" {
		t.Fatalf("could not find a task id in %q", msg)
	}

	deadline := time.Now().Add(2 * time.Second)
	var status string
	for time.Now().Before(deadline) {
		status = o.taskStatus(map[string]any{"task_id": taskID})
		var task models.BackgroundTask
		if err := json.Unmarshal([]byte(status), &task); err == nil && task.Status == models.BackgroundDone {
			if task.Result != "background result" {
				t.Fatalf("got result %q, want %q", task.Result, "background result")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("background task never reported done, last status: %s", status)
}

// extractTaskID pulls the id out of "Started background task <id> for
// agent <name>." without assuming a fixed word count elsewhere in the
// message.
func extractTaskID(msg string) string {
	fields := strings.Fields(msg)
	for i, w := range fields {
		if w == "task" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}
