package llm

import (
	"context"
	"encoding/json"

	"github.com/kestrelai/assistant/pkg/models"
)

// RoundFunc is the single-round primitive an adapter implements: given the
// accumulated messages, call the provider's streaming endpoint once and
// forward events (other than the terminating message_complete/error, which
// RunToolLoop synthesises itself) to out. It returns the round's
// accumulated text and any tool calls the model requested, in emission
// order.
type RoundFunc func(ctx context.Context, messages []models.Message, out chan<- StreamEvent) (text string, calls []models.ToolCall, err error)

const summaryPrompt = "You have reached the maximum number of tool-use rounds for this turn. Summarize your findings and answer the user now without calling any more tools."

// RunToolLoop drives the iterative "think, call tools, continue" protocol
// described for every adapter: it repeatedly calls round, executes any
// requested tools through executor in emission order, appends a matching
// tool_result message, and loops until a round produces no tool calls. If
// maxRounds is reached, it appends a terminal request for a summary, runs
// one final non-tool round, and always yields exactly one message_complete.
//
// The returned channel is closed after the terminal event.
func RunToolLoop(ctx context.Context, system string, messages []models.Message, executor ToolExecutor, maxRounds int, round RoundFunc) <-chan StreamEvent {
	out := make(chan StreamEvent, 8)
	go func() {
		defer close(out)
		runLoop(ctx, system, messages, executor, maxRounds, round, out)
	}()
	return out
}

func runLoop(ctx context.Context, system string, messages []models.Message, executor ToolExecutor, maxRounds int, round RoundFunc, out chan<- StreamEvent) {
	history := withSystem(system, messages)

	for roundNum := 1; ; roundNum++ {
		text, calls, err := round(ctx, history, out)
		if err != nil {
			out <- StreamEvent{Type: EventError, Error: err.Error()}
			return
		}

		if len(calls) == 0 {
			out <- StreamEvent{Type: EventMessageComplete, Text: text}
			return
		}

		if roundNum >= maxRounds {
			history = appendAssistantToolTurn(history, text, calls)
			history = appendToolResults(history, calls, executeAll(ctx, executor, calls))
			history = append(history, models.Message{Role: models.RoleUser, Content: summaryPrompt})

			finalText, _, err := round(ctx, history, out)
			if err != nil {
				out <- StreamEvent{Type: EventError, Error: err.Error()}
				return
			}
			out <- StreamEvent{Type: EventMessageComplete, Text: finalText}
			return
		}

		history = appendAssistantToolTurn(history, text, calls)
		history = appendToolResults(history, calls, executeAll(ctx, executor, calls))
	}
}

func withSystem(system string, messages []models.Message) []models.Message {
	// System prompt is threaded per-adapter (Anthropic/Bedrock take it as a
	// dedicated field; OpenAI-compatible wants it as the first message), so
	// the loop keeps messages as given and lets each adapter's round
	// function consult the system string directly. The copy here just
	// protects the caller's slice from mutation by append below.
	return append([]models.Message(nil), messages...)
}

func executeAll(ctx context.Context, executor ToolExecutor, calls []models.ToolCall) []models.ToolResult {
	results := make([]models.ToolResult, len(calls))
	for i, call := range calls {
		res, err := executor.Execute(ctx, call)
		if err != nil {
			results[i] = models.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
			continue
		}
		results[i] = res
	}
	return results
}

func appendAssistantToolTurn(history []models.Message, text string, calls []models.ToolCall) []models.Message {
	blocks := make([]models.Block, 0, len(calls)+1)
	if text != "" {
		blocks = append(blocks, models.Block{Type: models.BlockText, Text: text})
	}
	for _, c := range calls {
		input := c.Input
		if input == nil {
			input = json.RawMessage("{}")
		}
		blocks = append(blocks, models.Block{
			Type:    models.BlockToolUse,
			ToolUse: &models.ToolUse{ID: c.ID, Name: c.Name, Input: input},
		})
	}
	return append(history, models.Message{Role: models.RoleAssistant, Blocks: blocks})
}

func appendToolResults(history []models.Message, calls []models.ToolCall, results []models.ToolResult) []models.Message {
	blocks := make([]models.Block, 0, len(results))
	for i, res := range results {
		r := res
		blocks = append(blocks, models.Block{Type: models.BlockToolResult, ToolResult: &r})
		_ = calls[i]
	}
	return append(history, models.Message{Role: models.RoleUser, Blocks: blocks})
}
