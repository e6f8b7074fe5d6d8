package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kestrelai/assistant/internal/llm"
	"github.com/kestrelai/assistant/pkg/models"
)

// OpenAI adapts the OpenAI-compatible chat-completions wire format. BaseURL
// lets the same adapter serve any self-hosted OpenAI-compatible endpoint,
// matching the original implementation's "openai_compat" client.
type OpenAI struct {
	Base
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI builds an adapter. baseURL may be empty to target
// api.openai.com.
func NewOpenAI(apiKey, baseURL, model string, maxTokens int) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &OpenAI{
		Base:      NewBase(3, 0),
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (o *OpenAI) Provider() llm.Provider { return llm.ProviderOpenAI }

func (o *OpenAI) Stream(ctx context.Context, req llm.CompletionRequest) <-chan llm.StreamEvent {
	model := req.Model
	if model == "" {
		model = o.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}
	maxRounds := req.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 1
	}

	round := func(ctx context.Context, messages []models.Message, out chan<- llm.StreamEvent) (string, []models.ToolCall, error) {
		return o.runRound(ctx, req.System, model, maxTokens, req.Tools, messages, out)
	}
	return llm.RunToolLoop(ctx, req.System, req.Messages, req.Executor, maxRounds, round)
}

type pendingOpenAICall struct {
	id, name string
	args     strings.Builder
}

func (o *OpenAI) runRound(ctx context.Context, system, model string, maxTokens int, tools []llm.ToolDefinition, messages []models.Message, out chan<- llm.StreamEvent) (string, []models.ToolCall, error) {
	chatMessages := toOpenAIMessages(system, messages)
	chatTools := toOpenAITools(tools)

	var text strings.Builder
	var calls []models.ToolCall

	retryErr := o.Retry(ctx, isOpenAITransportError, func() error {
		text.Reset()
		calls = nil

		stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:     model,
			Messages:  chatMessages,
			Tools:     chatTools,
			MaxTokens: maxTokens,
			Stream:    true,
		})
		if err != nil {
			return err
		}
		defer stream.Close()

		pendingByIndex := map[int]*pendingOpenAICall{}
		var order []int

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break // io.EOF ends the stream normally
			}
			if err != nil {
				return err
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta

			if delta.Content != "" {
				text.WriteString(delta.Content)
				out <- llm.StreamEvent{Type: llm.EventTextDelta, Text: delta.Content}
			}

			for _, tc := range delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				p, ok := pendingByIndex[idx]
				if !ok {
					p = &pendingOpenAICall{}
					pendingByIndex[idx] = p
					order = append(order, idx)
				}
				if tc.ID != "" {
					p.id = tc.ID
					out <- llm.StreamEvent{Type: llm.EventToolUseStart, ToolCall: &models.ToolCall{ID: p.id, Name: tc.Function.Name}}
				}
				if tc.Function.Name != "" {
					p.name = tc.Function.Name
				}
				p.args.WriteString(tc.Function.Arguments)
			}
		}

		for _, idx := range order {
			p := pendingByIndex[idx]
			input := p.args.String()
			if input == "" {
				input = "{}"
			}
			call := models.ToolCall{ID: p.id, Name: p.name, Input: json.RawMessage(input)}
			calls = append(calls, call)
			out <- llm.StreamEvent{Type: llm.EventToolUseComplete, ToolCall: &call}
		}
		return nil
	})
	if retryErr != nil {
		return "", nil, retryErr
	}
	return text.String(), calls, nil
}

func toOpenAIMessages(system string, messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range messages {
		if !m.HasBlocks() {
			role := openai.ChatMessageRoleUser
			if m.Role == models.RoleAssistant {
				role = openai.ChatMessageRoleAssistant
			}
			out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
			continue
		}

		var text strings.Builder
		var toolCalls []openai.ToolCall
		for _, b := range m.Blocks {
			switch b.Type {
			case models.BlockText:
				text.WriteString(b.Text)
			case models.BlockToolUse:
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   b.ToolUse.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      b.ToolUse.Name,
						Arguments: string(b.ToolUse.Input),
					},
				})
			case models.BlockToolResult:
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    b.ToolResult.Content,
					ToolCallID: b.ToolResult.ToolCallID,
				})
			}
		}
		if text.Len() > 0 || len(toolCalls) > 0 {
			out = append(out, openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   text.String(),
				ToolCalls: toolCalls,
			})
		}
	}
	return out
}

func toOpenAITools(tools []llm.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

func isOpenAITransportError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}
