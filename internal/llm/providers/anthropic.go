package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kestrelai/assistant/internal/llm"
	"github.com/kestrelai/assistant/pkg/models"
)

// Anthropic adapts the message-block wire format (api.anthropic.com) to the
// llm.Adapter contract.
type Anthropic struct {
	Base
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic builds an adapter bound to a single API key. model is the
// default model name used when a request does not override it.
func NewAnthropic(apiKey, model string, maxTokens int) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &Anthropic{
		Base:      NewBase(3, 0),
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (a *Anthropic) Provider() llm.Provider { return llm.ProviderAnthropic }

func (a *Anthropic) Stream(ctx context.Context, req llm.CompletionRequest) <-chan llm.StreamEvent {
	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}
	maxRounds := req.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 1
	}

	round := func(ctx context.Context, messages []models.Message, out chan<- llm.StreamEvent) (string, []models.ToolCall, error) {
		return a.runRound(ctx, req.System, model, maxTokens, req.Tools, messages, out)
	}
	return llm.RunToolLoop(ctx, req.System, req.Messages, req.Executor, maxRounds, round)
}

func (a *Anthropic) runRound(ctx context.Context, system, model string, maxTokens int, tools []llm.ToolDefinition, messages []models.Message, out chan<- llm.StreamEvent) (string, []models.ToolCall, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  toAnthropicMessages(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = toAnthropicTools(tools)
	}

	var text strings.Builder
	var calls []models.ToolCall

	retryErr := a.Retry(ctx, isTransportError, func() error {
		text.Reset()
		calls = nil

		stream := a.client.Messages.NewStreaming(ctx, params)
		message := anthropic.Message{}

		type pendingTool struct {
			id, name string
			input    strings.Builder
		}
		var pending *pendingTool

		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				return err
			}

			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if tu, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					pending = &pendingTool{id: tu.ID, name: tu.Name}
					out <- llm.StreamEvent{Type: llm.EventToolUseStart, ToolCall: &models.ToolCall{ID: tu.ID, Name: tu.Name}}
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := variant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					text.WriteString(delta.Text)
					out <- llm.StreamEvent{Type: llm.EventTextDelta, Text: delta.Text}
				case anthropic.InputJSONDelta:
					if pending != nil {
						pending.input.WriteString(delta.PartialJSON)
					}
				}
			case anthropic.ContentBlockStopEvent:
				if pending != nil {
					call := models.ToolCall{ID: pending.id, Name: pending.name, Input: []byte(pending.input.String())}
					if len(call.Input) == 0 {
						call.Input = []byte("{}")
					}
					calls = append(calls, call)
					out <- llm.StreamEvent{Type: llm.EventToolUseComplete, ToolCall: &call}
					pending = nil
				}
			}
		}
		return stream.Err()
	})
	if retryErr != nil {
		return "", nil, retryErr
	}
	return text.String(), calls, nil
}

func toAnthropicMessages(messages []models.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		role := anthropic.MessageParamRoleUser
		if m.Role == models.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		if !m.HasBlocks() {
			out = append(out, anthropic.MessageParam{
				Role:    role,
				Content: []anthropic.ContentBlockParamUnion{{OfText: &anthropic.TextBlockParam{Text: m.Content}}},
			})
			continue
		}
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			switch b.Type {
			case models.BlockText:
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfText: &anthropic.TextBlockParam{Text: b.Text}})
			case models.BlockToolUse:
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    b.ToolUse.ID,
					Name:  b.ToolUse.Name,
					Input: rawToAny(b.ToolUse.Input),
				}})
			case models.BlockToolResult:
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolResult: &anthropic.ToolResultBlockParam{
					ToolUseID: b.ToolResult.ToolCallID,
					Content:   []anthropic.ToolResultBlockParamContentUnion{{OfText: &anthropic.TextBlockParam{Text: b.ToolResult.Content}}},
					IsError:   anthropic.Bool(b.ToolResult.IsError),
				}})
			case models.BlockImage:
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfImage: &anthropic.ImageBlockParam{
					Source: anthropic.ImageBlockParamSourceUnion{OfBase64: &anthropic.Base64ImageSourceParam{
						MediaType: anthropic.Base64ImageSourceMediaType(b.Image.MediaType),
						Data:      b.Image.Data,
					}},
				}})
			}
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}
	return out
}

func toAnthropicTools(tools []llm.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{Properties: t.InputSchema["properties"]},
		}})
	}
	return out
}

func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
