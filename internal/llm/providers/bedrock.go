package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	smithyDocument "github.com/aws/smithy-go/document"

	"github.com/kestrelai/assistant/internal/llm"
	"github.com/kestrelai/assistant/pkg/models"
)

// Bedrock adapts the AWS Converse-stream wire format.
type Bedrock struct {
	Base
	client    *bedrockruntime.Client
	modelID   string
	maxTokens int
}

// NewBedrock builds an adapter from the default AWS config chain (env vars,
// shared credentials file, or an assumed role), matching the original
// implementation's lazy per-process client.
func NewBedrock(ctx context.Context, region, modelID string, maxTokens int) (*Bedrock, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &Bedrock{
		Base:      NewBase(3, 0),
		client:    bedrockruntime.NewFromConfig(cfg),
		modelID:   modelID,
		maxTokens: maxTokens,
	}, nil
}

func (b *Bedrock) Provider() llm.Provider { return llm.ProviderBedrock }

func (b *Bedrock) Stream(ctx context.Context, req llm.CompletionRequest) <-chan llm.StreamEvent {
	modelID := req.Model
	if modelID == "" {
		modelID = b.modelID
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = b.maxTokens
	}
	maxRounds := req.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 1
	}

	round := func(ctx context.Context, messages []models.Message, out chan<- llm.StreamEvent) (string, []models.ToolCall, error) {
		return b.runRound(ctx, req.System, modelID, maxTokens, req.Tools, messages, out)
	}
	return llm.RunToolLoop(ctx, req.System, req.Messages, req.Executor, maxRounds, round)
}

func (b *Bedrock) runRound(ctx context.Context, system, modelID string, maxTokens int, tools []llm.ToolDefinition, messages []models.Message, out chan<- llm.StreamEvent) (string, []models.ToolCall, error) {
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(modelID),
		Messages: toBedrockMessages(messages),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(maxTokens)),
		},
	}
	if system != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}
	if len(tools) > 0 {
		input.ToolConfig = toBedrockToolConfig(tools)
	}

	var text strings.Builder
	var calls []models.ToolCall

	retryErr := b.Retry(ctx, isBedrockTransportError, func() error {
		text.Reset()
		calls = nil

		resp, err := b.client.ConverseStream(ctx, input)
		if err != nil {
			return err
		}

		type pendingTool struct {
			id, name string
			input    strings.Builder
		}
		var pending *pendingTool

		stream := resp.GetStream()
		defer stream.Close()
		for event := range stream.Events() {
			switch v := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if start, ok := v.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					pending = &pendingTool{id: aws.ToString(start.Value.ToolUseId), name: aws.ToString(start.Value.Name)}
					out <- llm.StreamEvent{Type: llm.EventToolUseStart, ToolCall: &models.ToolCall{ID: pending.id, Name: pending.name}}
				}
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch d := v.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					text.WriteString(d.Value)
					out <- llm.StreamEvent{Type: llm.EventTextDelta, Text: d.Value}
				case *types.ContentBlockDeltaMemberToolUse:
					if pending != nil {
						pending.input.WriteString(aws.ToString(d.Value.Input))
					}
				}
			case *types.ConverseStreamOutputMemberContentBlockStop:
				if pending != nil {
					raw := pending.input.String()
					if raw == "" {
						raw = "{}"
					}
					call := models.ToolCall{ID: pending.id, Name: pending.name, Input: json.RawMessage(raw)}
					calls = append(calls, call)
					out <- llm.StreamEvent{Type: llm.EventToolUseComplete, ToolCall: &call}
					pending = nil
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				// round complete; fall through to stream.Err() below
			}
		}
		return stream.Err()
	})
	if retryErr != nil {
		return "", nil, retryErr
	}
	return text.String(), calls, nil
}

func toBedrockMessages(messages []models.Message) []types.Message {
	out := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		role := types.ConversationRoleUser
		if m.Role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		if !m.HasBlocks() {
			out = append(out, types.Message{
				Role:    role,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
			continue
		}
		blocks := make([]types.ContentBlock, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			switch b.Type {
			case models.BlockText:
				blocks = append(blocks, &types.ContentBlockMemberText{Value: b.Text})
			case models.BlockToolUse:
				blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(b.ToolUse.ID),
					Name:      aws.String(b.ToolUse.Name),
					Input:     bedrockDocument(b.ToolUse.Input),
				}})
			case models.BlockToolResult:
				status := types.ToolResultStatusSuccess
				if b.ToolResult.IsError {
					status = types.ToolResultStatusError
				}
				blocks = append(blocks, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
					ToolUseId: aws.String(b.ToolResult.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: b.ToolResult.Content}},
					Status:    status,
				}})
			case models.BlockImage:
				raw, err := base64.StdEncoding.DecodeString(b.Image.Data)
				if err != nil {
					continue
				}
				blocks = append(blocks, &types.ContentBlockMemberImage{Value: types.ImageBlock{
					Format: imageFormat(b.Image.MediaType),
					Source: &types.ImageSourceMemberBytes{Value: raw},
				}})
			}
		}
		out = append(out, types.Message{Role: role, Content: blocks})
	}
	return out
}

func toBedrockToolConfig(tools []llm.ToolDefinition) *types.ToolConfiguration {
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, &types.ToolMemberToolSpec{Value: types.ToolSpec{
			Name:        aws.String(t.Name),
			Description: aws.String(t.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: bedrockDocument(mustJSON(t.InputSchema))},
		}})
	}
	return &types.ToolConfiguration{Tools: specs}
}

func imageFormat(mediaType string) types.ImageFormat {
	switch mediaType {
	case "image/png":
		return types.ImageFormatPng
	case "image/gif":
		return types.ImageFormatGif
	case "image/webp":
		return types.ImageFormatWebp
	default:
		return types.ImageFormatJpeg
	}
}

// bedrockDocument wraps raw JSON for the smithy document.Interface the
// bedrockruntime SDK expects for freeform tool input/schema.
func bedrockDocument(raw json.RawMessage) smithyDocument.Interface {
	return smithyDocumentValue{raw: raw}
}

type smithyDocumentValue struct {
	raw json.RawMessage
}

func (d smithyDocumentValue) UnmarshalSmithyDocument(v any) error {
	if len(d.raw) == 0 {
		return nil
	}
	return json.Unmarshal(d.raw, v)
}

func (d smithyDocumentValue) MarshalSmithyDocument() ([]byte, error) {
	if len(d.raw) == 0 {
		return []byte("{}"), nil
	}
	return d.raw, nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

func isBedrockTransportError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailableException", "InternalServerException":
			return true
		}
	}
	return false
}
