// Package llm provides a provider-neutral streaming client: three adapters
// normalise divergent wire formats behind one StreamEvent contract and a
// shared tool-use loop drives the "think, call tools, continue" cycle.
package llm

import (
	"context"

	"github.com/kestrelai/assistant/pkg/models"
)

// Provider names a concrete wire format / vendor.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderBedrock   Provider = "bedrock"
)

// StreamEventType tags the variant held by a StreamEvent.
type StreamEventType string

const (
	EventTextDelta       StreamEventType = "text_delta"
	EventToolUseStart    StreamEventType = "tool_use_start"
	EventToolUseDelta    StreamEventType = "tool_use_delta"
	EventToolUseComplete StreamEventType = "tool_use_complete"
	EventMessageComplete StreamEventType = "message_complete"
	EventRoutingInfo     StreamEventType = "routing_info"
	EventError           StreamEventType = "error"
)

// StreamEvent is the tagged union produced by an adapter stream and by the
// router wrapping it. A single stream MUST terminate with exactly one of
// EventMessageComplete or EventError.
type StreamEvent struct {
	Type     StreamEventType  `json:"type"`
	Text     string           `json:"text,omitempty"`
	ToolCall *models.ToolCall `json:"tool_call,omitempty"`
	Error    string           `json:"error,omitempty"`

	// Routing fields, set only on EventRoutingInfo.
	Provider Provider `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// ToolDefinition describes one tool available to the model: its name,
// description and input schema. It carries no handler; requested calls are
// run through the request's Executor.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolExecutor runs a tool call and returns its result. Implementations
// never let a handler panic or error escape; they convert it to an
// error-flagged ToolResult (see internal/tools.Registry).
type ToolExecutor interface {
	Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error)
}

// ToolExecutorFunc adapts a plain function to a ToolExecutor.
type ToolExecutorFunc func(ctx context.Context, call models.ToolCall) (models.ToolResult, error)

func (f ToolExecutorFunc) Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error) {
	return f(ctx, call)
}

// CompletionRequest is the adapter-neutral shape passed to a provider's
// streaming primitive.
type CompletionRequest struct {
	System        string
	Messages      []models.Message
	Tools         []ToolDefinition
	Executor      ToolExecutor
	Model         string
	MaxTokens     int
	MaxToolRounds int
}

// Adapter is the one operation every provider exposes: given a request,
// produce a channel of StreamEvents. The channel is closed after the
// terminal message_complete or error event.
type Adapter interface {
	Provider() Provider
	Stream(ctx context.Context, req CompletionRequest) <-chan StreamEvent
}
