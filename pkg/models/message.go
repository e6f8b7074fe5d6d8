// Package models holds the data types shared across the agent runtime:
// conversation messages, tool calls/results, and sessions.
package models

import (
	"encoding/json"
	"time"
)

// Role indicates the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockType tags the variant held by a Block.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockImage      BlockType = "image"
)

// Block is one element of a message's content sequence. Exactly one of the
// pointer fields is populated, selected by Type.
type Block struct {
	Type       BlockType   `json:"type"`
	Text       string      `json:"text,omitempty"`
	ToolUse    *ToolUse    `json:"tool_use,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Image      *ImageBlock `json:"image,omitempty"`
}

// ToolUse is the assistant-side request to invoke a tool within a Block
// sequence; its ID is matched against a ToolResult block in the reply.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ImageBlock carries an inline image in the canonical base64+media-type
// form; provider adapters re-encode it into whatever shape the wire format
// expects (e.g. raw bytes for AWS-style requests).
type ImageBlock struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Message is one turn in a conversation. Content is either a bare string,
// lifted to a single text block by adapters, or an ordered Blocks sequence.
type Message struct {
	Role    Role    `json:"role"`
	Content string  `json:"content,omitempty"`
	Blocks  []Block `json:"blocks,omitempty"`
}

// HasBlocks reports whether the message uses the block-sequence form.
func (m Message) HasBlocks() bool {
	return len(m.Blocks) > 0
}

// ToolCall is an opaque-id'd request for tool execution, unique within a
// conversation.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of executing a ToolCall, keyed back to it by
// ToolCallID.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Session is the active conversation for one transport key: its
// accumulated messages and the last round's tool calls.
type Session struct {
	ID            string     `json:"id"`
	Messages      []Message  `json:"messages"`
	LastToolCalls []ToolCall `json:"last_tool_calls,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Trim keeps only the most recent maxMessages entries, preserving order.
// A non-positive maxMessages disables trimming.
func (s *Session) Trim(maxMessages int) {
	if maxMessages <= 0 || len(s.Messages) <= maxMessages {
		return
	}
	s.Messages = append([]Message(nil), s.Messages[len(s.Messages)-maxMessages:]...)
}
