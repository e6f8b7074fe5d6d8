// Package audit provides the append-only structured event record written
// by the tool registry: one JSON object per line, with ANSI escapes
// stripped and long fields truncated before anything reaches disk.
package audit

import "time"

// EventType names the kind of audit entry.
type EventType string

const (
	EventToolCall   EventType = "tool_call"
	EventToolDenied EventType = "tool_denied"
	EventToolError  EventType = "tool_error"
)

// Entry is one line of the audit log.
type Entry struct {
	Timestamp        time.Time `json:"timestamp"`
	EventType        EventType `json:"event_type"`
	SessionID        string    `json:"session_id,omitempty"`
	ToolName         string    `json:"tool_name,omitempty"`
	Input            any       `json:"input,omitempty"`
	Output           any       `json:"output,omitempty"`
	ActionCategory   string    `json:"action_category,omitempty"`
	ApprovalRequired bool      `json:"approval_required,omitempty"`
	DurationMS       int64     `json:"duration_ms,omitempty"`
	Error            string    `json:"error,omitempty"`
}
