// Package tools implements the tool registry chokepoint: permission
// classification, input sanitisation, execution, and audit — the only
// place these three concerns happen for any tool call in the system.
package tools

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// ActionCategory classifies a tool call's side-effect surface.
type ActionCategory string

const (
	ActionRead         ActionCategory = "read"
	ActionWrite        ActionCategory = "write"
	ActionDelete       ActionCategory = "delete"
	ActionNetworkRead  ActionCategory = "network_read"
	ActionNetworkWrite ActionCategory = "network_write"
)

// PermissionRequest is the per-call classification result, consumed by the
// approver (or auto-decided) and then discarded.
type PermissionRequest struct {
	ToolName       string
	ActionCategory ActionCategory
	Details        map[string]any
	Description    string
}

// RequiresApproval reports whether anything other than read/network_read
// needs a human decision.
func (r PermissionRequest) RequiresApproval() bool {
	return r.ActionCategory != ActionRead && r.ActionCategory != ActionNetworkRead
}

// Approver is the injected asynchronous decision function. A per-transport
// implementation supplies a CLI prompt, a chat button, an always-true
// auto-approver for background runs, or an always-false approver for
// tests. A timeout inside an approver MUST resolve to false.
type Approver func(ctx context.Context, req PermissionRequest) bool

// AutoApprove always allows — used for background delegation runs.
func AutoApprove(context.Context, PermissionRequest) bool { return true }

// AlwaysDeny always refuses — useful in tests and as a safe default.
func AlwaysDeny(context.Context, PermissionRequest) bool { return false }

var readShellCommands = regexp.MustCompile(
	`^(ls|cat|head|tail|wc|find|grep|rg|which|whoami|pwd|echo|date|file|stat|du|df|env|printenv|uname)\b`,
)

// ClassifyShellCommand maps a shell command line to an action category by
// inspecting its prefix.
func ClassifyShellCommand(command string) ActionCategory {
	cmd := strings.TrimSpace(command)
	if readShellCommands.MatchString(cmd) {
		return ActionRead
	}
	if strings.HasPrefix(cmd, "rm ") || strings.HasPrefix(cmd, "rm\t") || strings.HasPrefix(cmd, "rmdir ") {
		return ActionDelete
	}
	return ActionWrite
}

// ClassifyHTTPMethod maps an HTTP method to an action category.
func ClassifyHTTPMethod(method string) ActionCategory {
	if strings.EqualFold(method, "GET") {
		return ActionNetworkRead
	}
	return ActionNetworkWrite
}

// GoogleCalendarEnabled reports whether the environment is configured for
// the Google Calendar integration (network-backed) rather than the local
// SQLite-backed calendar. Classification of the calendar tool branches on
// this flag because every Google Calendar action crosses the network,
// where the SQLite-backed equivalent mostly does not.
type GoogleCalendarEnabled func() bool

// Classifier is a table-driven classify(tool_name, input) function with a
// fallback entry for dynamically registered tools (each declares its own
// category at Registry.Register time).
type Classifier struct {
	fallback            map[string]ActionCategory
	googleCalendarCheck GoogleCalendarEnabled
}

// NewClassifier builds a classifier. googleCalendarCheck may be nil, in
// which case the calendar tool is always treated as SQLite-backed.
func NewClassifier(googleCalendarCheck GoogleCalendarEnabled) *Classifier {
	if googleCalendarCheck == nil {
		googleCalendarCheck = func() bool { return false }
	}
	return &Classifier{
		fallback:            make(map[string]ActionCategory),
		googleCalendarCheck: googleCalendarCheck,
	}
}

// RegisterCategory records the action category a dynamically registered
// tool declares for itself, used as the fallback-table entry.
func (c *Classifier) RegisterCategory(toolName string, category ActionCategory) {
	c.fallback[toolName] = category
}

func asString(input map[string]any, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

// Classify implements the bespoke per-tool classification table: a handful
// of built-in tools inspect their own fields (shell command prefix, HTTP
// method, an "action" discriminator); everything else falls back to the
// dynamically registered category, or ActionWrite if entirely unknown.
func (c *Classifier) Classify(toolName string, input map[string]any) PermissionRequest {
	switch toolName {
	case "shell_exec":
		cmd := asString(input, "command")
		return PermissionRequest{toolName, ClassifyShellCommand(cmd), input, "Execute: " + cmd}

	case "read_file":
		return PermissionRequest{toolName, ActionRead, input, "Read: " + asString(input, "path")}

	case "write_file":
		return PermissionRequest{toolName, ActionWrite, input, "Write: " + asString(input, "path")}

	case "http_request":
		method := asString(input, "method")
		if method == "" {
			method = "GET"
		}
		return PermissionRequest{toolName, ClassifyHTTPMethod(method), input, method + " " + asString(input, "url")}

	case "memory_search":
		return PermissionRequest{toolName, ActionRead, input, "Memory search: " + asString(input, "query")}

	case "memory_store":
		return PermissionRequest{toolName, ActionWrite, input, "Memory store: " + asString(input, "fact")}

	case "memory_forget":
		return PermissionRequest{toolName, ActionDelete, input, "Memory forget: " + asString(input, "query")}

	case "update_identity":
		cat := ActionRead
		if asString(input, "action") != "read" && asString(input, "action") != "" {
			cat = ActionWrite
		}
		return PermissionRequest{toolName, cat, input, "Identity " + asString(input, "action")}

	case "manage_skill":
		action := asString(input, "action")
		cat := ActionWrite
		if action == "" || action == "list" {
			cat = ActionRead
		}
		return PermissionRequest{toolName, cat, input, "Skill " + action + ": " + asString(input, "name")}

	case "manage_agent":
		action := asString(input, "action")
		var cat ActionCategory
		switch action {
		case "", "list", "reload":
			cat = ActionRead
		case "delete":
			cat = ActionDelete
		default:
			cat = ActionWrite
		}
		return PermissionRequest{toolName, cat, input, "Agent " + action + ": " + asString(input, "name")}

	case "browse_web":
		action := asString(input, "action")
		cat := ActionNetworkRead
		if action == "click" || action == "fill" {
			cat = ActionNetworkWrite
		}
		return PermissionRequest{toolName, cat, input, "Browse (" + action + "): " + asString(input, "url")}

	case "web_fetch", "pdf_read", "arxiv_search", "get_weather", "web_search":
		return PermissionRequest{toolName, ActionNetworkRead, input, toolName}

	case "task_status":
		return PermissionRequest{toolName, ActionRead, input, "Check task: " + asString(input, "task_id")}

	case "send_email":
		return PermissionRequest{toolName, ActionNetworkRead, input, "Email: " + asString(input, "title")}

	case "schedule_reminder":
		action := asString(input, "action")
		var cat ActionCategory
		switch action {
		case "list":
			cat = ActionRead
		case "cancel":
			cat = ActionDelete
		default:
			cat = ActionWrite
		}
		return PermissionRequest{toolName, cat, input, "Schedule: " + asString(input, "description")}

	case "run_workflow":
		return PermissionRequest{toolName, ActionWrite, input, "Run workflow: " + asString(input, "name")}

	case "calendar":
		return c.classifyCalendar(toolName, input)

	case "contacts":
		action := asString(input, "action")
		var cat ActionCategory
		switch action {
		case "", "list", "get", "search":
			cat = ActionRead
		case "delete":
			cat = ActionDelete
		default:
			cat = ActionWrite
		}
		return PermissionRequest{toolName, cat, input, "Contacts " + action}
	}

	if cat, ok := c.fallback[toolName]; ok {
		return PermissionRequest{toolName, cat, input, "Plugin tool: " + toolName}
	}
	return PermissionRequest{toolName, ActionWrite, input, "Unknown tool: " + toolName}
}

// classifyCalendar branches on whether the Google Calendar integration is
// enabled: every Google-backed action crosses the network, so its
// categories differ from the local SQLite-backed calendar.
func (c *Classifier) classifyCalendar(toolName string, input map[string]any) PermissionRequest {
	action := asString(input, "action")
	if action == "" {
		action = "list"
	}
	desc := "Calendar " + action
	var cat ActionCategory
	if c.googleCalendarCheck() {
		switch action {
		case "list", "today", "add_feed", "remove_feed", "sync_feeds":
			cat = ActionNetworkRead
		case "delete":
			cat = ActionNetworkWrite
		default:
			cat = ActionNetworkWrite
		}
	} else {
		switch action {
		case "list", "today":
			cat = ActionRead
		case "add_feed", "sync_feeds":
			cat = ActionNetworkRead
		case "delete":
			cat = ActionDelete
		default:
			cat = ActionWrite
		}
	}
	return PermissionRequest{toolName, cat, input, desc}
}

// Manager checks permissions and invokes the approval callback when
// required. check(name, input) returns immediately for read/network_read.
type Manager struct {
	classifier *Classifier
	approve    Approver
}

// NewManager builds a permission manager over the given classifier and
// approver.
func NewManager(classifier *Classifier, approve Approver) *Manager {
	if approve == nil {
		approve = AlwaysDeny
	}
	return &Manager{classifier: classifier, approve: approve}
}

// Check classifies the call and, if approval is required, awaits the
// injected approver. It never blocks for read/network_read calls.
func (m *Manager) Check(ctx context.Context, toolName string, input map[string]any) (bool, PermissionRequest) {
	req := m.classifier.Classify(toolName, input)
	if !req.RequiresApproval() {
		return true, req
	}
	return m.approve(ctx, req), req
}

// inputToMap decodes a tool call's raw JSON input into a generic map for
// classification; malformed input classifies as an empty object rather
// than failing permission checks outright (classification must never be
// the reason a malformed call skips audit).
func inputToMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}
