package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrelai/assistant/internal/audit"
	"github.com/kestrelai/assistant/pkg/models"
)

// Handler is a registered tool's executable body. Errors it returns
// propagate into a tool_error audit entry and an error-flagged ToolResult;
// handlers never need to touch permissions, sanitisation, or audit
// themselves.
type Handler func(ctx context.Context, input map[string]any) (string, error)

// Definition is one registered tool's schema, metadata, and handler.
type Definition struct {
	Name           string
	Description    string
	InputSchema    map[string]any
	Handler        Handler
	ActionCategory ActionCategory
}

// Registry is the single execution chokepoint: every tool call passes
// through classify -> permission check -> sanitise -> execute -> audit, in
// that order. It is read-mostly after startup: Register/Unregister are
// safe against concurrent Execute calls but are not expected to race with
// them under normal operation.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]Definition
	classifier  *Classifier
	audit       *audit.Logger
	workspace   string
	logger      *slog.Logger
	approver    Approver
}

// SetApprover installs the registry's default approver, consulted whenever
// Execute is called without an override.
func (r *Registry) SetApprover(approve Approver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approver = approve
}

// NewRegistry builds an empty registry.
func NewRegistry(classifier *Classifier, auditLogger *audit.Logger, workspace string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		definitions: make(map[string]Definition),
		classifier:  classifier,
		audit:       auditLogger,
		workspace:   workspace,
		logger:      logger,
	}
}

// Register idempotently installs a tool, declaring its permission category
// for the classifier's fallback table.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.definitions[def.Name] = def
	r.classifier.RegisterCategory(def.Name, def.ActionCategory)
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.definitions, name)
}

// Definitions exposes the tool list handed to LLM adapters.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.definitions))
	for _, d := range r.definitions {
		out = append(out, d)
	}
	return out
}

func (r *Registry) get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.definitions[name]
	return d, ok
}

// Execute performs classify -> permission -> sanitise -> handler -> audit
// for one tool call. approverOverride, when non-nil, is used instead of
// the registry's default approver (e.g. an auto-approve policy for
// background delegation runs).
func (r *Registry) Execute(ctx context.Context, call models.ToolCall, sessionID string, approverOverride Approver) (models.ToolResult, error) {
	approve := r.defaultApprover
	if approverOverride != nil {
		approve = approverOverride
	}
	manager := NewManager(r.classifier, approve)

	input := inputToMap(call.Input)
	allowed, req := manager.Check(ctx, call.Name, input)

	if !allowed {
		if r.audit != nil {
			r.audit.ToolDenied(sessionID, call.Name, req.Details, string(req.ActionCategory))
		}
		return models.ToolResult{ToolCallID: call.ID, Content: "Permission denied by user.", IsError: true}, nil
	}

	def, ok := r.get(call.Name)
	if !ok {
		return models.ToolResult{ToolCallID: call.ID, Content: "Unknown tool: " + call.Name, IsError: true}, nil
	}

	sanitized := SanitizeInput(input, r.workspace)

	start := time.Now()
	content, err := def.Handler(ctx, sanitized)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		if r.audit != nil {
			r.audit.ToolError(sessionID, call.Name, req.Details, string(req.ActionCategory), err.Error(), duration)
		}
		return models.ToolResult{ToolCallID: call.ID, Content: fmt.Sprintf("Error: %s", err), IsError: true}, nil
	}

	if r.audit != nil {
		r.audit.ToolCall(sessionID, call.Name, req.Details, content, string(req.ActionCategory), req.RequiresApproval(), duration)
	}
	return models.ToolResult{ToolCallID: call.ID, Content: content}, nil
}

// defaultApprover defers to the approver installed by SetApprover; with
// none installed, a registry denies everything requiring approval,
// matching a safe test default.
func (r *Registry) defaultApprover(ctx context.Context, req PermissionRequest) bool {
	r.mu.RLock()
	approve := r.approver
	r.mu.RUnlock()
	if approve == nil {
		return false
	}
	return approve(ctx, req)
}
