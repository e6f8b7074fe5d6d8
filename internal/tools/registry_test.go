package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kestrelai/assistant/pkg/models"
)

func newTestRegistry() *Registry {
	classifier := NewClassifier(nil)
	return NewRegistry(classifier, nil, "/workspace", nil)
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	reg := newTestRegistry()
	reg.SetApprover(AutoApprove)

	result, err := reg.Execute(context.Background(), models.ToolCall{ID: "1", Name: "nonexistent_tool"}, "sess", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for an unknown tool")
	}
}

func TestRegistryExecuteDeniedPermission(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(Definition{
		Name:           "write_file",
		ActionCategory: ActionWrite,
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			return "should not run", nil
		},
	})
	reg.SetApprover(AlwaysDeny)

	input, _ := json.Marshal(map[string]any{"path": "/a"})
	result, err := reg.Execute(context.Background(), models.ToolCall{ID: "1", Name: "write_file", Input: input}, "sess", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a permission-denied result")
	}
}

func TestRegistryExecuteSucceeds(t *testing.T) {
	reg := newTestRegistry()
	var gotInput map[string]any
	reg.Register(Definition{
		Name:           "read_file",
		ActionCategory: ActionRead,
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			gotInput = input
			return "file contents", nil
		},
	})
	reg.SetApprover(AlwaysDeny)

	input, _ := json.Marshal(map[string]any{"path": "../../etc/passwd"})
	result, err := reg.Execute(context.Background(), models.ToolCall{ID: "1", Name: "read_file", Input: input}, "sess", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError || result.Content != "file contents" {
		t.Fatalf("got %+v", result)
	}
	if gotInput["path"] != "/workspace/etc/passwd" {
		t.Fatalf("handler should receive sanitized input, got %v", gotInput["path"])
	}
}

func TestRegistryExecuteHandlerError(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(Definition{
		Name:           "read_file",
		ActionCategory: ActionRead,
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			return "", errors.New("file not found")
		},
	})

	result, err := reg.Execute(context.Background(), models.ToolCall{ID: "1", Name: "read_file"}, "sess", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a handler error to produce an error result, not a Go error")
	}
}

func TestRegistryExecuteApproverOverride(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(Definition{
		Name:           "write_file",
		ActionCategory: ActionWrite,
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			return "wrote", nil
		},
	})
	reg.SetApprover(AlwaysDeny)

	result, err := reg.Execute(context.Background(), models.ToolCall{ID: "1", Name: "write_file"}, "sess", AutoApprove)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("override approver should have allowed this call, got %+v", result)
	}
}

func TestRegistryUnregisterRemovesTool(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(Definition{Name: "temp_tool", ActionCategory: ActionRead, Handler: func(context.Context, map[string]any) (string, error) {
		return "ok", nil
	}})
	reg.Unregister("temp_tool")

	if len(reg.Definitions()) != 0 {
		t.Fatalf("got %d definitions, want 0 after unregister", len(reg.Definitions()))
	}
}
